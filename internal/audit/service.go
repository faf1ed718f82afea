package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogSettlementOverride records an operator forcing a cashback credit or
// clawback outside the scheduled lifecycle.
func (s *Service) LogSettlementOverride(ctx context.Context, actorUserID, actorRole, ip, bookingID, userID, action, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeSettlementOverride,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		BookingID:   bookingID,
		UserID:      userID,
		Message:     "settlement override: " + action,
		Metadata:    metadata,
	})
}

// LogReferenceCorrection records an operator correcting booking references
// (PNR, external ref).
func (s *Service) LogReferenceCorrection(ctx context.Context, actorUserID, actorRole, ip, bookingID, message, metadata string) error {
	if message == "" {
		message = "references corrected"
	}
	return s.Append(ctx, Event{
		Type:        EventTypeReferenceCorrection,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		BookingID:   bookingID,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogAdminAction records any other privileged action.
func (s *Service) LogAdminAction(ctx context.Context, actorUserID, actorRole, ip, message, walletID, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		WalletID:    walletID,
		Message:     message,
		Metadata:    metadata,
	})
}
