package reporting

import (
	"context"
	"errors"
	"time"

	"travel-platform/internal/booking"
	"travel-platform/internal/wallet"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// Implementations should query immutable sources when possible (the wallet
// transaction log, booking records).

type Repository interface {
	ListBookings(ctx context.Context, from, to time.Time, categorySlug string) ([]booking.Booking, error)
	ListWalletTransactions(ctx context.Context, from, to time.Time, userID string) ([]wallet.Transaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func validRange(r TimeRange) bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

func (s *Service) BookingsSummary(ctx context.Context, req BookingsSummaryRequest) (BookingsSummary, error) {
	if !validRange(req.Range) {
		return BookingsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return BookingsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListBookings(ctx, req.Range.From, req.Range.To, req.CategorySlug)
	if err != nil {
		return BookingsSummary{}, err
	}

	out := BookingsSummary{CategorySlug: req.CategorySlug}
	for _, b := range rows {
		out.TotalBookings++
		switch b.Status {
		case booking.StatusPending:
			out.PendingBookings++
		case booking.StatusConfirmed:
			out.ConfirmedBookings++
		case booking.StatusCompleted:
			out.CompletedBookings++
		case booking.StatusCancelled:
			out.CancelledBookings++
		}
		if b.PaymentStatus == booking.PaymentPaid {
			out.PaidRevenue = out.PaidRevenue.Add(b.Pricing.Total)
			if out.Currency == "" {
				out.Currency = b.Pricing.Currency
			}
		}
	}
	if out.Currency == "" {
		out.Currency = "INR"
	}
	return out, nil
}

func (s *Service) CashbackSummary(ctx context.Context, req CashbackSummaryRequest) (CashbackSummary, error) {
	if !validRange(req.Range) {
		return CashbackSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CashbackSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListBookings(ctx, req.Range.From, req.Range.To, req.CategorySlug)
	if err != nil {
		return CashbackSummary{}, err
	}

	out := CashbackSummary{CategorySlug: req.CategorySlug}
	for _, b := range rows {
		amount := b.Pricing.CashbackEarned
		switch b.CashbackStatus {
		case booking.CashbackPending:
			out.PendingCount++
			out.PendingAmount = out.PendingAmount.Add(amount)
		case booking.CashbackHeld:
			out.HeldCount++
			out.HeldAmount = out.HeldAmount.Add(amount)
		case booking.CashbackCredited:
			out.CreditedCount++
			out.CreditedAmount = out.CreditedAmount.Add(amount)
		case booking.CashbackClawedBack:
			out.ClawedBackCount++
			out.ClawedBackAmount = out.ClawedBackAmount.Add(amount)
		}
	}
	return out, nil
}

func (s *Service) WalletActivity(ctx context.Context, req WalletActivityRequest) (WalletActivity, error) {
	if !validRange(req.Range) {
		return WalletActivity{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return WalletActivity{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListWalletTransactions(ctx, req.Range.From, req.Range.To, req.UserID)
	if err != nil {
		return WalletActivity{}, err
	}

	out := WalletActivity{UserID: req.UserID}
	for _, tx := range rows {
		switch tx.Type {
		case wallet.TxCredit:
			out.CreditCount++
			out.TotalCredited = out.TotalCredited.Add(tx.Amount)
		case wallet.TxDebit:
			out.DebitCount++
			out.TotalDebited = out.TotalDebited.Add(tx.Amount)
		}
	}
	out.NetDelta = out.TotalCredited.Sub(out.TotalDebited)
	return out, nil
}
