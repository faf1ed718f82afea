package settlement

import (
	"context"
	"errors"
	"time"

	"travel-platform/internal/booking"
	"travel-platform/internal/wallet"
)

var (
	ErrBookingNotFound = errors.New("settlement: booking not found")

	// ErrInvalidState marks a cashback-state transition that is not allowed.
	// The double-credit guard race (already credited) is NOT reported through
	// this error; that case is a silent idempotent no-op.
	ErrInvalidState = errors.New("settlement: invalid cashback state")
)

// Store is the persistence contract for the settlement engine.
//
// Read methods outside Within see committed state. All mutations go through
// Within, whose function either commits as one atomic unit or leaves no
// partial writes behind.
type Store interface {
	GetBooking(ctx context.Context, id string) (booking.Booking, error)
	GetWallet(ctx context.Context, userID string) (wallet.Wallet, error)

	// ListHeldReadyForCredit returns bookings with cashback status held, a
	// non-null completion timestamp, and completedAt + verificationDays in
	// the past, excluding the given IDs. Ordered by completion time.
	ListHeldReadyForCredit(ctx context.Context, now time.Time, exclude map[string]struct{}, limit int) ([]booking.Booking, error)

	// ListUnpaidExpired returns upfront-payment bookings still unpaid and
	// created before cutoff, in status pending or confirmed.
	ListUnpaidExpired(ctx context.Context, cutoff time.Time, limit int) ([]booking.Booking, error)

	// ListCompletablePast returns confirmed, paid bookings whose booking date
	// is before cutoff and which have no completion timestamp yet.
	ListCompletablePast(ctx context.Context, cutoff time.Time, limit int) ([]booking.Booking, error)

	// Within runs fn inside a transaction. fn returning an error rolls back
	// everything written through tx.
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the writes the engine performs atomically: wallet balance, both
// audit logs, the cashback record, and the booking's cashback status. All
// four commit or none do.
type Tx interface {
	// BookingForUpdate re-reads a booking with a row lock, serializing
	// concurrent settlement attempts per booking.
	BookingForUpdate(ctx context.Context, id string) (booking.Booking, error)
	SaveBooking(ctx context.Context, b booking.Booking) error

	WalletForUpdate(ctx context.Context, userID string) (wallet.Wallet, error)
	SaveWallet(ctx context.Context, w wallet.Wallet) error

	AppendCoinTransaction(ctx context.Context, t wallet.CoinTransaction) error
	AppendTransaction(ctx context.Context, t wallet.Transaction) error
	CreateCashbackRecord(ctx context.Context, r wallet.CashbackRecord) error
}
