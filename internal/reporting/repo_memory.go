package reporting

import (
	"context"
	"sync"
	"time"

	"travel-platform/internal/booking"
	"travel-platform/internal/wallet"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early
// development.

type MemoryRepo struct {
	mu sync.Mutex

	Bookings     []booking.Booking
	Transactions []wallet.Transaction
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func inWindow(at, from, to time.Time) bool {
	return !at.Before(from) && at.Before(to)
}

func (r *MemoryRepo) ListBookings(ctx context.Context, from, to time.Time, categorySlug string) ([]booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]booking.Booking, 0)
	for _, b := range r.Bookings {
		if !b.CreatedAt.IsZero() && !inWindow(b.CreatedAt, from, to) {
			continue
		}
		if categorySlug != "" && b.CategorySlug != categorySlug {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *MemoryRepo) ListWalletTransactions(ctx context.Context, from, to time.Time, userID string) ([]wallet.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wallet.Transaction, 0)
	for _, tx := range r.Transactions {
		if !tx.CreatedAt.IsZero() && !inWindow(tx.CreatedAt, from, to) {
			continue
		}
		if userID != "" && tx.UserID != userID {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
