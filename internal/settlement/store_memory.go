package settlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"travel-platform/internal/booking"
	"travel-platform/internal/category"
	"travel-platform/internal/wallet"
)

// MemoryStore is an in-memory Store for tests and early development.
//
// A Within call holds the store mutex for its whole duration, so
// transactions are serialized exactly like row-locked DB transactions would
// be per booking. Writes are staged and only applied when fn returns nil,
// which preserves the all-or-nothing contract.
type MemoryStore struct {
	mu sync.Mutex

	bookings map[string]booking.Booking
	wallets  map[string]wallet.Wallet // keyed by user id

	coinTxs   []wallet.CoinTransaction
	txs       []wallet.Transaction
	cashbacks []wallet.CashbackRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings: map[string]booking.Booking{},
		wallets:  map[string]wallet.Wallet{},
	}
}

// PutBooking seeds or replaces a booking.
func (s *MemoryStore) PutBooking(b booking.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = cloneBooking(b)
}

// PutWallet seeds or replaces a wallet.
func (s *MemoryStore) PutWallet(w wallet.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.UserID] = w
}

// CoinTransactions returns a snapshot of the coin log.
func (s *MemoryStore) CoinTransactions() []wallet.CoinTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wallet.CoinTransaction, len(s.coinTxs))
	copy(out, s.coinTxs)
	return out
}

// Transactions returns a snapshot of the formal ledger.
func (s *MemoryStore) Transactions() []wallet.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wallet.Transaction, len(s.txs))
	copy(out, s.txs)
	return out
}

// CashbackRecords returns a snapshot of the per-credit records.
func (s *MemoryStore) CashbackRecords() []wallet.CashbackRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wallet.CashbackRecord, len(s.cashbacks))
	copy(out, s.cashbacks)
	return out
}

func (s *MemoryStore) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return booking.Booking{}, ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (s *MemoryStore) GetWallet(ctx context.Context, userID string) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return wallet.Wallet{}, wallet.ErrWalletNotFound
	}
	return w, nil
}

func (s *MemoryStore) ListHeldReadyForCredit(ctx context.Context, now time.Time, exclude map[string]struct{}, limit int) ([]booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]booking.Booking, 0)
	for _, b := range s.bookings {
		if b.CashbackStatus != booking.CashbackHeld || b.CompletedAt == nil {
			continue
		}
		if _, skip := exclude[b.ID]; skip {
			continue
		}
		matured := b.CompletedAt.Add(time.Duration(b.VerificationDays) * 24 * time.Hour)
		if matured.After(now) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListUnpaidExpired(ctx context.Context, cutoff time.Time, limit int) ([]booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]booking.Booking, 0)
	for _, b := range s.bookings {
		if b.PaymentStatus != booking.PaymentPending || !b.RequiresPaymentUpfront {
			continue
		}
		if b.Status != booking.StatusPending && b.Status != booking.StatusConfirmed {
			continue
		}
		if !b.CreatedAt.Before(cutoff) {
			continue
		}
		if !category.IsTravelCategory(b.CategorySlug) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListCompletablePast(ctx context.Context, cutoff time.Time, limit int) ([]booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]booking.Booking, 0)
	for _, b := range s.bookings {
		if b.Status != booking.StatusConfirmed || b.PaymentStatus != booking.PaymentPaid {
			continue
		}
		if b.CompletedAt != nil {
			continue
		}
		if !b.BookingDate.Before(cutoff) {
			continue
		}
		if !category.IsTravelCategory(b.CategorySlug) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.Before(out[j].BookingDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:    s,
		bookings: map[string]booking.Booking{},
		wallets:  map[string]wallet.Wallet{},
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

// memoryTx stages writes until commit.
type memoryTx struct {
	store *MemoryStore

	bookings map[string]booking.Booking
	wallets  map[string]wallet.Wallet

	coinTxs   []wallet.CoinTransaction
	txs       []wallet.Transaction
	cashbacks []wallet.CashbackRecord
}

func (t *memoryTx) BookingForUpdate(ctx context.Context, id string) (booking.Booking, error) {
	if b, ok := t.bookings[id]; ok {
		return cloneBooking(b), nil
	}
	b, ok := t.store.bookings[id]
	if !ok {
		return booking.Booking{}, ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (t *memoryTx) SaveBooking(ctx context.Context, b booking.Booking) error {
	t.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t *memoryTx) WalletForUpdate(ctx context.Context, userID string) (wallet.Wallet, error) {
	if w, ok := t.wallets[userID]; ok {
		return w, nil
	}
	w, ok := t.store.wallets[userID]
	if !ok {
		return wallet.Wallet{}, wallet.ErrWalletNotFound
	}
	return w, nil
}

func (t *memoryTx) SaveWallet(ctx context.Context, w wallet.Wallet) error {
	t.wallets[w.UserID] = w
	return nil
}

func (t *memoryTx) AppendCoinTransaction(ctx context.Context, e wallet.CoinTransaction) error {
	t.coinTxs = append(t.coinTxs, e)
	return nil
}

func (t *memoryTx) AppendTransaction(ctx context.Context, e wallet.Transaction) error {
	t.txs = append(t.txs, e)
	return nil
}

func (t *memoryTx) CreateCashbackRecord(ctx context.Context, r wallet.CashbackRecord) error {
	t.cashbacks = append(t.cashbacks, r)
	return nil
}

func (t *memoryTx) apply() {
	for id, b := range t.bookings {
		t.store.bookings[id] = b
	}
	for uid, w := range t.wallets {
		t.store.wallets[uid] = w
	}
	t.store.coinTxs = append(t.store.coinTxs, t.coinTxs...)
	t.store.txs = append(t.store.txs, t.txs...)
	t.store.cashbacks = append(t.store.cashbacks, t.cashbacks...)
}

func cloneBooking(b booking.Booking) booking.Booking {
	out := b
	if len(b.StatusHistory) > 0 {
		out.StatusHistory = make([]booking.StatusHistoryEntry, len(b.StatusHistory))
		copy(out.StatusHistory, b.StatusHistory)
	}
	if len(b.RefundPolicy) > 0 {
		out.RefundPolicy = make([]category.Tier, len(b.RefundPolicy))
		copy(out.RefundPolicy, b.RefundPolicy)
	}
	return out
}
