package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"travel-platform/internal/booking"
	"travel-platform/internal/category"
	"travel-platform/internal/wallet"
	"travel-platform/pkg/utils"
)

// PostgresStore implements Store over database/sql with the pgx driver.
//
// NOTE: This store assumes the following tables exist:
// - bookings (status_history and refund_policy stored as JSONB)
// - wallets (one row per user)
// - coin_transactions (immutable append-only)
// - transactions (immutable append-only)
// - cashback_records
//
// Concurrency: per-booking serialization relies on SELECT ... FOR UPDATE in
// BookingForUpdate/WalletForUpdate; the re-read inside the transaction is
// what makes the double-credit guard authoritative.
type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{DB: db} }

const bookingColumns = `
id, booking_number, user_id, service_id, category_slug, store_id,
booking_date, slot_start, slot_end, duration_minutes,
base_price, total, cashback_percentage, cashback_earned, currency,
payment_status, payment_id, requires_payment_upfront,
status, status_history,
cashback_status, cashback_held_at, cashback_credited_at, verification_days, refund_policy,
pnr, external_ref,
confirmed_at, completed_at, cancelled_at, cancellation_reason, cancelled_by,
created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (booking.Booking, error) {
	var b booking.Booking
	var historyJSON, policyJSON []byte
	var heldAt, creditedAt, confirmedAt, completedAt, cancelledAt, lastUpdated sql.NullTime

	err := row.Scan(
		&b.ID, &b.BookingNumber, &b.UserID, &b.ServiceID, &b.CategorySlug, &b.StoreID,
		&b.BookingDate, &b.TimeSlot.Start, &b.TimeSlot.End, &b.DurationMinutes,
		&b.Pricing.BasePrice, &b.Pricing.Total, &b.Pricing.CashbackPercentage, &b.Pricing.CashbackEarned, &b.Pricing.Currency,
		&b.PaymentStatus, &b.PaymentID, &b.RequiresPaymentUpfront,
		&b.Status, &historyJSON,
		&b.CashbackStatus, &heldAt, &creditedAt, &b.VerificationDays, &policyJSON,
		&b.PNR, &b.ExternalRef,
		&confirmedAt, &completedAt, &cancelledAt, &b.CancellationReason, &b.CancelledBy,
		&b.CreatedAt, &lastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return booking.Booking{}, ErrBookingNotFound
		}
		return booking.Booking{}, err
	}

	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &b.StatusHistory); err != nil {
			return booking.Booking{}, fmt.Errorf("decode status history for %s: %w", b.ID, err)
		}
	}
	if len(policyJSON) > 0 {
		if err := json.Unmarshal(policyJSON, &b.RefundPolicy); err != nil {
			return booking.Booking{}, fmt.Errorf("decode refund policy for %s: %w", b.ID, err)
		}
	}
	b.CashbackHeldAt = timePtr(heldAt)
	b.CashbackCreditedAt = timePtr(creditedAt)
	b.ConfirmedAt = timePtr(confirmedAt)
	b.CompletedAt = timePtr(completedAt)
	b.CancelledAt = timePtr(cancelledAt)
	if lastUpdated.Valid {
		b.UpdatedAt = lastUpdated.Time
	}
	return b, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getBooking(ctx context.Context, q querier, id string, forUpdate bool) (booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanBooking(q.QueryRowContext(ctx, query, id))
}

func saveBooking(ctx context.Context, q querier, b booking.Booking) error {
	historyJSON, err := json.Marshal(b.StatusHistory)
	if err != nil {
		return fmt.Errorf("encode status history: %w", err)
	}
	var policyJSON []byte
	if len(b.RefundPolicy) > 0 {
		policyJSON, err = json.Marshal(b.RefundPolicy)
		if err != nil {
			return fmt.Errorf("encode refund policy: %w", err)
		}
	}

	const query = `
UPDATE bookings SET
	payment_status = $2, payment_id = $3,
	status = $4, status_history = $5,
	cashback_status = $6, cashback_held_at = $7, cashback_credited_at = $8,
	refund_policy = $9,
	pnr = $10, external_ref = $11,
	confirmed_at = $12, completed_at = $13, cancelled_at = $14,
	cancellation_reason = $15, cancelled_by = $16,
	updated_at = now()
WHERE id = $1`

	res, err := q.ExecContext(ctx, query,
		b.ID,
		b.PaymentStatus, b.PaymentID,
		b.Status, historyJSON,
		b.CashbackStatus, nullTime(b.CashbackHeldAt), nullTime(b.CashbackCreditedAt),
		policyJSON,
		b.PNR, b.ExternalRef,
		nullTime(b.ConfirmedAt), nullTime(b.CompletedAt), nullTime(b.CancelledAt),
		b.CancellationReason, b.CancelledBy,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func getWallet(ctx context.Context, q querier, userID string, forUpdate bool) (wallet.Wallet, error) {
	query := `
SELECT id, user_id, available, total_cashback, total_earned,
       is_active, is_frozen, max_balance, last_transaction_at, created_at, updated_at
FROM wallets
WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var w wallet.Wallet
	var lastTx sql.NullTime
	err := q.QueryRowContext(ctx, query, userID).Scan(
		&w.ID, &w.UserID, &w.Available, &w.TotalCashback, &w.TotalEarned,
		&w.IsActive, &w.IsFrozen, &w.MaxBalance, &lastTx, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallet.Wallet{}, wallet.ErrWalletNotFound
		}
		return wallet.Wallet{}, err
	}
	w.LastTransactionAt = timePtr(lastTx)
	return w, nil
}

func (s *PostgresStore) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	return getBooking(ctx, s.DB, id, false)
}

func (s *PostgresStore) GetWallet(ctx context.Context, userID string) (wallet.Wallet, error) {
	return getWallet(ctx, s.DB, userID, false)
}

func (s *PostgresStore) ListHeldReadyForCredit(ctx context.Context, now time.Time, exclude map[string]struct{}, limit int) ([]booking.Booking, error) {
	excludeIDs := make([]string, 0, len(exclude))
	for id := range exclude {
		excludeIDs = append(excludeIDs, id)
	}

	query := `
SELECT ` + bookingColumns + `
FROM bookings
WHERE cashback_status = 'held'
  AND completed_at IS NOT NULL
  AND completed_at + make_interval(days => verification_days) <= $1
  AND id <> ALL($2)
ORDER BY completed_at
LIMIT $3`

	rows, err := s.DB.QueryContext(ctx, query, now, excludeIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (s *PostgresStore) ListUnpaidExpired(ctx context.Context, cutoff time.Time, limit int) ([]booking.Booking, error) {
	query := `
SELECT ` + bookingColumns + `
FROM bookings
WHERE payment_status = 'pending'
  AND requires_payment_upfront
  AND status IN ('pending', 'confirmed')
  AND category_slug = ANY($1)
  AND created_at < $2
ORDER BY created_at
LIMIT $3`

	rows, err := s.DB.QueryContext(ctx, query, travelSlugList(), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (s *PostgresStore) ListCompletablePast(ctx context.Context, cutoff time.Time, limit int) ([]booking.Booking, error) {
	query := `
SELECT ` + bookingColumns + `
FROM bookings
WHERE status = 'confirmed'
  AND payment_status = 'paid'
  AND completed_at IS NULL
  AND category_slug = ANY($1)
  AND booking_date < $2
ORDER BY booking_date
LIMIT $3`

	rows, err := s.DB.QueryContext(ctx, query, travelSlugList(), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (s *PostgresStore) Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return utils.WithTx(ctx, s.DB, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &postgresTx{tx: tx})
	})
}

func collectBookings(rows *sql.Rows) ([]booking.Booking, error) {
	out := make([]booking.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func travelSlugList() []string {
	return []string{
		category.SlugFlights, category.SlugHotels, category.SlugTrains,
		category.SlugBus, category.SlugCab, category.SlugPackages,
	}
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) BookingForUpdate(ctx context.Context, id string) (booking.Booking, error) {
	return getBooking(ctx, t.tx, id, true)
}

func (t *postgresTx) SaveBooking(ctx context.Context, b booking.Booking) error {
	return saveBooking(ctx, t.tx, b)
}

func (t *postgresTx) WalletForUpdate(ctx context.Context, userID string) (wallet.Wallet, error) {
	return getWallet(ctx, t.tx, userID, true)
}

func (t *postgresTx) SaveWallet(ctx context.Context, w wallet.Wallet) error {
	const query = `
UPDATE wallets SET
	available = $2, total_cashback = $3, total_earned = $4,
	last_transaction_at = $5, updated_at = now()
WHERE user_id = $1`
	res, err := t.tx.ExecContext(ctx, query,
		w.UserID, w.Available, w.TotalCashback, w.TotalEarned, nullTime(w.LastTransactionAt))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return wallet.ErrWalletNotFound
	}
	return nil
}

func (t *postgresTx) AppendCoinTransaction(ctx context.Context, e wallet.CoinTransaction) error {
	const query = `
INSERT INTO coin_transactions
	(id, user_id, type, amount, balance, source, description, category, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := t.tx.ExecContext(ctx, query,
		e.ID, e.UserID, e.Type, e.Amount, e.Balance,
		e.Source, e.Description, e.Category, e.Metadata, e.CreatedAt)
	return err
}

func (t *postgresTx) AppendTransaction(ctx context.Context, e wallet.Transaction) error {
	const query = `
INSERT INTO transactions
	(id, user_id, type, category, amount, currency, description,
	 source_type, source_ref, status, balance_before, balance_after, is_reversible, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := t.tx.ExecContext(ctx, query,
		e.ID, e.UserID, e.Type, e.Category, e.Amount, e.Currency, e.Description,
		e.SourceType, e.SourceRef, e.Status, e.BalanceBefore, e.BalanceAfter, e.IsReversible, e.CreatedAt)
	return err
}

func (t *postgresTx) CreateCashbackRecord(ctx context.Context, r wallet.CashbackRecord) error {
	const query = `
INSERT INTO cashback_records
	(id, user_id, amount, rate, source, status, description,
	 earned_date, credited_date, expiry_date, order_amount, store_name, is_redeemed, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := t.tx.ExecContext(ctx, query,
		r.ID, r.UserID, r.Amount, r.Rate, r.Source, r.Status, r.Description,
		r.EarnedDate, r.CreditedDate, r.ExpiryDate, r.OrderAmount, r.StoreName, r.IsRedeemed, r.CreatedAt)
	return err
}
