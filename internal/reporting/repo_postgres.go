package reporting

import (
	"context"
	"database/sql"
	"time"

	"travel-platform/internal/booking"
	"travel-platform/internal/wallet"
)

// PostgresRepo reads rollup inputs straight from the settlement tables.
// Queries are read-only and fetch only the columns the summaries use.
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{DB: db} }

func (r *PostgresRepo) ListBookings(ctx context.Context, from, to time.Time, categorySlug string) ([]booking.Booking, error) {
	query := `
SELECT id, category_slug, status, payment_status, cashback_status,
       total, cashback_earned, currency, created_at
FROM bookings
WHERE created_at >= $1 AND created_at < $2`
	args := []any{from, to}
	if categorySlug != "" {
		query += ` AND category_slug = $3`
		args = append(args, categorySlug)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]booking.Booking, 0)
	for rows.Next() {
		var b booking.Booking
		if err := rows.Scan(
			&b.ID, &b.CategorySlug, &b.Status, &b.PaymentStatus, &b.CashbackStatus,
			&b.Pricing.Total, &b.Pricing.CashbackEarned, &b.Pricing.Currency, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListWalletTransactions(ctx context.Context, from, to time.Time, userID string) ([]wallet.Transaction, error) {
	query := `
SELECT id, user_id, type, category, amount, currency, created_at
FROM transactions
WHERE created_at >= $1 AND created_at < $2`
	args := []any{from, to}
	if userID != "" {
		query += ` AND user_id = $3`
		args = append(args, userID)
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]wallet.Transaction, 0)
	for rows.Next() {
		var tx wallet.Transaction
		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.Type, &tx.Category, &tx.Amount, &tx.Currency, &tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
