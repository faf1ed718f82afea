package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo persists audit events. INSERT-only; the table should carry a
// policy preventing UPDATE and DELETE.
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{DB: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, type, actor_user_id, actor_role, ip_address,
			 booking_id, wallet_id, user_id, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, string(e.Type), e.ActorUserID, e.ActorRole, e.IPAddress,
		e.BookingID, e.WalletID, e.UserID, e.Message, e.Metadata, e.CreatedAt)
	return err
}
