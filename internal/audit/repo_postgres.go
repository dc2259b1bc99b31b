package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends audit events via database/sql (pgx stdlib).
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id              TEXT PRIMARY KEY,
//	    conversation_id TEXT NOT NULL,
//	    account_id      TEXT NOT NULL DEFAULT '',
//	    type            TEXT NOT NULL,
//	    message         TEXT NOT NULL DEFAULT '',
//	    metadata        TEXT NOT NULL DEFAULT '',
//	    created_at      TIMESTAMPTZ NOT NULL
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, conversation_id, account_id, type, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ConversationID, e.AccountID, e.Type, e.Message, e.Metadata, e.CreatedAt)
	return err
}
