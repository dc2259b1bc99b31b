package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voicereport-platform/pkg/utils"
)

// PostgresRepo persists conversation records via database/sql (pgx stdlib).
//
// Expected schema:
//
//	CREATE TABLE conversations (
//	    conversation_id  TEXT PRIMARY KEY,
//	    account_id       TEXT NOT NULL,
//	    email_id         TEXT NOT NULL,
//	    transcript       JSONB NOT NULL,
//	    metadata         JSONB NOT NULL,
//	    status           TEXT NOT NULL,
//	    summary          JSONB,
//	    summary_degraded BOOLEAN NOT NULL DEFAULT FALSE,
//	    email_delivered  BOOLEAN NOT NULL DEFAULT FALSE,
//	    webhook_id       TEXT NOT NULL,
//	    received_at      TIMESTAMPTZ NOT NULL,
//	    completed_at     TIMESTAMPTZ,
//	    failed_at        TIMESTAMPTZ,
//	    error            TEXT NOT NULL DEFAULT ''
//	);
//
//	CREATE TABLE conversation_files (
//	    conversation_id TEXT NOT NULL REFERENCES conversations (conversation_id) ON DELETE CASCADE,
//	    kind            TEXT NOT NULL,
//	    url             TEXT NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (conversation_id, kind)
//	);
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Put(ctx context.Context, rec Record) error {
	transcript, err := json.Marshal(rec.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	var summary []byte
	if rec.Summary != nil {
		summary, err = json.Marshal(rec.Summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
	}

	// Last-write-wins on conversation_id; a re-submission replaces the prior
	// record and clears its file rows.
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (
				conversation_id, account_id, email_id, transcript, metadata,
				status, summary, summary_degraded, email_delivered, webhook_id,
				received_at, completed_at, failed_at, error
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
			ON CONFLICT (conversation_id) DO UPDATE SET
				account_id = EXCLUDED.account_id,
				email_id = EXCLUDED.email_id,
				transcript = EXCLUDED.transcript,
				metadata = EXCLUDED.metadata,
				status = EXCLUDED.status,
				summary = EXCLUDED.summary,
				summary_degraded = EXCLUDED.summary_degraded,
				email_delivered = EXCLUDED.email_delivered,
				webhook_id = EXCLUDED.webhook_id,
				received_at = EXCLUDED.received_at,
				completed_at = EXCLUDED.completed_at,
				failed_at = EXCLUDED.failed_at,
				error = EXCLUDED.error`,
			rec.ConversationID, rec.AccountID, rec.EmailID, transcript, metadata,
			rec.Status, nullableBytes(summary), rec.SummaryDegraded, rec.EmailDelivered, rec.WebhookID,
			rec.ReceivedAt, rec.CompletedAt, rec.FailedAt, rec.Error,
		)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM conversation_files WHERE conversation_id = $1`, rec.ConversationID)
		return err
	})
}

func (r *PostgresRepo) Get(ctx context.Context, conversationID string) (Record, error) {
	rec, err := r.scanOne(ctx, conversationID)
	if err != nil {
		return Record{}, err
	}
	files, err := r.loadFiles(ctx, conversationID)
	if err != nil {
		return Record{}, err
	}
	rec.Artifacts = files
	return rec, nil
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, conversationID string, next Status) error {
	rec, err := r.scanOne(ctx, conversationID)
	if err != nil {
		return err
	}
	if !rec.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE conversations SET status = $2 WHERE conversation_id = $1`,
		conversationID, next)
	return err
}

func (r *PostgresRepo) SetSummary(ctx context.Context, conversationID string, s StructuredSummary, degraded bool) error {
	summary, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET summary = $2, summary_degraded = $3 WHERE conversation_id = $1`,
		conversationID, summary, degraded)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PostgresRepo) SetArtifacts(ctx context.Context, conversationID string, artifacts map[ArtifactKind]string) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for kind, url := range artifacts {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_files (conversation_id, kind, url)
				VALUES ($1, $2, $3)
				ON CONFLICT (conversation_id, kind) DO UPDATE SET url = EXCLUDED.url`,
				conversationID, kind, url)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepo) Complete(ctx context.Context, conversationID string, at time.Time, emailDelivered bool) error {
	rec, err := r.scanOne(ctx, conversationID)
	if err != nil {
		return err
	}
	if !rec.Status.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE conversations
		SET status = $2, completed_at = $3, email_delivered = $4
		WHERE conversation_id = $1`,
		conversationID, StatusCompleted, at.UTC(), emailDelivered)
	return err
}

func (r *PostgresRepo) Fail(ctx context.Context, conversationID string, at time.Time, reason string) error {
	rec, err := r.scanOne(ctx, conversationID)
	if err != nil {
		return err
	}
	if !rec.Status.CanTransitionTo(StatusFailed) {
		return ErrInvalidTransition
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE conversations
		SET status = $2, failed_at = $3, error = $4
		WHERE conversation_id = $1`,
		conversationID, StatusFailed, at.UTC(), reason)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Record, int, error) {
	f = f.Normalized()

	where := " WHERE 1=1"
	args := []any{}
	n := 0
	add := func(clause string, v any) {
		n++
		where += fmt.Sprintf(" AND %s = $%d", clause, n)
		args = append(args, v)
	}
	if f.EmailID != "" {
		add("email_id", f.EmailID)
	}
	if f.AccountID != "" {
		add("account_id", f.AccountID)
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectColumns + where +
		fmt.Sprintf(" ORDER BY received_at DESC LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]Record, 0, f.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		files, err := r.loadFiles(ctx, out[i].ConversationID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Artifacts = files
	}
	return out, total, nil
}

// ListInRange returns records received inside [from, to) without pagination.
// Used by the stats aggregator.
func (r *PostgresRepo) ListInRange(ctx context.Context, accountID string, from, to time.Time) ([]Record, error) {
	where := " WHERE 1=1"
	args := []any{}
	n := 0
	if accountID != "" {
		n++
		where += fmt.Sprintf(" AND account_id = $%d", n)
		args = append(args, accountID)
	}
	if !from.IsZero() {
		n++
		where += fmt.Sprintf(" AND received_at >= $%d", n)
		args = append(args, from)
	}
	if !to.IsZero() {
		n++
		where += fmt.Sprintf(" AND received_at < $%d", n)
		args = append(args, to)
	}

	rows, err := r.db.QueryContext(ctx, selectColumns+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		files, err := r.loadFiles(ctx, out[i].ConversationID)
		if err != nil {
			return nil, err
		}
		out[i].Artifacts = files
	}
	return out, nil
}

const selectColumns = `
	SELECT conversation_id, account_id, email_id, transcript, metadata,
	       status, summary, summary_degraded, email_delivered, webhook_id,
	       received_at, completed_at, failed_at, error
	FROM conversations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		transcript []byte
		metadata   []byte
		summary    []byte
		status     string
	)
	err := row.Scan(
		&rec.ConversationID, &rec.AccountID, &rec.EmailID, &transcript, &metadata,
		&status, &summary, &rec.SummaryDegraded, &rec.EmailDelivered, &rec.WebhookID,
		&rec.ReceivedAt, &rec.CompletedAt, &rec.FailedAt, &rec.Error,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	if err := json.Unmarshal(transcript, &rec.Transcript); err != nil {
		return Record{}, fmt.Errorf("unmarshal transcript: %w", err)
	}
	if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
		return Record{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if len(summary) > 0 {
		var s StructuredSummary
		if err := json.Unmarshal(summary, &s); err != nil {
			return Record{}, fmt.Errorf("unmarshal summary: %w", err)
		}
		rec.Summary = &s
	}
	return rec, nil
}

func (r *PostgresRepo) scanOne(ctx context.Context, conversationID string) (Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+" WHERE conversation_id = $1", conversationID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepo) loadFiles(ctx context.Context, conversationID string) (map[ArtifactKind]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, url FROM conversation_files WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out map[ArtifactKind]string
	for rows.Next() {
		var kind, url string
		if err := rows.Scan(&kind, &url); err != nil {
			return nil, err
		}
		if out == nil {
			out = map[ArtifactKind]string{}
		}
		out[ArtifactKind(kind)] = url
	}
	return out, rows.Err()
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
