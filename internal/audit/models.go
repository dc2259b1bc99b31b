package audit

import "time"

// Event is an immutable, append-only audit log record of pipeline activity.
//
// Invariants:
// - Events are never updated or deleted.
// - conversation_id is required; every event belongs to one conversation.
// - Audit capture is best-effort; do not block the pipeline on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID             string `json:"id" db:"id"`
	ConversationID string `json:"conversation_id" db:"conversation_id"`
	AccountID      string `json:"account_id,omitempty" db:"account_id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeReceived       EventType = "conversation_received"
	EventTypeCompleted      EventType = "pipeline_completed"
	EventTypeFailed         EventType = "pipeline_failed"
	EventTypeCallbackResult EventType = "callback_result"
)
