package conversation

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("conversation: not found")
	ErrInvalidTransition = errors.New("conversation: invalid status transition")
)

// MaxPageSize caps list page sizes; larger requests are clamped, not rejected.
const MaxPageSize = 100

const defaultPageSize = 20

// Filter selects records for List. Zero values mean "no filter".
type Filter struct {
	EmailID   string
	AccountID string
	Status    Status

	Page  int
	Limit int
}

// Normalized clamps paging fields to their defaults and caps.
func (f Filter) Normalized() Filter {
	out := f
	if out.Page < 1 {
		out.Page = 1
	}
	if out.Limit < 1 {
		out.Limit = defaultPageSize
	}
	if out.Limit > MaxPageSize {
		out.Limit = MaxPageSize
	}
	return out
}

// Repository is the persistence contract for conversation records.
//
// The pipeline depends on this interface only, so the backing store can be
// swapped without touching orchestration logic. Mutating methods other than
// Put operate on an existing record and return ErrNotFound when absent;
// UpdateStatus rejects backward or terminal-escaping moves with
// ErrInvalidTransition.
type Repository interface {
	// Put stores the initial record. Re-submission of the same
	// conversation_id overwrites the prior record (last-write-wins).
	Put(ctx context.Context, rec Record) error

	Get(ctx context.Context, conversationID string) (Record, error)

	UpdateStatus(ctx context.Context, conversationID string, next Status) error
	SetSummary(ctx context.Context, conversationID string, s StructuredSummary, degraded bool) error
	SetArtifacts(ctx context.Context, conversationID string, artifacts map[ArtifactKind]string) error
	Complete(ctx context.Context, conversationID string, at time.Time, emailDelivered bool) error
	Fail(ctx context.Context, conversationID string, at time.Time, reason string) error

	// List returns one page of records sorted by receivedAt descending,
	// plus the total number of matches before pagination.
	List(ctx context.Context, f Filter) ([]Record, int, error)
}
