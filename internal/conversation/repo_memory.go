package conversation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is the in-process record store. It backs tests and the default
// runtime when Postgres is not configured.
//
// Concurrency: many pipeline goroutines mutate the map concurrently, but each
// only ever writes the entry keyed by its own conversation_id; the mutex
// covers map access itself.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: map[string]Record{}}
}

func (r *MemoryRepo) Put(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ConversationID] = rec
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, conversationID string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[conversationID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, conversationID string, next Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[conversationID]
	if !ok {
		return ErrNotFound
	}
	if !rec.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	rec.Status = next
	r.records[conversationID] = rec
	return nil
}

func (r *MemoryRepo) SetSummary(ctx context.Context, conversationID string, s StructuredSummary, degraded bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[conversationID]
	if !ok {
		return ErrNotFound
	}
	rec.Summary = &s
	rec.SummaryDegraded = degraded
	r.records[conversationID] = rec
	return nil
}

func (r *MemoryRepo) SetArtifacts(ctx context.Context, conversationID string, artifacts map[ArtifactKind]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[conversationID]
	if !ok {
		return ErrNotFound
	}
	if rec.Artifacts == nil {
		rec.Artifacts = map[ArtifactKind]string{}
	}
	for k, v := range artifacts {
		rec.Artifacts[k] = v
	}
	r.records[conversationID] = rec
	return nil
}

func (r *MemoryRepo) Complete(ctx context.Context, conversationID string, at time.Time, emailDelivered bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[conversationID]
	if !ok {
		return ErrNotFound
	}
	if !rec.Status.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	t := at.UTC()
	rec.Status = StatusCompleted
	rec.CompletedAt = &t
	rec.EmailDelivered = emailDelivered
	r.records[conversationID] = rec
	return nil
}

func (r *MemoryRepo) Fail(ctx context.Context, conversationID string, at time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[conversationID]
	if !ok {
		return ErrNotFound
	}
	if !rec.Status.CanTransitionTo(StatusFailed) {
		return ErrInvalidTransition
	}
	t := at.UTC()
	rec.Status = StatusFailed
	rec.FailedAt = &t
	rec.Error = reason
	r.records[conversationID] = rec
	return nil
}

// ListInRange returns records received inside [from, to). Zero bounds are
// open-ended. Used by the stats aggregator.
func (r *MemoryRepo) ListInRange(ctx context.Context, accountID string, from, to time.Time) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if accountID != "" && rec.AccountID != accountID {
			continue
		}
		if !from.IsZero() && rec.ReceivedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !rec.ReceivedAt.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Record, int, error) {
	f = f.Normalized()

	r.mu.Lock()
	matched := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if f.EmailID != "" && rec.EmailID != f.EmailID {
			continue
		}
		if f.AccountID != "" && rec.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		matched = append(matched, rec)
	}
	r.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
	})

	total := len(matched)
	start := (f.Page - 1) * f.Limit
	if start >= total {
		return []Record{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
