package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to webhook callers.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.ConversationID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogReceived records webhook acceptance of a conversation.
func (s *Service) LogReceived(ctx context.Context, conversationID, accountID, webhookID string) error {
	return s.Append(ctx, Event{
		ConversationID: conversationID,
		AccountID:      accountID,
		Type:           EventTypeReceived,
		Message:        "conversation accepted for processing",
		Metadata:       `{"webhook_id":"` + webhookID + `"}`,
	})
}

// LogCompleted records a successful pipeline run.
func (s *Service) LogCompleted(ctx context.Context, conversationID, accountID string, emailDelivered bool) error {
	msg := "pipeline completed"
	if !emailDelivered {
		msg = "pipeline completed, email delivery skipped"
	}
	return s.Append(ctx, Event{
		ConversationID: conversationID,
		AccountID:      accountID,
		Type:           EventTypeCompleted,
		Message:        msg,
	})
}

// LogFailed records a terminal pipeline failure.
func (s *Service) LogFailed(ctx context.Context, conversationID, accountID, reason string) error {
	return s.Append(ctx, Event{
		ConversationID: conversationID,
		AccountID:      accountID,
		Type:           EventTypeFailed,
		Message:        reason,
	})
}

// LogCallback records the classified outcome of a completion callback.
func (s *Service) LogCallback(ctx context.Context, conversationID, accountID, outcome string) error {
	return s.Append(ctx, Event{
		ConversationID: conversationID,
		AccountID:      accountID,
		Type:           EventTypeCallbackResult,
		Message:        outcome,
	})
}
