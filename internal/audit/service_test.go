package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresConversationAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeReceived}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{ConversationID: "c1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogReceived(context.Background(), "conv_1", "acc123", "wh-1"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogFailed(context.Background(), "conv_1", "acc123", "summarization failed"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Type != EventTypeReceived || evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected populated received event: %+v", evs[0])
	}
	if evs[1].Type != EventTypeFailed || evs[1].Message != "summarization failed" {
		t.Fatalf("expected failure reason recorded: %+v", evs[1])
	}
}
