package stats

import (
	"context"
	"testing"
	"time"

	"voicereport-platform/internal/conversation"
)

func seedRepo(t *testing.T) *conversation.MemoryRepo {
	t.Helper()
	repo := conversation.NewMemoryRepo()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	put := func(id, account string, status conversation.Status, duration int, degraded, delivered bool) {
		rec := conversation.Record{
			ConversationID:  id,
			AccountID:       account,
			EmailID:         "a@b.com",
			Transcript:      []conversation.TranscriptMessage{{Speaker: "user", Content: "x"}, {Speaker: "agent", Content: "y"}},
			Metadata:        conversation.CallMetadata{DurationSeconds: duration},
			Status:          status,
			SummaryDegraded: degraded,
			EmailDelivered:  delivered,
			ReceivedAt:      base,
		}
		base = base.Add(time.Minute)
		if err := repo.Put(context.Background(), rec); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	put("c1", "acc1", conversation.StatusCompleted, 120, false, true)
	put("c2", "acc1", conversation.StatusCompleted, 60, true, true)
	put("c3", "acc1", conversation.StatusFailed, 30, false, false)
	put("c4", "acc2", conversation.StatusAnalyzing, 90, false, false)
	return repo
}

func TestSummarize_AggregatesByStatus(t *testing.T) {
	svc := NewService(seedRepo(t))

	got, err := svc.Summarize(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Total != 4 || got.Completed != 2 || got.Failed != 1 || got.Analyzing != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if got.DegradedSummaries != 1 || got.EmailsDelivered != 2 {
		t.Fatalf("unexpected quality counters: %+v", got)
	}
	if got.TotalDurationSeconds != 300 || got.AverageDurationSeconds != 75 {
		t.Fatalf("unexpected durations: %+v", got)
	}
	if got.TotalMessages != 8 {
		t.Fatalf("expected 8 messages, got %d", got.TotalMessages)
	}
}

func TestSummarize_FiltersByAccount(t *testing.T) {
	svc := NewService(seedRepo(t))

	got, err := svc.Summarize(context.Background(), Request{AccountID: "acc2"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Total != 1 || got.Analyzing != 1 || got.Completed != 0 {
		t.Fatalf("unexpected counts: %+v", got)
	}
}

func TestSummarize_FiltersByRange(t *testing.T) {
	svc := NewService(seedRepo(t))
	from := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC)

	got, err := svc.Summarize(context.Background(), Request{Range: TimeRange{From: from, To: to}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.Total != 2 {
		t.Fatalf("expected the two records inside the window, got %+v", got)
	}
}

func TestSummarize_RejectsInvertedRange(t *testing.T) {
	svc := NewService(seedRepo(t))
	now := time.Now()

	_, err := svc.Summarize(context.Background(), Request{Range: TimeRange{From: now, To: now.Add(-time.Hour)}})
	if err != ErrInvalidRequest {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
