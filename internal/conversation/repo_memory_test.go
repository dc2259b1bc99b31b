package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seedRecords(t *testing.T, repo *MemoryRepo, n int) {
	t.Helper()
	base := time.Unix(1700000000, 0).UTC()
	for i := 0; i < n; i++ {
		rec := Record{
			ConversationID: fmt.Sprintf("conv_%03d", i),
			AccountID:      "acc123",
			EmailID:        "a@b.com",
			Status:         StatusAnalyzing,
			ReceivedAt:     base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Put(context.Background(), rec); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
}

func TestMemoryRepo_GetMissing(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepo_PutOverwritesDuplicate(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	_ = repo.Put(ctx, Record{ConversationID: "c1", WebhookID: "first", Status: StatusAnalyzing})
	_ = repo.Put(ctx, Record{ConversationID: "c1", WebhookID: "second", Status: StatusAnalyzing})

	rec, err := repo.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.WebhookID != "second" {
		t.Fatalf("expected last write to win, got %q", rec.WebhookID)
	}
}

func TestMemoryRepo_UpdateStatusEnforcesOrder(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	_ = repo.Put(ctx, Record{ConversationID: "c1", Status: StatusAnalyzing})

	if err := repo.UpdateStatus(ctx, "c1", StatusSendingEmail); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition on skip, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, "c1", StatusGeneratingReport); err != nil {
		t.Fatalf("expected forward transition, got %v", err)
	}
	if err := repo.Fail(ctx, "c1", time.Now(), "boom"); err != nil {
		t.Fatalf("expected fail allowed, got %v", err)
	}
	if err := repo.UpdateStatus(ctx, "c1", StatusSendingEmail); err != ErrInvalidTransition {
		t.Fatalf("expected terminal state frozen, got %v", err)
	}

	rec, _ := repo.Get(ctx, "c1")
	if rec.Error != "boom" || rec.FailedAt == nil {
		t.Fatalf("expected failure recorded, got %+v", rec)
	}
}

func TestMemoryRepo_CompleteRecordsOutcome(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	_ = repo.Put(ctx, Record{ConversationID: "c1", Status: StatusSendingEmail})

	at := time.Unix(1700000100, 0)
	if err := repo.Complete(ctx, "c1", at, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	rec, _ := repo.Get(ctx, "c1")
	if rec.Status != StatusCompleted || rec.CompletedAt == nil || !rec.EmailDelivered {
		t.Fatalf("expected completed outcome, got %+v", rec)
	}
}

func TestMemoryRepo_SetArtifactsMerges(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	_ = repo.Put(ctx, Record{ConversationID: "c1", Status: StatusAnalyzing})

	_ = repo.SetArtifacts(ctx, "c1", map[ArtifactKind]string{ArtifactTranscript: "https://x/t.json"})
	_ = repo.SetArtifacts(ctx, "c1", map[ArtifactKind]string{ArtifactReport: "https://x/r.pdf"})

	rec, _ := repo.Get(ctx, "c1")
	if len(rec.Artifacts) != 2 {
		t.Fatalf("expected both artifact kinds, got %v", rec.Artifacts)
	}
}

func TestMemoryRepo_ListClampsLimit(t *testing.T) {
	repo := NewMemoryRepo()
	seedRecords(t, repo, 150)

	page, total, err := repo.List(context.Background(), Filter{Limit: 1000})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 150 {
		t.Fatalf("expected total 150, got %d", total)
	}
	if len(page) != MaxPageSize {
		t.Fatalf("expected limit clamped to %d, got %d", MaxPageSize, len(page))
	}
}

func TestMemoryRepo_ListPaginationNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	seedRecords(t, repo, 150)

	page, total, err := repo.List(context.Background(), Filter{Page: 2, Limit: 20})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 150 {
		t.Fatalf("expected total 150, got %d", total)
	}
	if len(page) != 20 {
		t.Fatalf("expected 20 records, got %d", len(page))
	}
	// Newest first: page 2 with limit 20 holds records 21-40, i.e. conv_129..conv_110.
	if page[0].ConversationID != "conv_129" {
		t.Fatalf("expected conv_129 first on page 2, got %s", page[0].ConversationID)
	}
	if page[19].ConversationID != "conv_110" {
		t.Fatalf("expected conv_110 last on page 2, got %s", page[19].ConversationID)
	}
	for i := 1; i < len(page); i++ {
		if page[i].ReceivedAt.After(page[i-1].ReceivedAt) {
			t.Fatalf("expected receivedAt descending order")
		}
	}
}

func TestMemoryRepo_ListFilters(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	_ = repo.Put(ctx, Record{ConversationID: "c1", AccountID: "acc1", EmailID: "a@b.com", Status: StatusCompleted})
	_ = repo.Put(ctx, Record{ConversationID: "c2", AccountID: "acc2", EmailID: "a@b.com", Status: StatusFailed})
	_ = repo.Put(ctx, Record{ConversationID: "c3", AccountID: "acc1", EmailID: "c@d.com", Status: StatusCompleted})

	page, total, err := repo.List(ctx, Filter{AccountID: "acc1", Status: StatusCompleted})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(page) != 2 {
		t.Fatalf("expected 2 matches, got total=%d len=%d", total, len(page))
	}

	page, total, _ = repo.List(ctx, Filter{EmailID: "a@b.com", Status: StatusFailed})
	if total != 1 || page[0].ConversationID != "c2" {
		t.Fatalf("expected only c2, got %+v", page)
	}
}
