package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"voicereport-platform/internal/conversation"
)

func sampleRecord() conversation.Record {
	return conversation.Record{
		ConversationID: "conv_test_1",
		AccountID:      "acc123",
		EmailID:        "a@b.com",
		Transcript: []conversation.TranscriptMessage{
			{Timestamp: time.Unix(1700000000, 0).UTC(), Speaker: "user", Content: "hello", MessageID: "m1"},
			{Timestamp: time.Unix(1700000005, 0).UTC(), Speaker: "agent", Content: "hi there", MessageID: "m2"},
		},
		Metadata: conversation.CallMetadata{SessionID: "s1", DurationSeconds: 60, MessageCount: 2, Platform: "web"},
	}
}

func sampleSummary() conversation.StructuredSummary {
	return conversation.StructuredSummary{
		Topic: "greeting", Sentiment: "positive", Resolution: "resolved",
		Summary:         "Short friendly exchange.",
		Recommendations: []string{"None"},
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	out, err := NewPDFRenderer().Render(context.Background(), sampleRecord(), sampleSummary())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected pdf bytes")
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("expected PDF header, got %q", out[:min(8, len(out))])
	}
}

func TestRender_RejectsEmptyInput(t *testing.T) {
	rec := sampleRecord()
	rec.Transcript = nil
	if _, err := NewPDFRenderer().Render(context.Background(), rec, sampleSummary()); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for empty transcript, got %v", err)
	}

	if _, err := NewPDFRenderer().Render(context.Background(), sampleRecord(), conversation.StructuredSummary{}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for empty summary, got %v", err)
	}
}
