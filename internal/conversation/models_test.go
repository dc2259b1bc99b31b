package conversation

import (
	"testing"
	"time"
)

func validPayload() Payload {
	return Payload{
		EmailID:        "a@b.com",
		AccountID:      "acc123",
		ConversationID: "conv_test_1",
		Transcript: []TranscriptMessage{
			{Timestamp: time.Unix(1700000000, 0).UTC(), Speaker: "user", Content: "hello", MessageID: "m1"},
			{Timestamp: time.Unix(1700000001, 0).UTC(), Speaker: "agent", Content: "hi", MessageID: "m2"},
		},
		Metadata: CallMetadata{SessionID: "s1", DurationSeconds: 42, MessageCount: 2, Platform: "web"},
	}
}

func TestPayloadValidate(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(*Payload)
		wantField string
	}{
		{"valid", func(p *Payload) {}, ""},
		{"missing email", func(p *Payload) { p.EmailID = "" }, "emailId"},
		{"malformed email", func(p *Payload) { p.EmailID = "not-an-email" }, "emailId"},
		{"account id too short", func(p *Payload) { p.AccountID = "ab" }, "accountId"},
		{"account id too long", func(p *Payload) {
			long := make([]byte, 51)
			for i := range long {
				long[i] = 'a'
			}
			p.AccountID = string(long)
		}, "accountId"},
		{"missing conversation id", func(p *Payload) { p.ConversationID = "" }, "conversationId"},
		{"empty transcript", func(p *Payload) { p.Transcript = nil }, "transcript"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload()
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected validation error for %s", tc.wantField)
			}
			if err.Field != tc.wantField {
				t.Fatalf("expected field %q, got %q", tc.wantField, err.Field)
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	order := []Status{StatusAnalyzing, StatusGeneratingReport, StatusSendingEmail, StatusCompleted}
	for i := 0; i < len(order)-1; i++ {
		if !order[i].CanTransitionTo(order[i+1]) {
			t.Fatalf("expected %s -> %s allowed", order[i], order[i+1])
		}
	}

	// no skipping forward, no moving backward
	if StatusAnalyzing.CanTransitionTo(StatusSendingEmail) {
		t.Fatalf("expected analyzing -> sending_email rejected")
	}
	if StatusSendingEmail.CanTransitionTo(StatusGeneratingReport) {
		t.Fatalf("expected backward transition rejected")
	}

	// failed reachable from every non-terminal state
	for _, s := range []Status{StatusAnalyzing, StatusGeneratingReport, StatusSendingEmail} {
		if !s.CanTransitionTo(StatusFailed) {
			t.Fatalf("expected %s -> failed allowed", s)
		}
	}

	// terminal states are frozen
	for _, s := range []Status{StatusCompleted, StatusFailed} {
		for _, next := range []Status{StatusAnalyzing, StatusGeneratingReport, StatusSendingEmail, StatusCompleted, StatusFailed} {
			if s.CanTransitionTo(next) {
				t.Fatalf("expected terminal %s -> %s rejected", s, next)
			}
		}
	}
}

func TestNewRecord_InitialState(t *testing.T) {
	now := time.Unix(1700000000, 0)
	rec := NewRecord(validPayload(), "wh-1", now)
	if rec.Status != StatusAnalyzing {
		t.Fatalf("expected initial status analyzing, got %s", rec.Status)
	}
	if !rec.ReceivedAt.Equal(now.UTC()) {
		t.Fatalf("expected receivedAt set")
	}
	if rec.Summary != nil {
		t.Fatalf("expected no summary before the analyze step")
	}
	if len(rec.Transcript) != 2 {
		t.Fatalf("expected transcript preserved, got %d messages", len(rec.Transcript))
	}
}

func TestNewRecord_PrecomputedSummaryCopied(t *testing.T) {
	p := validPayload()
	p.Summary = &StructuredSummary{Topic: "billing", Sentiment: "neutral", Resolution: "resolved", Summary: "ok"}
	rec := NewRecord(p, "wh-1", time.Now())
	if rec.Summary == nil || rec.Summary.Topic != "billing" {
		t.Fatalf("expected pre-computed summary kept")
	}
	p.Summary.Topic = "changed"
	if rec.Summary.Topic != "billing" {
		t.Fatalf("expected record summary to be a copy")
	}
}
