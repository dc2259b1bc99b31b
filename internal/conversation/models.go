package conversation

import (
	"fmt"
	"regexp"
	"time"
)

// Record is the per-conversation state tracked from webhook acceptance to
// terminal outcome.
//
// Ownership invariant: after the webhook handler stores the initial record,
// the processing pipeline is the only writer for that conversation_id. The
// HTTP layer only reads.
//
// Status invariant: transitions are monotonic along the pipeline order and
// no step runs after a terminal state (completed, failed).
type Record struct {
	ConversationID string `json:"conversationId" db:"conversation_id"`
	AccountID      string `json:"accountId" db:"account_id"`
	EmailID        string `json:"emailId" db:"email_id"`

	Transcript []TranscriptMessage `json:"transcript" db:"transcript"`
	Metadata   CallMetadata        `json:"metadata" db:"metadata"`

	Status Status `json:"status" db:"status"`

	// Summary is nil until the analyze step completes.
	Summary         *StructuredSummary `json:"summary,omitempty" db:"summary"`
	SummaryDegraded bool               `json:"summaryDegraded,omitempty" db:"summary_degraded"`

	// Artifacts maps artifact kind to a retrieval URL. Only kinds whose
	// upload succeeded are present.
	Artifacts map[ArtifactKind]string `json:"artifacts,omitempty" db:"artifacts"`

	EmailDelivered bool `json:"emailDelivered" db:"email_delivered"`

	WebhookID string `json:"webhookId" db:"webhook_id"`

	ReceivedAt  time.Time  `json:"receivedAt" db:"received_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	FailedAt    *time.Time `json:"failedAt,omitempty" db:"failed_at"`

	// Error is set only on failure.
	Error string `json:"error,omitempty" db:"error"`
}

// TranscriptMessage is a single utterance. Order within a transcript is
// chronological and must be preserved end to end.
type TranscriptMessage struct {
	Timestamp time.Time         `json:"timestamp"`
	Speaker   string            `json:"speaker"`
	Content   string            `json:"content"`
	MessageID string            `json:"messageId"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CallMetadata is descriptive only; duration and message count are surfaced
// in the report, nothing here drives control flow.
type CallMetadata struct {
	SessionID       string `json:"sessionId"`
	AgentID         string `json:"agentId"`
	DurationSeconds int    `json:"duration"`
	MessageCount    int    `json:"messageCount"`
	Platform        string `json:"platform"`
	UserAgent       string `json:"userAgent"`
}

// StructuredSummary is the analysis result. Topic, Sentiment, Resolution and
// Summary are always populated (the fallback summary fills them too); the
// rest are enrichment fields the model may omit.
type StructuredSummary struct {
	Topic      string `json:"topic"`
	Sentiment  string `json:"sentiment"`
	Resolution string `json:"resolution"`
	Summary    string `json:"summary"`

	Keywords           []string `json:"keywords,omitempty"`
	KeyFactors         []string `json:"keyFactors,omitempty"`
	RiskFactors        []string `json:"riskFactors,omitempty"`
	ThirdPartyDetected bool     `json:"thirdPartyDetected,omitempty"`
	Recommendations    []string `json:"recommendations,omitempty"`
	ActionItems        []string `json:"actionItems,omitempty"`
	FollowUpRequired   bool     `json:"followUpRequired,omitempty"`
}

type ArtifactKind string

const (
	ArtifactTranscript ArtifactKind = "transcript"
	ArtifactReport     ArtifactKind = "report"
	ArtifactAudio      ArtifactKind = "audio"
)

type Status string

const (
	StatusAnalyzing        Status = "analyzing"
	StatusGeneratingReport Status = "generating_report"
	StatusSendingEmail     Status = "sending_email"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) rank() int {
	switch s {
	case StatusAnalyzing:
		return 0
	case StatusGeneratingReport:
		return 1
	case StatusSendingEmail:
		return 2
	case StatusCompleted:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo enforces the linear pipeline order. Failed is reachable
// from any non-terminal state; everything else must move strictly forward.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return next.rank() == s.rank()+1
}

func IsValidStatus(v string) bool {
	switch Status(v) {
	case StatusAnalyzing, StatusGeneratingReport, StatusSendingEmail, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Payload is the inbound webhook body.
type Payload struct {
	EmailID        string              `json:"emailId"`
	AccountID      string              `json:"accountId"`
	ConversationID string              `json:"conversationId"`
	Transcript     []TranscriptMessage `json:"transcript"`
	Metadata       CallMetadata        `json:"metadata"`

	// Summary allows the caller to supply a pre-computed analysis; when set
	// it is stored as-is and the analyze step is skipped.
	Summary *StructuredSummary `json:"summary,omitempty"`
}

// ValidationError carries a field-level message suitable for a 4xx response.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	accountIDMinLen = 3
	accountIDMaxLen = 50
)

// Validate checks the payload and returns the first field-level problem.
// A failing payload must cause no side effects upstream.
func (p Payload) Validate() *ValidationError {
	if p.EmailID == "" {
		return &ValidationError{Field: "emailId", Message: "emailId is required"}
	}
	if !emailPattern.MatchString(p.EmailID) {
		return &ValidationError{Field: "emailId", Message: "emailId must be a valid email address"}
	}
	if l := len(p.AccountID); l < accountIDMinLen || l > accountIDMaxLen {
		return &ValidationError{Field: "accountId", Message: fmt.Sprintf("accountId must be %d-%d characters", accountIDMinLen, accountIDMaxLen)}
	}
	if p.ConversationID == "" {
		return &ValidationError{Field: "conversationId", Message: "conversationId is required"}
	}
	if len(p.Transcript) == 0 {
		return &ValidationError{Field: "transcript", Message: "transcript must not be empty"}
	}
	return nil
}

// NewRecord builds the initial record stored at webhook acceptance.
func NewRecord(p Payload, webhookID string, receivedAt time.Time) Record {
	rec := Record{
		ConversationID: p.ConversationID,
		AccountID:      p.AccountID,
		EmailID:        p.EmailID,
		Transcript:     p.Transcript,
		Metadata:       p.Metadata,
		Status:         StatusAnalyzing,
		WebhookID:      webhookID,
		ReceivedAt:     receivedAt.UTC(),
	}
	if p.Summary != nil {
		s := *p.Summary
		rec.Summary = &s
	}
	return rec
}
