package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"voicereport-platform/internal/conversation"
)

var ErrEmptyTranscript = errors.New("summarize: transcript is empty")

// Result distinguishes a real model summary from the degraded default used
// when the model output is unusable. Callers can tell the two apart without
// inspecting logs; Err carries the underlying cause when Degraded is true.
type Result struct {
	Summary  conversation.StructuredSummary
	Degraded bool
	Err      error
}

// EmailContent is the composed report email.
type EmailContent struct {
	Subject  string
	HTMLBody string
	TextBody string
}

// Service builds prompts, calls the LLM and parses structured summaries.
type Service struct {
	llm   LLMClient
	model string
}

func NewService(llm LLMClient, model string) *Service {
	return &Service{llm: llm, model: model}
}

// Summarize analyzes a transcript.
//
// Error contract: transport-level failures (the endpoint unreachable, non-200,
// context cancelled) are returned as errors and fail the caller's pipeline.
// A reachable model producing unparseable output yields the degraded default
// summary with Degraded set instead.
func (s *Service) Summarize(ctx context.Context, transcript []conversation.TranscriptMessage, accountID, emailID string) (Result, error) {
	if len(transcript) == 0 {
		return Result{}, ErrEmptyTranscript
	}

	temp := 0.2
	req := ChatCompletionRequest{
		Model: s.model,
		Messages: []ChatMessage{
			{Role: "system", Content: summarySystemPrompt},
			{Role: "user", Content: buildSummaryPrompt(transcript, accountID, emailID)},
		},
		Temperature:    &temp,
		ResponseFormat: map[string]interface{}{"type": "json_object"},
	}

	resp, err := s.llm.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("summarize conversation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{Summary: DefaultSummary(), Degraded: true, Err: errors.New("no completion choices")}, nil
	}

	summary, err := parseSummary(resp.Choices[0].Message.Content)
	if err != nil {
		return Result{Summary: DefaultSummary(), Degraded: true, Err: err}, nil
	}
	return Result{Summary: summary}, nil
}

// ComposeEmail derives the report email from the summary. It asks the model
// for a short narrative paragraph; if that call fails the templated body is
// used alone, which is not an error.
func (s *Service) ComposeEmail(ctx context.Context, summary conversation.StructuredSummary, accountID string) (EmailContent, error) {
	narrative := summary.Summary
	temp := 0.4
	resp, err := s.llm.CreateChatCompletion(ctx, ChatCompletionRequest{
		Model: s.model,
		Messages: []ChatMessage{
			{Role: "system", Content: "You write one short, professional paragraph for a customer-facing email summarizing a support conversation. Plain text only."},
			{Role: "user", Content: fmt.Sprintf("Topic: %s\nSentiment: %s\nResolution: %s\nSummary: %s", summary.Topic, summary.Sentiment, summary.Resolution, summary.Summary)},
		},
		Temperature: &temp,
	})
	if err == nil && len(resp.Choices) > 0 {
		if text := strings.TrimSpace(resp.Choices[0].Message.Content); text != "" {
			narrative = text
		}
	}

	subject := fmt.Sprintf("Conversation Report: %s", summary.Topic)

	var text strings.Builder
	fmt.Fprintf(&text, "%s\n\n", narrative)
	fmt.Fprintf(&text, "Topic: %s\nSentiment: %s\nResolution: %s\n", summary.Topic, summary.Sentiment, summary.Resolution)
	if len(summary.Recommendations) > 0 {
		text.WriteString("\nRecommendations:\n")
		for _, r := range summary.Recommendations {
			fmt.Fprintf(&text, "- %s\n", r)
		}
	}
	if len(summary.ActionItems) > 0 {
		text.WriteString("\nAction items:\n")
		for _, a := range summary.ActionItems {
			fmt.Fprintf(&text, "- %s\n", a)
		}
	}
	text.WriteString("\nThe full PDF report is attached.\n")

	var htmlBody strings.Builder
	htmlBody.WriteString("<html><body>")
	fmt.Fprintf(&htmlBody, "<p>%s</p>", html.EscapeString(narrative))
	fmt.Fprintf(&htmlBody, "<p><b>Topic:</b> %s<br><b>Sentiment:</b> %s<br><b>Resolution:</b> %s</p>",
		html.EscapeString(summary.Topic), html.EscapeString(summary.Sentiment), html.EscapeString(summary.Resolution))
	if len(summary.Recommendations) > 0 {
		htmlBody.WriteString("<p><b>Recommendations:</b></p><ul>")
		for _, r := range summary.Recommendations {
			fmt.Fprintf(&htmlBody, "<li>%s</li>", html.EscapeString(r))
		}
		htmlBody.WriteString("</ul>")
	}
	if len(summary.ActionItems) > 0 {
		htmlBody.WriteString("<p><b>Action items:</b></p><ul>")
		for _, a := range summary.ActionItems {
			fmt.Fprintf(&htmlBody, "<li>%s</li>", html.EscapeString(a))
		}
		htmlBody.WriteString("</ul>")
	}
	htmlBody.WriteString("<p>The full PDF report is attached.</p>")
	htmlBody.WriteString("</body></html>")

	return EmailContent{
		Subject:  subject,
		HTMLBody: htmlBody.String(),
		TextBody: text.String(),
	}, nil
}

// DefaultSummary is the degraded fallback used when the model output cannot
// be parsed. Required fields are filled so downstream rendering never sees
// an empty summary.
func DefaultSummary() conversation.StructuredSummary {
	return conversation.StructuredSummary{
		Topic:      "General inquiry",
		Sentiment:  "neutral",
		Resolution: "unresolved",
		Summary:    "The conversation could not be automatically analyzed. Please review the attached transcript.",
	}
}

const summarySystemPrompt = `You analyze customer conversation transcripts. Respond with a single JSON object with these fields:
topic (string), sentiment (positive|neutral|negative), resolution (resolved|unresolved|escalated), summary (string),
keywords ([]string), keyFactors ([]string), riskFactors ([]string), thirdPartyDetected (bool),
recommendations ([]string), actionItems ([]string), followUpRequired (bool). No prose outside the JSON.`

func buildSummaryPrompt(transcript []conversation.TranscriptMessage, accountID, emailID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Account: %s\nContact: %s\nTranscript (%d messages, chronological):\n", accountID, emailID, len(transcript))
	for _, m := range transcript {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Speaker, m.Content)
	}
	return b.String()
}

func parseSummary(content string) (conversation.StructuredSummary, error) {
	content = strings.TrimSpace(content)
	// Models sometimes wrap JSON in a code fence despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var s conversation.StructuredSummary
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		return conversation.StructuredSummary{}, fmt.Errorf("parse summary json: %w", err)
	}
	if s.Topic == "" || s.Summary == "" {
		return conversation.StructuredSummary{}, errors.New("summary missing required fields")
	}
	if s.Sentiment == "" {
		s.Sentiment = "neutral"
	}
	if s.Resolution == "" {
		s.Resolution = "unresolved"
	}
	return s, nil
}
