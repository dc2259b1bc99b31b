package stats

import (
	"context"
	"errors"
	"time"

	"voicereport-platform/internal/conversation"
)

var ErrInvalidRequest = errors.New("stats: invalid request")

// Repository abstracts record access for aggregation. Both conversation
// repositories satisfy it.
type Repository interface {
	ListInRange(ctx context.Context, accountID string, from, to time.Time) ([]conversation.Record, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// Summarize aggregates per-status counts and call metrics for the requested
// scope. Counts come from current record state, not from the audit trail, so
// in-flight conversations show under their live status.
func (s *Service) Summarize(ctx context.Context, req Request) (Summary, error) {
	if !req.Range.From.IsZero() && !req.Range.To.IsZero() && !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("stats: repository not configured")
	}

	rows, err := s.repo.ListInRange(ctx, req.AccountID, req.Range.From, req.Range.To)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{AccountID: req.AccountID}
	for _, rec := range rows {
		out.Total++
		out.TotalDurationSeconds += rec.Metadata.DurationSeconds
		out.TotalMessages += len(rec.Transcript)
		if rec.SummaryDegraded {
			out.DegradedSummaries++
		}
		if rec.EmailDelivered {
			out.EmailsDelivered++
		}
		if len(rec.Artifacts) > 0 {
			out.WithArtifacts++
		}
		switch rec.Status {
		case conversation.StatusAnalyzing:
			out.Analyzing++
		case conversation.StatusGeneratingReport:
			out.GeneratingReport++
		case conversation.StatusSendingEmail:
			out.SendingEmail++
		case conversation.StatusCompleted:
			out.Completed++
		case conversation.StatusFailed:
			out.Failed++
		}
	}
	if out.Total > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.Total
	}
	return out, nil
}
