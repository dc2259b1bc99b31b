package stats

import "time"

// TimeRange bounds an aggregation window. A zero From or To leaves that side
// unbounded.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Request scopes a stats query. AccountID is optional; empty aggregates
// across all accounts.

type Request struct {
	AccountID string    `json:"accountId,omitempty"`
	Range     TimeRange `json:"range"`
}

// Summary aggregates conversation pipeline outcomes.

type Summary struct {
	AccountID string `json:"accountId,omitempty"`

	Total            int `json:"total"`
	Analyzing        int `json:"analyzing"`
	GeneratingReport int `json:"generatingReport"`
	SendingEmail     int `json:"sendingEmail"`
	Completed        int `json:"completed"`
	Failed           int `json:"failed"`

	DegradedSummaries int `json:"degradedSummaries"`
	EmailsDelivered   int `json:"emailsDelivered"`
	WithArtifacts     int `json:"withArtifacts"`

	TotalDurationSeconds   int `json:"totalDurationSeconds"`
	AverageDurationSeconds int `json:"averageDurationSeconds"`
	TotalMessages          int `json:"totalMessages"`
}
