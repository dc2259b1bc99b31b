package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Outcome classifies a callback attempt. Callback delivery is best-effort:
// no outcome ever alters the conversation record's own status.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeHTTPError Outcome = "http_error"
	OutcomeException Outcome = "exception"
	OutcomeDisabled  Outcome = "disabled"
)

// Artifacts carries the retrieval URLs collected by the pipeline.
type Artifacts struct {
	TranscriptURL string `json:"transcript_url,omitempty"`
	AudioURL      string `json:"audio_url,omitempty"`
	PDFURL        string `json:"pdf_url,omitempty"`
}

// Payload is the fixed-shape completion notification.
type Payload struct {
	Status      string    `json:"status"` // "success" or "failed"
	ApplicantID string    `json:"applicant_id"`
	EmailID     string    `json:"email_id"`
	Description string    `json:"description"`
	Artifacts   Artifacts `json:"artifacts"`
}

// Client posts completion callbacks to a configured external endpoint.
type Client struct {
	url    string
	client *http.Client
}

// NewClient returns a callback client. An empty url yields a disabled client.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool { return c.url != "" }

// Notify posts the payload and classifies the result. It never returns an
// error; failures are logged with the conversation context and swallowed.
func (c *Client) Notify(ctx context.Context, log *slog.Logger, p Payload) Outcome {
	if !c.Enabled() {
		return OutcomeDisabled
	}

	body, err := json.Marshal(p)
	if err != nil {
		log.Error("callback marshal failed", "err", err)
		return OutcomeException
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		log.Error("callback request build failed", "err", err)
		return OutcomeException
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.Warn("callback timed out", "url", c.url)
			return OutcomeTimeout
		}
		log.Warn("callback transport failure", "url", c.url, "err", err)
		return OutcomeException
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("callback rejected", "url", c.url, "status", resp.StatusCode)
		return OutcomeHTTPError
	}

	log.Info("callback delivered", "url", c.url, "status", resp.StatusCode)
	return OutcomeDelivered
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
