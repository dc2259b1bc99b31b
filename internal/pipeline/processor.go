package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"voicereport-platform/internal/audit"
	"voicereport-platform/internal/callback"
	"voicereport-platform/internal/conversation"
	"voicereport-platform/internal/notify"
	"voicereport-platform/internal/summarize"
)

// Collaborator capabilities consumed by the pipeline. All are
// constructor-injected so tests substitute fakes without network access.

type Summarizer interface {
	Summarize(ctx context.Context, transcript []conversation.TranscriptMessage, accountID, emailID string) (summarize.Result, error)
	ComposeEmail(ctx context.Context, summary conversation.StructuredSummary, accountID string) (summarize.EmailContent, error)
}

type Renderer interface {
	Render(ctx context.Context, rec conversation.Record, summary conversation.StructuredSummary) ([]byte, error)
}

type Storer interface {
	Store(ctx context.Context, data []byte, accountID, conversationID string, kind conversation.ArtifactKind) (string, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (bool, error)
}

type CallbackSender interface {
	Enabled() bool
	Notify(ctx context.Context, log *slog.Logger, p callback.Payload) callback.Outcome
}

// Processor runs the per-conversation pipeline:
// analyze -> compose -> render -> upload -> notify.
//
// Steps execute strictly in order for one conversation; any step error other
// than artifact upload converts to a terminal failed status. The processor is
// the sole writer of a conversation record after webhook acceptance.
type Processor struct {
	repo       conversation.Repository
	summarizer Summarizer
	renderer   Renderer
	storer     Storer
	notifier   Notifier
	callbacks  CallbackSender
	audits     *audit.Service
	log        *slog.Logger
	clock      func() time.Time
}

// Options carries the optional collaborators. Storer and Callbacks may be
// nil: a missing storer skips uploads, a missing callback sender skips
// completion callbacks. Repo, Summarizer, Renderer and Notifier are required.
type Options struct {
	Repo       conversation.Repository
	Summarizer Summarizer
	Renderer   Renderer
	Storer     Storer
	Notifier   Notifier
	Callbacks  CallbackSender
	Audits     *audit.Service
	Log        *slog.Logger
}

func NewProcessor(opts Options) *Processor {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		repo:       opts.Repo,
		summarizer: opts.Summarizer,
		renderer:   opts.Renderer,
		storer:     opts.Storer,
		notifier:   opts.Notifier,
		callbacks:  opts.Callbacks,
		audits:     opts.Audits,
		log:        log,
		clock:      time.Now,
	}
}

// Process runs the pipeline for one conversation. Errors never propagate to
// the webhook caller; the outermost boundary converts panics and step errors
// into a terminal failed record.
func (p *Processor) Process(ctx context.Context, conversationID string) {
	log := p.log.With("conversation_id", conversationID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", "panic", r)
			p.fail(ctx, log, conversationID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	rec, err := p.repo.Get(ctx, conversationID)
	if err != nil {
		log.Error("record missing at pipeline start", "err", err)
		return
	}
	if rec.Status.Terminal() {
		// A duplicate enqueue raced a finished run; terminal records are frozen.
		log.Warn("skipping terminal record", "status", rec.Status)
		return
	}

	// Step 1: analyze. A pre-computed summary from the webhook skips the call.
	summary := conversation.StructuredSummary{}
	if rec.Summary != nil {
		summary = *rec.Summary
		log.Debug("using pre-computed summary")
	} else {
		res, err := p.summarizer.Summarize(ctx, rec.Transcript, rec.AccountID, rec.EmailID)
		if err != nil {
			p.fail(ctx, log, conversationID, fmt.Sprintf("summarization failed: %v", err))
			return
		}
		if res.Degraded {
			log.Warn("degraded default summary in use", "cause", res.Err)
		}
		summary = res.Summary
		if err := p.repo.SetSummary(ctx, conversationID, summary, res.Degraded); err != nil {
			p.fail(ctx, log, conversationID, fmt.Sprintf("persist summary: %v", err))
			return
		}
	}

	// Step 2: compose email content.
	content, err := p.summarizer.ComposeEmail(ctx, summary, rec.AccountID)
	if err != nil {
		p.fail(ctx, log, conversationID, fmt.Sprintf("email composition failed: %v", err))
		return
	}

	// Step 3: render the PDF report.
	if err := p.repo.UpdateStatus(ctx, conversationID, conversation.StatusGeneratingReport); err != nil {
		p.fail(ctx, log, conversationID, fmt.Sprintf("status transition: %v", err))
		return
	}
	pdfBytes, err := p.renderer.Render(ctx, rec, summary)
	if err != nil {
		p.fail(ctx, log, conversationID, fmt.Sprintf("report rendering failed: %v", err))
		return
	}

	// Step 4: upload artifacts. Partial failure is non-fatal; the customer
	// outcome (the emailed report) does not depend on stored copies.
	artifacts := p.uploadArtifacts(ctx, log, rec, pdfBytes)
	if len(artifacts) > 0 {
		if err := p.repo.SetArtifacts(ctx, conversationID, artifacts); err != nil {
			log.Warn("persist artifacts failed", "err", err)
		}
	}

	// Step 5: notify.
	if err := p.repo.UpdateStatus(ctx, conversationID, conversation.StatusSendingEmail); err != nil {
		p.fail(ctx, log, conversationID, fmt.Sprintf("status transition: %v", err))
		return
	}
	delivered, err := p.notifier.Send(ctx, notify.Message{
		To:             rec.EmailID,
		Subject:        content.Subject,
		HTMLBody:       content.HTMLBody,
		TextBody:       content.TextBody,
		Attachment:     pdfBytes,
		AttachmentName: fmt.Sprintf("report-%s.pdf", conversationID),
	})
	if err != nil {
		p.fail(ctx, log, conversationID, fmt.Sprintf("email delivery failed: %v", err))
		return
	}
	if !delivered {
		log.Warn("email delivery disabled, completing without send")
	}

	if err := p.repo.Complete(ctx, conversationID, p.clock(), delivered); err != nil {
		log.Error("complete transition failed", "err", err)
		return
	}
	log.Info("pipeline completed", "email_delivered", delivered)

	if p.audits != nil {
		if err := p.audits.LogCompleted(ctx, conversationID, rec.AccountID, delivered); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
	p.sendCallback(ctx, log, conversationID, "success", "conversation report generated")
}

func (p *Processor) uploadArtifacts(ctx context.Context, log *slog.Logger, rec conversation.Record, pdfBytes []byte) map[conversation.ArtifactKind]string {
	if p.storer == nil {
		return nil
	}

	out := map[conversation.ArtifactKind]string{}

	transcriptJSON, err := json.Marshal(rec.Transcript)
	if err != nil {
		log.Warn("transcript marshal failed", "err", err)
	} else if url, err := p.storer.Store(ctx, transcriptJSON, rec.AccountID, rec.ConversationID, conversation.ArtifactTranscript); err != nil {
		log.Warn("transcript upload failed", "err", err)
	} else {
		out[conversation.ArtifactTranscript] = url
	}

	if url, err := p.storer.Store(ctx, pdfBytes, rec.AccountID, rec.ConversationID, conversation.ArtifactReport); err != nil {
		log.Warn("report upload failed", "err", err)
	} else {
		out[conversation.ArtifactReport] = url
	}

	return out
}

func (p *Processor) fail(ctx context.Context, log *slog.Logger, conversationID, reason string) {
	log.Error("pipeline failed", "reason", reason)

	rec, getErr := p.repo.Get(ctx, conversationID)
	if err := p.repo.Fail(ctx, conversationID, p.clock(), reason); err != nil {
		log.Error("fail transition failed", "err", err)
	}
	if p.audits != nil && getErr == nil {
		if err := p.audits.LogFailed(ctx, conversationID, rec.AccountID, reason); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
	p.sendCallback(ctx, log, conversationID, "failed", reason)
}

// sendCallback posts the completion callback. Best-effort: outcomes are
// logged and audited but never change the record's terminal status.
func (p *Processor) sendCallback(ctx context.Context, log *slog.Logger, conversationID, status, description string) {
	if p.callbacks == nil || !p.callbacks.Enabled() {
		return
	}

	rec, err := p.repo.Get(ctx, conversationID)
	if err != nil {
		log.Warn("callback skipped, record unavailable", "err", err)
		return
	}

	outcome := p.callbacks.Notify(ctx, log, callback.Payload{
		Status:      status,
		ApplicantID: rec.AccountID,
		EmailID:     rec.EmailID,
		Description: description,
		Artifacts: callback.Artifacts{
			TranscriptURL: rec.Artifacts[conversation.ArtifactTranscript],
			AudioURL:      rec.Artifacts[conversation.ArtifactAudio],
			PDFURL:        rec.Artifacts[conversation.ArtifactReport],
		},
	})
	if p.audits != nil {
		if err := p.audits.LogCallback(ctx, conversationID, rec.AccountID, string(outcome)); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
}
