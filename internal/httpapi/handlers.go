package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voicereport-platform/internal/audit"
	"voicereport-platform/internal/auth"
	"voicereport-platform/internal/conversation"
	"voicereport-platform/internal/pipeline"
	"voicereport-platform/internal/stats"
	"voicereport-platform/pkg/logger"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Repo       conversation.Repository
	Dispatcher *pipeline.Dispatcher
	Tokens     *auth.Manager
	Audits     *audit.Service
	Stats      *stats.Service
}

// All responses share one envelope: {"success": bool, "message": string,
// "data": ...}.

func respondError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "message": message})
}

// --- Webhook intake ---

// HandleConversationWebhook accepts a finished conversation, persists it in
// status analyzing and hands it to the worker pool. The handler never waits on
// the pipeline; heavy work happens in the background.
func (h Handlers) HandleConversationWebhook(c *gin.Context) {
	log := logger.FromGin(c)

	var p conversation.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		respondError(c, http.StatusBadRequest, "invalid json payload")
		return
	}
	if verr := p.Validate(); verr != nil {
		respondError(c, http.StatusBadRequest, verr.Error())
		return
	}

	webhookID := uuid.NewString()
	rec := conversation.NewRecord(p, webhookID, time.Now().UTC())

	if err := h.Repo.Put(c.Request.Context(), rec); err != nil {
		log.Error("record persist failed", "conversation_id", rec.ConversationID, "err", err)
		respondError(c, http.StatusInternalServerError, "failed to persist conversation")
		return
	}
	if h.Audits != nil {
		if err := h.Audits.LogReceived(c.Request.Context(), rec.ConversationID, rec.AccountID, webhookID); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}

	if err := h.Dispatcher.Enqueue(rec.ConversationID); err != nil {
		log.Error("enqueue rejected", "conversation_id", rec.ConversationID, "err", err)
		// The record exists but will never be picked up; mark it failed so the
		// status query tells the truth.
		if ferr := h.Repo.Fail(c.Request.Context(), rec.ConversationID, time.Now().UTC(), "processing queue unavailable"); ferr != nil {
			log.Error("fail transition failed", "conversation_id", rec.ConversationID, "err", ferr)
		}
		respondError(c, http.StatusServiceUnavailable, "processing queue is full, retry later")
		return
	}

	var trackingToken string
	if h.Tokens != nil {
		token, err := h.Tokens.IssueTrackingToken(time.Now(), rec.ConversationID, rec.AccountID)
		if err != nil {
			log.Warn("tracking token issuance failed", "err", err)
		} else {
			trackingToken = token
		}
	}

	log.Info("conversation accepted",
		"conversation_id", rec.ConversationID,
		"account_id", rec.AccountID,
		"webhook_id", webhookID,
		"queue_depth", h.Dispatcher.Depth())

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "conversation accepted for processing",
		"data": gin.H{
			"conversationId": rec.ConversationID,
			"processedAt":    rec.ReceivedAt.Format(time.RFC3339),
			"status":         rec.Status,
			"webhookId":      webhookID,
			"trackingToken":  trackingToken,
		},
	})
}

// --- Status queries ---

func (h Handlers) GetConversation(c *gin.Context) {
	id := c.Param("id")
	if claims, ok := auth.TrackingClaims(c); ok && claims.ConversationID != id {
		respondError(c, http.StatusForbidden, "tracking token does not cover this conversation")
		return
	}
	rec, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			respondError(c, http.StatusNotFound, "conversation not found")
			return
		}
		logger.FromGin(c).Error("record lookup failed", "conversation_id", id, "err", err)
		respondError(c, http.StatusInternalServerError, "lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

func (h Handlers) ListConversations(c *gin.Context) {
	f := conversation.Filter{
		EmailID:   c.Query("email_id"),
		AccountID: c.Query("account_id"),
	}
	if s := c.Query("status"); s != "" {
		if !conversation.IsValidStatus(s) {
			respondError(c, http.StatusBadRequest, "unknown status: "+s)
			return
		}
		f.Status = conversation.Status(s)
	}
	f.Page = intQuery(c, "page", 0)
	f.Limit = intQuery(c, "limit", 0)

	recs, total, err := h.Repo.List(c.Request.Context(), f)
	if err != nil {
		logger.FromGin(c).Error("record list failed", "err", err)
		respondError(c, http.StatusInternalServerError, "list failed")
		return
	}

	f = f.Normalized()
	pages := (total + f.Limit - 1) / f.Limit
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"conversations": recs,
			"pagination": gin.H{
				"page":  f.Page,
				"limit": f.Limit,
				"total": total,
				"pages": pages,
			},
		},
	})
}

func (h Handlers) GetStats(c *gin.Context) {
	if h.Stats == nil {
		respondError(c, http.StatusInternalServerError, "stats not configured")
		return
	}
	req := stats.Request{AccountID: c.Query("account_id")}
	var err error
	if req.Range.From, err = timeQuery(c, "from"); err != nil {
		respondError(c, http.StatusBadRequest, "from must be RFC3339")
		return
	}
	if req.Range.To, err = timeQuery(c, "to"); err != nil {
		respondError(c, http.StatusBadRequest, "to must be RFC3339")
		return
	}

	summary, err := h.Stats.Summarize(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, stats.ErrInvalidRequest) {
			respondError(c, http.StatusBadRequest, "from must precede to")
			return
		}
		logger.FromGin(c).Error("stats aggregation failed", "err", err)
		respondError(c, http.StatusInternalServerError, "stats failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summary})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func timeQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
