package main

import (
	"github.com/gin-gonic/gin"

	"voicereport-platform/internal/auth"
	"voicereport-platform/internal/httpapi"
	"voicereport-platform/internal/ratelimit"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, webhookSecret string, tokens *auth.Manager, limiter ratelimit.Limiter) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Conversation webhook. Shared-secret bearer auth plus a per-client
	// fixed-window rate limit; the handler responds before processing starts.
	webhook := r.Group("/webhook")
	webhook.Use(auth.RequireSharedSecret(webhookSecret))
	webhook.Use(ratelimit.Middleware(limiter))
	{
		webhook.POST("/conversation", h.HandleConversationWebhook)
	}

	// Status query API. List and stats require the shared secret; the
	// single-conversation lookup also accepts the tracking token issued in
	// the webhook acknowledgement, scoped to that conversation.
	v1 := r.Group("/v1")
	v1.Use(auth.RequireSharedSecret(webhookSecret))
	{
		v1.GET("/conversations", h.ListConversations)
		v1.GET("/conversations/stats", h.GetStats)
	}
	r.GET("/v1/conversations/:id",
		auth.RequireSecretOrTrackingToken(webhookSecret, tokens),
		h.GetConversation)
}
