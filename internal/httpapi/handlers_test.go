package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"voicereport-platform/internal/auth"
	"voicereport-platform/internal/config"
	"voicereport-platform/internal/conversation"
	"voicereport-platform/internal/pipeline"
	"voicereport-platform/internal/stats"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	repo       *conversation.MemoryRepo
	dispatcher *pipeline.Dispatcher
	router     *gin.Engine
}

// newEnv wires handlers onto a router without starting dispatcher workers, so
// accepted records stay in status analyzing for assertions.
func newEnv(t *testing.T, queueSize int) *env {
	t.Helper()

	repo := conversation.NewMemoryRepo()
	d := pipeline.NewDispatcher(nil, 1, queueSize, nil)
	tokens, err := auth.NewManager(config.WebhookConfig{TrackingTokenSecret: "test-secret"})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	h := Handlers{
		Repo:       repo,
		Dispatcher: d,
		Tokens:     tokens,
		Stats:      stats.NewService(repo),
	}

	r := gin.New()
	r.POST("/webhook/conversation", h.HandleConversationWebhook)
	r.GET("/v1/conversations/stats", h.GetStats)
	r.GET("/v1/conversations/:id", h.GetConversation)
	r.GET("/v1/conversations", h.ListConversations)

	return &env{repo: repo, dispatcher: d, router: r}
}

func validPayload(conversationID string) map[string]any {
	return map[string]any{
		"emailId":        "user@example.com",
		"accountId":      "acc123",
		"conversationId": conversationID,
		"transcript": []map[string]any{
			{"timestamp": "2026-03-01T12:00:00Z", "speaker": "user", "content": "hello", "messageId": "m1"},
			{"timestamp": "2026-03-01T12:00:05Z", "speaker": "agent", "content": "hi there", "messageId": "m2"},
		},
		"metadata": map[string]any{"sessionId": "s1", "duration": 42, "messageCount": 2},
	}
}

func (e *env) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestWebhook_AcceptsValidPayload(t *testing.T) {
	e := newEnv(t, 16)

	w := e.post(t, "/webhook/conversation", validPayload("conv_1"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["success"] != true {
		t.Fatalf("expected success envelope: %v", body)
	}
	data, _ := body["data"].(map[string]any)
	if data["conversationId"] != "conv_1" || data["status"] != "analyzing" {
		t.Fatalf("unexpected data: %v", data)
	}
	if data["webhookId"] == "" || data["trackingToken"] == "" {
		t.Fatalf("expected webhookId and trackingToken: %v", data)
	}

	rec, err := e.repo.Get(context.Background(), "conv_1")
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if rec.Status != conversation.StatusAnalyzing {
		t.Fatalf("expected analyzing, got %s", rec.Status)
	}
	if e.dispatcher.Depth() != 1 {
		t.Fatalf("expected 1 queued conversation, got %d", e.dispatcher.Depth())
	}
}

func TestWebhook_RejectsInvalidPayload(t *testing.T) {
	e := newEnv(t, 16)

	cases := []struct {
		name   string
		mutate func(p map[string]any)
	}{
		{"bad email", func(p map[string]any) { p["emailId"] = "not-an-email" }},
		{"short account", func(p map[string]any) { p["accountId"] = "ab" }},
		{"missing conversation id", func(p map[string]any) { p["conversationId"] = "" }},
		{"empty transcript", func(p map[string]any) { p["transcript"] = []map[string]any{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPayload("conv_bad")
			tc.mutate(p)
			w := e.post(t, "/webhook/conversation", p)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if _, err := e.repo.Get(context.Background(), "conv_bad"); err != conversation.ErrNotFound {
				t.Fatalf("rejected payload must leave no record, got %v", err)
			}
		})
	}
}

func TestWebhook_RejectsMalformedJSON(t *testing.T) {
	e := newEnv(t, 16)

	req := httptest.NewRequest(http.MethodPost, "/webhook/conversation", bytes.NewReader([]byte("{nope")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWebhook_FullQueueFailsRecord(t *testing.T) {
	e := newEnv(t, 1)

	if w := e.post(t, "/webhook/conversation", validPayload("conv_1")); w.Code != http.StatusOK {
		t.Fatalf("first accept failed: %d", w.Code)
	}
	w := e.post(t, "/webhook/conversation", validPayload("conv_2"))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}

	rec, err := e.repo.Get(context.Background(), "conv_2")
	if err != nil {
		t.Fatalf("record should still exist: %v", err)
	}
	if rec.Status != conversation.StatusFailed || rec.Error == "" {
		t.Fatalf("expected failed record with reason, got %+v", rec)
	}
}

func TestGetConversation(t *testing.T) {
	e := newEnv(t, 16)
	e.post(t, "/webhook/conversation", validPayload("conv_1"))

	w := e.get(t, "/v1/conversations/conv_1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	data, _ := body["data"].(map[string]any)
	if data["conversationId"] != "conv_1" {
		t.Fatalf("unexpected record: %v", data)
	}

	if w := e.get(t, "/v1/conversations/ghost"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListConversations_Pagination(t *testing.T) {
	e := newEnv(t, 64)
	for i := 0; i < 25; i++ {
		if w := e.post(t, "/webhook/conversation", validPayload(fmt.Sprintf("conv_%02d", i))); w.Code != http.StatusOK {
			t.Fatalf("accept %d failed: %d", i, w.Code)
		}
	}

	w := e.get(t, "/v1/conversations?page=2&limit=10")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	data, _ := body["data"].(map[string]any)
	recs, _ := data["conversations"].([]any)
	if len(recs) != 10 {
		t.Fatalf("expected 10 records on page 2, got %d", len(recs))
	}
	pg, _ := data["pagination"].(map[string]any)
	if pg["page"] != float64(2) || pg["limit"] != float64(10) || pg["total"] != float64(25) || pg["pages"] != float64(3) {
		t.Fatalf("unexpected pagination: %v", pg)
	}
}

func TestListConversations_RejectsUnknownStatus(t *testing.T) {
	e := newEnv(t, 16)

	w := e.get(t, "/v1/conversations?status=exploded")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetStats(t *testing.T) {
	e := newEnv(t, 64)
	for i := 0; i < 3; i++ {
		e.post(t, "/webhook/conversation", validPayload(fmt.Sprintf("conv_%d", i)))
	}

	w := e.get(t, "/v1/conversations/stats")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	data, _ := body["data"].(map[string]any)
	if data["total"] != float64(3) || data["analyzing"] != float64(3) {
		t.Fatalf("unexpected stats: %v", data)
	}

	if w := e.get(t, "/v1/conversations/stats?from=yesterday"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad time, got %d", w.Code)
	}

	from := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	to := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	if w := e.get(t, "/v1/conversations/stats?from="+from+"&to="+to); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with range, got %d", w.Code)
	}
}
