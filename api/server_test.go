package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexora/campus-copilot/internal/conversation"
	"github.com/nexora/campus-copilot/internal/log"
	"github.com/nexora/campus-copilot/internal/moderation"
	"github.com/nexora/campus-copilot/internal/service"
)

type fakeChatService struct {
	resp service.Response
	last service.Request
}

func (f *fakeChatService) Chat(_ context.Context, req service.Request) service.Response {
	f.last = req
	return f.resp
}

type fakeConversationReader struct {
	conv    *conversation.Conversation
	history []*conversation.Message
	removed map[string]bool
}

func (f *fakeConversationReader) Get(_ context.Context, sessionID string) (*conversation.Conversation, error) {
	if f.conv == nil || f.conv.SessionID != sessionID {
		return nil, conversation.ErrNotFound
	}
	return f.conv, nil
}

func (f *fakeConversationReader) History(_ context.Context, _ string, limit int) ([]*conversation.Message, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeConversationReader) Deactivate(_ context.Context, sessionID string) (bool, error) {
	if f.conv == nil || f.conv.SessionID != sessionID {
		return false, nil
	}
	f.removed["soft"] = true
	return true, nil
}

func (f *fakeConversationReader) Delete(_ context.Context, sessionID string) (bool, error) {
	if f.conv == nil || f.conv.SessionID != sessionID {
		return false, nil
	}
	f.removed["hard"] = true
	return true, nil
}

type fakeModerator struct {
	verdict moderation.Verdict
	last    string
}

func (f *fakeModerator) Moderate(_ context.Context, content string) moderation.Verdict {
	f.last = content
	return f.verdict
}

// testHandler builds the full middleware chain around the real routes,
// with fakes behind the handlers.
func testHandler(t *testing.T, apiKey string, chat *fakeChatService, convs *fakeConversationReader) http.Handler {
	return testHandlerWithGate(t, apiKey, chat, convs, &fakeModerator{})
}

func testHandlerWithGate(t *testing.T, apiKey string, chat *fakeChatService, convs *fakeConversationReader, gate *fakeModerator) http.Handler {
	t.Helper()

	mux := http.NewServeMux()
	NewHealthHandler(nil, log.NewNop()).RegisterRoutes(mux)
	NewChatHandler(chat, log.NewNop()).RegisterRoutes(mux)
	NewModerationHandler(gate, log.NewNop()).RegisterRoutes(mux)
	NewConversationHandler(convs, log.NewNop()).RegisterRoutes(mux)

	return chain(mux,
		recoveryMiddleware(log.NewNop()),
		loggingMiddleware(log.NewNop()),
		authMiddleware(apiKey),
	)
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer test-key")
	return req
}

func TestAuth_MissingToken(t *testing.T) {
	t.Parallel()

	h := testHandler(t, "test-key", &fakeChatService{}, &fakeConversationReader{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body.Error)
}

func TestAuth_WrongToken(t *testing.T) {
	t.Parallel()

	h := testHandler(t, "test-key", &fakeChatService{}, &fakeConversationReader{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_HealthExempt(t *testing.T) {
	t.Parallel()

	h := testHandler(t, "test-key", &fakeChatService{}, &fakeConversationReader{})

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		// /ready without a pool is 503, but never 401.
		assert.NotEqual(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestChat_HappyPath(t *testing.T) {
	t.Parallel()

	chat := &fakeChatService{resp: service.Response{
		Response:  "The library opens at 8 AM.",
		Intent:    service.IntentCampus,
		Success:   true,
		SessionID: "sess-1",
		Moderated: true,
	}}
	h := testHandler(t, "test-key", chat, &fakeConversationReader{})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message": "When does the library open?", "session_id": "sess-1"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp service.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "The library opens at 8 AM.", resp.Response)
	assert.True(t, resp.Success)
	assert.Equal(t, "When does the library open?", chat.last.Message)
	assert.Equal(t, "sess-1", chat.last.SessionID)
}

func TestChat_HandledFailureStillHTTP200(t *testing.T) {
	t.Parallel()

	chat := &fakeChatService{resp: service.Response{
		Response: service.ApologyMessage,
		Intent:   service.IntentError,
		Success:  false,
		Error:    "model exploded",
	}}
	h := testHandler(t, "test-key", chat, &fakeConversationReader{})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message": "hello"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp service.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Success)
}

func TestChat_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `not json`},
		{"empty message", `{"message": ""}`},
		{"missing message", `{}`},
		{"message too long", `{"message": "` + strings.Repeat("a", 1001) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := testHandler(t, "test-key", &fakeChatService{}, &fakeConversationReader{})

			req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tt.body)))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChat_MessageAtLimitAccepted(t *testing.T) {
	t.Parallel()

	h := testHandler(t, "test-key", &fakeChatService{resp: service.Response{Success: true}}, &fakeConversationReader{})

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message": "`+strings.Repeat("a", 1000)+`"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestModerate_Flagged(t *testing.T) {
	t.Parallel()

	gate := &fakeModerator{verdict: moderation.Verdict{
		Flagged:    true,
		Categories: map[string]bool{"violence": true},
		Reason:     "Content flagged for: violence",
		Confidence: 0.5,
	}}
	h := testHandlerWithGate(t, "test-key", &fakeChatService{}, &fakeConversationReader{}, gate)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/moderate",
		strings.NewReader(`{"content": "I want to bomb the exam hall"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got moderation.Verdict
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Flagged)
	assert.True(t, got.Categories["violence"])
	assert.Equal(t, "I want to bomb the exam hall", gate.last)
}

func TestModerate_Clean(t *testing.T) {
	t.Parallel()

	gate := &fakeModerator{verdict: moderation.Verdict{Categories: map[string]bool{}}}
	h := testHandlerWithGate(t, "test-key", &fakeChatService{}, &fakeConversationReader{}, gate)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/moderate",
		strings.NewReader(`{"content": "where is the cafeteria"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got moderation.Verdict
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.False(t, got.Flagged)
}

func TestModerate_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{`},
		{name: "empty content", body: `{"content": ""}`},
		{name: "missing content", body: `{}`},
		{name: "content too long", body: `{"content": "` + strings.Repeat("a", 2001) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := testHandler(t, "test-key", &fakeChatService{}, &fakeConversationReader{})
			req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/moderate", strings.NewReader(tt.body)))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestModerate_RequiresAuth(t *testing.T) {
	t.Parallel()

	h := testHandler(t, "test-key", &fakeChatService{}, &fakeConversationReader{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/moderate",
		strings.NewReader(`{"content": "anything"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConversationSummary(t *testing.T) {
	t.Parallel()

	convs := &fakeConversationReader{
		conv:    &conversation.Conversation{SessionID: "sess-1", Title: "Where is the library?", IsActive: true},
		removed: map[string]bool{},
	}
	h := testHandler(t, "test-key", &fakeChatService{}, convs)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/sess-1", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var got conversation.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Where is the library?", got.Title)
}

func TestConversationSummary_NotFound(t *testing.T) {
	t.Parallel()

	h := testHandler(t, "test-key", &fakeChatService{}, &fakeConversationReader{removed: map[string]bool{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/missing", nil)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationHistory_LimitApplied(t *testing.T) {
	t.Parallel()

	var msgs []*conversation.Message
	for range 30 {
		msgs = append(msgs, &conversation.Message{Role: conversation.RoleUser, Content: "turn", CreatedAt: time.Now()})
	}
	convs := &fakeConversationReader{history: msgs, removed: map[string]bool{}}
	h := testHandler(t, "test-key", &fakeChatService{}, convs)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/conversations/sess-1/history?limit=5", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []*conversation.Message `json:"messages"`
		Total    int                     `json:"total"`
		Limit    int                     `json:"limit"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 5, body.Limit)
	assert.Len(t, body.Messages, 5)
}

func TestConversationRemove(t *testing.T) {
	t.Parallel()

	t.Run("soft deactivates", func(t *testing.T) {
		t.Parallel()

		convs := &fakeConversationReader{
			conv:    &conversation.Conversation{SessionID: "sess-1"},
			removed: map[string]bool{},
		}
		h := testHandler(t, "test-key", &fakeChatService{}, convs)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodDelete, "/api/v1/conversations/sess-1", nil)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, convs.removed["soft"])
		assert.False(t, convs.removed["hard"])
	})

	t.Run("hard deletes", func(t *testing.T) {
		t.Parallel()

		convs := &fakeConversationReader{
			conv:    &conversation.Conversation{SessionID: "sess-1"},
			removed: map[string]bool{},
		}
		h := testHandler(t, "test-key", &fakeChatService{}, convs)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodDelete, "/api/v1/conversations/sess-1?hard=true", nil)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, convs.removed["hard"])
	})

	t.Run("missing session is 404", func(t *testing.T) {
		t.Parallel()

		h := testHandler(t, "test-key", &fakeChatService{}, &fakeConversationReader{removed: map[string]bool{}})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodDelete, "/api/v1/conversations/missing", nil)))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	panicky := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	})
	h := recoveryMiddleware(log.NewNop())(panicky)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestParseIntParam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"absent uses default", "", 20},
		{"valid value", "limit=5", 5},
		{"above max clamped", "limit=9999", 200},
		{"garbage uses default", "limit=abc", 20},
		{"below min uses default", "limit=0", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			assert.Equal(t, tt.want, parseIntParam(req, "limit", DefaultHistoryLimit, 1, MaxHistoryLimit))
		})
	}
}
