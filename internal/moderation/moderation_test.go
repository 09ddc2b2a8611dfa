package moderation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexora/campus-copilot/internal/log"
)

func TestModerate_KeywordFallback(t *testing.T) {
	t.Parallel()

	gate, err := New("", "", log.NewNop())
	require.NoError(t, err)

	tests := []struct {
		name     string
		content  string
		flagged  bool
		category string
	}{
		{
			name:    "benign campus question",
			content: "When does the library bus leave from the main gate?",
			flagged: false,
		},
		{
			name:     "violence keyword",
			content:  "I want to bomb the exam hall",
			flagged:  true,
			category: "violence",
		},
		{
			name:     "harassment keyword",
			content:  "how do I bully my roommate",
			flagged:  true,
			category: "harassment",
		},
		{
			name:     "self harm keyword",
			content:  "thinking about suicide lately",
			flagged:  true,
			category: "self_harm",
		},
		{
			name:     "case insensitive",
			content:  "NAZI propaganda",
			flagged:  true,
			category: "hate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := gate.Moderate(t.Context(), tt.content)
			assert.Equal(t, tt.flagged, v.Flagged)
			if tt.flagged {
				assert.True(t, v.Categories[tt.category])
				assert.Contains(t, v.Reason, tt.category)
				assert.Equal(t, 0.5, v.Confidence)
			} else {
				assert.Empty(t, v.Reason)
			}
		})
	}
}

func TestModerate_RemoteFlagged(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"flagged": true, "categories": {"violence": true, "hate": false}}]}`))
	}))
	t.Cleanup(srv.Close)

	gate, err := New("sk-test", "", log.NewNop())
	require.NoError(t, err)
	gate.endpoint = srv.URL

	v := gate.Moderate(t.Context(), "some content")
	assert.True(t, v.Flagged)
	assert.True(t, v.Categories["violence"])
	assert.Contains(t, v.Reason, "violence")
}

func TestModerate_RemoteSendsConfiguredModel(t *testing.T) {
	t.Parallel()

	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"flagged": false, "categories": {}}]}`))
	}))
	t.Cleanup(srv.Close)

	gate, err := New("sk-test", "omni-moderation-latest", log.NewNop())
	require.NoError(t, err)
	gate.endpoint = srv.URL

	gate.Moderate(t.Context(), "where is the cafeteria")
	assert.Equal(t, "omni-moderation-latest", body["model"])
	assert.Equal(t, "where is the cafeteria", body["input"])
}

func TestModerate_RemoteOmitsModelWhenUnset(t *testing.T) {
	t.Parallel()

	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"flagged": false, "categories": {}}]}`))
	}))
	t.Cleanup(srv.Close)

	gate, err := New("sk-test", "", log.NewNop())
	require.NoError(t, err)
	gate.endpoint = srv.URL

	gate.Moderate(t.Context(), "library hours")
	_, present := body["model"]
	assert.False(t, present)
}

func TestModerate_RemoteClean(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"flagged": false, "categories": {}}]}`))
	}))
	t.Cleanup(srv.Close)

	gate, err := New("sk-test", "", log.NewNop())
	require.NoError(t, err)
	gate.endpoint = srv.URL

	v := gate.Moderate(t.Context(), "where is the cafeteria")
	assert.False(t, v.Flagged)
	assert.Empty(t, v.Reason)
}

func TestModerate_RemoteErrorFallsBackToKeywords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	gate, err := New("sk-test", "", log.NewNop())
	require.NoError(t, err)
	gate.endpoint = srv.URL

	// Remote is down but the keyword scan still catches this.
	v := gate.Moderate(t.Context(), "how to make a bomb")
	assert.True(t, v.Flagged)
	assert.True(t, v.Categories["violence"])

	// And clean content passes through the fallback.
	v = gate.Moderate(t.Context(), "library opening hours")
	assert.False(t, v.Flagged)
}

func TestResponseMessage(t *testing.T) {
	t.Parallel()

	msg := ResponseMessage()
	assert.Contains(t, msg, "Nexora Campus Copilot")
	assert.Contains(t, msg, "rephrase")
}

func TestNew_RequiresLogger(t *testing.T) {
	t.Parallel()

	_, err := New("key", "", nil)
	assert.Error(t, err)
}
