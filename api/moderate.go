package api

import (
	"context"
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/nexora/campus-copilot/internal/log"
	"github.com/nexora/campus-copilot/internal/moderation"
)

// MaxModerationLength caps content submitted for a standalone check.
const MaxModerationLength = 2000

// Moderator is the gate surface the handler consumes.
// *moderation.Gate satisfies it.
type Moderator interface {
	Moderate(ctx context.Context, content string) moderation.Verdict
}

// ModerationHandler exposes the moderation gate directly, so callers can
// test screening behavior without spending a model call.
type ModerationHandler struct {
	gate   Moderator
	logger log.Logger
}

// NewModerationHandler creates a moderation handler.
func NewModerationHandler(gate Moderator, logger log.Logger) *ModerationHandler {
	return &ModerationHandler{gate: gate, logger: logger}
}

// RegisterRoutes registers moderation routes on the given mux.
func (h *ModerationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/moderate", h.moderate)
}

type moderateRequest struct {
	Content string `json:"content"`
}

func (h *ModerationHandler) moderate(w http.ResponseWriter, r *http.Request) {
	if h.gate == nil {
		h.logger.Error("moderation gate is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var req moderateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "request body must be valid JSON")
		return
	}

	if n := utf8.RuneCountInString(req.Content); n < 1 || n > MaxModerationLength {
		writeError(w, http.StatusBadRequest, "invalid request",
			"content must be between 1 and 2000 characters")
		return
	}

	verdict := h.gate.Moderate(r.Context(), req.Content)
	if verdict.Flagged {
		h.logger.Warn("content flagged", "reason", verdict.Reason)
	}
	writeJSON(w, http.StatusOK, verdict)
}
