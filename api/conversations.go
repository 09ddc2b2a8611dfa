package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/nexora/campus-copilot/internal/conversation"
	"github.com/nexora/campus-copilot/internal/log"
)

// History pagination bounds.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// ConversationReader is the store surface the handler consumes.
// *conversation.Store satisfies it.
type ConversationReader interface {
	Get(ctx context.Context, sessionID string) (*conversation.Conversation, error)
	History(ctx context.Context, sessionID string, limit int) ([]*conversation.Message, error)
	Deactivate(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// ConversationHandler serves conversation read and lifecycle endpoints.
type ConversationHandler struct {
	store  ConversationReader
	logger log.Logger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(store ConversationReader, logger log.Logger) *ConversationHandler {
	return &ConversationHandler{store: store, logger: logger}
}

// RegisterRoutes registers conversation routes on the given mux.
func (h *ConversationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/conversations/{session_id}", h.summary)
	mux.HandleFunc("GET /api/v1/conversations/{session_id}/history", h.history)
	mux.HandleFunc("DELETE /api/v1/conversations/{session_id}", h.remove)
}

// summary returns conversation metadata for a session.
func (h *ConversationHandler) summary(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	conv, err := h.store.Get(r.Context(), sessionID)
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found", "no conversation for session "+sessionID)
		return
	}
	if err != nil {
		h.logger.Error("failed to get conversation", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "failed to get conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// history returns up to limit turns in chronological order.
func (h *ConversationHandler) history(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	limit := parseIntParam(r, "limit", DefaultHistoryLimit, 1, MaxHistoryLimit)

	messages, err := h.store.History(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to get history", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "failed to get history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   messages,
		"total":      len(messages),
		"limit":      limit,
	})
}

// remove deactivates a conversation; ?hard=true deletes it and its
// messages permanently.
func (h *ConversationHandler) remove(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	hard := r.URL.Query().Get("hard") == "true"

	var (
		ok  bool
		err error
	)
	if hard {
		ok, err = h.store.Delete(r.Context(), sessionID)
	} else {
		ok, err = h.store.Deactivate(r.Context(), sessionID)
	}
	if err != nil {
		h.logger.Error("failed to remove conversation",
			"session_id", sessionID, "hard", hard, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "failed to remove conversation")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "no conversation for session "+sessionID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"deleted":    hard,
		"deactivated": !hard,
	})
}

// parseIntParam parses an integer query parameter with bounds checking.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil || val < minVal {
		return defaultVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}
