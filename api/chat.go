package api

import (
	"context"
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/nexora/campus-copilot/internal/log"
	"github.com/nexora/campus-copilot/internal/service"
)

// Message length bounds for a chat turn.
const (
	MinMessageLength = 1
	MaxMessageLength = 1000
)

// ChatService is the facade surface the handler consumes.
// *service.Copilot satisfies it.
type ChatService interface {
	Chat(ctx context.Context, req service.Request) service.Response
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	copilot ChatService
	logger  log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(copilot ChatService, logger log.Logger) *ChatHandler {
	return &ChatHandler{copilot: copilot, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/chat", h.chat)
}

// chat handles one conversational turn. Handled downstream failures
// still return 200 with success=false in the body; only a malformed
// request is an HTTP-level error.
func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	if h.copilot == nil {
		h.logger.Error("chat service is nil")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var req service.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "request body must be valid JSON")
		return
	}

	if n := utf8.RuneCountInString(req.Message); n < MinMessageLength || n > MaxMessageLength {
		writeError(w, http.StatusBadRequest, "invalid request",
			"message must be between 1 and 1000 characters")
		return
	}

	resp := h.copilot.Chat(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}
