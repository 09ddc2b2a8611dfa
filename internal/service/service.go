// Package service is the facade in front of the copilot: moderation,
// conversation persistence, and the orchestrator behind one Chat call.
// Its contract is that Chat always returns a well-formed Response, no
// matter what fails underneath.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/nexora/campus-copilot/internal/conversation"
	"github.com/nexora/campus-copilot/internal/log"
	"github.com/nexora/campus-copilot/internal/moderation"
	"github.com/nexora/campus-copilot/internal/orchestrator"
	"github.com/nexora/campus-copilot/internal/tools"
	"github.com/nexora/campus-copilot/internal/usage"
)

const (
	// ApologyMessage is the fixed reply for any handled failure.
	ApologyMessage = "I apologize, but I'm experiencing technical difficulties. Please try again later."

	// Intents recorded on model turns and surfaced in responses.
	IntentCampus     = "campus"
	IntentModeration = "moderation"
	IntentError      = "error"

	// DefaultHistoryLimit is how many prior turns feed the model.
	DefaultHistoryLimit = 20
)

// Orchestrator runs one agentic turn. *orchestrator.Agent satisfies it.
type Orchestrator interface {
	Execute(ctx context.Context, message string, history []*ai.Message, tracker *usage.Tracker) (*orchestrator.Response, error)
}

// Moderator screens content. *moderation.Gate satisfies it.
type Moderator interface {
	Moderate(ctx context.Context, content string) moderation.Verdict
}

// ConversationStore persists turns. *conversation.Store satisfies it.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, sessionID, userID string) (*conversation.Conversation, error)
	AddMessages(ctx context.Context, conversationID uuid.UUID, messages []*conversation.Message) error
	History(ctx context.Context, sessionID string, limit int) ([]*conversation.Message, error)
}

// Request is one inbound chat turn.
type Request struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Response is the facade's answer. It is always fully populated;
// Success false plus Error distinguishes a handled failure from a
// normal answer.
type Response struct {
	Response         string        `json:"response"`
	AgentName        string        `json:"agent_name"`
	Intent           string        `json:"intent"`
	AgentUsed        string        `json:"agent_used"`
	Success          bool          `json:"success"`
	Error            string        `json:"error,omitempty"`
	UserID           string        `json:"user_id,omitempty"`
	SessionID        string        `json:"session_id"`
	ConversationID   uuid.UUID     `json:"conversation_id,omitempty"`
	Moderated        bool          `json:"moderated"`
	ContentFlagged   bool          `json:"content_flagged"`
	ModerationReason string        `json:"moderation_reason,omitempty"`
	Usage            *usage.Totals `json:"usage,omitempty"`
	ResponseTimeMS   int64         `json:"response_time_ms"`
}

// Config carries the facade's dependencies.
type Config struct {
	Agent         Orchestrator
	Gate          Moderator
	Conversations ConversationStore
	Deps          *tools.Deps // per-request tool dependencies template
	Logger        log.Logger

	HistoryLimit int // prior turns fed to the model (0 = default 20)
}

// Copilot is the chat service facade.
type Copilot struct {
	agent         Orchestrator
	gate          Moderator
	conversations ConversationStore
	deps          *tools.Deps
	historyLimit  int
	logger        log.Logger
}

// New creates the facade.
func New(cfg Config) (*Copilot, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("moderation gate is required")
	}
	if cfg.Conversations == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	return &Copilot{
		agent:         cfg.Agent,
		gate:          cfg.Gate,
		conversations: cfg.Conversations,
		deps:          cfg.Deps,
		historyLimit:  limit,
		logger:        cfg.Logger,
	}, nil
}

// Chat handles one user turn end to end:
//
//  1. Moderation. Flagged content short-circuits with the fixed
//     redirect; the model and tools are never invoked.
//  2. Get-or-create the conversation, read history BEFORE saving the
//     inbound turn so the model does not see the current message twice.
//  3. Save the user turn, run the orchestrator, save the model turn
//     with usage and latency metadata.
//
// Any failure downgrades to the fixed apology with Success false; Chat
// itself never returns an error to the transport layer.
func (c *Copilot) Chat(ctx context.Context, req Request) Response {
	start := time.Now()

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	verdict := c.gate.Moderate(ctx, req.Message)
	if verdict.Flagged {
		c.logger.Warn("content flagged by moderation",
			"user_id", req.UserID,
			"reason", verdict.Reason,
		)
		return Response{
			Response:         moderation.ResponseMessage(),
			AgentName:        orchestrator.AgentName,
			Intent:           IntentModeration,
			AgentUsed:        "Content Moderation",
			Success:          true, // handled successfully, by blocking
			UserID:           req.UserID,
			SessionID:        sessionID,
			Moderated:        true,
			ContentFlagged:   true,
			ModerationReason: verdict.Reason,
			ResponseTimeMS:   time.Since(start).Milliseconds(),
		}
	}

	conv, err := c.conversations.GetOrCreate(ctx, sessionID, req.UserID)
	if err != nil {
		c.logger.Error("failed to get or create conversation", "session_id", sessionID, "error", err)
		return c.apology(req, sessionID, uuid.Nil, err, start)
	}

	// History before saving the inbound turn.
	history, err := c.conversations.History(ctx, sessionID, c.historyLimit)
	if err != nil {
		c.logger.Error("failed to load history", "session_id", sessionID, "error", err)
		return c.apology(req, sessionID, conv.ID, err, start)
	}
	c.logger.Info("processing message",
		"session_id", sessionID,
		"history_length", len(history),
	)

	if err := c.conversations.AddMessages(ctx, conv.ID, []*conversation.Message{
		{Role: conversation.RoleUser, Content: req.Message, Success: true},
	}); err != nil {
		c.logger.Error("failed to save user message", "session_id", sessionID, "error", err)
		return c.apology(req, sessionID, conv.ID, err, start)
	}

	tracker := usage.NewTracker()
	agentCtx := ctx
	if c.deps != nil {
		d := *c.deps
		d.UserID = req.UserID
		d.Usage = tracker
		agentCtx = tools.ContextWithDeps(ctx, &d)
	}

	resp, err := c.agent.Execute(agentCtx, req.Message, toModelMessages(history), tracker)
	if err != nil {
		c.logger.Error("orchestrator failed", "session_id", sessionID, "error", err)
		c.saveErrorTurn(ctx, conv.ID, err, start)
		return c.apology(req, sessionID, conv.ID, err, start)
	}

	elapsed := time.Since(start).Milliseconds()
	totals := tracker.Totals()

	if err := c.conversations.AddMessages(ctx, conv.ID, []*conversation.Message{{
		Role:           conversation.RoleModel,
		Content:        resp.Text,
		Intent:         IntentCampus,
		Success:        true,
		InputTokens:    totals.InputTokens,
		OutputTokens:   totals.OutputTokens,
		ResponseTimeMS: elapsed,
	}}); err != nil {
		// The user already has their answer; losing the stored turn is
		// not worth failing the request over.
		c.logger.Error("failed to save model turn", "session_id", sessionID, "error", err)
	}

	return Response{
		Response:       resp.Text,
		AgentName:      orchestrator.AgentName,
		Intent:         IntentCampus,
		AgentUsed:      orchestrator.AgentName,
		Success:        true,
		UserID:         req.UserID,
		SessionID:      sessionID,
		ConversationID: conv.ID,
		Moderated:      true,
		Usage:          &totals,
		ResponseTimeMS: elapsed,
	}
}

// saveErrorTurn records the failed turn, best effort: a secondary
// persistence failure must not mask the primary error.
func (c *Copilot) saveErrorTurn(ctx context.Context, conversationID uuid.UUID, cause error, start time.Time) {
	err := c.conversations.AddMessages(ctx, conversationID, []*conversation.Message{{
		Role:           conversation.RoleModel,
		Content:        ApologyMessage,
		Intent:         IntentError,
		Success:        false,
		ErrorMessage:   cause.Error(),
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}})
	if err != nil {
		c.logger.Error("failed to save error turn", "error", err)
	}
}

func (c *Copilot) apology(req Request, sessionID string, conversationID uuid.UUID, cause error, start time.Time) Response {
	return Response{
		Response:       ApologyMessage,
		AgentName:      orchestrator.AgentName,
		Intent:         IntentError,
		AgentUsed:      orchestrator.AgentName,
		Success:        false,
		Error:          cause.Error(),
		UserID:         req.UserID,
		SessionID:      sessionID,
		ConversationID: conversationID,
		Moderated:      true,
		ResponseTimeMS: time.Since(start).Milliseconds(),
	}
}

// toModelMessages converts stored turns into model messages. Roles
// other than user map to the model role; stored tool/system turns are
// not replayed as such.
func toModelMessages(history []*conversation.Message) []*ai.Message {
	if len(history) == 0 {
		return nil
	}
	msgs := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		role := ai.RoleModel
		if m.Role == conversation.RoleUser {
			role = ai.RoleUser
		}
		msgs = append(msgs, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(m.Content)},
		})
	}
	return msgs
}
