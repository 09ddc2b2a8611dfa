package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/nexora/campus-copilot/internal/clock"
	"github.com/nexora/campus-copilot/internal/knowledge"
	"github.com/nexora/campus-copilot/internal/log"
	"github.com/nexora/campus-copilot/internal/usage"
)

const (
	// AgentName identifies this agent in persisted turns and responses.
	AgentName = "Nexora Campus Copilot"

	// EmptyResponseMessage is returned when the model produces no text
	// and no tool requests.
	EmptyResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

	// retrievalTimeout bounds knowledge base retrieval so a slow search
	// cannot stall the whole chat request.
	retrievalTimeout = 5 * time.Second
)

// systemPrompt is the standing instruction set for the copilot.
const systemPrompt = `You are Nexora Campus Copilot, the assistant for university students and staff.

You help with campus life: events, departments, bus schedules, cafeteria menus, exam results, and general university questions. You have tools for each of these; call whichever tools the query needs, including several in one turn for multi-part questions.

Guidelines:
- Use the datetime context provided with each message for anything time-sensitive ("today", "tomorrow", "this weekend").
- When knowledge base context is provided, prefer it over general knowledge and answer from it.
- Exam results and profile data come from the user's own session; never ask for another person's ID.
- If a tool reports an error, tell the user the information is unavailable right now rather than inventing an answer.
- Stay on university topics. Politely redirect unrelated requests back to campus matters.
- Be concise and friendly.`

// Retriever supplies knowledge base context. *knowledge.Service
// satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]knowledge.Result, error)
	Loaded(ctx context.Context) bool
}

// Response is the result of one agent execution.
type Response struct {
	Text         string
	ToolRequests []*ai.ToolRequest
}

// Config carries the agent's dependencies and tuning knobs.
type Config struct {
	Genkit    *genkit.Genkit
	Retriever Retriever // nil disables knowledge base context
	Clock     *clock.Clock
	Logger    log.Logger
	Tools     []ai.Tool

	ModelName   string // full Genkit model name, e.g. "googleai/gemini-2.5-flash"
	Temperature float64
	MaxTokens   int
	MaxTurns    int // maximum agentic loop turns

	RetryConfig          RetryConfig
	CircuitBreakerConfig CircuitBreakerConfig
	RateLimiter          *rate.Limiter // nil = default limiter
	TokenBudget          TokenBudget
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		return errors.New("clock is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	return nil
}

// Agent is the copilot's conversational core. It is stateless across
// requests; history is supplied by the caller on every Execute.
//
// All configuration is captured immutably at construction, so an Agent
// is safe for concurrent use.
type Agent struct {
	modelName   string
	temperature float64
	maxTokens   int
	maxTurns    int

	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter
	tokenBudget    TokenBudget

	g         *genkit.Genkit
	retriever Retriever
	clock     *clock.Clock
	logger    log.Logger
	toolRefs  []ai.ToolRef
	toolNames string
}

// New creates an Agent from cfg, applying defaults for zero-valued
// resilience settings.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	cbConfig := cfg.CircuitBreakerConfig
	if cbConfig.FailureThreshold == 0 {
		cbConfig = DefaultCircuitBreakerConfig()
	}

	tokenBudget := cfg.TokenBudget
	if tokenBudget.MaxHistoryTokens == 0 {
		tokenBudget = DefaultTokenBudget()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	a := &Agent{
		modelName:   cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxTurns:    maxTurns,

		retryConfig:    retryConfig,
		circuitBreaker: NewCircuitBreaker(cbConfig),
		rateLimiter:    rl,
		tokenBudget:    tokenBudget,

		g:         cfg.Genkit,
		retriever: cfg.Retriever,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		toolRefs:  toolRefs,
		toolNames: strings.Join(names, ", "),
	}

	a.logger.Info("orchestrator agent initialized",
		"model", a.modelName,
		"totalTools", len(a.toolRefs),
		"maxTurns", a.maxTurns,
	)
	return a, nil
}

// Execute runs one agentic turn: the message is enhanced with datetime
// and knowledge base context, sent to the model with all tools
// attached, and the final text returned. history must be in
// chronological order; tracker may be nil.
func (a *Agent) Execute(ctx context.Context, message string, history []*ai.Message, tracker *usage.Tracker) (*Response, error) {
	enhanced := a.enhanceMessage(ctx, message)

	// Deep copy history: Genkit mutates message content in place, so
	// concurrent executions sharing message objects would race.
	messages := deepCopyMessages(history)
	messages = a.truncateHistory(messages, a.tokenBudget.MaxHistoryTokens)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(enhanced)))

	a.logger.Debug("executing agent",
		"tools", a.toolNames,
		"maxTurns", a.maxTurns,
		"historyLength", len(history),
		"queryLength", len(message),
	)

	if err := a.circuitBreaker.Allow(); err != nil {
		a.logger.Warn("circuit breaker is open, rejecting request",
			"state", a.circuitBreaker.State().String())
		return nil, fmt.Errorf("service unavailable: %w", err)
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(a.toolRefs...),
		ai.WithMaxTurns(a.maxTurns),
		ai.WithConfig(map[string]any{
			"temperature":     a.temperature,
			"maxOutputTokens": a.maxTokens,
		}),
	}

	resp, err := a.executeWithRetry(ctx, opts, tracker)
	if err != nil {
		a.circuitBreaker.Failure()
		return nil, err
	}
	a.circuitBreaker.Success()

	if tracker != nil && resp.Usage != nil {
		tracker.AddGeneration(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" && len(resp.ToolRequests()) == 0 {
		a.logger.Warn("model returned empty response with no tool requests")
		text = EmptyResponseMessage
	}

	return &Response{
		Text:         text,
		ToolRequests: resp.ToolRequests(),
	}, nil
}

// enhanceMessage prefixes the user's message with the current datetime
// block and, when available, knowledge base context.
func (a *Agent) enhanceMessage(ctx context.Context, message string) string {
	parts := []string{a.clock.Snapshot().PromptBlock()}

	if kb := a.knowledgeContext(ctx, message); kb != "" {
		parts = append(parts, kb)
	}

	parts = append(parts, "**User Query:** "+message)
	return strings.Join(parts, "\n\n")
}

// knowledgeContext retrieves and formats knowledge base context for the
// query. Every failure path returns "" so retrieval problems never
// block the chat (graceful degradation).
func (a *Agent) knowledgeContext(ctx context.Context, query string) string {
	if a.retriever == nil {
		return ""
	}

	rctx, cancel := context.WithTimeout(ctx, retrievalTimeout)
	defer cancel()

	if !a.retriever.Loaded(rctx) {
		a.logger.Warn("knowledge base is not loaded, skipping context retrieval")
		return ""
	}

	results, err := a.retriever.Retrieve(rctx, query)
	if err != nil {
		if rctx.Err() != nil {
			a.logger.Debug("knowledge retrieval canceled or timed out (continuing without context)",
				"error", err, "timeout", retrievalTimeout)
		} else {
			a.logger.Warn("knowledge retrieval failed (continuing without context)", "error", err)
		}
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	parts := []string{"**Knowledge Base Context:**\n"}
	for i, r := range results {
		parts = append(parts,
			fmt.Sprintf("**Source %d: %s (Relevance: %.2f)**", i+1, r.Source, r.Similarity),
			r.Content,
			"---",
		)
	}
	parts = append(parts, "\n**End of Knowledge Base Context**\n")

	a.logger.Debug("retrieved knowledge context", "results", len(results))
	return strings.Join(parts, "\n")
}

// deepCopyMessages creates independent copies of messages and their
// parts so the originals survive Genkit's in-place rendering.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies an ai.Part. ToolRequest.Input and
// ToolResponse.Output are copied by reference; Genkit only mutates the
// Content slice, not tool payloads.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
