// Package usage accumulates model token counts and request totals across a
// single chat turn. One Tracker is created per request and threaded through
// the orchestrator; tool retries and multi-step generations all add into the
// same totals.
package usage

import "sync"

// Tracker accumulates usage counters. Safe for concurrent use; parallel
// tool calls may report from multiple goroutines.
type Tracker struct {
	mu            sync.Mutex
	requests      int
	inputTokens   int
	outputTokens  int
	toolCalls     int
	failedTools   int
	retryAttempts int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// AddGeneration records one model round trip.
func (t *Tracker) AddGeneration(inputTokens, outputTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests++
	t.inputTokens += inputTokens
	t.outputTokens += outputTokens
}

// AddToolCall records a tool invocation; failed marks invocations whose
// payload carried an error envelope.
func (t *Tracker) AddToolCall(failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toolCalls++
	if failed {
		t.failedTools++
	}
}

// AddRetry records a retried generation attempt.
func (t *Tracker) AddRetry() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retryAttempts++
}

// Totals is a point-in-time copy of the counters.
type Totals struct {
	Requests      int `json:"requests"`
	InputTokens   int `json:"input_tokens"`
	OutputTokens  int `json:"output_tokens"`
	TotalTokens   int `json:"total_tokens"`
	ToolCalls     int `json:"tool_calls"`
	FailedTools   int `json:"failed_tools"`
	RetryAttempts int `json:"retry_attempts"`
}

// Totals returns a snapshot of the accumulated counters.
func (t *Tracker) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Totals{
		Requests:      t.requests,
		InputTokens:   t.inputTokens,
		OutputTokens:  t.outputTokens,
		TotalTokens:   t.inputTokens + t.outputTokens,
		ToolCalls:     t.toolCalls,
		FailedTools:   t.failedTools,
		RetryAttempts: t.retryAttempts,
	}
}
