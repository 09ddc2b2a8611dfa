package tools

import "fmt"

// Result is the envelope every tool returns to the model. Success carries
// the payload in Data; failure carries a message in Error. Handlers return
// a Go error only for context cancellation, never for business failures.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Ok wraps a payload in a successful Result.
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed Result with a formatted message.
func Fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}
