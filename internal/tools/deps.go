package tools

import (
	"context"
	"net/http"

	"github.com/nexora/campus-copilot/internal/usage"
)

// Deps carries the per-request state tools need to execute. Tools are
// registered with Genkit once at startup, so anything request-scoped has
// to arrive through the context.
type Deps struct {
	// Client issues requests to the campus data API.
	Client *http.Client

	// BaseURL is the campus data API root, e.g. "http://localhost:8001/api".
	BaseURL string

	// UserID is the authenticated user, empty for anonymous sessions.
	// Identity-bound tools (exam results, user profile) require it.
	UserID string

	// Usage accumulates tool call counts for the request, may be nil.
	Usage *usage.Tracker
}

// depsKey is an unexported context key for zero-allocation type safety.
type depsKey struct{}

// ContextWithDeps stores request-scoped tool dependencies in the context.
// The service facade injects these before each orchestrator run.
func ContextWithDeps(ctx context.Context, d *Deps) context.Context {
	return context.WithValue(ctx, depsKey{}, d)
}

// DepsFromContext retrieves tool dependencies from the context.
// Returns nil if none were injected.
func DepsFromContext(ctx context.Context) *Deps {
	d, _ := ctx.Value(depsKey{}).(*Deps)
	return d
}
