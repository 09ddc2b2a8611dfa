// Package orchestrator runs the campus copilot's agentic loop: it
// enriches the user's message with datetime and knowledge base context,
// hands the result to the model with every campus tool attached, and
// lets the model decide which tools to call.
//
// The loop is wrapped in three resilience layers, applied in order:
// a proactive rate limiter, a circuit breaker, and exponential-backoff
// retries for transient model errors.
package orchestrator
