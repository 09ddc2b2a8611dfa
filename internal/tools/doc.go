// Package tools implements the campus data tools the orchestrator exposes
// to the model: events, departments, bus routes, cafeteria menus, exam
// results, and user profiles.
//
// Every tool follows the same contract: the handler never returns a Go
// error for business failures. Upstream HTTP errors, malformed payloads,
// and missing identity all come back inside the Result envelope so the
// model can read the failure and answer around it instead of aborting the
// generation.
//
// Per-request state (HTTP client, campus API base URL, authenticated user,
// usage tracker) travels through the context via ContextWithDeps, because
// tools are registered once with Genkit at startup but executed on behalf
// of many concurrent requests.
package tools
