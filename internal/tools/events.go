package tools

import (
	"fmt"
	"net/http"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/nexora/campus-copilot/internal/log"
)

// Tool names for the events family.
const (
	FetchEventsName  = "fetchEvents"
	SearchEventsName = "searchEvents"
)

// Events provides campus event tools.
type Events struct {
	logger log.Logger
}

// NewEvents creates the events toolset.
func NewEvents(logger log.Logger) (*Events, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Events{logger: logger}, nil
}

// RegisterEvents registers the event tools with Genkit.
func RegisterEvents(g *genkit.Genkit, et *Events) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if et == nil {
		return nil, fmt.Errorf("Events is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, FetchEventsName,
			"Fetch events from the campus events API. "+
				"Pass event_id to fetch one event, or 0 for all events. "+
				"Returns: event records with title, date, venue, and organizer details. "+
				"Use this for: questions about what is happening on campus, event dates, and venues.",
			et.Fetch),
		genkit.DefineTool(g, SearchEventsName,
			"Search campus events by keyword or topic. "+
				"Matches the query against event titles, descriptions, categories, venues, and organizers. "+
				"Returns: only the events matching the query, with a total count. "+
				"Use this when the user asks about a specific kind of event rather than the full schedule.",
			et.Search),
	}, nil
}

// Fetch retrieves events from the campus API.
func (e *Events) Fetch(ctx *ai.ToolContext, input FetchEventsInput) (Result, error) {
	e.logger.Debug("fetchEvents called", "event_id", input.EventID)

	d := DepsFromContext(ctx)
	if d == nil {
		return Fail("tool dependencies not configured"), nil
	}

	return request(ctx, d, e.logger, http.MethodGet, apiURL(d, "/event/data/%d", input.EventID), nil), nil
}

// Search fetches all events and filters them by the query. Matching is a
// case-insensitive substring test over the event's textual fields.
func (e *Events) Search(ctx *ai.ToolContext, input SearchEventsInput) (Result, error) {
	e.logger.Debug("searchEvents called", "query", input.Query)

	all, err := e.Fetch(ctx, FetchEventsInput{EventID: 0})
	if err != nil || !all.Success {
		return all, err
	}

	events := itemsFromPayload(all.Data, "events", "data")

	var matched []any
	for _, item := range events {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if matchesAny(obj, input.Query, "title", "name", "description", "category", "venue", "location", "organizer") {
			matched = append(matched, obj)
		}
	}

	e.logger.Info("searchEvents complete", "query", input.Query, "matches", len(matched))
	return Ok(map[string]any{
		"query":       input.Query,
		"events":      matched,
		"total_found": len(matched),
	}), nil
}
