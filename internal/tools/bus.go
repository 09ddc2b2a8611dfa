package tools

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/nexora/campus-copilot/internal/log"
)

// Tool names for the bus routes family.
const (
	FetchBusRoutesName    = "fetchBusRoutes"
	SearchBusRoutesName   = "searchBusRoutes"
	RoutesByStatusName    = "getRoutesByStatus"
	RoutesByTimeRangeName = "getRoutesByTimeRange"
)

// Bus provides campus bus route tools.
type Bus struct {
	logger log.Logger
}

// NewBus creates the bus toolset.
func NewBus(logger log.Logger) (*Bus, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Bus{logger: logger}, nil
}

// RegisterBus registers the bus route tools with Genkit.
func RegisterBus(g *genkit.Genkit, bt *Bus) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if bt == nil {
		return nil, fmt.Errorf("Bus is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, FetchBusRoutesName,
			"Fetch bus routes from the campus bus route API. "+
				"Pass route_id to fetch one route, or 0 for all routes. "+
				"Returns: route records with route name, number, start point, end point, departure time, and status. "+
				"Use this for: questions about campus shuttle and bus schedules.",
			bt.Fetch),
		genkit.DefineTool(g, SearchBusRoutesName,
			"Search bus routes by route name, route number, start point, or end point. "+
				"Returns: only the routes matching the query, with a total count.",
			bt.Search),
		genkit.DefineTool(g, RoutesByStatusName,
			"Get bus routes filtered by their current status, e.g. 'On Time', 'Delayed', 'Cancelled'. "+
				"Matching is a case-insensitive substring test, so 'delay' matches 'Delayed'.",
			bt.ByStatus),
		genkit.DefineTool(g, RoutesByTimeRangeName,
			"Get bus routes departing within a time range. "+
				"start_time and end_time use HH:MM format, e.g. '07:00' to '08:30'. The range is inclusive. "+
				"Use this for questions like 'what buses leave between 5pm and 6pm'.",
			bt.ByTimeRange),
	}, nil
}

// Fetch retrieves bus routes from the campus API.
func (b *Bus) Fetch(ctx *ai.ToolContext, input FetchBusRoutesInput) (Result, error) {
	b.logger.Debug("fetchBusRoutes called", "route_id", input.RouteID)

	d := DepsFromContext(ctx)
	if d == nil {
		return Fail("tool dependencies not configured"), nil
	}

	return request(ctx, d, b.logger, http.MethodGet, apiURL(d, "/bus/route/%d", input.RouteID), nil), nil
}

// Search fetches all routes and filters them by the query.
func (b *Bus) Search(ctx *ai.ToolContext, input SearchBusRoutesInput) (Result, error) {
	b.logger.Debug("searchBusRoutes called", "query", input.Query)

	all, err := b.Fetch(ctx, FetchBusRoutesInput{RouteID: 0})
	if err != nil || !all.Success {
		return all, err
	}

	var matched []any
	for _, item := range itemsFromPayload(all.Data, "routes", "data") {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if matchesAny(obj, input.Query, "route_name", "route_number", "start_point", "end_point") {
			matched = append(matched, obj)
		}
	}

	b.logger.Info("searchBusRoutes complete", "query", input.Query, "matches", len(matched))
	return Ok(map[string]any{
		"query":       input.Query,
		"routes":      matched,
		"total_found": len(matched),
	}), nil
}

// ByStatus fetches all routes and keeps those whose status contains the
// requested status, case-insensitively.
func (b *Bus) ByStatus(ctx *ai.ToolContext, input RoutesByStatusInput) (Result, error) {
	b.logger.Debug("getRoutesByStatus called", "status", input.Status)

	all, err := b.Fetch(ctx, FetchBusRoutesInput{RouteID: 0})
	if err != nil || !all.Success {
		return all, err
	}

	want := strings.ToLower(input.Status)
	var matched []any
	for _, item := range itemsFromPayload(all.Data, "routes", "data") {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(fieldString(obj, "status")), want) {
			matched = append(matched, obj)
		}
	}

	b.logger.Info("getRoutesByStatus complete", "status", input.Status, "matches", len(matched))
	return Ok(map[string]any{
		"status":      input.Status,
		"routes":      matched,
		"total_found": len(matched),
	}), nil
}

// ByTimeRange fetches all routes and keeps those departing within
// [start_time, end_time]. Departure times are normalized to zero-padded
// HH:MM before comparing, so "7:30" and "07:30" land in the same range.
func (b *Bus) ByTimeRange(ctx *ai.ToolContext, input RoutesByTimeRangeInput) (Result, error) {
	b.logger.Debug("getRoutesByTimeRange called", "start", input.StartTime, "end", input.EndTime)

	start, ok := normalizeClock(input.StartTime)
	if !ok {
		return Fail("invalid start_time %q, expected HH:MM", input.StartTime), nil
	}
	end, ok := normalizeClock(input.EndTime)
	if !ok {
		return Fail("invalid end_time %q, expected HH:MM", input.EndTime), nil
	}

	all, err := b.Fetch(ctx, FetchBusRoutesInput{RouteID: 0})
	if err != nil || !all.Success {
		return all, err
	}

	var matched []any
	for _, item := range itemsFromPayload(all.Data, "routes", "data") {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		dep, ok := normalizeClock(fieldString(obj, "departure_time"))
		if !ok {
			continue
		}
		// Zero-padded HH:MM strings order the same lexicographically
		// as chronologically.
		if start <= dep && dep <= end {
			matched = append(matched, obj)
		}
	}

	b.logger.Info("getRoutesByTimeRange complete",
		"start", input.StartTime, "end", input.EndTime, "matches", len(matched))
	return Ok(map[string]any{
		"start_time":  input.StartTime,
		"end_time":    input.EndTime,
		"routes":      matched,
		"total_found": len(matched),
	}), nil
}

// normalizeClock parses a clock string like "7:30", "07:30" or "07:30:00"
// and returns it as zero-padded "HH:MM". Seconds are discarded.
func normalizeClock(s string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return "", false
	}

	var hour, minute int
	if _, err := fmt.Sscanf(parts[0], "%d", &hour); err != nil {
		return "", false
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &minute); err != nil {
		return "", false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", false
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), true
}
