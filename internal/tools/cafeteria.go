package tools

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/nexora/campus-copilot/internal/log"
)

// Tool names for the cafeteria family.
const (
	FetchCafeteriaMenuName = "fetchCafeteriaMenu"
	SearchMenuItemsName    = "searchMenuItems"
)

// Cafeteria provides campus cafeteria tools.
type Cafeteria struct {
	logger log.Logger
}

// NewCafeteria creates the cafeteria toolset.
func NewCafeteria(logger log.Logger) (*Cafeteria, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Cafeteria{logger: logger}, nil
}

// RegisterCafeteria registers the cafeteria tools with Genkit.
func RegisterCafeteria(g *genkit.Genkit, ct *Cafeteria) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if ct == nil {
		return nil, fmt.Errorf("Cafeteria is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, FetchCafeteriaMenuName,
			"Fetch the menu for a campus cafeteria. "+
				"Pass cafeteria_id, or 0 for the main cafeteria. "+
				"Returns: the menu with meals, prices, and categories as served by the campus API. "+
				"Use this for: questions about what is being served today.",
			ct.Fetch),
		genkit.DefineTool(g, SearchMenuItemsName,
			"Search cafeteria menu items by name, ingredient, or category. "+
				"Returns: only the menu items matching the query, with a total count. "+
				"Use this for questions like 'is there anything vegetarian today'.",
			ct.SearchItems),
	}, nil
}

// Fetch retrieves a cafeteria menu from the campus API.
func (c *Cafeteria) Fetch(ctx *ai.ToolContext, input FetchCafeteriaMenuInput) (Result, error) {
	c.logger.Debug("fetchCafeteriaMenu called", "cafeteria_id", input.CafeteriaID)

	d := DepsFromContext(ctx)
	if d == nil {
		return Fail("tool dependencies not configured"), nil
	}

	return request(ctx, d, c.logger, http.MethodGet, apiURL(d, "/cafeteria/menu/%d", input.CafeteriaID), nil), nil
}

// SearchItems fetches the menu and filters items by the query. The campus
// API is loose about shape: menus arrive as bare arrays, or under "menu",
// "items", or "meals" keys, and items may be plain strings.
func (c *Cafeteria) SearchItems(ctx *ai.ToolContext, input SearchMenuItemsInput) (Result, error) {
	c.logger.Debug("searchMenuItems called", "query", input.Query, "cafeteria_id", input.CafeteriaID)

	menu, err := c.Fetch(ctx, FetchCafeteriaMenuInput{CafeteriaID: input.CafeteriaID})
	if err != nil || !menu.Success {
		return menu, err
	}

	q := strings.ToLower(input.Query)
	var matched []any
	for _, item := range itemsFromPayload(menu.Data, "menu", "items", "meals") {
		switch v := item.(type) {
		case map[string]any:
			if matchesAny(v, input.Query, "name", "description", "category") {
				matched = append(matched, v)
				continue
			}
			// ingredients may be an array; stringify for the substring test.
			if raw, ok := v["ingredients"]; ok {
				if strings.Contains(strings.ToLower(fmt.Sprintf("%v", raw)), q) {
					matched = append(matched, v)
				}
			}
		case string:
			if strings.Contains(strings.ToLower(v), q) {
				matched = append(matched, map[string]any{"name": v})
			}
		}
	}

	c.logger.Info("searchMenuItems complete", "query", input.Query, "matches", len(matched))
	return Ok(map[string]any{
		"query":        input.Query,
		"cafeteria_id": input.CafeteriaID,
		"menu_items":   matched,
		"total_count":  len(matched),
	}), nil
}
