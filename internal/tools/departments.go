package tools

import (
	"fmt"
	"net/http"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/nexora/campus-copilot/internal/log"
)

// Tool names for the departments family.
const (
	FetchDepartmentsName  = "fetchDepartments"
	SearchDepartmentsName = "searchDepartments"
)

// Departments provides campus department tools.
type Departments struct {
	logger log.Logger
}

// NewDepartments creates the departments toolset.
func NewDepartments(logger log.Logger) (*Departments, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Departments{logger: logger}, nil
}

// RegisterDepartments registers the department tools with Genkit.
func RegisterDepartments(g *genkit.Genkit, dt *Departments) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if dt == nil {
		return nil, fmt.Errorf("Departments is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, FetchDepartmentsName,
			"Fetch department data from the campus departments API. "+
				"Pass department_id to fetch one department, or 0 for all departments. "+
				"Returns: department records with name, description, and contact details. "+
				"Use this for: questions about faculties, offices, and academic departments.",
			dt.Fetch),
		genkit.DefineTool(g, SearchDepartmentsName,
			"Search campus departments by name or description keyword. "+
				"Returns: only the departments matching the query, with a total count. "+
				"Use this when the user asks about a specific department rather than the full directory.",
			dt.Search),
	}, nil
}

// Fetch retrieves departments from the campus API.
func (d *Departments) Fetch(ctx *ai.ToolContext, input FetchDepartmentsInput) (Result, error) {
	d.logger.Debug("fetchDepartments called", "department_id", input.DepartmentID)

	deps := DepsFromContext(ctx)
	if deps == nil {
		return Fail("tool dependencies not configured"), nil
	}

	return request(ctx, deps, d.logger, http.MethodGet, apiURL(deps, "/department/data/%d", input.DepartmentID), nil), nil
}

// Search fetches all departments and filters them by the query.
func (d *Departments) Search(ctx *ai.ToolContext, input SearchDepartmentsInput) (Result, error) {
	d.logger.Debug("searchDepartments called", "query", input.Query)

	all, err := d.Fetch(ctx, FetchDepartmentsInput{DepartmentID: 0})
	if err != nil || !all.Success {
		return all, err
	}

	departments := itemsFromPayload(all.Data, "departments", "data")

	var matched []any
	for _, item := range departments {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if matchesAny(obj, input.Query, "name", "department_name", "description", "head", "faculty") {
			matched = append(matched, obj)
		}
	}

	d.logger.Info("searchDepartments complete", "query", input.Query, "matches", len(matched))
	return Ok(map[string]any{
		"query":       input.Query,
		"departments": matched,
		"total_found": len(matched),
	}), nil
}
