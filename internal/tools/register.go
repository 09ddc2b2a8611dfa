package tools

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/nexora/campus-copilot/internal/log"
)

// RegisterAll builds every campus toolset and registers their tools with
// Genkit. Registration happens once at startup; the returned slice is what
// the orchestrator passes to each generation as tool references.
func RegisterAll(g *genkit.Genkit, logger log.Logger) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var all []ai.Tool

	events, err := NewEvents(logger.With("toolset", "events"))
	if err != nil {
		return nil, fmt.Errorf("creating events toolset: %w", err)
	}
	eventTools, err := RegisterEvents(g, events)
	if err != nil {
		return nil, fmt.Errorf("registering events tools: %w", err)
	}
	all = append(all, eventTools...)

	departments, err := NewDepartments(logger.With("toolset", "departments"))
	if err != nil {
		return nil, fmt.Errorf("creating departments toolset: %w", err)
	}
	departmentTools, err := RegisterDepartments(g, departments)
	if err != nil {
		return nil, fmt.Errorf("registering departments tools: %w", err)
	}
	all = append(all, departmentTools...)

	bus, err := NewBus(logger.With("toolset", "bus"))
	if err != nil {
		return nil, fmt.Errorf("creating bus toolset: %w", err)
	}
	busTools, err := RegisterBus(g, bus)
	if err != nil {
		return nil, fmt.Errorf("registering bus tools: %w", err)
	}
	all = append(all, busTools...)

	cafeteria, err := NewCafeteria(logger.With("toolset", "cafeteria"))
	if err != nil {
		return nil, fmt.Errorf("creating cafeteria toolset: %w", err)
	}
	cafeteriaTools, err := RegisterCafeteria(g, cafeteria)
	if err != nil {
		return nil, fmt.Errorf("registering cafeteria tools: %w", err)
	}
	all = append(all, cafeteriaTools...)

	exams, err := NewExams(logger.With("toolset", "exams"))
	if err != nil {
		return nil, fmt.Errorf("creating exams toolset: %w", err)
	}
	examTools, err := RegisterExams(g, exams)
	if err != nil {
		return nil, fmt.Errorf("registering exam tools: %w", err)
	}
	all = append(all, examTools...)

	user, err := NewUser(logger.With("toolset", "user"))
	if err != nil {
		return nil, fmt.Errorf("creating user toolset: %w", err)
	}
	userTools, err := RegisterUser(g, user)
	if err != nil {
		return nil, fmt.Errorf("registering user tools: %w", err)
	}
	all = append(all, userTools...)

	logger.Info("campus tools registered", "count", len(all))
	return all, nil
}
