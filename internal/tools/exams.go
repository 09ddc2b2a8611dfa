package tools

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/nexora/campus-copilot/internal/log"
)

// ExamResultsName is the tool name for the exam results family.
const ExamResultsName = "getUserExamResults"

// Exams provides the exam results tool. It is identity-bound: the user ID
// comes from the authenticated request context, never from the model.
type Exams struct {
	logger log.Logger
}

// NewExams creates the exams toolset.
func NewExams(logger log.Logger) (*Exams, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Exams{logger: logger}, nil
}

// RegisterExams registers the exam tools with Genkit.
func RegisterExams(g *genkit.Genkit, xt *Exams) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if xt == nil {
		return nil, fmt.Errorf("Exams is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, ExamResultsName,
			"Fetch the current user's exam results from the campus exam API. "+
				"The user identity is taken from the session automatically; no input is needed. "+
				"Returns: the user's exam results with subjects and grades. "+
				"Use this when the user asks about their own grades, results, or GPA.",
			xt.Results),
	}, nil
}

// Results posts the session's user ID to the exam results endpoint.
func (x *Exams) Results(ctx *ai.ToolContext, _ ExamResultsInput) (Result, error) {
	x.logger.Debug("getUserExamResults called")

	d := DepsFromContext(ctx)
	if d == nil {
		return Fail("tool dependencies not configured"), nil
	}

	if d.UserID == "" {
		return Fail("User ID is required to fetch exam results. Please ensure you are logged in."), nil
	}

	userID, err := strconv.Atoi(d.UserID)
	if err != nil {
		return Fail("Invalid user ID format."), nil
	}

	res := request(ctx, d, x.logger, http.MethodPost,
		apiURL(d, "/user/exam-result"),
		map[string]any{"user_id": userID})
	if !res.Success {
		x.logger.Error("failed to fetch exam results", "user_id", userID, "error", res.Error)
		return res, nil
	}

	x.logger.Info("fetched exam results", "user_id", userID)
	return Ok(map[string]any{
		"user_id":      userID,
		"exam_results": res.Data,
	}), nil
}
