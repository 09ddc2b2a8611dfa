package tools

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/nexora/campus-copilot/internal/log"
)

// UserDataName is the tool name for the user profile family.
const UserDataName = "getUserData"

// User provides the user profile tool. Identity-bound like Exams.
type User struct {
	logger log.Logger
}

// NewUser creates the user toolset.
func NewUser(logger log.Logger) (*User, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &User{logger: logger}, nil
}

// RegisterUser registers the user tools with Genkit.
func RegisterUser(g *genkit.Genkit, ut *User) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if ut == nil {
		return nil, fmt.Errorf("User is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, UserDataName,
			"Fetch the current user's profile from the campus user API. "+
				"The user identity is taken from the session automatically; no input is needed. "+
				"Returns: profile fields such as name, program, and enrollment details. "+
				"Use this when the user asks about their own account or profile.",
			ut.Data),
	}, nil
}

// Data posts the session's user ID to the user fetch endpoint.
func (u *User) Data(ctx *ai.ToolContext, _ UserDataInput) (Result, error) {
	u.logger.Debug("getUserData called")

	d := DepsFromContext(ctx)
	if d == nil {
		return Fail("tool dependencies not configured"), nil
	}

	if d.UserID == "" {
		return Fail("User ID is required to fetch user data. Please ensure you are logged in."), nil
	}

	userID, err := strconv.Atoi(d.UserID)
	if err != nil {
		return Fail("Invalid user ID format."), nil
	}

	res := request(ctx, d, u.logger, http.MethodPost,
		apiURL(d, "/user/fetch"),
		map[string]any{"user_id": userID})
	if !res.Success {
		u.logger.Error("failed to fetch user data", "user_id", userID, "error", res.Error)
		return res, nil
	}

	u.logger.Info("fetched user data", "user_id", userID)
	return Ok(map[string]any{
		"user_id":   userID,
		"user_data": res.Data,
	}), nil
}
