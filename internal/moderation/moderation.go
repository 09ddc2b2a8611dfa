// Package moderation screens user messages before the model ever sees
// them. It prefers the OpenAI moderation endpoint when an API key is
// configured and degrades to a static keyword scan otherwise. The gate
// fails open: a moderation outage must never take the assistant down.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nexora/campus-copilot/internal/log"
)

const (
	openAIEndpoint = "https://api.openai.com/v1/moderations"
	requestTimeout = 10 * time.Second
)

// fallbackKeywords drives the keyword scan used when the remote
// endpoint is unavailable. Matching is case-insensitive substring.
var fallbackKeywords = map[string][]string{
	"hate":       {"hate", "racist", "nazi", "white supremacy"},
	"violence":   {"kill", "murder", "bomb", "terrorist"},
	"sexual":     {"fuck", "tits", "porn", "nude"},
	"harassment": {"harass", "bully", "threaten"},
	"self_harm":  {"suicide", "self harm", "cut myself"},
}

// Verdict is the outcome of a moderation check.
type Verdict struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
	Reason     string          `json:"reason,omitempty"`
	Confidence float64         `json:"confidence,omitempty"`
}

// Gate checks content against the configured moderation backends.
type Gate struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	logger   log.Logger
}

// New creates a moderation gate. An empty apiKey is valid: the gate
// then runs keyword-only. model names the remote moderation model;
// empty lets the endpoint pick its default.
func New(apiKey, model string, logger log.Logger) (*Gate, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Gate{
		apiKey:   apiKey,
		model:    model,
		endpoint: openAIEndpoint,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}, nil
}

// Moderate checks content for policy violations. It never returns an
// error: when every backend fails the content is allowed through with
// an explanatory reason.
func (m *Gate) Moderate(ctx context.Context, content string) Verdict {
	if m.apiKey != "" {
		v, err := m.remote(ctx, content)
		if err == nil {
			return v
		}
		m.logger.Error("remote moderation failed, using keyword fallback", "error", err)
	} else {
		m.logger.Warn("moderation API key not configured, using keyword filtering")
	}

	if v, ok := m.keyword(content); ok {
		return v
	}

	m.logger.Warn("moderation unavailable, allowing content", "preview", preview(content))
	return Verdict{
		Flagged:    false,
		Categories: map[string]bool{},
		Reason:     "Moderation service unavailable",
	}
}

type remoteResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

func (m *Gate) remote(ctx context.Context, content string) (Verdict, error) {
	payload := map[string]string{"input": content}
	if m.model != "" {
		payload["model"] = m.model
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Verdict{}, fmt.Errorf("encoding moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("building moderation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("calling moderation endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("moderation endpoint returned status %d", resp.StatusCode)
	}

	var parsed remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Verdict{}, fmt.Errorf("decoding moderation response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return Verdict{}, fmt.Errorf("moderation response contained no results")
	}

	r := parsed.Results[0]
	v := Verdict{
		Flagged:    r.Flagged,
		Categories: r.Categories,
	}
	if v.Categories == nil {
		v.Categories = map[string]bool{}
	}
	if r.Flagged {
		var flagged []string
		for cat, on := range r.Categories {
			if on {
				flagged = append(flagged, cat)
			}
		}
		v.Reason = "Content flagged for: " + strings.Join(flagged, ", ")
	}

	m.logger.Debug("remote moderation complete", "flagged", v.Flagged)
	return v, nil
}

// keyword runs the static fallback scan. The second return is false
// only if the scan itself cannot run, which for a static table it
// always can; it exists so Moderate reads as a backend chain.
func (m *Gate) keyword(content string) (Verdict, bool) {
	lower := strings.ToLower(content)

	categories := map[string]bool{}
	var flagged []string
	for category, keywords := range fallbackKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				categories[category] = true
				flagged = append(flagged, category)
				break
			}
		}
	}

	v := Verdict{
		Flagged:    len(flagged) > 0,
		Categories: categories,
	}
	if v.Flagged {
		v.Reason = "Content flagged for: " + strings.Join(flagged, ", ")
		v.Confidence = 0.5 // keyword matching is a coarse signal
	}
	return v, true
}

// ResponseMessage is the fixed reply returned for flagged content.
func ResponseMessage() string {
	return "I'm sorry, but I cannot process messages that may contain inappropriate content. " +
		"As Nexora Campus Copilot, I'm designed to help with university-related questions " +
		"and maintain a respectful academic environment. Please rephrase your question " +
		"in a way that focuses on campus resources, events, departments, or academic support."
}

func preview(s string) string {
	const n = 100
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
