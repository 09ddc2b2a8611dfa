package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nexora/campus-copilot/internal/log"
)

// maxResponseBytes caps how much of an upstream response is read. The
// campus API serves small JSON payloads; anything larger is a fault.
const maxResponseBytes = 4 << 20

// request issues an HTTP call to the campus data API and wraps the outcome
// in the tool envelope. All failure modes (transport errors, non-2xx
// statuses, bad JSON) come back as a failed Result, never as a Go error.
func request(ctx context.Context, d *Deps, logger log.Logger, method, url string, body any) Result {
	if d == nil || d.Client == nil {
		return recordResult(d, Fail("tool dependencies not configured"))
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return recordResult(d, Fail("encoding request body: %v", err))
		}
		reqBody = bytes.NewReader(encoded)
	}

	logger.Info("campus API request", "method", method, "url", url)

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return recordResult(d, Fail("building request: %v", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		logger.Error("campus API request failed", "url", url, "error", err)
		return recordResult(d, Fail("HTTP request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		logger.Error("reading campus API response failed", "url", url, "error", err)
		return recordResult(d, Fail("reading response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("campus API returned error status", "url", url, "status", resp.StatusCode)
		return recordResult(d, Fail("HTTP request failed: status %d", resp.StatusCode))
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		logger.Error("campus API returned invalid JSON", "url", url, "error", err)
		return recordResult(d, Fail("decoding response: %v", err))
	}

	logger.Debug("campus API request succeeded", "url", url)
	return recordResult(d, Ok(data))
}

// recordResult counts the call in the request's usage tracker.
func recordResult(d *Deps, r Result) Result {
	if d != nil && d.Usage != nil {
		d.Usage.AddToolCall(!r.Success)
	}
	return r
}

// apiURL joins the campus API base URL with a formatted path.
func apiURL(d *Deps, format string, args ...any) string {
	return d.BaseURL + fmt.Sprintf(format, args...)
}
