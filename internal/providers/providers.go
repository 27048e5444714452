package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GenerateRequest is the normalized request accepted by both generate
// endpoints. Each client maps it onto its provider's wire format.
type GenerateRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	System      string   `json:"system,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// GenerateResponse is the normalized response returned by both clients.
type GenerateResponse struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason,omitempty"`
}

// Client is a single-shot text-generation provider. One blocking
// request, one normalized response; no retries, no streaming.
type Client interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// bodySnippet reads at most 512 bytes of an error response body for
// inclusion in a StatusError.
func bodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(b)
}
