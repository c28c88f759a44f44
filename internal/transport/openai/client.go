package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func newClient(apiKey, baseURL string, timeout time.Duration) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	if timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return openai.NewClientWithConfig(clientCfg)
}

// apiStatus returns the HTTP status and a human-readable message from a go-openai error.
func apiStatus(err error) (int, string) {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if detail := extractDetail(reqErr.Body); detail != "" {
			return reqErr.HTTPStatusCode, detail
		}
		return reqErr.HTTPStatusCode, string(reqErr.Body)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message
	}

	return 0, err.Error()
}

// parseAPIError wraps err with the given sentinel and keeps the provider message.
func parseAPIError(kind string, err error, wrap error) error {
	status, msg := apiStatus(err)
	if status == 0 {
		return fmt.Errorf("%s request failed: %w: %w", kind, wrap, err)
	}
	return fmt.Errorf("%s API error %d: %s: %w", kind, status, msg, wrap)
}

// isModelNotReady reports cold-start responses from OpenAI-compatible servers
// (vLLM, TGI and hosted endpoints answer 503 while weights load).
func isModelNotReady(err error) bool {
	status, msg := apiStatus(err)
	if status == http.StatusServiceUnavailable {
		return true
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "not ready") || strings.Contains(lower, "is currently loading")
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius/vLLM error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
