package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPIClient(baseURL, apiKey string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	Query               string   `json:"query"`
	CollectionName      string   `json:"collection_name,omitempty"`
	MaxResults          *int     `json:"max_results,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
}

type queryResponse struct {
	ID                string           `json:"id"`
	Answer            string           `json:"answer"`
	Sources           []sourceResponse `json:"sources"`
	Confidence        float64          `json:"confidence"`
	Query             string           `json:"query"`
	TotalSourcesFound int              `json:"total_sources_found"`
	ProcessingTimeMS  float64          `json:"processing_time_ms"`
	Error             string           `json:"error"`
}

type sourceResponse struct {
	Content         string  `json:"content"`
	SimilarityScore float64 `json:"similarity_score"`
	SourceNumber    int     `json:"source_number"`
	Page            *int    `json:"page"`
	Source          string  `json:"source"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
	Warmup  warmupResponse    `json:"warmup"`
}

type warmupResponse struct {
	State     string `json:"state"`
	Required  bool   `json:"required"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error"`
	Rearmed   *bool  `json:"rearmed"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// apiError is a non-2xx response the caller did not expect.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s: %s", e.Status, e.Code, e.Message)
}

// do sends a request and decodes the body into out. Statuses listed in accept
// are decoded as success; anything else becomes an *apiError.
func (c *apiClient) do(ctx context.Context, method, path string, in, out any, accept ...int) (int, []byte, error) {
	var body io.Reader = http.NoBody
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	for _, s := range accept {
		if resp.StatusCode == s {
			ok = true
		}
	}
	if !ok {
		apiErr := &apiError{Status: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil {
			apiErr.Code, apiErr.Message = er.Code, er.Message
		}
		return resp.StatusCode, raw, apiErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, raw, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, raw, nil
}

func (c *apiClient) healthDeep(ctx context.Context) (healthResponse, error) {
	var h healthResponse
	_, _, err := c.do(ctx, http.MethodGet, "/api/v1/health-deep", nil, &h, http.StatusServiceUnavailable)
	return h, err
}

func (c *apiClient) query(ctx context.Context, req queryRequest) (queryResponse, []byte, error) {
	var q queryResponse
	_, raw, err := c.do(ctx, http.MethodPost, "/api/v1/query", req, &q)
	return q, raw, err
}

func (c *apiClient) warmup(ctx context.Context) (warmupResponse, error) {
	var w warmupResponse
	_, _, err := c.do(ctx, http.MethodPost, "/api/v1/warmup", nil, &w)
	return w, err
}
