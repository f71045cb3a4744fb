// Package intel is the HTTP client for the intelligence pipeline's API.
// The pipeline owns retrieval, embeddings, and ingestion; this package
// only speaks its boundary: /query, /ingest-url, /health, /report.
package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/intelboard/intelboard/internal/feed"
)

// APIError is a structured failure returned by the pipeline API, carrying
// the HTTP status and the detail message from the response payload.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("pipeline API returned %d", e.Status)
}

// Client talks to the pipeline API.
type Client struct {
	base   string
	client *http.Client
}

// NewClient creates a client for the given API base URL.
func NewClient(base string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Source is one cited source in a query answer.
type Source struct {
	ItemID string  `json:"item_id"`
	Title  string  `json:"title"`
	URL    string  `json:"url"`
	Score  float64 `json:"score"`
}

// Answer is a successful response from /query.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Query   string   `json:"query"`
}

// Ask sends a question to the /query endpoint. A non-2xx response or a
// payload without an answer yields an *APIError carrying the server's
// detail message; transport failures are returned as plain wrapped errors.
func (c *Client) Ask(ctx context.Context, query string, topK int) (*Answer, error) {
	if topK <= 0 {
		topK = 5
	}
	body := map[string]any{"query": query, "top_k": topK}

	var result struct {
		Answer
		Detail string `json:"detail"`
	}
	status, err := c.postJSON(ctx, "/query", body, &result)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{Status: status, Detail: result.Detail}
	}
	if result.Answer.Answer == "" {
		// 2xx with an error payload instead of an answer.
		return nil, &APIError{Status: status, Detail: result.Detail}
	}
	return &result.Answer, nil
}

// IngestResult is a successful response from /ingest-url.
type IngestResult struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// Ingest submits a URL to the pipeline for ingestion. With dryRun the
// pipeline validates without storing anything.
func (c *Client) Ingest(ctx context.Context, url string, dryRun bool) (*IngestResult, error) {
	body := map[string]any{"url": url, "dry_run": dryRun}

	var result struct {
		IngestResult
		Detail string `json:"detail"`
	}
	status, err := c.postJSON(ctx, "/ingest-url", body, &result)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{Status: status, Detail: result.Detail}
	}
	return &result.IngestResult, nil
}

// HealthInfo is the pipeline's self-diagnostic, shown on the settings page.
type HealthInfo struct {
	Status       string `json:"status"`
	ItemCount    int    `json:"item_count"`
	LLMAvailable bool   `json:"llm_available"`
	ModelExists  bool   `json:"model_exists"`
}

// Health fetches the pipeline's /health diagnostics.
func (c *Client) Health(ctx context.Context) (*HealthInfo, error) {
	var info HealthInfo
	if err := c.getJSON(ctx, "/health", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Report fetches the dynamically served report, the live equivalent of
// the exported report.json.
func (c *Client) Report(ctx context.Context) (*feed.Report, error) {
	var report feed.Report
	if err := c.getJSON(ctx, "/report", &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, result any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("pipeline API unreachable: %w", err)
	}
	defer resp.Body.Close()

	// The payload is decoded regardless of status: error responses carry
	// their message in the detail field.
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
		// Non-JSON error body: fall through with status only.
	}
	return resp.StatusCode, nil
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pipeline API unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		var payload struct {
			Detail string `json:"detail"`
		}
		json.Unmarshal(respBody, &payload) //nolint: errcheck
		return &APIError{Status: resp.StatusCode, Detail: payload.Detail}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
