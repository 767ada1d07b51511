package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alfredjeanlab/schedview/internal/model"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements Backend against the solver's HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// BaseURL returns the backend address the client talks to.
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Jobs ---

func (c *HTTPClient) Solve(ctx context.Context) (string, error) {
	return c.SolveProblem(ctx, nil)
}

func (c *HTTPClient) SolveProblem(ctx context.Context, problem []byte) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/schedules/solve", problem)
	if err != nil {
		return "", err
	}
	id := cleanJobID(string(body))
	if id == "" {
		return "", fmt.Errorf("solve: empty job id in response")
	}
	return id, nil
}

// cleanJobID strips whitespace and surrounding quotes from a bare id.
func cleanJobID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func (c *HTTPClient) ListJobs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.doJSON(ctx, http.MethodGet, "/schedules/list", nil, &ids); err != nil || ids == nil {
		return []string{}, nil
	}
	return ids, nil
}

func (c *HTTPClient) GetSchedule(ctx context.Context, jobID string) (*model.Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, "/schedules/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	return model.ParseSnapshot(body)
}

func (c *HTTPClient) GetStatus(ctx context.Context, jobID string) (*model.Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, "/schedules/"+url.PathEscape(jobID)+"/status", nil)
	if err != nil {
		return nil, err
	}
	return model.ParseSnapshot(body)
}

func (c *HTTPClient) StopJob(ctx context.Context, jobID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/schedules/"+url.PathEscape(jobID), nil)
	return err
}

// --- Analysis ---

// Analyze sends the snapshot exactly as it was received so that fields the
// viewer does not model still reach the backend.
func (c *HTTPClient) Analyze(ctx context.Context, snap *model.Snapshot) (*model.ScoreAnalysis, error) {
	doc, err := snap.Document()
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	body, err := c.do(ctx, http.MethodPut, "/schedules/analyze", doc)
	if err != nil {
		return nil, err
	}
	var sa model.ScoreAnalysis
	if err := json.Unmarshal(body, &sa); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &sa, nil
}

// --- Internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}
	respBody, err := c.do(ctx, method, path, data)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// do performs an HTTP request with an optional pre-encoded JSON body and
// returns the response body. Any non-2xx status is an *APIError.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errResp) == nil {
			if errResp.Error != "" && errResp.Message != "" {
				return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error + ": " + errResp.Message}
			}
			if errResp.Error != "" {
				return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
			}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}
