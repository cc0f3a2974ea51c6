// Package client is the Go SDK for the statements backend. It wraps the HTTP
// API and provides a Poller that tracks a processing session until it reaches
// a terminal state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrRateLimited is returned by FetchStatus when the server responds with
// HTTP 429. The Poller treats it as a backoff signal rather than a failure.
var ErrRateLimited = errors.New("rate limited")

// Statement is one pre-extracted statement submitted for classification.
type Statement struct {
	CompanyName string `json:"company_name"`
	Body        string `json:"body"`
	Pages       int    `json:"pages"`
}

// Submission is the payload for starting a processing session.
type Submission struct {
	DNMCompanies []string    `json:"dnm_companies"`
	Statements   []Statement `json:"statements"`
}

// ProgressInfo reports how far classification has advanced.
type ProgressInfo struct {
	ProcessedStatements int `json:"processed_statements"`
	TotalStatements     int `json:"total_statements"`
}

// StatusReport is the deserialized status payload for a session.
type StatusReport struct {
	SessionID         string        `json:"session_id"`
	Status            string        `json:"status"`
	Error             string        `json:"error,omitempty"`
	RequiresQuestions bool          `json:"requires_questions"`
	QuestionsCount    int           `json:"questions_count"`
	Progress          *ProgressInfo `json:"progress,omitempty"`
	ArchiveURI        string        `json:"archive_uri,omitempty"`
}

// QuestionState describes the current position in the review workflow.
type QuestionState struct {
	Completed   bool   `json:"completed"`
	Current     int    `json:"current,omitempty"`
	Total       int    `json:"total"`
	CompanyName string `json:"company_name,omitempty"`
	SimilarTo   string `json:"similar_to,omitempty"`
	CanGoBack   bool   `json:"can_go_back"`
}

// Statistics summarizes a completed session.
type Statistics struct {
	TotalStatements      int            `json:"total_statements"`
	Destinations         map[string]int `json:"destinations"`
	ManualReviewRequired int            `json:"manual_review_required"`
	InteractiveQuestions int            `json:"interactive_questions"`
}

// Results is the final payload for a completed session.
type Results struct {
	SessionID  string     `json:"session_id"`
	Statistics Statistics `json:"statistics"`
	ArchiveURI string     `json:"archive_uri"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Client talks to one backend instance. The base URL is explicit per client;
// there is no process-wide default.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitStatements starts a processing session and returns its session ID.
func (c *Client) SubmitStatements(ctx context.Context, sub Submission) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.postJSON(ctx, "/api/v1/monthly-statements/process", sub, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", errors.New("submission response missing session_id")
	}
	return resp.SessionID, nil
}

// FetchStatus retrieves the current status report for a session. It returns
// ErrRateLimited on HTTP 429 so the Poller can back off.
func (c *Client) FetchStatus(ctx context.Context, sessionID string) (StatusReport, error) {
	var report StatusReport
	err := c.getJSON(ctx, "/api/v1/monthly-statements/"+sessionID+"/status", &report)
	return report, err
}

// Questions returns the current review question for a session.
func (c *Client) Questions(ctx context.Context, sessionID string) (QuestionState, error) {
	var state QuestionState
	err := c.getJSON(ctx, "/api/v1/monthly-statements/"+sessionID+"/questions", &state)
	return state, err
}

// AnswerQuestion submits one review answer ("y", "n", "s" or "p") and
// returns the resulting question state.
func (c *Client) AnswerQuestion(ctx context.Context, sessionID, answer string) (QuestionState, error) {
	var state QuestionState
	payload := map[string]string{"answer": answer}
	err := c.postJSON(ctx, "/api/v1/monthly-statements/"+sessionID+"/questions/answer", payload, &state)
	return state, err
}

// Results fetches the statistics and archive URI for a completed session.
func (c *Client) Results(ctx context.Context, sessionID string) (Results, error) {
	var results Results
	err := c.getJSON(ctx, "/api/v1/monthly-statements/"+sessionID+"/results", &results)
	return results, err
}

// DownloadArchive streams the result archive. The caller must close the
// returned reader.
func (c *Client) DownloadArchive(ctx context.Context, sessionID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/monthly-statements/"+sessionID+"/download", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download archive: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer closeQuietly(resp.Body)
		return nil, c.errorFrom(resp)
	}
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer closeQuietly(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFrom(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorFrom builds an error from a non-2xx response, preferring the server's
// JSON error message when present.
func (c *Client) errorFrom(resp *http.Response) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}

func closeQuietly(rc io.ReadCloser) {
	_ = rc.Close()
}
