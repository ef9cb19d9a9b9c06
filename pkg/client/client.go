package client

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

// Client talks to a syncplane server over its HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 30s-timeout http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the server at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks connectivity to the server.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/v1/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// CreateJob creates a job of configType scoped to scope.
func (c *Client) CreateJob(ctx context.Context, scope, configType string, config json.RawMessage) (*Job, error) {
	var job Job
	req := createJobRequest{Scope: scope, ConfigType: configType, Config: config}
	if err := c.do(ctx, http.MethodPost, "/api/v1/jobs", req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches a job with its attempts.
func (c *Client) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, jobPath(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateAttempt starts the next attempt of a job and returns its number.
func (c *Client) CreateAttempt(ctx context.Context, jobID int64) (int, error) {
	var resp createAttemptResponse
	if err := c.do(ctx, http.MethodPost, jobPath(jobID)+"/attempts", nil, &resp); err != nil {
		return 0, err
	}
	return resp.AttemptNumber, nil
}

// GetAttempt fetches one attempt of a job.
func (c *Client) GetAttempt(ctx context.Context, jobID int64, attemptNumber int) (*Attempt, error) {
	var a Attempt
	if err := c.do(ctx, http.MethodGet, attemptPath(jobID, attemptNumber), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAttemptStats fetches the combined stats of an attempt.
func (c *Client) GetAttemptStats(ctx context.Context, jobID int64, attemptNumber int) (*AttemptStats, error) {
	var s AttemptStats
	if err := c.do(ctx, http.MethodGet, attemptPath(jobID, attemptNumber)+"/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FailAttempt marks an attempt failed. Either payload may be nil.
func (c *Client) FailAttempt(ctx context.Context, jobID int64, attemptNumber int, failureSummary, syncOutput json.RawMessage) error {
	req := failAttemptRequest{FailureSummary: failureSummary, StandardSyncOutput: syncOutput}
	return c.do(ctx, http.MethodPost, attemptPath(jobID, attemptNumber)+"/fail", req, nil)
}

// SucceedAttempt marks an attempt succeeded. syncOutput may be nil.
func (c *Client) SucceedAttempt(ctx context.Context, jobID int64, attemptNumber int, syncOutput json.RawMessage) error {
	req := succeedAttemptRequest{StandardSyncOutput: syncOutput}
	return c.do(ctx, http.MethodPost, attemptPath(jobID, attemptNumber)+"/succeed", req, nil)
}

// SaveStats records progress counters for an attempt. The server reports
// store failures as succeeded=false rather than an error.
func (c *Client) SaveStats(ctx context.Context, jobID int64, attemptNumber int, connectionID string, totals SyncStats, perStream []StreamSyncStats) (bool, error) {
	var res operationResult
	req := saveStatsRequest{ConnectionID: connectionID, Stats: totals, StreamStats: perStream}
	if err := c.do(ctx, http.MethodPost, attemptPath(jobID, attemptNumber)+"/stats", req, &res); err != nil {
		return false, err
	}
	return res.Succeeded, nil
}

// SaveStreamMetadata records per-stream metadata for an attempt.
func (c *Client) SaveStreamMetadata(ctx context.Context, jobID int64, attemptNumber int, metadata []StreamMetadata) (bool, error) {
	var res operationResult
	req := saveStreamMetadataRequest{StreamMetadata: metadata}
	if err := c.do(ctx, http.MethodPost, attemptPath(jobID, attemptNumber)+"/stream_metadata", req, &res); err != nil {
		return false, err
	}
	return res.Succeeded, nil
}

func jobPath(jobID int64) string {
	return fmt.Sprintf("/api/v1/jobs/%d", jobID)
}

func attemptPath(jobID int64, attemptNumber int) string {
	return fmt.Sprintf("/api/v1/jobs/%d/attempts/%d", jobID, attemptNumber)
}

// do sends an authenticated request and decodes the response into out.
// Non-2xx responses are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	if json.Unmarshal(data, apiErr) != nil {
		apiErr.Detail = strings.TrimSpace(string(data))
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}
