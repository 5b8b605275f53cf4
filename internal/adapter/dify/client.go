// Package dify is the client of the Dify workflow API.
package dify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/metrics"
)

// PathRunWorkflow runs a published workflow.
const PathRunWorkflow = "/v1/workflows/run"

// APIError is a non-200 response from Dify.
type APIError struct {
	Status int
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dify api status %d: %s", e.Status, e.Msg)
}

// Client calls Dify with the application API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a new Dify client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: 2,
		retryDelay: time.Second,
	}
}

// workflowResponse is the Dify wire form of a blocking run.
type workflowResponse struct {
	TaskID        string `json:"task_id"`
	WorkflowRunID string `json:"workflow_run_id"`
	Data          *struct {
		ID          string                 `json:"id"`
		WorkflowID  string                 `json:"workflow_id"`
		Status      string                 `json:"status"`
		Outputs     map[string]interface{} `json:"outputs"`
		Error       string                 `json:"error"`
		ElapsedTime float64                `json:"elapsed_time"`
		TotalTokens int                    `json:"total_tokens"`
		TotalSteps  int                    `json:"total_steps"`
		CreatedAt   int64                  `json:"created_at"`
		FinishedAt  int64                  `json:"finished_at"`
	} `json:"data"`
}

// RunWorkflow runs a workflow in blocking mode and waits for its result.
func (c *Client) RunWorkflow(ctx context.Context, req domain.WorkflowRequest) (*domain.WorkflowResponse, error) {
	if req.ResponseMode == "" {
		req.ResponseMode = "blocking"
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var wire workflowResponse
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
			log.Printf("WARN: retrying dify workflow run (attempt %d): %v", attempt+1, lastErr)
		}
		lastErr = c.post(ctx, PathRunWorkflow, body, &wire)
		if lastErr == nil {
			break
		}
		var apiErr *APIError
		if !errors.As(lastErr, &apiErr) || (apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests) {
			break
		}
	}
	if lastErr != nil {
		metrics.WorkflowRunsTotal.WithLabelValues("error").Inc()
		return nil, lastErr
	}
	metrics.WorkflowRunsTotal.WithLabelValues("ok").Inc()

	out := &domain.WorkflowResponse{
		TaskID:        wire.TaskID,
		WorkflowRunID: wire.WorkflowRunID,
	}
	if d := wire.Data; d != nil {
		out.Data = &domain.WorkflowData{
			ID:          d.ID,
			WorkflowID:  d.WorkflowID,
			Status:      d.Status,
			Outputs:     d.Outputs,
			Error:       d.Error,
			ElapsedTime: d.ElapsedTime,
			TotalTokens: d.TotalTokens,
			TotalSteps:  d.TotalSteps,
			CreatedAt:   d.CreatedAt,
			FinishedAt:  d.FinishedAt,
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(respBody))}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
