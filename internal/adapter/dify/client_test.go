package dify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
)

func newTestClient(url string) *Client {
	c := NewClient(url, "app-key", time.Second)
	c.retryDelay = time.Millisecond
	return c
}

func TestRunWorkflow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathRunWorkflow {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer app-key" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["response_mode"] != "blocking" || body["user"] != "zeus-ops-ai" {
			t.Errorf("unexpected body: %+v", body)
		}
		inputs, _ := body["inputs"].(map[string]interface{})
		if inputs["Warning_Type"] != "烟火" {
			t.Errorf("unexpected inputs: %+v", inputs)
		}
		fmt.Fprint(w, `{"task_id":"t1","workflow_run_id":"r1","data":{"id":"r1","workflow_id":"w1","status":"succeeded",
			"outputs":{"text":{"output":"是"}},"elapsed_time":1.5,"total_tokens":42,"total_steps":3}}`)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).RunWorkflow(context.Background(), domain.WorkflowRequest{
		Inputs: &domain.RecheckInputs{WarningType: "烟火"},
		User:   "zeus-ops-ai",
	})
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if resp.TaskID != "t1" || resp.WorkflowRunID != "r1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Data == nil || resp.Data.Status != "succeeded" || resp.Data.TotalTokens != 42 || resp.Data.WorkflowID != "w1" {
		t.Fatalf("unexpected data: %+v", resp.Data)
	}
}

func TestRunWorkflowRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"task_id":"t2","data":{"status":"succeeded"}}`)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).RunWorkflow(context.Background(), domain.WorkflowRequest{})
	if err != nil {
		t.Fatalf("RunWorkflow failed: %v", err)
	}
	if resp.TaskID != "t2" || calls.Load() != 3 {
		t.Fatalf("unexpected result %+v after %d calls", resp, calls.Load())
	}
}

func TestRunWorkflowDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"code":"invalid_param"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).RunWorkflow(context.Background(), domain.WorkflowRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}
