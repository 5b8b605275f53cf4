package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southdmw/zeus-ops-workorder/internal/credential"
	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/tools"
)

type fakeExecutor struct {
	mu     sync.Mutex
	calls  []string
	tokens []string
	fail   bool
}

func (f *fakeExecutor) Definitions() []tools.Tool {
	return []tools.Tool{{
		Name:        "lookup",
		Description: "look something up",
		Schema:      json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`),
	}}
}

func (f *fakeExecutor) Execute(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	tok, _ := credential.Get(ctx)
	f.mu.Lock()
	f.calls = append(f.calls, name+":"+string(args))
	f.tokens = append(f.tokens, tok)
	f.mu.Unlock()
	if f.fail {
		return nil, errors.New("lookup unavailable")
	}
	return json.RawMessage(`{"answer":42}`), nil
}

func sseChunk(delta string, finish string) string {
	fr := "null"
	if finish != "" {
		fr = fmt.Sprintf("%q", finish)
	}
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":%s,"finish_reason":%s}]}`+"\n\n", delta, fr)
}

func writeSSE(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, c := range chunks {
		io.WriteString(w, c)
	}
	io.WriteString(w, "data: [DONE]\n\n")
}

type recordedRequest struct {
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []json.RawMessage `json:"tools"`
}

func readAll(t *testing.T, s ChunkStream) (string, error) {
	t.Helper()
	var sb strings.Builder
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
}

func TestClientStreamsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		writeSSE(w,
			sseChunk(`{"role":"assistant","content":"Hel"}`, ""),
			sseChunk(`{"content":"lo"}`, ""),
			sseChunk(`{}`, "stop"),
		)
	}))
	defer server.Close()

	c := NewClient(server.URL+"/v1", "k", "m", 3)
	s, err := c.Stream(context.Background(), GenerateRequest{UserText: "hi"})
	require.NoError(t, err)
	defer s.Close()

	text, err := readAll(t, s)
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestClientRunsToolLoop(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		requests = append(requests, req)
		n := len(requests)
		mu.Unlock()

		if n == 1 {
			writeSSE(w,
				sseChunk(`{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"q\":"}}]}`, ""),
				sseChunk(`{"tool_calls":[{"index":0,"function":{"arguments":"\"x\"}"}}]}`, ""),
				sseChunk(`{}`, "tool_calls"),
			)
			return
		}
		writeSSE(w, sseChunk(`{"content":"done"}`, ""), sseChunk(`{}`, "stop"))
	}))
	defer server.Close()

	exec := &fakeExecutor{}
	ctx, carrier := credential.Set(context.Background(), "tok-1")
	defer carrier.Clear()

	c := NewClient(server.URL+"/v1", "k", "m", 3)
	s, err := c.Stream(ctx, GenerateRequest{
		SystemPrompt: "sys",
		UserText:     "find x",
		History: []domain.TurnRecord{
			{Role: domain.RoleUser, Content: "earlier"},
			{Role: domain.RoleAssistant, Content: "reply"},
		},
		Tools: exec,
	})
	require.NoError(t, err)
	defer s.Close()

	text, err := readAll(t, s)
	require.NoError(t, err)
	assert.Equal(t, "done", text)

	assert.Equal(t, []string{`lookup:{"q":"x"}`}, exec.calls)
	assert.Equal(t, []string{"tok-1"}, exec.tokens)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 2)
	first := requests[0]
	require.Len(t, first.Messages, 4)
	assert.Equal(t, "system", first.Messages[0].Role)
	assert.Equal(t, "assistant", first.Messages[2].Role)
	assert.Equal(t, "find x", first.Messages[3].Content)
	assert.Len(t, first.Tools, 1)

	second := requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.JSONEq(t, `{"answer":42}`, last.Content)
}

func TestClientReturnsToolErrorsToModel(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		requests = append(requests, req)
		n := len(requests)
		mu.Unlock()

		if n == 1 {
			writeSSE(w,
				sseChunk(`{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{}"}}]}`, "tool_calls"),
			)
			return
		}
		writeSSE(w, sseChunk(`{"content":"sorry"}`, "stop"))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/v1", "k", "m", 3)
	s, err := c.Stream(context.Background(), GenerateRequest{UserText: "q", Tools: &fakeExecutor{fail: true}})
	require.NoError(t, err)
	defer s.Close()

	text, err := readAll(t, s)
	require.NoError(t, err)
	assert.Equal(t, "sorry", text)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 2)
	last := requests[1].Messages[len(requests[1].Messages)-1]
	assert.JSONEq(t, `{"error":"lookup unavailable"}`, last.Content)
}

func TestClientToolRoundLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			sseChunk(`{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{}"}}]}`, "tool_calls"),
		)
	}))
	defer server.Close()

	c := NewClient(server.URL+"/v1", "k", "m", 2)
	s, err := c.Stream(context.Background(), GenerateRequest{UserText: "q", Tools: &fakeExecutor{}})
	require.NoError(t, err)
	defer s.Close()

	_, err = readAll(t, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool round limit")
}

func TestClientRetriesServerErrors(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		n := count
		mu.Unlock()
		if n == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
			return
		}
		writeSSE(w, sseChunk(`{"content":"ok"}`, "stop"))
	}))
	defer server.Close()

	c := NewClient(server.URL+"/v1", "k", "m", 3)
	c.retryDelay = time.Millisecond
	s, err := c.Stream(context.Background(), GenerateRequest{UserText: "q"})
	require.NoError(t, err)
	defer s.Close()

	text, err := readAll(t, s)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	mu.Lock()
	assert.Equal(t, 2, count)
	mu.Unlock()
}

func TestClientRejectsEmptyText(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/v1", "k", "m", 1)
	_, err := c.Stream(context.Background(), GenerateRequest{})
	assert.Error(t, err)
}
