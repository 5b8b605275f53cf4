package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/tools"
)

// maxParallelTools bounds concurrent tool calls of one model round.
const maxParallelTools = 4

// Client streams completions from an OpenAI-compatible endpoint and runs
// the tool-calling loop between rounds.
type Client struct {
	client     *openai.Client
	model      string
	maxRounds  int
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a new OpenAI-compatible producer.
func NewClient(baseURL, apiKey, model string, maxRounds int) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if maxRounds <= 0 {
		maxRounds = 5
	}
	return &Client{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		maxRounds:  maxRounds,
		maxRetries: 2,
		retryDelay: time.Second,
	}
}

// Stream starts a generation. The first round is opened lazily on Recv.
func (c *Client) Stream(ctx context.Context, req GenerateRequest) (ChunkStream, error) {
	if req.UserText == "" {
		return nil, fmt.Errorf("user text is required")
	}
	s := &toolLoopStream{
		ctx:      ctx,
		client:   c,
		messages: buildMessages(req),
		executor: req.Tools,
	}
	if req.Tools != nil {
		s.defs = convertTools(req.Tools.Definitions())
	}
	return s, nil
}

func buildMessages(req GenerateRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserText,
	})
}

func convertTools(defs []tools.Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(defs))
	for _, t := range defs {
		var params any = json.RawMessage(`{"type":"object","properties":{}}`)
		if len(t.Schema) > 0 {
			params = t.Schema
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func (c *Client) open(ctx context.Context, messages []openai.ChatCompletionMessage, defs []openai.Tool) (*openai.ChatCompletionStream, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   true,
	}
	if len(defs) > 0 {
		req.Tools = defs
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
		stream, err := c.client.CreateChatCompletionStream(ctx, req)
		if err == nil {
			return stream, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, fmt.Errorf("failed to open completion stream: %w", err)
		}
		log.Printf("WARN: completion stream attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

// toolLoopStream pulls text across model rounds. When a round ends with
// tool calls, the calls run and a new round starts with their results.
type toolLoopStream struct {
	ctx      context.Context
	client   *Client
	messages []openai.ChatCompletionMessage
	executor ToolExecutor
	defs     []openai.Tool

	cur     *openai.ChatCompletionStream
	round   int
	calls   map[int]*openai.ToolCall
	content strings.Builder
}

func (s *toolLoopStream) Recv() (string, error) {
	for {
		if s.cur == nil {
			if s.round >= s.client.maxRounds {
				return "", fmt.Errorf("tool round limit %d exceeded", s.client.maxRounds)
			}
			stream, err := s.client.open(s.ctx, s.messages, s.defs)
			if err != nil {
				return "", err
			}
			s.cur = stream
			s.round++
			s.calls = make(map[int]*openai.ToolCall)
			s.content.Reset()
		}

		resp, err := s.cur.Recv()
		if errors.Is(err, io.EOF) {
			s.cur.Close()
			s.cur = nil
			if len(s.calls) == 0 {
				return "", io.EOF
			}
			s.runTools()
			continue
		}
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		s.accumulate(delta.ToolCalls)
		if delta.Content != "" {
			s.content.WriteString(delta.Content)
			return delta.Content, nil
		}
	}
}

func (s *toolLoopStream) accumulate(deltas []openai.ToolCall) {
	for _, tc := range deltas {
		index := 0
		if tc.Index != nil {
			index = *tc.Index
		}
		call := s.calls[index]
		if call == nil {
			call = &openai.ToolCall{Type: openai.ToolTypeFunction}
			s.calls[index] = call
		}
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Function.Name != "" {
			call.Function.Name = tc.Function.Name
		}
		call.Function.Arguments += tc.Function.Arguments
	}
}

// runTools executes the round's tool calls concurrently and appends the
// assistant turn and tool results to the conversation. Tool failures are
// returned to the model as error results.
func (s *toolLoopStream) runTools() {
	indexes := make([]int, 0, len(s.calls))
	for i := range s.calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]openai.ToolCall, len(indexes))
	for i, idx := range indexes {
		calls[i] = *s.calls[idx]
	}
	s.messages = append(s.messages, openai.ChatCompletionMessage{
		Role:      openai.ChatMessageRoleAssistant,
		Content:   s.content.String(),
		ToolCalls: calls,
	})

	results := make([]json.RawMessage, len(calls))
	var g errgroup.Group
	g.SetLimit(maxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = s.invoke(call)
			return nil
		})
	}
	_ = g.Wait()

	for i, call := range calls {
		s.messages = append(s.messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    string(results[i]),
			Name:       call.Function.Name,
			ToolCallID: call.ID,
		})
	}
	s.calls = nil
}

func (s *toolLoopStream) invoke(call openai.ToolCall) json.RawMessage {
	if s.executor == nil {
		return tools.ErrorResult(fmt.Errorf("%w: %s", tools.ErrUnknownTool, call.Function.Name))
	}
	result, err := s.executor.Execute(s.ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
	if err != nil {
		log.Printf("WARN: tool %s failed: %v", call.Function.Name, err)
		return tools.ErrorResult(err)
	}
	return result
}

func (s *toolLoopStream) Close() error {
	if s.cur != nil {
		err := s.cur.Close()
		s.cur = nil
		return err
	}
	return nil
}
