package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southdmw/zeus-ops-workorder/internal/adapter/llm"
	"github.com/southdmw/zeus-ops-workorder/internal/config"
	"github.com/southdmw/zeus-ops-workorder/internal/credential"
	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/session"
	"github.com/southdmw/zeus-ops-workorder/internal/tools"
	"github.com/southdmw/zeus-ops-workorder/policy"
	"github.com/southdmw/zeus-ops-workorder/tests/helpers"
)

// toolCallingProducer calls one tool per turn and streams its result.
type toolCallingProducer struct {
	tool string
}

func (p *toolCallingProducer) Stream(ctx context.Context, req llm.GenerateRequest) (llm.ChunkStream, error) {
	return &toolCallingStream{ctx: ctx, tools: req.Tools, tool: p.tool}, nil
}

type toolCallingStream struct {
	ctx   context.Context
	tools llm.ToolExecutor
	tool  string
	done  bool
}

func (s *toolCallingStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	out, err := s.tools.Execute(s.ctx, s.tool, json.RawMessage(`{}`))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *toolCallingStream) Close() error { return nil }

func TestConcurrentTurnsSeeOwnCredentialInTools(t *testing.T) {
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	registry := tools.NewRegistry(engine, time.Minute)

	// Both tool bodies must be running at the same time before either returns.
	var arrived sync.WaitGroup
	arrived.Add(2)
	together := make(chan struct{})
	go func() {
		arrived.Wait()
		close(together)
	}()

	var mu sync.Mutex
	seen := map[string]string{}
	registry.MustRegister(tools.Tool{
		Name:        "whoami",
		Description: "returns the caller token",
		Execute: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			arrived.Done()
			select {
			case <-together:
			case <-time.After(2 * time.Second):
			}
			token, _ := credential.Get(ctx)
			mu.Lock()
			seen[tools.ConversationID(ctx)] = token
			mu.Unlock()
			return json.Marshal(token)
		},
	})

	cfg := &config.Config{LLMTimeout: time.Minute, HistoryLimit: 10, DefaultUser: "admin"}
	svc := New(helpers.NewTestSQLiteStore(t), &toolCallingProducer{tool: "whoami"}, session.NewRegistry(), registry, cfg)

	turns := map[string]string{"conv-a": "tok-a", "conv-b": "tok-b"}
	recs := map[string]*recorder{"conv-a": {}, "conv-b": {}}
	var wg sync.WaitGroup
	for conv, token := range turns {
		conv, token := conv, token
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Chat(context.Background(), domain.ChatRequest{ConversationID: conv, Query: "who"}, token, recs[conv].emit)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	select {
	case <-together:
	default:
		t.Fatalf("tool calls did not overlap")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]string{"conv-a": "tok-a", "conv-b": "tok-b"}, seen)

	for conv, token := range turns {
		rec := recs[conv]
		require.NotEmpty(t, rec.events)
		assert.Equal(t, domain.EventKindChunk, rec.events[0].Kind)
		assert.Equal(t, `"`+token+`"`, rec.events[0].Text)
	}
}

func TestPolicyBlocksOrderCreationWithoutCredential(t *testing.T) {
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	registry := tools.NewRegistry(engine, time.Minute)

	called := false
	registry.MustRegister(tools.Tool{
		Name: "create_patrol_order",
		Execute: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			called = true
			return json.RawMessage(`{}`), nil
		},
	})

	cfg := &config.Config{LLMTimeout: time.Minute, HistoryLimit: 10, DefaultUser: "admin"}
	svc := New(helpers.NewTestSQLiteStore(t), &toolCallingProducer{tool: "create_patrol_order"}, session.NewRegistry(), registry, cfg)

	rec := &recorder{}
	require.NoError(t, svc.Chat(context.Background(), domain.ChatRequest{ConversationID: "c1", Query: "建单"}, "", rec.emit))

	assert.False(t, called)
	assert.Equal(t, "failed", rec.metadata(t).Status)
}
