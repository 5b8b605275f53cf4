package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southdmw/zeus-ops-workorder/internal/credential"
	"github.com/southdmw/zeus-ops-workorder/policy"
)

func echoTool(name string) Tool {
	return Tool{
		Name:   name,
		Schema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`),
		Execute: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return args, nil
		},
	}
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry(nil, 0)
	assert.Error(t, r.Register(Tool{Execute: echoTool("x").Execute}))
	assert.Error(t, r.Register(Tool{Name: "x"}))
	assert.Error(t, r.Register(Tool{Name: "x", Schema: json.RawMessage(`{"type": 12}`), Execute: echoTool("x").Execute}))

	require.NoError(t, r.Register(echoTool("echo")))
	assert.Error(t, r.Register(echoTool("echo")), "duplicate registration must fail")
	assert.Panics(t, func() { r.MustRegister(echoTool("echo")) })

	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "echo", defs[0].Name)
}

func TestExecute(t *testing.T) {
	r := NewRegistry(nil, time.Second)
	r.MustRegister(echoTool("echo"))
	ctx := context.Background()

	out, err := r.Execute(ctx, "echo", json.RawMessage(`{"q":"hi"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"q":"hi"}`, string(out))

	_, err = r.Execute(ctx, "missing", nil)
	assert.True(t, errors.Is(err, ErrUnknownTool))

	_, err = r.Execute(ctx, "echo", json.RawMessage(`{"q":1}`))
	assert.True(t, errors.Is(err, ErrInvalidArgs))

	_, err = r.Execute(ctx, "echo", json.RawMessage(`not json`))
	assert.True(t, errors.Is(err, ErrInvalidArgs))
}

func TestExecutePolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)

	r := NewRegistry(engine, 0)
	ran := false
	r.MustRegister(Tool{
		Name: ToolCreatePatrolOrder,
		Execute: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			ran = true
			return json.RawMessage(`{}`), nil
		},
	})

	_, err = r.Execute(ctx, ToolCreatePatrolOrder, json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, ErrBlocked))
	assert.False(t, ran)

	authed, carrier := credential.Set(ctx, "tok")
	defer carrier.Clear()
	_, err = r.Execute(authed, ToolCreatePatrolOrder, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestExecuteTimeout(t *testing.T) {
	r := NewRegistry(nil, 20*time.Millisecond)
	r.MustRegister(Tool{
		Name: "slow",
		Execute: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	_, err := r.Execute(context.Background(), "slow", nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestErrorResult(t *testing.T) {
	assert.JSONEq(t, `{"error":"boom"}`, string(ErrorResult(errors.New("boom"))))
}

func TestConversationID(t *testing.T) {
	assert.Equal(t, "", ConversationID(context.Background()))
	assert.Equal(t, "c1", ConversationID(WithConversationID(context.Background(), "c1")))
}
