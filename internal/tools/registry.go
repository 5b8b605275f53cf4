package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/credential"
	"github.com/southdmw/zeus-ops-workorder/internal/metrics"
	"github.com/southdmw/zeus-ops-workorder/policy"
)

// ExecutorFunc defines a server-side tool executor.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Tool is a function the model may call.
type Tool struct {
	Name        string
	Description string
	// Schema is the JSON schema of the arguments object.
	Schema  json.RawMessage
	Execute ExecutorFunc
}

var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrInvalidArgs = errors.New("invalid tool arguments")
	ErrBlocked     = errors.New("tool call blocked by policy")
)

// PolicyEvaluator decides whether a tool call may run.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, input policy.Input) (string, string, error)
}

// Registry stores tools keyed by name.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	order   []string
	policy  PolicyEvaluator
	timeout time.Duration
}

// NewRegistry creates an empty tool registry.
// A nil policy allows every call; timeout <= 0 means no per-call deadline.
func NewRegistry(p PolicyEvaluator, timeout time.Duration) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		policy:  p,
		timeout: timeout,
	}
}

// Register adds a new tool.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Execute == nil {
		return fmt.Errorf("executor is required")
	}
	if len(tool.Schema) > 0 {
		if _, err := compileSchema(tool.Schema); err != nil {
			return fmt.Errorf("invalid schema for %s: %w", tool.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool already registered: %s", tool.Name)
	}
	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Definitions returns the registered tools in registration order.
func (r *Registry) Definitions() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Execute validates args, consults the policy and runs the tool.
func (r *Registry) Execute(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error) {
	if toolName == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	r.mu.RLock()
	tool, ok := r.tools[toolName]
	r.mu.RUnlock()
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues(toolName, "unknown").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	decoded, err := validateArgs(tool.Schema, args)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(toolName, "invalid").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}

	if r.policy != nil {
		_, hasCredential := credential.Get(ctx)
		input := policy.Input{
			ToolName:       toolName,
			Args:           decoded,
			ConversationID: ConversationID(ctx),
			HasCredential:  hasCredential,
		}
		decision, reason, err := r.policy.Evaluate(ctx, input)
		if err != nil {
			log.Printf("ERROR: policy evaluation failed for %s: %v", toolName, err)
			metrics.ToolCallsTotal.WithLabelValues(toolName, "policy_error").Inc()
			return nil, fmt.Errorf("policy evaluation failed: %w", err)
		}
		if decision == policy.DecisionBlock {
			log.Printf("WARN: tool %s blocked: %s", toolName, reason)
			metrics.ToolCallsTotal.WithLabelValues(toolName, "blocked").Inc()
			return nil, fmt.Errorf("%w: %s", ErrBlocked, reason)
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	metrics.ToolCallDuration.WithLabelValues(toolName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(toolName, "failed").Inc()
		return nil, err
	}
	metrics.ToolCallsTotal.WithLabelValues(toolName, "succeeded").Inc()
	return result, nil
}

// ErrorResult renders err as the tool result handed back to the model.
func ErrorResult(err error) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return data
}

type conversationKey struct{}

// WithConversationID tags ctx with the conversation a tool call belongs to.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationKey{}, id)
}

// ConversationID returns the conversation id carried by ctx.
func ConversationID(ctx context.Context) string {
	id, _ := ctx.Value(conversationKey{}).(string)
	return id
}
