package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the tool policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the document a tool call is evaluated against.
type Input struct {
	ToolName       string                 `json:"tool_name"`
	Args           map[string]interface{} `json:"args"`
	ConversationID string                 `json:"conversation_id"`
	HasCredential  bool                   `json:"has_credential"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the tool policy.
// Returns: decision (allow, block), reason (optional), error
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, "default", nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return val, "", nil
	case map[string]interface{}:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		if decision == "" {
			return DecisionAllow, "missing decision", nil
		}
		return decision, reason, nil
	default:
		return DecisionAllow, "unexpected return type", nil
	}
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package tool_policy

import rego.v1

default decision := {"decision": "allow"}

# Creating a work order acts on behalf of the caller.
decision := {"decision": "block", "reason": "work order creation requires an authenticated caller"} if {
	input.tool_name == "create_patrol_order"
	not input.has_credential
} else := {"decision": "block", "reason": "search radius exceeds 50km"} if {
	input.tool_name == "get_available_routes"
	input.args.radius > 50000
}
`
