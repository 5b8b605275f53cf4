// Package llm provides the token producers that drive a generation.
package llm

import (
	"context"
	"encoding/json"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/tools"
)

// ToolExecutor exposes tools to the model and runs its calls.
type ToolExecutor interface {
	Definitions() []tools.Tool
	Execute(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error)
}

// GenerateRequest is the input of one generation.
type GenerateRequest struct {
	SystemPrompt   string
	UserText       string
	ConversationID string
	History        []domain.TurnRecord
	Tools          ToolExecutor
}

// ChunkStream yields text chunks. Recv returns io.EOF at the end.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// Producer starts generations.
type Producer interface {
	Stream(ctx context.Context, req GenerateRequest) (ChunkStream, error)
}

// Ensure producers implement Producer.
var (
	_ Producer = (*Client)(nil)
	_ Producer = (*MockClient)(nil)
)
