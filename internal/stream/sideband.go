package stream

import (
	"context"
	"encoding/json"
	"sync"
)

type sidebandKey struct{}

// Sideband collects structured data tools publish during a turn.
type Sideband struct {
	mu         sync.Mutex
	toolResult json.RawMessage
}

// NewSideband creates an empty sideband.
func NewSideband() *Sideband {
	return &Sideband{}
}

// SetToolResult records data as the turn's tool result. The last write wins.
func (s *Sideband) SetToolResult(data json.RawMessage) {
	s.mu.Lock()
	s.toolResult = append(json.RawMessage(nil), data...)
	s.mu.Unlock()
}

// ToolResult returns the recorded tool result, if any.
func (s *Sideband) ToolResult() (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.toolResult) == 0 {
		return nil, false
	}
	return s.toolResult, true
}

// WithSideband attaches s to ctx.
func WithSideband(ctx context.Context, s *Sideband) context.Context {
	return context.WithValue(ctx, sidebandKey{}, s)
}

// RecordToolResult stores data on the sideband carried by ctx.
// It reports false when ctx carries none.
func RecordToolResult(ctx context.Context, data json.RawMessage) bool {
	s, ok := ctx.Value(sidebandKey{}).(*Sideband)
	if !ok || s == nil {
		return false
	}
	s.SetToolResult(data)
	return true
}
