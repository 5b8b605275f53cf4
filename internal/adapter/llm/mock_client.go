package llm

import (
	"context"
	"fmt"
	"io"
	"time"
)

// MockClient streams a canned reply. It is used when LLM_MODE=MOCK.
type MockClient struct {
	// ChunkSize is the number of runes per chunk.
	ChunkSize int
	// Delay is slept before every chunk.
	Delay time.Duration
}

// NewMockClient creates a new mock producer.
func NewMockClient() *MockClient {
	return &MockClient{ChunkSize: 4, Delay: 50 * time.Millisecond}
}

// Stream returns the mock reply for req in chunks.
func (m *MockClient) Stream(ctx context.Context, req GenerateRequest) (ChunkStream, error) {
	if req.UserText == "" {
		return nil, fmt.Errorf("user text is required")
	}
	size := m.ChunkSize
	if size <= 0 {
		size = 4
	}
	return &mockStream{
		ctx:    ctx,
		chunks: splitIntoChunks(generateMockResponse(req), size),
		delay:  m.Delay,
	}, nil
}

// generateMockResponse generates a reply based on the request.
func generateMockResponse(req GenerateRequest) string {
	if req.Tools != nil && len(req.Tools.Definitions()) > 0 {
		return fmt.Sprintf("[MOCK] 收到: %q。我可以调用工具 %s 来帮助创建巡查工单。",
			truncate(req.UserText, 100), req.Tools.Definitions()[0].Name)
	}
	return fmt.Sprintf("[MOCK] 收到: %q。这是一条模拟回复。", truncate(req.UserText, 100))
}

type mockStream struct {
	ctx    context.Context
	chunks []string
	delay  time.Duration
	next   int
}

func (s *mockStream) Recv() (string, error) {
	if s.next >= len(s.chunks) {
		return "", io.EOF
	}
	if s.delay > 0 {
		select {
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		case <-time.After(s.delay):
		}
	} else if err := s.ctx.Err(); err != nil {
		return "", err
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

func (s *mockStream) Close() error { return nil }

// splitIntoChunks splits s into chunks of size runes.
func splitIntoChunks(s string, size int) []string {
	runes := []rune(s)
	var chunks []string
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// truncate truncates s to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
