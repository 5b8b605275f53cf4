// Package service implements the chat use cases of the work-order assistant.
package service

import (
	"errors"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/adapter/llm"
	"github.com/southdmw/zeus-ops-workorder/internal/config"
	"github.com/southdmw/zeus-ops-workorder/internal/repository"
	"github.com/southdmw/zeus-ops-workorder/internal/session"
)

var (
	// ErrEmptyQuery is returned when a turn carries no user text.
	ErrEmptyQuery = errors.New("query is required")
	// ErrChatNotFound is returned when a chat id does not exist.
	ErrChatNotFound = errors.New("chat not found")
)

// Service runs generation turns and serves chat history. It is safe for
// concurrent use.
type Service struct {
	store     repository.Store
	producer  llm.Producer
	sessions  *session.Registry
	tools     llm.ToolExecutor
	config    *config.Config
	prompt    string
	natures   *natureCache
	workflows WorkflowRunner
	now       func() time.Time
}

// New creates the service. tools may be nil when the producer runs without
// tool calling.
func New(store repository.Store, producer llm.Producer, sessions *session.Registry, tools llm.ToolExecutor, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		producer: producer,
		sessions: sessions,
		tools:    tools,
		config:   cfg,
		prompt:   loadSystemPrompt(cfg.SystemPromptFile),
		now:      time.Now,
	}
}
