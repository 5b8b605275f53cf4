// Package repository defines the storage interface and its SQLite implementation.
package repository

import (
	"context"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
)

// Store defines the interface for data persistence.
// Lookups return nil, nil when the row does not exist.
type Store interface {
	// Chat operations
	CreateChat(ctx context.Context, chat *domain.Chat) error
	GetChat(ctx context.Context, chatID string) (*domain.Chat, error)
	ListChats(ctx context.Context, createBy string, since time.Time) ([]domain.Chat, error)

	// Turn operations
	AppendTurn(ctx context.Context, turn *domain.TurnRecord) error
	ListTurnsByChat(ctx context.Context, chatID string) ([]domain.TurnRecord, error)
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]domain.TurnRecord, error)
	MarkConversationStopped(ctx context.Context, chatID, conversationID string, at time.Time) (int64, error)

	// Patrol order operations
	CreatePatrolOrder(ctx context.Context, order *domain.PatrolOrder) error
	GetPatrolOrder(ctx context.Context, id string) (*domain.PatrolOrder, error)
	ListPatrolOrders(ctx context.Context) ([]domain.PatrolOrder, error)
	UpdatePatrolOrderExternalID(ctx context.Context, id string, externalID int) error

	// Lifecycle
	Close() error
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
