package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
)

const day = 24 * time.Hour

// ListChats returns the default user's chats of the last 30 days grouped
// by recency.
func (s *Service) ListChats(ctx context.Context) (*domain.ChatGroups, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	chats, err := s.store.ListChats(ctx, s.config.DefaultUser, today.Add(-30*day))
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	groups := &domain.ChatGroups{
		Today:      []domain.Chat{},
		Yesterday:  []domain.Chat{},
		Last7Days:  []domain.Chat{},
		Last30Days: []domain.Chat{},
	}
	for _, chat := range chats {
		created := chat.CreatedAt.In(now.Location())
		switch {
		case !created.Before(today):
			groups.Today = append(groups.Today, chat)
		case !created.Before(today.Add(-day)):
			groups.Yesterday = append(groups.Yesterday, chat)
		case !created.Before(today.Add(-7 * day)):
			groups.Last7Days = append(groups.Last7Days, chat)
		default:
			groups.Last30Days = append(groups.Last30Days, chat)
		}
	}
	return groups, nil
}

// ChatDetail returns every turn of a chat in order.
func (s *Service) ChatDetail(ctx context.Context, chatID string) ([]domain.TurnRecord, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	turns, err := s.store.ListTurnsByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	if turns == nil {
		turns = []domain.TurnRecord{}
	}
	return turns, nil
}

// StopConversation terminates a conversation flow: its records are flagged
// stopped and any live generation is halted. It reports whether any record
// changed.
func (s *Service) StopConversation(ctx context.Context, req domain.StopConversationRequest) (bool, error) {
	if req.ChatID == "" || req.ConversationID == "" {
		return false, fmt.Errorf("chatId and conversationId are required")
	}

	s.sessions.Stop(req.ConversationID)

	n, err := s.store.MarkConversationStopped(ctx, req.ChatID, req.ConversationID, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to stop conversation: %w", err)
	}
	log.Printf("INFO: conversation %s of chat %s terminated, %d records flagged", req.ConversationID, req.ChatID, n)
	return n > 0, nil
}
