package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/southdmw/zeus-ops-workorder/internal/adapter/llm"
	"github.com/southdmw/zeus-ops-workorder/internal/credential"
	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/metrics"
	"github.com/southdmw/zeus-ops-workorder/internal/stream"
	"github.com/southdmw/zeus-ops-workorder/internal/tools"
)

// maxTitleLen is the rune length of a chat title derived from the first query.
const maxTitleLen = 50

// EmitFunc delivers one event to the client. An error means the client is gone.
type EmitFunc func(domain.OutputEvent) error

// Chat runs one generation turn and streams its events through emit.
//
// Validation and storage errors are returned before emit is called. Once
// streaming begins Chat always returns nil: the stream ends with the
// Terminal event, or early when emit fails. Exactly one assistant record is
// persisted for the turn unless it produced no text.
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest, token string, emit EmitFunc) error {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return ErrEmptyQuery
	}
	chatType := req.ChatType
	if chatType == 0 {
		chatType = domain.ChatTypeCreateWorkOrder
	}

	chat, err := s.ensureChat(ctx, req.ChatID, query)
	if err != nil {
		return err
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	history := s.loadHistory(ctx, conversationID)

	userTurn := &domain.TurnRecord{
		ChatID:         chat.ChatID,
		ConversationID: conversationID,
		ChatType:       chatType,
		Role:           domain.RoleUser,
		Content:        query,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendTurn(ctx, userTurn); err != nil {
		log.Printf("ERROR: failed to save user turn for conversation %s: %v", conversationID, err)
	}

	handle := s.sessions.Start(conversationID)
	defer handle.End()

	turnCtx, carrier := credential.Set(ctx, token)
	defer carrier.Clear()
	sideband := stream.NewSideband()
	turnCtx = stream.WithSideband(turnCtx, sideband)
	turnCtx = tools.WithConversationID(turnCtx, conversationID)

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	log.Printf("INFO: turn started: chat=%s conversation=%s token=%s", chat.ChatID, handle.ID(), credential.Mask(token))

	genReq := llm.GenerateRequest{
		SystemPrompt:   renderPrompt(s.prompt, s.now(), s.natures.get(turnCtx, s.now())),
		UserText:       query,
		ConversationID: conversationID,
		History:        history,
		Tools:          s.tools,
	}
	mux := stream.New(turnCtx, stream.Options{
		Open: func(pctx context.Context) (stream.Source, error) {
			src, err := s.producer.Stream(pctx, genReq)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
		Gate:     handle,
		Sideband: sideband,
		Metadata: func(outcome stream.Outcome) json.RawMessage {
			data, err := json.Marshal(domain.TurnMetadata{
				ConversationID: conversationID,
				ChatID:         chat.ChatID,
				Status:         string(outcome),
				Title:          chat.Title,
			})
			if err != nil {
				log.Printf("WARN: failed to encode turn metadata: %v", err)
				return nil
			}
			return data
		},
		Timeout: s.config.LLMTimeout,
	})

	var text strings.Builder
	clientGone := false
	for {
		ev, err := mux.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Printf("WARN: client left conversation %s: %v", conversationID, err)
			clientGone = true
			break
		}
		if err := emit(ev); err != nil {
			log.Printf("WARN: failed to deliver event to conversation %s: %v", conversationID, err)
			clientGone = true
			break
		}
		if ev.Kind == domain.EventKindChunk {
			text.WriteString(ev.Text)
		}
	}

	outcome, upstreamErr := mux.Outcome()
	if outcome == "" && clientGone {
		outcome = stream.OutcomeStopped
	}
	metrics.TurnsTotal.WithLabelValues(string(outcome)).Inc()

	s.persistAssistantTurn(context.WithoutCancel(ctx), userTurn, outcome, upstreamErr, text.String())
	return nil
}

// persistAssistantTurn appends the assistant record for the outcome.
// Nothing is stored when no text was produced. A failed turn keeps its
// partial text without the cancellation marker.
func (s *Service) persistAssistantTurn(ctx context.Context, user *domain.TurnRecord, outcome stream.Outcome, upstreamErr error, text string) {
	switch outcome {
	case stream.OutcomeFailed:
		log.Printf("ERROR: generation failed for conversation %s: %v", user.ConversationID, upstreamErr)
	case stream.OutcomeStopped:
		log.Printf("INFO: generation stopped for conversation %s", user.ConversationID)
	}
	if text == "" {
		return
	}

	content := text
	if outcome == stream.OutcomeStopped {
		content += domain.CancelledSuffix
	}
	turn := &domain.TurnRecord{
		ChatID:         user.ChatID,
		ConversationID: user.ConversationID,
		ChatType:       user.ChatType,
		Role:           domain.RoleAssistant,
		Content:        content,
		CreatedAt:      s.now(),
	}
	if err := s.store.AppendTurn(ctx, turn); err != nil {
		log.Printf("ERROR: failed to save assistant turn for conversation %s: %v", user.ConversationID, err)
	}
}

// ensureChat returns the chat for chatID, creating it when absent.
func (s *Service) ensureChat(ctx context.Context, chatID, query string) (*domain.Chat, error) {
	if chatID != "" {
		chat, err := s.store.GetChat(ctx, chatID)
		if err != nil {
			return nil, fmt.Errorf("failed to get chat: %w", err)
		}
		if chat != nil {
			return chat, nil
		}
	} else {
		chatID = "chat_" + uuid.New().String()[:8]
	}

	chat := &domain.Chat{
		ChatID:    chatID,
		Title:     titleFrom(query),
		CreateBy:  s.config.DefaultUser,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

func (s *Service) loadHistory(ctx context.Context, conversationID string) []domain.TurnRecord {
	history, err := s.store.RecentTurns(ctx, conversationID, s.config.HistoryLimit)
	if err != nil {
		log.Printf("WARN: failed to load history for conversation %s: %v", conversationID, err)
		return nil
	}
	return history
}

func titleFrom(query string) string {
	runes := []rune(query)
	if len(runes) <= maxTitleLen {
		return query
	}
	return string(runes[:maxTitleLen])
}
