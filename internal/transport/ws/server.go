// Package ws serves streaming chat over WebSocket connections.
package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/southdmw/zeus-ops-workorder/internal/config"
	"github.com/southdmw/zeus-ops-workorder/internal/credential"
	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/service"
)

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *Hub, svc *service.Service) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket route.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/chat/v2/ws", s.HandleWebSocket)
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
// Browsers cannot set headers on the upgrade request, so the bearer token
// may also come as the token query parameter.
func (s *Server) HandleWebSocket(c echo.Context) error {
	token := credential.FromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if token == "" {
		token = c.QueryParam("token")
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ERROR: failed to upgrade websocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws, token)
	ws.SetReadLimit(s.cfg.WSMaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *Connection) {
	defer s.hub.Unregister(conn)

	conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket error: %v", err)
			}
			return
		}
		conn.Conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))

		s.handleMessage(conn, message)
	}
}

// writePump writes queued messages and pings to the WebSocket connection.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message := <-conn.send:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-conn.done:
			conn.Conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case TypeChat:
		s.handleChat(conn, data)
	case TypeStop:
		s.handleStop(conn, data)
	default:
		s.sendError(conn, base.ConversationID, ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

// handleChat starts a turn. It runs on its own goroutine so stop messages
// on the same connection are still read.
func (s *Server) handleChat(conn *Connection, data []byte) {
	var msg ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid chat message")
		return
	}
	if strings.TrimSpace(msg.Query) == "" {
		s.sendError(conn, msg.ConversationID, ErrorCodeInvalidMessage, "query is required")
		return
	}

	conversationID := msg.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	req := domain.ChatRequest{
		ChatID:         msg.ChatID,
		ChatType:       domain.ChatType(msg.ChatType),
		ConversationID: conversationID,
		Query:          msg.Query,
	}

	go func() {
		emit := func(ev domain.OutputEvent) error {
			out := EventMessage{
				BaseMessage: BaseMessage{
					Type:           string(ev.Kind),
					Ts:             time.Now().UnixMilli(),
					RequestID:      msg.RequestID,
					ConversationID: conversationID,
				},
			}
			if ev.Data != nil {
				out.Data = ev.Data
			} else {
				out.Content = ev.Text
			}
			return conn.SendJSON(out)
		}

		err := s.service.Chat(conn.Context(), req, conn.Token, emit)
		if err == nil {
			return
		}
		log.Printf("ERROR: websocket chat failed: %v", err)
		code := ErrorCodeInternalError
		if errors.Is(err, service.ErrEmptyQuery) {
			code = ErrorCodeInvalidMessage
		}
		s.sendError(conn, conversationID, code, err.Error())
	}()
}

// handleStop halts the live turn of a conversation.
func (s *Server) handleStop(conn *Connection, data []byte) {
	var msg StopMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid stop message")
		return
	}
	if msg.ConversationID == "" {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "conversationId is required")
		return
	}

	stopped := s.service.Stop(conn.Context(), msg.ConversationID)
	ack := StopAckMessage{
		BaseMessage: BaseMessage{
			Type:           TypeStopAck,
			Ts:             time.Now().UnixMilli(),
			RequestID:      msg.RequestID,
			ConversationID: msg.ConversationID,
		},
		Stopped: stopped,
	}
	if err := conn.SendJSON(ack); err != nil {
		log.Printf("WARN: failed to send stop ack: %v", err)
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *Connection, conversationID, code, message string) {
	errMsg := ErrorMessage{
		BaseMessage: BaseMessage{
			Type:           TypeError,
			Ts:             time.Now().UnixMilli(),
			ConversationID: conversationID,
		},
		Code:    code,
		Message: message,
	}
	if err := conn.SendJSON(errMsg); err != nil {
		log.Printf("WARN: failed to send error message: %v", err)
	}
}
