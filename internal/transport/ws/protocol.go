package ws

import "encoding/json"

// Message types from client to server
const (
	TypeChat = "chat"
	TypeStop = "stop"
)

// Message types from server to client. Stream events reuse the event kind
// names: message, metadata, orderinfo, complete.
const (
	TypeStopAck = "stop_ack"
	TypeError   = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type           string `json:"type"`
	Ts             int64  `json:"ts"`
	RequestID      string `json:"requestId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ChatMessage is sent by the client to start a turn.
type ChatMessage struct {
	BaseMessage
	ChatID   string `json:"chatId,omitempty"`
	ChatType int    `json:"chatType,omitempty"`
	Query    string `json:"query"`
}

// StopMessage is sent by the client to halt the live turn of a conversation.
type StopMessage struct {
	BaseMessage
}

// EventMessage carries one stream event to the client.
type EventMessage struct {
	BaseMessage
	Content string          `json:"content,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// StopAckMessage answers a StopMessage.
type StopAckMessage struct {
	BaseMessage
	Stopped bool `json:"stopped"`
}

// ErrorMessage is sent when a client message cannot be served.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInternalError  = "internal_error"
)
