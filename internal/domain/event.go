package domain

import "encoding/json"

// OutputEvent is one element of the stream delivered to the client.
// Text is set for chunks, Data for metadata and tool results.
type OutputEvent struct {
	Kind EventKind
	Text string
	Data json.RawMessage
}

// ChunkEvent builds a Chunk event.
func ChunkEvent(text string) OutputEvent {
	return OutputEvent{Kind: EventKindChunk, Text: text}
}

// MetadataEvent builds a Metadata event.
func MetadataEvent(data json.RawMessage) OutputEvent {
	return OutputEvent{Kind: EventKindMetadata, Data: data}
}

// ToolResultEvent builds a ToolResult event.
func ToolResultEvent(data json.RawMessage) OutputEvent {
	return OutputEvent{Kind: EventKindToolResult, Data: data}
}

// TerminalEvent builds the Terminal event.
func TerminalEvent() OutputEvent {
	return OutputEvent{Kind: EventKindTerminal, Text: TerminalPayload}
}

// Payload returns the wire data of the event.
func (e OutputEvent) Payload() string {
	if e.Data != nil {
		return string(e.Data)
	}
	return e.Text
}

// TurnMetadata is the body of the Metadata event.
type TurnMetadata struct {
	ConversationID string `json:"conversationId"`
	ChatID         string `json:"chatId"`
	Status         string `json:"status"`
	Title          string `json:"title"`
}
