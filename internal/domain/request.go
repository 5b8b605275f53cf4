package domain

// ChatRequest is an inbound user turn.
type ChatRequest struct {
	ChatID         string   `json:"chatId,omitempty"`
	ChatType       ChatType `json:"chatType,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
	Query          string   `json:"query"`
}

// StopRequest asks to halt the live generation of a conversation.
type StopRequest struct {
	ConversationID string `json:"conversationId"`
}

// StopConversationRequest marks a conversation flow as terminated.
type StopConversationRequest struct {
	ChatID         string   `json:"chatId"`
	ChatType       ChatType `json:"chatType"`
	ConversationID string   `json:"conversationId"`
}

// Result is the response envelope used by the chat API.
type Result struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// OK wraps data in a successful Result.
func OK(data interface{}) Result {
	return Result{Code: 0, Msg: "success", Data: data}
}

// Fail builds a failed Result.
func Fail(msg string) Result {
	return Result{Code: 1, Msg: msg}
}
