package domain

import "time"

// Chat is a thread container grouping many conversations.
type Chat struct {
	ChatID    string    `json:"chatId"`
	Title     string    `json:"title"`
	CreateBy  string    `json:"createBy"`
	CreatedAt time.Time `json:"createTime"`
}

// TurnRecord is one persisted message of a conversation.
type TurnRecord struct {
	ID             int64      `json:"id"`
	ChatID         string     `json:"chatId"`
	ConversationID string     `json:"conversationId"`
	ChatType       ChatType   `json:"chatType"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	ImgURL         string     `json:"imgUrl,omitempty"`
	StopFlag       bool       `json:"conversationStopFlag"`
	StopTime       *time.Time `json:"conversationStopTime,omitempty"`
	CreatedAt      time.Time  `json:"createTime"`
}

// ChatGroups buckets chats by recency.
type ChatGroups struct {
	Today      []Chat `json:"today"`
	Yesterday  []Chat `json:"yesterday"`
	Last7Days  []Chat `json:"last7Days"`
	Last30Days []Chat `json:"last30Days"`
}
