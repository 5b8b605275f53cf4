// Package main provides a simple CLI client for the chat WebSocket endpoint.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/transport/ws"
)

// Client represents a WebSocket client bound to one conversation.
type Client struct {
	conn           *websocket.Conn
	chatID         string
	conversationID string
	done           chan struct{}
	writeMu        sync.Mutex
	mu             sync.Mutex
}

// NewClient creates a new client and connects to the server.
func NewClient(addr, token string) (*Client, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(addr, header)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn:           conn,
		conversationID: uuid.New().String(),
		done:           make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// SendChat sends one user turn.
func (c *Client) SendChat(query string) error {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()

	return c.writeJSON(ws.ChatMessage{
		BaseMessage: ws.BaseMessage{
			Type:           ws.TypeChat,
			Ts:             time.Now().UnixMilli(),
			RequestID:      fmt.Sprintf("req_%d", time.Now().UnixNano()),
			ConversationID: c.conversationID,
		},
		ChatID:   chatID,
		ChatType: int(domain.ChatTypeCreateWorkOrder),
		Query:    query,
	})
}

// SendStop asks the server to halt the live answer.
func (c *Client) SendStop() error {
	return c.writeJSON(ws.StopMessage{
		BaseMessage: ws.BaseMessage{
			Type:           ws.TypeStop,
			Ts:             time.Now().UnixMilli(),
			ConversationID: c.conversationID,
		},
	})
}

// ReadMessages reads and prints messages from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			c.print(data)
		}
	}
}

func (c *Client) print(data []byte) {
	var msg struct {
		Type    string          `json:"type"`
		Content string          `json:"content"`
		Data    json.RawMessage `json:"data"`
		Stopped bool            `json:"stopped"`
		Code    string          `json:"code"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Unmarshal error: %v", err)
		return
	}

	switch msg.Type {
	case string(domain.EventKindChunk):
		fmt.Print(msg.Content)
	case string(domain.EventKindMetadata):
		var md domain.TurnMetadata
		if err := json.Unmarshal(msg.Data, &md); err == nil {
			c.mu.Lock()
			c.chatID = md.ChatID
			c.mu.Unlock()
			fmt.Printf("\n[metadata] chat=%s status=%s\n", md.ChatID, md.Status)
		}
	case string(domain.EventKindToolResult):
		var pretty map[string]interface{}
		json.Unmarshal(msg.Data, &pretty)
		formatted, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("[work order]\n%s\n", formatted)
	case string(domain.EventKindTerminal):
		fmt.Print("> ")
	case ws.TypeStopAck:
		fmt.Printf("\n[stop] stopped=%t\n", msg.Stopped)
	case ws.TypeError:
		fmt.Printf("\n[error] %s: %s\n> ", msg.Code, msg.Message)
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/api/chat/v2/ws", "WebSocket server address")
	token := flag.String("token", os.Getenv("WORKORDER_TOKEN"), "Bearer token forwarded to the work-order API")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr, *token)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	fmt.Printf("Connected. Conversation: %s\n", client.conversationID)
	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /stop to halt the answer, /quit to exit")
	fmt.Println()

	// Start reading messages in background
	go client.ReadMessages()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Print("> ")
	for {
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			switch input {
			case "":
				continue
			case "/quit":
				fmt.Println("Bye!")
				return
			case "/stop":
				if err := client.SendStop(); err != nil {
					log.Printf("Send error: %v", err)
				}
				continue
			}

			if err := client.SendChat(input); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
