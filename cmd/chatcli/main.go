// File: cmd/chatcli/main.go
//
// chatcli is a terminal client for the messaging channel, mainly for
// exercising the server end to end during development:
//
//	CHAT_SERVER=http://localhost:8080 CHAT_TOKEN=<jwt> CHAT_PEER=2 go run ./cmd/chatcli
//
// Every stdin line is sent to the peer; history and incoming events are
// printed as they arrive. The send acknowledgement wait comes from the
// regular configuration surface (ACK_TIMEOUT_SECONDS).
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/carebridge/carechat/internal/config"
	"github.com/carebridge/carechat/internal/ws"
	"github.com/carebridge/carechat/pkg/chatclient"
)

func main() {
	cfg := config.Load()
	endpoint := getenv("CHAT_SERVER", "http://localhost:8080")
	token := os.Getenv("CHAT_TOKEN")
	if token == "" {
		log.Fatal("CHAT_TOKEN is required")
	}
	peerID, err := strconv.ParseUint(getenv("CHAT_PEER", ""), 10, 32)
	if err != nil || peerID == 0 {
		log.Fatal("CHAT_PEER must be the numeric id of the user to chat with")
	}

	client := chatclient.New(endpoint, token, chatclient.Handlers{
		OnConnected: func() {
			fmt.Println("* connected")
		},
		OnDisconnected: func(err error) {
			fmt.Printf("* disconnected: %v\n", err)
			os.Exit(0)
		},
		OnHistory: func(chatID string, messages []chatclient.LocalMessage) {
			fmt.Printf("* joined %s (%d messages)\n", chatID, len(messages))
			for _, m := range messages {
				printMessage(m)
			}
		},
		OnNewMessage: func(m chatclient.LocalMessage) {
			printMessage(m)
		},
		OnMessageEdited: func(m chatclient.LocalMessage) {
			fmt.Printf("* message %d edited: %s\n", m.ID, m.Body)
		},
		OnMessageDeleted: func(messageID uint, chatID string) {
			fmt.Printf("* message %d deleted\n", messageID)
		},
		OnNotification: func(n ws.MessageNotificationPayload) {
			fmt.Printf("* notification from %s: %s\n", n.SenderName, n.Message)
		},
		OnTyping: func(userID uint, isTyping bool) {
			if isTyping {
				fmt.Printf("* user %d is typing...\n", userID)
			}
		},
		OnMessagesRead: func(chatID string, readBy uint, readAt time.Time) {
			fmt.Printf("* user %d read %s\n", readBy, chatID)
		},
		OnError: func(message string) {
			fmt.Printf("* server error: %s\n", message)
		},
	}, chatclient.Options{AckTimeout: cfg.AckTimeout})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	if err := client.JoinChat(uint(peerID)); err != nil {
		log.Fatalf("join failed: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := client.SendMessage(uint(peerID), line, ""); err != nil {
			fmt.Printf("* send failed: %v\n", err)
		}
	}
}

func printMessage(m chatclient.LocalMessage) {
	body := m.Body
	if m.IsDeleted {
		body = "(deleted)"
	}
	fmt.Printf("[%s] %d: %s\n", m.CreatedAt.Format("15:04"), m.SenderID, body)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
