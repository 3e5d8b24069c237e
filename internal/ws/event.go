// File: internal/ws/event.go
package ws

import (
	"encoding/json"
	"time"

	"github.com/carebridge/carechat/internal/domain"
)

// Event is the wire envelope for everything crossing the channel, in both
// directions. Data is decoded per event type at dispatch.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent wraps a payload into an envelope.
func NewEvent(eventType string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Data: data}, nil
}

// Client → server event types.
const (
	EventJoinChat      = "join_chat"
	EventLeaveChat     = "leave_chat"
	EventSendMessage   = "send_message"
	EventTyping        = "typing"
	EventMarkRead      = "mark_read"
	EventEditMessage   = "edit_message"
	EventDeleteMessage = "delete_message"
)

// Server → client event types.
const (
	EventChatHistory         = "chat_history"
	EventNewMessage          = "new_message"
	EventMessageSent         = "message_sent"
	EventMessageNotification = "message_notification"
	EventUserTyping          = "user_typing"
	EventMessagesRead        = "messages_read"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventError               = "error"
)

type JoinChatPayload struct {
	ReceiverID uint `json:"receiverId"`
}

type LeaveChatPayload struct {
	ReceiverID uint `json:"receiverId"`
}

type SendMessagePayload struct {
	ReceiverID  uint   `json:"receiverId"`
	Message     string `json:"message"`
	MessageType string `json:"messageType,omitempty"`
	Ref         string `json:"ref,omitempty"`
}

type TypingPayload struct {
	ReceiverID uint `json:"receiverId"`
	IsTyping   bool `json:"isTyping"`
}

type MarkReadPayload struct {
	ChatID string `json:"chatId"`
}

type EditMessagePayload struct {
	MessageID uint   `json:"messageId"`
	Message   string `json:"message"`
}

type DeleteMessagePayload struct {
	MessageID uint `json:"messageId"`
}

type ChatHistoryPayload struct {
	ChatID   string               `json:"chatId"`
	Messages []domain.ChatMessage `json:"messages"`
}

// NewMessagePayload carries the full persisted message plus the sender's
// display name, denormalized so receivers render without a lookup.
type NewMessagePayload struct {
	domain.ChatMessage
	SenderName string `json:"senderName"`
}

type MessageSentPayload struct {
	Ref     string             `json:"ref,omitempty"`
	Message domain.ChatMessage `json:"message"`
}

type MessageNotificationPayload struct {
	ChatID     string    `json:"chatId"`
	SenderID   uint      `json:"senderId"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

type UserTypingPayload struct {
	UserID   uint `json:"userId"`
	IsTyping bool `json:"isTyping"`
}

type MessagesReadPayload struct {
	ChatID string    `json:"chatId"`
	ReadBy uint      `json:"readBy"`
	ReadAt time.Time `json:"readAt"`
}

type MessageEditedPayload struct {
	Message domain.ChatMessage `json:"message"`
}

type MessageDeletedPayload struct {
	MessageID uint   `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}
