// File: internal/services/chat_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carebridge/carechat/internal/domain"
	"github.com/carebridge/carechat/internal/repository/message"
	"github.com/carebridge/carechat/internal/repository/summary"
	"github.com/carebridge/carechat/internal/repository/user"
)

// ErrNotParticipant is returned when a principal addresses a conversation
// they are not part of.
var ErrNotParticipant = errors.New("not a participant of this conversation")

// ChatService orchestrates the message and summary stores. The channel
// server and the REST handlers both sit on top of it; neither touches a
// repository directly.
type ChatService struct {
	messageRepo message.MessageRepository
	summaryRepo summary.SummaryRepository
	userRepo    user.UserRepository
	pageSize    int
	logger      Logger
}

func NewChatService(messageRepo message.MessageRepository, summaryRepo summary.SummaryRepository, userRepo user.UserRepository, pageSize int, logger Logger) (*ChatService, error) {
	if messageRepo == nil || summaryRepo == nil || userRepo == nil {
		return nil, errors.New("chat service requires message, summary and user repositories")
	}
	if pageSize <= 0 || pageSize > 1000 {
		return nil, fmt.Errorf("invalid history page size: %d", pageSize)
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &ChatService{
		messageRepo: messageRepo,
		summaryRepo: summaryRepo,
		userRepo:    userRepo,
		pageSize:    pageSize,
		logger:      logger,
	}, nil
}

// PageSize returns the configured history page length.
func (s *ChatService) PageSize() int { return s.pageSize }

// SendMessage persists a message and updates the conversation summary.
// The append is authoritative: if it fails, the summary is never touched and
// nothing is observable to the receiver. A summary failure after a
// successful append is still reported as an error so the caller does not
// broadcast; the unread counter is then behind by one until the next send,
// which is the benign direction (the message itself is durable).
func (s *ChatService) SendMessage(ctx context.Context, sender domain.Principal, receiverID uint, body string, kind domain.MessageKind) (*domain.ChatMessage, error) {
	if kind == "" {
		kind = domain.KindText
	}

	chatKey := domain.ChatKey(sender.ID, receiverID)
	now := time.Now().UTC()

	msg := &domain.ChatMessage{
		ChatKey:      chatKey,
		SenderID:     sender.ID,
		SenderRole:   sender.Role,
		ReceiverID:   receiverID,
		ReceiverRole: sender.Role.Counterpart(),
		Content:      body,
		MessageType:  kind,
		CreatedAt:    now,
	}

	persisted, err := s.messageRepo.Create(ctx, msg)
	if err != nil {
		return nil, err
	}

	err = s.summaryRepo.UpsertOnSend(ctx, chatKey, sender, receiverID, persisted.ReceiverRole, body, now)
	if err != nil {
		s.logger.Error("summary update failed after append", "chat", chatKey, "message_id", persisted.ID)
		return nil, err
	}

	return persisted, nil
}

// History returns one page of a conversation, oldest-first. The storage
// layer serves pages newest-first; the page is reversed here before
// delivery so clients can render top-down.
func (s *ChatService) History(ctx context.Context, principal domain.Principal, chatKey string, page int) ([]domain.ChatMessage, error) {
	if !domain.ChatKeyHasParticipant(chatKey, principal.ID) {
		return nil, ErrNotParticipant
	}
	if page < 0 {
		page = 0
	}

	messages, _, err := s.messageRepo.FindByChatKeyWithPagination(ctx, chatKey, s.pageSize, page*s.pageSize)
	if err != nil {
		return nil, err
	}

	// Reverse newest-first storage order to oldest-first delivery order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// MarkConversationRead flips unread messages addressed to the principal and
// zeroes their summary counter. Idempotent end to end.
func (s *ChatService) MarkConversationRead(ctx context.Context, principal domain.Principal, chatKey string) (int64, error) {
	if !domain.ChatKeyHasParticipant(chatKey, principal.ID) {
		return 0, ErrNotParticipant
	}

	transitioned, err := s.messageRepo.MarkRead(ctx, chatKey, principal.ID, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	if err := s.summaryRepo.ZeroUnread(ctx, chatKey, principal.ID); err != nil {
		return transitioned, err
	}

	return transitioned, nil
}

// EditMessage replaces a message body on behalf of its sender.
func (s *ChatService) EditMessage(ctx context.Context, principal domain.Principal, messageID uint, newBody string) (*domain.ChatMessage, error) {
	return s.messageRepo.Edit(ctx, messageID, principal.ID, newBody, time.Now().UTC())
}

// DeleteMessage soft-deletes a message on behalf of its sender.
func (s *ChatService) DeleteMessage(ctx context.Context, principal domain.Principal, messageID uint) (*domain.ChatMessage, error) {
	return s.messageRepo.SoftDelete(ctx, messageID, principal.ID)
}

// LeaveConversation stamps the principal's last-seen for one conversation
// when they close it while staying connected.
func (s *ChatService) LeaveConversation(ctx context.Context, principal domain.Principal, chatKey string) error {
	if !domain.ChatKeyHasParticipant(chatKey, principal.ID) {
		return ErrNotParticipant
	}
	return s.summaryRepo.TouchLastSeen(ctx, chatKey, principal.ID, time.Now().UTC())
}

// RecordDisconnect stamps last-seen across every conversation the principal
// participates in.
func (s *ChatService) RecordDisconnect(ctx context.Context, principal domain.Principal) error {
	return s.summaryRepo.TouchLastSeenAll(ctx, principal.ID, time.Now().UTC())
}

// ConversationView is the sidebar projection of a summary: the peer's
// identity denormalized next to the last message and the viewer's own
// unread counter.
type ConversationView struct {
	ChatID              string            `json:"chatId"`
	PeerID              uint              `json:"peerId"`
	PeerName            string            `json:"peerName"`
	PeerRole            domain.UserRole   `json:"peerRole"`
	PeerLastSeen        *time.Time        `json:"peerLastSeen,omitempty"`
	LastMessage         string            `json:"lastMessage"`
	LastMessageSenderID uint              `json:"lastMessageSenderId"`
	LastMessageAt       time.Time         `json:"lastMessageAt"`
	UnreadCount         int               `json:"unreadCount"`
}

// Conversations lists the principal's conversations, most recent first.
func (s *ChatService) Conversations(ctx context.Context, principal domain.Principal) ([]ConversationView, error) {
	summaries, err := s.summaryRepo.FindForUser(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(summaries))
	for i := range summaries {
		sum := &summaries[i]
		peerID, peerRole, ok := sum.PeerOf(principal.ID)
		if !ok {
			continue
		}

		peerName := ""
		if peer, err := s.userRepo.FindByID(ctx, peerID); err == nil {
			peerName = peer.DisplayName
			if peerName == "" {
				peerName = peer.Username
			}
		} else {
			s.logger.Warn("peer lookup failed for conversation listing", "chat", sum.ChatKey, "peer_id", peerID)
		}

		views = append(views, ConversationView{
			ChatID:              sum.ChatKey,
			PeerID:              peerID,
			PeerName:            peerName,
			PeerRole:            peerRole,
			PeerLastSeen:        sum.LastSeenOf(peerID),
			LastMessage:         sum.LastMessageBody,
			LastMessageSenderID: sum.LastMessageSenderID,
			LastMessageAt:       sum.LastMessageAt,
			UnreadCount:         sum.UnreadFor(principal.ID),
		})
	}

	return views, nil
}
