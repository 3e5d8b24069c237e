// File: internal/repository/message/interface.go
package message

import (
	"context"
	"time"

	"github.com/carebridge/carechat/internal/domain"
)

// MessageRepository is the durable append-only store of chat messages.
// Messages are partitioned by chat key; ordering inside a conversation is
// by created_at with the auto-increment id breaking ties.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error)
	FindByID(ctx context.Context, messageID uint) (*domain.ChatMessage, error)

	// FindByChatKeyWithPagination returns one page newest-first, plus the
	// total row count. Callers re-order oldest-first before delivery.
	FindByChatKeyWithPagination(ctx context.Context, chatKey string, limit, offset int) ([]domain.ChatMessage, int64, error)

	// MarkRead flips every unread message addressed to receiverID in the
	// conversation and returns how many rows transitioned. Idempotent.
	MarkRead(ctx context.Context, chatKey string, receiverID uint, at time.Time) (int64, error)

	// Edit replaces the content of a message owned by editorID.
	Edit(ctx context.Context, messageID, editorID uint, newContent string, at time.Time) (*domain.ChatMessage, error)

	// SoftDelete hides a message owned by requesterID. Content is retained.
	SoftDelete(ctx context.Context, messageID, requesterID uint) (*domain.ChatMessage, error)

	CountByChatKey(ctx context.Context, chatKey string) (int64, error)
}
