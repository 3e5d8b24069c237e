// File: internal/repository/message/message_repository.go
package message

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/carebridge/carechat/internal/domain"
)

var ErrMessageNotFound = errors.New("message not found")
var ErrForbiddenMessageAccess = errors.New("message does not belong to requester")

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create - Enhanced with comprehensive input validation and secure logging
func (r *gormMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	if err := r.validateMessageInput(msg); err != nil {
		log.Printf("[MessageRepository] Validation failed: %v", err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	err := r.db.WithContext(ctx).Create(msg).Error
	if err != nil {
		// Secure logging - no message content exposed
		log.Printf("[MessageRepository] Database error during message creation for chat %s: %v", msg.ChatKey, err)
		return nil, errors.New("database error creating message")
	}

	return msg, nil
}

// FindByID - Enhanced with secure error handling
func (r *gormMessageRepository) FindByID(ctx context.Context, messageID uint) (*domain.ChatMessage, error) {
	if messageID == 0 {
		return nil, errors.New("invalid message ID")
	}

	var msg domain.ChatMessage
	err := r.db.WithContext(ctx).First(&msg, messageID).Error
	return r.handleFindError(err, &msg, "FindByID")
}

// FindByChatKeyWithPagination - Memory safety: prevents OOM with large conversations.
// Newest page first; the service layer reverses each page to oldest-first
// before handing it to a client.
func (r *gormMessageRepository) FindByChatKeyWithPagination(ctx context.Context, chatKey string, limit, offset int) ([]domain.ChatMessage, int64, error) {
	if chatKey == "" {
		return nil, 0, errors.New("invalid chat key")
	}

	// Memory safety: enforce maximum limit
	if limit <= 0 || limit > 1000 {
		return nil, 0, errors.New("invalid limit: must be between 1 and 1000")
	}
	if offset < 0 {
		return nil, 0, errors.New("invalid offset: must be >= 0")
	}

	var messages []domain.ChatMessage
	var total int64

	// Efficient counting without loading data
	if err := r.db.WithContext(ctx).Model(&domain.ChatMessage{}).Where("chat_key = ?", chatKey).Count(&total).Error; err != nil {
		log.Printf("[MessageRepository] Database error counting messages for chat %s: %v", chatKey, err)
		return nil, 0, errors.New("database error counting messages")
	}

	err := r.db.WithContext(ctx).
		Where("chat_key = ?", chatKey).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error

	if err != nil {
		log.Printf("[MessageRepository] Database error in paginated query for chat %s: %v", chatKey, err)
		return nil, 0, errors.New("database error retrieving paginated messages")
	}

	return messages, total, nil
}

// MarkRead - Idempotent: the WHERE clause only matches rows still unread, so
// re-invoking on an already-read conversation updates zero rows and is not
// an error.
func (r *gormMessageRepository) MarkRead(ctx context.Context, chatKey string, receiverID uint, at time.Time) (int64, error) {
	if chatKey == "" || receiverID == 0 {
		return 0, errors.New("invalid chat key or receiver ID")
	}

	result := r.db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("chat_key = ? AND receiver_id = ? AND is_read = ?", chatKey, receiverID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": at,
		})

	if result.Error != nil {
		log.Printf("[MessageRepository] Database error marking messages read for chat %s: %v", chatKey, result.Error)
		return 0, errors.New("database error marking messages read")
	}

	if result.RowsAffected > 0 {
		log.Printf("[MessageRepository] Marked %d messages read for user %d in chat %s", result.RowsAffected, receiverID, chatKey)
	}
	return result.RowsAffected, nil
}

// Edit - Sender-only. The ownership check is scoped to (messageID, editorID)
// so concurrent edits of different messages never contend.
func (r *gormMessageRepository) Edit(ctx context.Context, messageID, editorID uint, newContent string, at time.Time) (*domain.ChatMessage, error) {
	if messageID == 0 || editorID == 0 {
		return nil, errors.New("invalid message ID or editor ID")
	}
	if err := r.validateContent(newContent); err != nil {
		return nil, fmt.Errorf("content validation: %w", err)
	}

	msg, err := r.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		// A hidden message cannot be edited; indistinguishable from absent.
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != editorID {
		return nil, ErrForbiddenMessageAccess
	}

	result := r.db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("id = ? AND sender_id = ?", messageID, editorID).
		Updates(map[string]interface{}{
			"content":   newContent,
			"edited_at": at,
		})
	if result.Error != nil {
		log.Printf("[MessageRepository] Database error editing message ID %d: %v", messageID, result.Error)
		return nil, errors.New("database error editing message")
	}

	msg.Content = newContent
	msg.EditedAt = &at
	return msg, nil
}

// SoftDelete - Sender-only. The row is never physically removed; rendering
// layers hide it via the is_deleted flag. Deleting twice is a no-op.
func (r *gormMessageRepository) SoftDelete(ctx context.Context, messageID, requesterID uint) (*domain.ChatMessage, error) {
	if messageID == 0 || requesterID == 0 {
		return nil, errors.New("invalid message ID or requester ID")
	}

	msg, err := r.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != requesterID {
		return nil, ErrForbiddenMessageAccess
	}
	if msg.IsDeleted {
		return msg, nil
	}

	result := r.db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("id = ? AND sender_id = ?", messageID, requesterID).
		Update("is_deleted", true)
	if result.Error != nil {
		log.Printf("[MessageRepository] Database error deleting message ID %d: %v", messageID, result.Error)
		return nil, errors.New("database error deleting message")
	}

	msg.IsDeleted = true
	return msg, nil
}

// CountByChatKey - Performance: efficient message counting
func (r *gormMessageRepository) CountByChatKey(ctx context.Context, chatKey string) (int64, error) {
	if chatKey == "" {
		return 0, errors.New("invalid chat key")
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ChatMessage{}).Where("chat_key = ?", chatKey).Count(&count).Error
	if err != nil {
		log.Printf("[MessageRepository] Database error counting messages for chat %s: %v", chatKey, err)
		return 0, errors.New("database error counting chat messages")
	}

	return count, nil
}

// ===== SECURITY VALIDATION HELPERS =====

// validateMessageInput - Comprehensive input validation
func (r *gormMessageRepository) validateMessageInput(msg *domain.ChatMessage) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}

	if msg.ChatKey == "" {
		return errors.New("chat key is required")
	}
	if msg.SenderID == 0 || msg.ReceiverID == 0 {
		return errors.New("sender and receiver IDs are required")
	}
	if msg.SenderID == msg.ReceiverID {
		return errors.New("sender and receiver must differ")
	}

	if err := r.validateContent(msg.Content); err != nil {
		return fmt.Errorf("content validation: %w", err)
	}

	if msg.MessageType != "" && !msg.MessageType.IsValid() {
		return errors.New("invalid message type")
	}

	return nil
}

// validateContent - Content validation with security checks
func (r *gormMessageRepository) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message content cannot be empty")
	}

	if len(content) > 10000 {
		return errors.New("message content too long (max 10000 characters)")
	}

	// Basic XSS protection for medical content
	if strings.Contains(content, "<script") || strings.Contains(content, "javascript:") {
		return errors.New("invalid characters detected in message content")
	}

	return nil
}

// ===== ERROR HANDLING HELPERS =====

// handleFindError - Secure error handling without data leakage
func (r *gormMessageRepository) handleFindError(err error, msg *domain.ChatMessage, operation string) (*domain.ChatMessage, error) {
	if err == nil {
		return msg, nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}

	log.Printf("[MessageRepository] %s database error: %v", operation, err)
	return nil, errors.New("database query failed")
}
