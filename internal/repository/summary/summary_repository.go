// File: internal/repository/summary/summary_repository.go
package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carebridge/carechat/internal/domain"
)

var ErrSummaryNotFound = errors.New("conversation summary not found")

type gormSummaryRepository struct {
	db *gorm.DB
}

func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &gormSummaryRepository{db: db}
}

// UpsertOnSend - The increment rides inside the ON CONFLICT assignment, so
// two near-simultaneous sends (one per direction) serialize at the database
// and both land; there is no application-level read-modify-write to clobber.
// The sender's own counter is never touched.
func (r *gormSummaryRepository) UpsertOnSend(ctx context.Context, chatKey string, sender domain.Principal, receiverID uint, receiverRole domain.UserRole, body string, at time.Time) error {
	if err := r.validateUpsertInput(chatKey, sender, receiverID, body); err != nil {
		log.Printf("[SummaryRepository] Validation failed: %v", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	low, high := domain.SortPair(sender.ID, receiverID)

	row := domain.ChatSummary{
		ChatKey:             chatKey,
		LowID:               low,
		HighID:              high,
		LastMessageBody:     body,
		LastMessageSenderID: sender.ID,
		LastMessageAt:       at,
	}
	unreadCol := "unread_high"
	if sender.ID == low {
		row.LowRole = sender.Role
		row.HighRole = receiverRole
		row.UnreadHigh = 1
	} else {
		row.HighRole = sender.Role
		row.LowRole = receiverRole
		row.UnreadLow = 1
		unreadCol = "unread_low"
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_message_body":      body,
			"last_message_sender_id": sender.ID,
			"last_message_at":        at,
			"updated_at":             at,
			unreadCol:                gorm.Expr(unreadCol + " + 1"),
		}),
	}).Create(&row).Error

	if err != nil {
		log.Printf("[SummaryRepository] Database error upserting summary for chat %s: %v", chatKey, err)
		return errors.New("database error updating conversation summary")
	}

	return nil
}

// ZeroUnread - No row means no conversation yet; that is fine on room join.
func (r *gormSummaryRepository) ZeroUnread(ctx context.Context, chatKey string, userID uint) error {
	col, err := r.unreadColumnFor(chatKey, userID)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&domain.ChatSummary{}).
		Where("chat_key = ?", chatKey).
		Update(col, 0)

	if result.Error != nil {
		log.Printf("[SummaryRepository] Database error zeroing unread for chat %s: %v", chatKey, result.Error)
		return errors.New("database error zeroing unread counter")
	}

	return nil
}

func (r *gormSummaryRepository) TouchLastSeen(ctx context.Context, chatKey string, userID uint, at time.Time) error {
	col, err := r.lastSeenColumnFor(chatKey, userID)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&domain.ChatSummary{}).
		Where("chat_key = ?", chatKey).
		Update(col, at)

	if result.Error != nil {
		log.Printf("[SummaryRepository] Database error touching last seen for chat %s: %v", chatKey, result.Error)
		return errors.New("database error updating last seen")
	}

	return nil
}

// TouchLastSeenAll - Two bulk updates, one per side the user may occupy.
func (r *gormSummaryRepository) TouchLastSeenAll(ctx context.Context, userID uint, at time.Time) error {
	if userID == 0 {
		return errors.New("invalid user ID")
	}

	if err := r.db.WithContext(ctx).
		Model(&domain.ChatSummary{}).
		Where("low_id = ?", userID).
		Update("last_seen_low", at).Error; err != nil {
		log.Printf("[SummaryRepository] Database error touching last seen (low side) for user %d: %v", userID, err)
		return errors.New("database error updating last seen")
	}

	if err := r.db.WithContext(ctx).
		Model(&domain.ChatSummary{}).
		Where("high_id = ?", userID).
		Update("last_seen_high", at).Error; err != nil {
		log.Printf("[SummaryRepository] Database error touching last seen (high side) for user %d: %v", userID, err)
		return errors.New("database error updating last seen")
	}

	return nil
}

func (r *gormSummaryRepository) FindByChatKey(ctx context.Context, chatKey string) (*domain.ChatSummary, error) {
	if chatKey == "" {
		return nil, errors.New("invalid chat key")
	}

	var s domain.ChatSummary
	err := r.db.WithContext(ctx).Where("chat_key = ?", chatKey).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSummaryNotFound
		}
		log.Printf("[SummaryRepository] FindByChatKey database error: %v", err)
		return nil, errors.New("database query failed")
	}

	return &s, nil
}

// FindForUser - Sidebar listing, most recent conversation first.
func (r *gormSummaryRepository) FindForUser(ctx context.Context, userID uint) ([]domain.ChatSummary, error) {
	if userID == 0 {
		return nil, errors.New("invalid user ID")
	}

	var summaries []domain.ChatSummary
	err := r.db.WithContext(ctx).
		Where("low_id = ? OR high_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&summaries).Error

	if err != nil {
		log.Printf("[SummaryRepository] Database error listing summaries for user %d: %v", userID, err)
		return nil, errors.New("database error listing conversation summaries")
	}

	return summaries, nil
}

// ===== VALIDATION HELPERS =====

func (r *gormSummaryRepository) validateUpsertInput(chatKey string, sender domain.Principal, receiverID uint, body string) error {
	if chatKey == "" {
		return errors.New("chat key is required")
	}
	if sender.ID == 0 || receiverID == 0 {
		return errors.New("sender and receiver IDs are required")
	}
	if sender.ID == receiverID {
		return errors.New("sender and receiver must differ")
	}
	if domain.ChatKey(sender.ID, receiverID) != chatKey {
		return errors.New("chat key does not match participant pair")
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("message body is required")
	}
	return nil
}

// unreadColumnFor resolves which side of the row the user occupies. The key
// itself encodes the pair, so membership needs no extra query.
func (r *gormSummaryRepository) unreadColumnFor(chatKey string, userID uint) (string, error) {
	low, high, err := domain.ParseChatKey(chatKey)
	if err != nil {
		return "", err
	}
	switch userID {
	case low:
		return "unread_low", nil
	case high:
		return "unread_high", nil
	}
	return "", errors.New("user is not a participant of this conversation")
}

func (r *gormSummaryRepository) lastSeenColumnFor(chatKey string, userID uint) (string, error) {
	low, high, err := domain.ParseChatKey(chatKey)
	if err != nil {
		return "", err
	}
	switch userID {
	case low:
		return "last_seen_low", nil
	case high:
		return "last_seen_high", nil
	}
	return "", errors.New("user is not a participant of this conversation")
}
