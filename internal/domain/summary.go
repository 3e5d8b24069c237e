// File: internal/domain/summary.go
package domain

import "time"

// ChatSummary is the per-conversation denormalized record: one row per chat
// key holding the last-message snapshot plus each participant's unread
// counter and last-seen timestamp. The participant columns are stored in
// chat-key order (low id first) so a conversation always maps to exactly
// one row regardless of who spoke first.
type ChatSummary struct {
	ID      uint   `gorm:"primarykey" json:"-"`
	ChatKey string `gorm:"uniqueIndex;size:64;not null" json:"chatId"`

	LowID    uint     `gorm:"not null" json:"-"`
	LowRole  UserRole `gorm:"size:10;not null" json:"-"`
	HighID   uint     `gorm:"not null" json:"-"`
	HighRole UserRole `gorm:"size:10;not null" json:"-"`

	UnreadLow  int `gorm:"not null;default:0" json:"-"`
	UnreadHigh int `gorm:"not null;default:0" json:"-"`

	LastSeenLow  *time.Time `json:"-"`
	LastSeenHigh *time.Time `json:"-"`

	LastMessageBody     string    `gorm:"type:text" json:"lastMessage"`
	LastMessageSenderID uint      `json:"lastMessageSenderId"`
	LastMessageAt       time.Time `gorm:"index" json:"lastMessageAt"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// HasParticipant reports whether the given user is one of the two parties.
func (s *ChatSummary) HasParticipant(userID uint) bool {
	return s.LowID == userID || s.HighID == userID
}

// UnreadFor returns the unread counter belonging to the given participant.
// Zero for non-participants.
func (s *ChatSummary) UnreadFor(userID uint) int {
	switch userID {
	case s.LowID:
		return s.UnreadLow
	case s.HighID:
		return s.UnreadHigh
	}
	return 0
}

// PeerOf returns the other participant's id and role. ok is false when the
// given user is not part of the conversation.
func (s *ChatSummary) PeerOf(userID uint) (peerID uint, peerRole UserRole, ok bool) {
	switch userID {
	case s.LowID:
		return s.HighID, s.HighRole, true
	case s.HighID:
		return s.LowID, s.LowRole, true
	}
	return 0, "", false
}

// LastSeenOf returns the participant's last-seen timestamp, nil when the
// participant has never disconnected from this conversation.
func (s *ChatSummary) LastSeenOf(userID uint) *time.Time {
	switch userID {
	case s.LowID:
		return s.LastSeenLow
	case s.HighID:
		return s.LastSeenHigh
	}
	return nil
}
