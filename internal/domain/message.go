// File: internal/domain/message.go
package domain

import "time"

// MessageKind is the payload type of a chat message.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
	KindVoice MessageKind = "voice"
)

// IsValid reports whether the kind is one of the supported payload types.
func (k MessageKind) IsValid() bool {
	switch k {
	case KindText, KindImage, KindFile, KindVoice:
		return true
	}
	return false
}

// ChatMessage is the durable record of a single message between a patient
// and a doctor. Rows are append-only; the only mutations are read-marking
// (receiver-triggered), edit (sender-only) and soft delete (sender-only).
// A soft-deleted row keeps its content but is hidden from rendering.
type ChatMessage struct {
	ID           uint        `gorm:"primarykey" json:"id"`
	ChatKey      string      `gorm:"size:64;index;not null" json:"chatId"`
	SenderID     uint        `gorm:"not null" json:"senderId"`
	SenderRole   UserRole    `gorm:"size:10;not null" json:"senderRole"`
	ReceiverID   uint        `gorm:"not null" json:"receiverId"`
	ReceiverRole UserRole    `gorm:"size:10;not null" json:"receiverRole"`
	Content      string      `gorm:"type:text;not null" json:"message"`
	MessageType  MessageKind `gorm:"size:10;not null;default:text" json:"messageType"`
	IsRead       bool        `gorm:"not null;default:false" json:"isRead"`
	ReadAt       *time.Time  `json:"readAt,omitempty"`
	EditedAt     *time.Time  `json:"editedAt,omitempty"`
	IsDeleted    bool        `gorm:"not null;default:false" json:"isDeleted"`
	CreatedAt    time.Time   `gorm:"index" json:"createdAt"`
}
