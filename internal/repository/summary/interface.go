// File: internal/repository/summary/interface.go
package summary

import (
	"context"
	"time"

	"github.com/carebridge/carechat/internal/domain"
)

// SummaryRepository maintains one denormalized row per conversation pair:
// last-message snapshot, per-participant unread counters and last-seen
// timestamps. The unread increment is the one operation in the system that
// must be atomic under concurrent sends from both directions.
type SummaryRepository interface {
	// UpsertOnSend creates the summary on first contact (seeding the
	// receiver's counter at 1) or updates the last-message snapshot and
	// increments the receiver's counter. Issued as a single conditional
	// statement; concurrent sends in both directions both land.
	UpsertOnSend(ctx context.Context, chatKey string, sender domain.Principal, receiverID uint, receiverRole domain.UserRole, body string, at time.Time) error

	// ZeroUnread resets the participant's counter. A missing summary is a
	// no-op, not an error: join_chat may precede the first message.
	ZeroUnread(ctx context.Context, chatKey string, userID uint) error

	// TouchLastSeen stamps the participant's presence timestamp in one
	// conversation.
	TouchLastSeen(ctx context.Context, chatKey string, userID uint, at time.Time) error

	// TouchLastSeenAll stamps the participant's presence timestamp across
	// every conversation they take part in; used on disconnect.
	TouchLastSeenAll(ctx context.Context, userID uint, at time.Time) error

	FindByChatKey(ctx context.Context, chatKey string) (*domain.ChatSummary, error)

	// FindForUser lists the user's conversations, most recent message first.
	FindForUser(ctx context.Context, userID uint) ([]domain.ChatSummary, error)
}
