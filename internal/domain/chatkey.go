// File: internal/domain/chatkey.go
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ChatKey derives the canonical conversation key for two participants.
// The pair is sorted before concatenation, so ChatKey(a, b) == ChatKey(b, a)
// and distinct pairs never collide. The same string names both the storage
// partition and the transport room; the two namespaces are kept conceptually
// separate even though the value coincides.
func ChatKey(a, b uint) string {
	low, high := SortPair(a, b)
	return fmt.Sprintf("%d_%d", low, high)
}

// SortPair orders two participant ids into (low, high).
func SortPair(a, b uint) (low, high uint) {
	if a <= b {
		return a, b
	}
	return b, a
}

// ErrInvalidChatKey is returned for keys that were not produced by ChatKey.
var ErrInvalidChatKey = errors.New("invalid chat key")

// ParseChatKey splits a chat key back into its ordered participant pair.
func ParseChatKey(key string) (low, high uint, err error) {
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return 0, 0, ErrInvalidChatKey
	}
	l, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, ErrInvalidChatKey
	}
	h, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, ErrInvalidChatKey
	}
	if l > h {
		return 0, 0, ErrInvalidChatKey
	}
	return uint(l), uint(h), nil
}

// ChatKeyHasParticipant reports whether userID is one of the key's two
// parties. Malformed keys never match.
func ChatKeyHasParticipant(key string, userID uint) bool {
	low, high, err := ParseChatKey(key)
	if err != nil {
		return false
	}
	return low == userID || high == userID
}
