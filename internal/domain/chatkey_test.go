// File: internal/domain/chatkey_test.go
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatKeyIsCommutative(t *testing.T) {
	assert.Equal(t, ChatKey(7, 42), ChatKey(42, 7))
	assert.Equal(t, "7_42", ChatKey(42, 7))
}

func TestChatKeyDistinctPairsNeverCollide(t *testing.T) {
	// Concatenation without a separator would collide (1,23) with (12,3);
	// the underscore keeps the pair recoverable.
	assert.NotEqual(t, ChatKey(1, 23), ChatKey(12, 3))
	assert.Equal(t, "1_23", ChatKey(23, 1))
	assert.Equal(t, "3_12", ChatKey(12, 3))
}

func TestParseChatKeyRoundTrip(t *testing.T) {
	low, high, err := ParseChatKey(ChatKey(42, 7))
	require.NoError(t, err)
	assert.Equal(t, uint(7), low)
	assert.Equal(t, uint(42), high)
}

func TestParseChatKeyRejectsMalformedKeys(t *testing.T) {
	for _, key := range []string{"", "7", "7_", "_42", "a_b", "7_42_9x", "42_7"} {
		_, _, err := ParseChatKey(key)
		assert.ErrorIs(t, err, ErrInvalidChatKey, "key %q", key)
	}
}

func TestChatKeyHasParticipant(t *testing.T) {
	key := ChatKey(7, 42)

	assert.True(t, ChatKeyHasParticipant(key, 7))
	assert.True(t, ChatKeyHasParticipant(key, 42))
	assert.False(t, ChatKeyHasParticipant(key, 8))
	assert.False(t, ChatKeyHasParticipant("garbage", 7))
}
