// File: internal/ws/presence_test.go
package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carebridge/carechat/internal/domain"
)

func testConn(userID uint) *Conn {
	return newConn(domain.Principal{ID: userID, Role: domain.RolePatient}, nil)
}

func TestRegistryAttachOverwrites(t *testing.T) {
	r := NewRegistry()
	first := testConn(1)
	second := testConn(1)

	r.Attach(1, first)
	r.Attach(1, second)

	current, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Same(t, second, current)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryDetachIsGuarded(t *testing.T) {
	r := NewRegistry()
	old := testConn(1)
	replacement := testConn(1)

	r.Attach(1, old)
	r.Attach(1, replacement)

	// The superseded connection reaping itself must not evict its successor.
	r.Detach(1, old)
	current, ok := r.Lookup(1)
	assert.True(t, ok)
	assert.Same(t, replacement, current)

	r.Detach(1, replacement)
	_, ok = r.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestRegistryLookupMiss(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup(42)
	assert.False(t, ok)

	// Detaching an unknown principal is a no-op.
	r.Detach(42, testConn(42))
	assert.Equal(t, 0, r.Count())
}

func TestHubRoomsAndBroadcast(t *testing.T) {
	h := NewHub()
	a := testConn(1)
	b := testConn(2)
	outside := testConn(3)

	h.Join("1_2", a)
	h.Join("1_2", b)
	h.Join("2_3", outside)
	assert.Equal(t, 2, h.Members("1_2"))

	ev := Event{Type: EventUserTyping}
	h.Broadcast("1_2", ev)

	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
	assert.Len(t, outside.send, 0)

	h.Leave("1_2", a)
	assert.Equal(t, 1, h.Members("1_2"))

	h.Leave("1_2", b)
	assert.Equal(t, 0, h.Members("1_2"))
	assert.Equal(t, 1, h.Members("2_3"))
}

func TestConnSendDropsWhenBufferFull(t *testing.T) {
	c := testConn(1)

	for i := 0; i < sendBufferSize; i++ {
		c.Send(Event{Type: EventNewMessage})
	}
	assert.Len(t, c.send, sendBufferSize)

	// The overflow event is dropped, not blocked on.
	c.Send(Event{Type: EventNewMessage})
	assert.Len(t, c.send, sendBufferSize)
}
