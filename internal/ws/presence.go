// File: internal/ws/presence.go
package ws

import "sync"

// Registry is the process-wide map from principal id to the connection that
// currently owns their presence. One active session per principal: Attach
// overwrites unconditionally (last connection wins), Detach removes the
// mapping only when it still points at the calling connection, so a
// superseded connection reaping itself cannot evict its successor.
//
// The registry is an injected abstraction so a multi-process deployment can
// swap in a shared implementation without touching handler logic.
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]*Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint]*Conn)}
}

// Attach records c as the active connection for the principal. Any previous
// connection is left to be reaped by its own disconnect event; it is not
// forcibly closed here.
func (r *Registry) Attach(principalID uint, c *Conn) {
	r.mu.Lock()
	r.conns[principalID] = c
	r.mu.Unlock()
}

// Detach removes the mapping, but only if it still belongs to c.
func (r *Registry) Detach(principalID uint, c *Conn) {
	r.mu.Lock()
	if current, ok := r.conns[principalID]; ok && current == c {
		delete(r.conns, principalID)
	}
	r.mu.Unlock()
}

// Lookup returns the principal's active connection, if any. Used to route
// personal-channel notifications to recipients who are online but not
// currently viewing the conversation.
func (r *Registry) Lookup(principalID uint) (*Conn, bool) {
	r.mu.RLock()
	c, ok := r.conns[principalID]
	r.mu.RUnlock()
	return c, ok
}

// Count reports how many principals are currently online.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.conns)
	r.mu.RUnlock()
	return n
}
