// File: pkg/chatclient/client.go
//
// Package chatclient is the Go consumer of the carechat channel: a thin,
// reconnect-aware wrapper over one websocket that keeps an optimistic local
// message list, confirms sends against server acknowledgements with a
// timeout fallback, and debounces typing signals.
//
// The consumer does not own a retry loop. It reacts to transport-level
// connect/disconnect: the embedding application decides when to call
// Connect again, and buffered intents are never replayed automatically.
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carebridge/carechat/internal/domain"
	"github.com/carebridge/carechat/internal/ws"
)

var (
	// ErrNotConnected is returned when an operation requires a live
	// connection and there is none. The caller must reconnect and retry
	// explicitly; nothing is queued.
	ErrNotConnected = errors.New("chatclient: not connected")

	// ErrSendTimeout is returned when no acknowledgement arrived in time.
	// The send may still have landed server-side; the eventual broadcast is
	// the authority, not this timeout.
	ErrSendTimeout = errors.New("chatclient: send not acknowledged in time")
)

// DeliveryState tracks a provisional message through its tiny state machine:
// Pending until the ack race resolves, then gone (acked) or Failed in place.
type DeliveryState string

const (
	StatePending DeliveryState = "pending"
	StateFailed  DeliveryState = "failed"
)

// LocalMessage is one entry of the client's ordered message list: either an
// authoritative message from the server (ID set) or a provisional local
// placeholder awaiting acknowledgement (Ref set, ID zero).
type LocalMessage struct {
	ID         uint
	Ref        string
	ChatID     string
	SenderID   uint
	ReceiverID uint
	Body       string
	Kind       domain.MessageKind
	State      DeliveryState
	SenderName string
	IsDeleted  bool
	EditedAt   *time.Time
	CreatedAt  time.Time
}

// Handlers are the application callbacks for server-pushed events. All are
// optional; they are invoked from the read loop, one at a time.
type Handlers struct {
	OnConnected      func()
	OnDisconnected   func(err error)
	OnHistory        func(chatID string, messages []LocalMessage)
	OnNewMessage     func(msg LocalMessage)
	OnMessageEdited  func(msg LocalMessage)
	OnMessageDeleted func(messageID uint, chatID string)
	OnNotification   func(n ws.MessageNotificationPayload)
	OnTyping         func(userID uint, isTyping bool)
	OnMessagesRead   func(chatID string, readBy uint, readAt time.Time)
	OnError          func(message string)
}

// Options tune the consumer's two timers.
type Options struct {
	// AckTimeout bounds the wait for a send acknowledgement. Zero means 10s.
	AckTimeout time.Duration
	// TypingQuiet is the keystroke-free interval after which a typing-stop
	// is emitted. Zero means 2s.
	TypingQuiet time.Duration
}

// Client is the channel consumer. Safe for concurrent use; in particular
// multiple SendMessage calls may be in flight at once, each with its own
// single-use acknowledgement listener.
type Client struct {
	endpoint string
	token    string
	handlers Handlers

	ackTimeout  time.Duration
	typingQuiet time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	messages  []LocalMessage
	pending   map[string]chan error

	writeMu sync.Mutex

	typingMu     sync.Mutex
	typingActive bool
	typingTimer  *time.Timer
}

// New builds a consumer for the given server endpoint (host:port or URL
// without the /ws path) and session credential.
func New(endpoint, token string, handlers Handlers, opts Options) *Client {
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 10 * time.Second
	}
	if opts.TypingQuiet <= 0 {
		opts.TypingQuiet = 2 * time.Second
	}
	return &Client{
		endpoint:    endpoint,
		token:       token,
		handlers:    handlers,
		ackTimeout:  opts.AckTimeout,
		typingQuiet: opts.TypingQuiet,
		pending:     make(map[string]chan error),
	}
}

// Connect dials the channel and starts the read loop. It returns once the
// handshake completes; events flow through the registered handlers
// afterwards. Calling Connect on an already-connected client is an error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return errors.New("chatclient: already connected")
	}
	c.mu.Unlock()

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Scheme == "http" {
		u.Scheme = "ws"
	} else if u.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if c.handlers.OnConnected != nil {
		c.handlers.OnConnected()
	}

	go c.readLoop(conn)
	return nil
}

// Close tears the connection down deliberately.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected reports the transport state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Messages returns a snapshot of the local ordered message list, including
// pending and failed provisional entries.
func (c *Client) Messages() []LocalMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LocalMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

// SendMessage appends a provisional entry for immediate display, emits the
// send and races the acknowledgement against the timeout. On ack the
// provisional entry is removed (the authoritative broadcast supplies the
// real one); on error-ack or timeout it is marked failed in place, never
// silently dropped.
func (c *Client) SendMessage(receiverID uint, body string, kind domain.MessageKind) error {
	if kind == "" {
		kind = domain.KindText
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}

	ref := uuid.NewString()
	c.messages = append(c.messages, LocalMessage{
		Ref:        ref,
		ReceiverID: receiverID,
		Body:       body,
		Kind:       kind,
		State:      StatePending,
		CreatedAt:  time.Now(),
	})

	// Single-use listener: registered before the write so a fast ack cannot
	// slip past, removed on every exit path below.
	ackCh := make(chan error, 1)
	c.pending[ref] = ackCh
	c.mu.Unlock()

	err := c.writeEvent(ws.EventSendMessage, ws.SendMessagePayload{
		ReceiverID:  receiverID,
		Message:     body,
		MessageType: string(kind),
		Ref:         ref,
	})
	if err != nil {
		c.resolvePending(ref)
		c.markFailed(ref)
		return err
	}

	select {
	case ackErr := <-ackCh:
		c.resolvePending(ref)
		if ackErr != nil {
			c.markFailed(ref)
			return ackErr
		}
		c.removeProvisional(ref)
		return nil
	case <-time.After(c.ackTimeout):
		c.resolvePending(ref)
		c.markFailed(ref)
		return ErrSendTimeout
	}
}

// JoinChat clears the local list (authoritative history is about to replace
// it) and asks the server for the conversation.
func (c *Client) JoinChat(receiverID uint) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.messages = c.messages[:0]
	c.mu.Unlock()

	return c.writeEvent(ws.EventJoinChat, ws.JoinChatPayload{ReceiverID: receiverID})
}

// LeaveChat closes the conversation view without dropping the connection;
// the server releases the room membership and stamps last-seen.
func (c *Client) LeaveChat(receiverID uint) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.writeEvent(ws.EventLeaveChat, ws.LeaveChatPayload{ReceiverID: receiverID})
}

// MarkRead reports the conversation as read.
func (c *Client) MarkRead(chatID string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.writeEvent(ws.EventMarkRead, ws.MarkReadPayload{ChatID: chatID})
}

// EditMessage requests a sender-only edit of a delivered message.
func (c *Client) EditMessage(messageID uint, newBody string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.writeEvent(ws.EventEditMessage, ws.EditMessagePayload{MessageID: messageID, Message: newBody})
}

// DeleteMessage requests a sender-only soft delete.
func (c *Client) DeleteMessage(messageID uint) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.writeEvent(ws.EventDeleteMessage, ws.DeleteMessagePayload{MessageID: messageID})
}

// TypingPulse is called on every keystroke. The first pulse of a burst
// emits typing-start; a stop is scheduled after the quiet interval and
// rescheduled by each subsequent pulse.
func (c *Client) TypingPulse(receiverID uint) {
	if !c.IsConnected() {
		return
	}

	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	if !c.typingActive {
		c.typingActive = true
		_ = c.writeEvent(ws.EventTyping, ws.TypingPayload{ReceiverID: receiverID, IsTyping: true})
	}

	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.typingTimer = time.AfterFunc(c.typingQuiet, func() {
		c.typingMu.Lock()
		c.typingActive = false
		c.typingMu.Unlock()
		_ = c.writeEvent(ws.EventTyping, ws.TypingPayload{ReceiverID: receiverID, IsTyping: false})
	})
}

// ===== internals =====

// writeEvent serializes writes; gorilla connections allow one writer at a time.
func (c *Client) writeEvent(eventType string, payload interface{}) error {
	ev, err := ws.NewEvent(eventType, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(ev)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	var readErr error
	for {
		var ev ws.Event
		if err := conn.ReadJSON(&ev); err != nil {
			readErr = err
			break
		}
		c.handleEvent(ev)
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	_ = conn.Close()

	// Pending ack listeners are not failed explicitly here: the socket is
	// gone, no ack can arrive, and each send's own timeout resolves it.
	if c.handlers.OnDisconnected != nil {
		c.handlers.OnDisconnected(readErr)
	}
}

func (c *Client) handleEvent(ev ws.Event) {
	switch ev.Type {
	case ws.EventChatHistory:
		var p ws.ChatHistoryPayload
		if unmarshalData(ev, &p) {
			c.replaceHistory(p)
		}
	case ws.EventNewMessage:
		var p ws.NewMessagePayload
		if unmarshalData(ev, &p) {
			c.appendAuthoritative(p)
		}
	case ws.EventMessageSent:
		var p ws.MessageSentPayload
		if unmarshalData(ev, &p) {
			c.deliverAck(p.Ref, nil)
		}
	case ws.EventMessageEdited:
		var p ws.MessageEditedPayload
		if unmarshalData(ev, &p) {
			c.applyEdit(p.Message)
		}
	case ws.EventMessageDeleted:
		var p ws.MessageDeletedPayload
		if unmarshalData(ev, &p) {
			c.applyDelete(p)
		}
	case ws.EventMessageNotification:
		var p ws.MessageNotificationPayload
		if unmarshalData(ev, &p) && c.handlers.OnNotification != nil {
			c.handlers.OnNotification(p)
		}
	case ws.EventUserTyping:
		var p ws.UserTypingPayload
		if unmarshalData(ev, &p) && c.handlers.OnTyping != nil {
			c.handlers.OnTyping(p.UserID, p.IsTyping)
		}
	case ws.EventMessagesRead:
		var p ws.MessagesReadPayload
		if unmarshalData(ev, &p) && c.handlers.OnMessagesRead != nil {
			c.handlers.OnMessagesRead(p.ChatID, p.ReadBy, p.ReadAt)
		}
	case ws.EventError:
		var p ws.ErrorPayload
		if unmarshalData(ev, &p) {
			if p.Ref != "" {
				c.deliverAck(p.Ref, errors.New(p.Message))
			} else if c.handlers.OnError != nil {
				c.handlers.OnError(p.Message)
			}
		}
	}
}

func unmarshalData(ev ws.Event, v interface{}) bool {
	return ev.Data != nil && json.Unmarshal(ev.Data, v) == nil
}

func (c *Client) replaceHistory(p ws.ChatHistoryPayload) {
	local := make([]LocalMessage, 0, len(p.Messages))
	for _, m := range p.Messages {
		local = append(local, fromChatMessage(m, ""))
	}

	c.mu.Lock()
	c.messages = local
	c.mu.Unlock()

	if c.handlers.OnHistory != nil {
		c.handlers.OnHistory(p.ChatID, local)
	}
}

// applyEdit replaces the body of the matching local entry in place so an
// open chat converges with a peer's edit. The original sender name is kept;
// the edit broadcast does not carry one.
func (c *Client) applyEdit(m domain.ChatMessage) {
	local := fromChatMessage(m, "")

	c.mu.Lock()
	for i := range c.messages {
		if c.messages[i].ID == m.ID {
			local.SenderName = c.messages[i].SenderName
			c.messages[i] = local
			break
		}
	}
	c.mu.Unlock()

	if c.handlers.OnMessageEdited != nil {
		c.handlers.OnMessageEdited(local)
	}
}

// applyDelete flags the matching local entry; the entry stays in the list so
// ordering is preserved and rendering layers can show a tombstone.
func (c *Client) applyDelete(p ws.MessageDeletedPayload) {
	c.mu.Lock()
	for i := range c.messages {
		if c.messages[i].ID == p.MessageID {
			c.messages[i].IsDeleted = true
			break
		}
	}
	c.mu.Unlock()

	if c.handlers.OnMessageDeleted != nil {
		c.handlers.OnMessageDeleted(p.MessageID, p.ChatID)
	}
}

func (c *Client) appendAuthoritative(p ws.NewMessagePayload) {
	local := fromChatMessage(p.ChatMessage, p.SenderName)

	c.mu.Lock()
	c.messages = append(c.messages, local)
	c.mu.Unlock()

	if c.handlers.OnNewMessage != nil {
		c.handlers.OnNewMessage(local)
	}
}

// deliverAck hands the result to the single-use listener, if it is still
// waiting. A late ack after timeout finds no listener and is dropped; the
// broadcast already reconciled the message.
func (c *Client) deliverAck(ref string, err error) {
	c.mu.Lock()
	ch, ok := c.pending[ref]
	if ok {
		delete(c.pending, ref)
	}
	c.mu.Unlock()
	if ok {
		ch <- err
	}
}

// resolvePending removes the listener registration if deliverAck has not
// already consumed it.
func (c *Client) resolvePending(ref string) {
	c.mu.Lock()
	delete(c.pending, ref)
	c.mu.Unlock()
}

func (c *Client) markFailed(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].Ref == ref {
			c.messages[i].State = StateFailed
			return
		}
	}
}

func (c *Client) removeProvisional(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].Ref == ref {
			c.messages = append(c.messages[:i], c.messages[i+1:]...)
			return
		}
	}
}

func fromChatMessage(m domain.ChatMessage, senderName string) LocalMessage {
	return LocalMessage{
		ID:         m.ID,
		ChatID:     m.ChatKey,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Body:       m.Content,
		Kind:       m.MessageType,
		SenderName: senderName,
		IsDeleted:  m.IsDeleted,
		EditedAt:   m.EditedAt,
		CreatedAt:  m.CreatedAt,
	}
}
