// File: internal/ws/server.go
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carebridge/carechat/internal/domain"
	"github.com/carebridge/carechat/internal/repository/message"
	"github.com/carebridge/carechat/internal/services"
)

// ChannelServer owns the connection lifecycle and the event protocol. It
// composes the session authenticator, the presence registry, the room hub
// and the chat service; handlers never reach past the service into a store.
//
// Failure discipline: a store failure inside any handler is converted into
// an error event scoped to the originating connection. It never tears the
// connection down and nothing is broadcast before the authoritative write
// succeeds. Only authentication failure is fatal.
type ChannelServer struct {
	authService *services.AuthService
	chatService *services.ChatService
	presence    *Registry
	hub         *Hub
	upgrader    websocket.Upgrader
	logger      services.Logger
}

func NewChannelServer(authService *services.AuthService, chatService *services.ChatService, presence *Registry, hub *Hub, logger services.Logger) *ChannelServer {
	if logger == nil {
		logger = &services.NoOpLogger{}
	}
	return &ChannelServer{
		authService: authService,
		chatService: chatService,
		presence:    presence,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from the portal origin; origin policy
			// is enforced at the reverse proxy in production.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Presence exposes the registry, mainly for health/diagnostic surfaces.
func (s *ChannelServer) Presence() *Registry { return s.presence }

// HandleWS is the websocket endpoint. Browser websockets cannot set an
// Authorization header, so the credential rides in the token query param.
// Authentication happens before the upgrade: a bad credential is rejected
// with 401 and no websocket ever exists.
func (s *ChannelServer) HandleWS(w http.ResponseWriter, r *http.Request) {
	principal, err := s.authService.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}

	conn := newConn(principal, sock)
	conn.configureRead()
	s.presence.Attach(principal.ID, conn)
	go conn.writePump()

	s.logger.Info("connection established", "user_id", principal.ID, "role", principal.Role)

	s.readLoop(r.Context(), conn)
	s.teardown(conn)
}

// readLoop processes the connection's events strictly in arrival order.
func (s *ChannelServer) readLoop(ctx context.Context, conn *Conn) {
	for {
		ev, err := conn.readEvent()
		if err != nil {
			return
		}
		s.dispatch(ctx, conn, ev)
	}
}

// teardown runs once the socket is gone: release presence (guarded against
// a newer session having taken over), leave every joined room, stamp
// last-seen. The connection's own room set drives the hub cleanup, so rooms
// it never joined are not scanned. Safe without a lock: the read loop that
// mutates the set has already returned.
func (s *ChannelServer) teardown(conn *Conn) {
	principal := conn.Principal()

	s.presence.Detach(principal.ID, conn)
	for room := range conn.rooms {
		s.hub.Leave(room, conn)
	}
	conn.close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.chatService.RecordDisconnect(ctx, principal); err != nil {
		s.logger.Warn("failed to record disconnect", "user_id", principal.ID)
	}

	s.logger.Info("connection closed", "user_id", principal.ID)
}

// dispatch decodes the payload for the event type and runs the matching
// handler. Handlers return errors; side effects on the socket happen here,
// keeping failure handling in one place.
func (s *ChannelServer) dispatch(ctx context.Context, conn *Conn, ev Event) {
	var err error
	ref := ""

	switch ev.Type {
	case EventJoinChat:
		var p JoinChatPayload
		if err = json.Unmarshal(ev.Data, &p); err == nil {
			err = s.handleJoinChat(ctx, conn, p)
		}
	case EventLeaveChat:
		var p LeaveChatPayload
		if err = json.Unmarshal(ev.Data, &p); err == nil {
			err = s.handleLeaveChat(ctx, conn, p)
		}
	case EventSendMessage:
		var p SendMessagePayload
		if err = json.Unmarshal(ev.Data, &p); err == nil {
			ref = p.Ref
			err = s.handleSendMessage(ctx, conn, p)
		}
	case EventTyping:
		var p TypingPayload
		if err = json.Unmarshal(ev.Data, &p); err == nil {
			s.handleTyping(conn, p)
		}
	case EventMarkRead:
		var p MarkReadPayload
		if err = json.Unmarshal(ev.Data, &p); err == nil {
			err = s.handleMarkRead(ctx, conn, p)
		}
	case EventEditMessage:
		var p EditMessagePayload
		if err = json.Unmarshal(ev.Data, &p); err == nil {
			err = s.handleEditMessage(ctx, conn, p)
		}
	case EventDeleteMessage:
		var p DeleteMessagePayload
		if err = json.Unmarshal(ev.Data, &p); err == nil {
			err = s.handleDeleteMessage(ctx, conn, p)
		}
	default:
		err = errors.New("unknown event type")
	}

	if err != nil {
		s.logger.Debug("event handling failed", "event", ev.Type, "user_id", conn.Principal().ID, "error", err.Error())
		s.sendError(conn, err, ref)
	}
}

// handleJoinChat joins the room, replies with the latest history page and
// marks everything addressed to the joiner as read. The room join happens
// before the history query so a message appended concurrently by the peer
// is caught by the room broadcast even when it misses the page.
func (s *ChannelServer) handleJoinChat(ctx context.Context, conn *Conn, p JoinChatPayload) error {
	principal := conn.Principal()
	chatKey := domain.ChatKey(principal.ID, p.ReceiverID)

	s.hub.Join(chatKey, conn)
	conn.rooms[chatKey] = struct{}{}

	history, err := s.chatService.History(ctx, principal, chatKey, 0)
	if err != nil {
		return err
	}

	if _, err := s.chatService.MarkConversationRead(ctx, principal, chatKey); err != nil {
		return err
	}

	ev, err := NewEvent(EventChatHistory, ChatHistoryPayload{ChatID: chatKey, Messages: history})
	if err != nil {
		return err
	}
	conn.Send(ev)

	return nil
}

// handleLeaveChat releases the room membership and stamps the principal's
// last-seen for that conversation. The connection stays up; subsequent
// messages from the peer reach this principal via the personal channel.
func (s *ChannelServer) handleLeaveChat(ctx context.Context, conn *Conn, p LeaveChatPayload) error {
	principal := conn.Principal()
	chatKey := domain.ChatKey(principal.ID, p.ReceiverID)

	s.hub.Leave(chatKey, conn)
	delete(conn.rooms, chatKey)

	return s.chatService.LeaveConversation(ctx, principal, chatKey)
}

// handleSendMessage persists, then fans out: ack to the sender, broadcast
// to the room, and a personal-channel notification to the receiver if they
// are online anywhere. If persistence fails nothing is emitted but the
// scoped error.
func (s *ChannelServer) handleSendMessage(ctx context.Context, conn *Conn, p SendMessagePayload) error {
	principal := conn.Principal()

	kind := domain.MessageKind(p.MessageType)
	if p.MessageType == "" {
		kind = domain.KindText
	}
	if !kind.IsValid() {
		return errors.New("invalid message type")
	}

	persisted, err := s.chatService.SendMessage(ctx, principal, p.ReceiverID, p.Message, kind)
	if err != nil {
		return err
	}

	if ack, err := NewEvent(EventMessageSent, MessageSentPayload{Ref: p.Ref, Message: *persisted}); err == nil {
		conn.Send(ack)
	}

	broadcast, err := NewEvent(EventNewMessage, NewMessagePayload{
		ChatMessage: *persisted,
		SenderName:  principal.DisplayName,
	})
	if err != nil {
		return err
	}
	s.hub.Broadcast(persisted.ChatKey, broadcast)

	// Personal channel: reaches the receiver even when they are not viewing
	// this conversation. If they are offline the unread counter alone
	// carries the signal.
	if receiverConn, online := s.presence.Lookup(p.ReceiverID); online {
		note, err := NewEvent(EventMessageNotification, MessageNotificationPayload{
			ChatID:     persisted.ChatKey,
			SenderID:   principal.ID,
			SenderName: principal.DisplayName,
			Message:    persisted.Content,
			Timestamp:  persisted.CreatedAt,
		})
		if err == nil {
			receiverConn.Send(note)
		}
	}

	return nil
}

// handleTyping is a stateless fire-and-forget relay; no persistence, no
// acknowledgement, no retry.
func (s *ChannelServer) handleTyping(conn *Conn, p TypingPayload) {
	principal := conn.Principal()
	chatKey := domain.ChatKey(principal.ID, p.ReceiverID)

	ev, err := NewEvent(EventUserTyping, UserTypingPayload{UserID: principal.ID, IsTyping: p.IsTyping})
	if err != nil {
		return
	}
	s.hub.Broadcast(chatKey, ev)
}

func (s *ChannelServer) handleMarkRead(ctx context.Context, conn *Conn, p MarkReadPayload) error {
	principal := conn.Principal()

	if _, err := s.chatService.MarkConversationRead(ctx, principal, p.ChatID); err != nil {
		return err
	}

	ev, err := NewEvent(EventMessagesRead, MessagesReadPayload{
		ChatID: p.ChatID,
		ReadBy: principal.ID,
		ReadAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	s.hub.Broadcast(p.ChatID, ev)

	return nil
}

func (s *ChannelServer) handleEditMessage(ctx context.Context, conn *Conn, p EditMessagePayload) error {
	edited, err := s.chatService.EditMessage(ctx, conn.Principal(), p.MessageID, p.Message)
	if err != nil {
		return err
	}

	ev, err := NewEvent(EventMessageEdited, MessageEditedPayload{Message: *edited})
	if err != nil {
		return err
	}
	s.hub.Broadcast(edited.ChatKey, ev)

	return nil
}

func (s *ChannelServer) handleDeleteMessage(ctx context.Context, conn *Conn, p DeleteMessagePayload) error {
	deleted, err := s.chatService.DeleteMessage(ctx, conn.Principal(), p.MessageID)
	if err != nil {
		return err
	}

	ev, err := NewEvent(EventMessageDeleted, MessageDeletedPayload{MessageID: deleted.ID, ChatID: deleted.ChatKey})
	if err != nil {
		return err
	}
	s.hub.Broadcast(deleted.ChatKey, ev)

	return nil
}

// sendError emits a scoped error event to the originating connection only,
// with the internal detail collapsed to a stable client-facing message.
func (s *ChannelServer) sendError(conn *Conn, cause error, ref string) {
	msg := "something went wrong handling the request"
	switch {
	case errors.Is(cause, message.ErrMessageNotFound):
		msg = "message not found"
	case errors.Is(cause, message.ErrForbiddenMessageAccess):
		msg = "you can only modify your own messages"
	case errors.Is(cause, services.ErrNotParticipant):
		msg = "you are not a participant of this conversation"
	}

	ev, err := NewEvent(EventError, ErrorPayload{Message: msg, Ref: ref})
	if err != nil {
		return
	}
	conn.Send(ev)
}
