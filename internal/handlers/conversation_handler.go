// File: internal/handlers/conversation_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/carebridge/carechat/internal/middleware"
	"github.com/carebridge/carechat/internal/services"
)

// ConversationHandler serves the non-realtime read surface: the sidebar
// listing and paginated history for consumers that are not holding a
// websocket open.
type ConversationHandler struct {
	ChatService *services.ChatService
}

func NewConversationHandler(cs *services.ChatService) *ConversationHandler {
	return &ConversationHandler{ChatService: cs}
}

// ListConversations returns the principal's conversations, most recent
// message first, each with the caller's unread counter.
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	views, err := h.ChatService.Conversations(r.Context(), principal)
	if err != nil {
		writeError(w, "Could not retrieve conversations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// GetConversationMessages returns one page of a conversation's history,
// oldest-first, for the authenticated participant.
func (h *ConversationHandler) GetConversationMessages(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	chatKey := mux.Vars(r)["key"]

	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, "Invalid page", http.StatusBadRequest)
			return
		}
		page = parsed
	}

	messages, err := h.ChatService.History(r.Context(), principal, chatKey, page)
	if err != nil {
		if err == services.ErrNotParticipant {
			writeError(w, "Forbidden", http.StatusForbidden)
			return
		}
		writeError(w, "Could not retrieve messages", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chatId":   chatKey,
		"messages": messages,
	})
}

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
