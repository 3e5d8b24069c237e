// File: internal/handlers/conversation_handler_test.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/carebridge/carechat/internal/domain"
	"github.com/carebridge/carechat/internal/middleware"
	"github.com/carebridge/carechat/internal/repository/message"
	"github.com/carebridge/carechat/internal/repository/summary"
	"github.com/carebridge/carechat/internal/repository/user"
	"github.com/carebridge/carechat/internal/services"
)

type restFixture struct {
	router       *mux.Router
	chatService  *services.ChatService
	patient      domain.Principal
	doctor       domain.Principal
	patientToken string
	doctorToken  string
}

func newRESTFixture(t *testing.T) *restFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.ChatMessage{}, &domain.ChatSummary{}))

	userRepo := user.NewGormUserRepository(db)
	seed := func(username string, role domain.UserRole) *domain.User {
		u := &domain.User{Username: username, DisplayName: username, Role: role}
		require.NoError(t, u.HashPassword("test-password"))
		created, err := userRepo.Create(context.Background(), u)
		require.NoError(t, err)
		return created
	}
	pat := seed("pat", domain.RolePatient)
	doc := seed("doc", domain.RoleDoctor)

	authService := services.NewAuthService("rest-secret", userRepo, &services.NoOpLogger{})
	chatService, err := services.NewChatService(
		message.NewMessageRepository(db),
		summary.NewSummaryRepository(db),
		userRepo, 50, &services.NoOpLogger{})
	require.NoError(t, err)

	handler := NewConversationHandler(chatService)
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.NewAuthMiddleware(authService))
	api.HandleFunc("/conversations", handler.ListConversations).Methods("GET")
	api.HandleFunc("/conversations/{key}/messages", handler.GetConversationMessages).Methods("GET")

	patientToken, err := authService.IssueToken(pat.ID, pat.Role)
	require.NoError(t, err)
	doctorToken, err := authService.IssueToken(doc.ID, doc.Role)
	require.NoError(t, err)

	return &restFixture{
		router:       router,
		chatService:  chatService,
		patient:      domain.Principal{ID: pat.ID, Role: pat.Role, DisplayName: pat.DisplayName},
		doctor:       domain.Principal{ID: doc.ID, Role: doc.Role, DisplayName: doc.DisplayName},
		patientToken: patientToken,
		doctorToken:  doctorToken,
	}
}

func (f *restFixture) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestListConversationsRequiresAuth(t *testing.T) {
	f := newRESTFixture(t)

	rec := f.get(t, "/api/conversations", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.get(t, "/api/conversations", "forged-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListConversations(t *testing.T) {
	f := newRESTFixture(t)

	_, err := f.chatService.SendMessage(context.Background(), f.patient, f.doctor.ID, "hello", domain.KindText)
	require.NoError(t, err)

	rec := f.get(t, "/api/conversations", f.doctorToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []services.ConversationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, f.patient.ID, views[0].PeerID)
	assert.Equal(t, "hello", views[0].LastMessage)
	assert.Equal(t, 1, views[0].UnreadCount)
}

func TestGetConversationMessages(t *testing.T) {
	f := newRESTFixture(t)
	key := domain.ChatKey(f.patient.ID, f.doctor.ID)

	for _, body := range []string{"one", "two"} {
		_, err := f.chatService.SendMessage(context.Background(), f.patient, f.doctor.ID, body, domain.KindText)
		require.NoError(t, err)
	}

	rec := f.get(t, "/api/conversations/"+key+"/messages", f.patientToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		ChatID   string               `json:"chatId"`
		Messages []domain.ChatMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, key, payload.ChatID)
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, "one", payload.Messages[0].Content)
	assert.Equal(t, "two", payload.Messages[1].Content)
}

func TestGetConversationMessagesForbiddenForOutsiders(t *testing.T) {
	f := newRESTFixture(t)
	key := domain.ChatKey(f.patient.ID, f.doctor.ID)

	rec := f.get(t, "/api/conversations/"+key+"/messages?page=-1", f.patientToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	outsiderKey := domain.ChatKey(f.patient.ID, 99)
	rec = f.get(t, "/api/conversations/"+outsiderKey+"/messages", f.doctorToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
