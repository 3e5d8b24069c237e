// File: cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/carebridge/carechat/internal/config"
	"github.com/carebridge/carechat/internal/domain"
	"github.com/carebridge/carechat/internal/handlers"
	"github.com/carebridge/carechat/internal/middleware"
	"github.com/carebridge/carechat/internal/repository/message"
	"github.com/carebridge/carechat/internal/repository/summary"
	"github.com/carebridge/carechat/internal/repository/user"
	"github.com/carebridge/carechat/internal/services"
	"github.com/carebridge/carechat/internal/ws"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	cfg := config.Load()
	logger := services.NewLogger("carechat")

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{})
	if err != nil {
		log.Fatalf("DB Error: %v", err)
	}

	if err := db.AutoMigrate(&domain.User{}, &domain.ChatMessage{}, &domain.ChatSummary{}); err != nil {
		log.Fatalf("DB Migration Error: %v", err)
	}

	// --- Repositories ---
	userRepo := user.NewGormUserRepository(db)
	messageRepo := message.NewMessageRepository(db)
	summaryRepo := summary.NewSummaryRepository(db)

	// --- Services ---
	authService := services.NewAuthService(cfg.JWTSecretKey, userRepo, logger)

	chatService, err := services.NewChatService(messageRepo, summaryRepo, userRepo, cfg.HistoryPageSize, logger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Chat Service: %v", err)
	}

	// --- Channel server ---
	presence := ws.NewRegistry()
	hub := ws.NewHub()
	channelServer := ws.NewChannelServer(authService, chatService, presence, hub, logger)

	// --- Handlers ---
	conversationHandler := handlers.NewConversationHandler(chatService)

	// --- Router Setup ---
	r := mux.NewRouter()
	authMiddleware := middleware.NewAuthMiddleware(authService)

	r.Use(corsMiddleware)
	r.Use(middleware.RecoverPanic)
	r.Use(middleware.LoggingMiddleware)

	// --- Public Routes ---
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); _, _ = w.Write([]byte("OK")) }).Methods("GET")
	r.HandleFunc("/ws", channelServer.HandleWS)

	// --- Protected Routes ---
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)
	api.HandleFunc("/conversations", conversationHandler.ListConversations).Methods("GET")
	api.HandleFunc("/conversations/{key}/messages", conversationHandler.GetConversationMessages).Methods("GET")

	seedDemoAccounts(cfg, db, authService)

	// --- Server Configuration ---
	port := ":8080"
	if cfg.ServerPort != "" {
		port = ":" + cfg.ServerPort
	}
	srv := &http.Server{
		Addr:    port,
		Handler: r,
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("CareBridge messaging server starting on port %s", port)

	// --- Start Server in Goroutine ---
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped gracefully")
}

// seedDemoAccounts creates a demo patient/doctor pair outside production so
// the subsystem is exercisable standalone; real accounts and credentials
// come from the platform's identity service.
func seedDemoAccounts(cfg *config.Config, db *gorm.DB, authService *services.AuthService) {
	if cfg.Environment == "production" {
		return
	}

	var count int64
	if err := db.Model(&domain.User{}).Count(&count).Error; err != nil || count > 0 {
		return
	}

	userRepo := user.NewGormUserRepository(db)
	ctx := context.Background()

	seed := []struct {
		username, display, password string
		role                        domain.UserRole
	}{
		{"demo-patient", "Demo Patient", "demo-patient-pass", domain.RolePatient},
		{"demo-doctor", "Dr. Demo", "demo-doctor-pass", domain.RoleDoctor},
	}

	for _, s := range seed {
		u := &domain.User{Username: s.username, DisplayName: s.display, Role: s.role}
		if err := u.HashPassword(s.password); err != nil {
			log.Printf("[Seed] Failed to hash password for %s: %v", s.username, err)
			continue
		}
		created, err := userRepo.Create(ctx, u)
		if err != nil {
			log.Printf("[Seed] Failed to create %s: %v", s.username, err)
			continue
		}
		token, err := authService.IssueToken(created.ID, created.Role)
		if err != nil {
			log.Printf("[Seed] Failed to issue token for %s: %v", s.username, err)
			continue
		}
		log.Printf("[Seed] %s (id=%d, role=%s) token: %s", s.username, created.ID, created.Role, token)
	}
}
