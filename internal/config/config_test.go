// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_SECRET_KEY", "unit-test-secret")
	t.Setenv("DATABASE_PATH", "test.db")
	t.Setenv("HISTORY_PAGE_SIZE", "25")
	t.Setenv("ACK_TIMEOUT_SECONDS", "3")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, "unit-test-secret", cfg.JWTSecretKey)
	assert.Equal(t, "test.db", cfg.DatabasePath)
	assert.Equal(t, 25, cfg.HistoryPageSize)
	assert.Equal(t, 3*time.Second, cfg.AckTimeout)
	assert.Equal(t, "development", cfg.Environment)
}

func TestLoadFallsBackOnUnparsableInts(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("JWT_SECRET_KEY", "unit-test-secret")
	t.Setenv("DATABASE_PATH", "test.db")
	t.Setenv("HISTORY_PAGE_SIZE", "not-a-number")
	t.Setenv("ACK_TIMEOUT_SECONDS", "soon")

	cfg := Load()

	assert.Equal(t, 50, cfg.HistoryPageSize)
	assert.Equal(t, 10*time.Second, cfg.AckTimeout)
}
