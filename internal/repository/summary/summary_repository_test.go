// File: internal/repository/summary/summary_repository_test.go
package summary

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/carebridge/carechat/internal/domain"
)

var (
	patient = domain.Principal{ID: 1, Role: domain.RolePatient, DisplayName: "Pat"}
	doctor  = domain.Principal{ID: 2, Role: domain.RoleDoctor, DisplayName: "Dr. D"}
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&domain.ChatSummary{}))
	return db
}

func TestUpsertOnSendSeedsReceiverUnread(t *testing.T) {
	repo := NewSummaryRepository(newTestDB(t))
	ctx := context.Background()
	key := domain.ChatKey(patient.ID, doctor.ID)
	now := time.Now().UTC()

	require.NoError(t, repo.UpsertOnSend(ctx, key, patient, doctor.ID, domain.RoleDoctor, "hello", now))

	s, err := repo.FindByChatKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, s.UnreadFor(doctor.ID))
	assert.Equal(t, 0, s.UnreadFor(patient.ID))
	assert.Equal(t, "hello", s.LastMessageBody)
	assert.Equal(t, patient.ID, s.LastMessageSenderID)
	assert.Equal(t, domain.RolePatient, s.LowRole)
	assert.Equal(t, domain.RoleDoctor, s.HighRole)
}

func TestUpsertOnSendIncrementsOnlyReceiverSide(t *testing.T) {
	repo := NewSummaryRepository(newTestDB(t))
	ctx := context.Background()
	key := domain.ChatKey(patient.ID, doctor.ID)
	now := time.Now().UTC()

	// Two sends patient->doctor, three doctor->patient; both counters
	// accrue independently on the single shared row.
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.UpsertOnSend(ctx, key, patient, doctor.ID, domain.RoleDoctor, "ping", now))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.UpsertOnSend(ctx, key, doctor, patient.ID, domain.RolePatient, "pong", now))
	}

	s, err := repo.FindByChatKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, s.UnreadFor(doctor.ID))
	assert.Equal(t, 3, s.UnreadFor(patient.ID))
	assert.Equal(t, "pong", s.LastMessageBody)

	var count int64
	require.NoError(t, newCountQuery(t, repo, &count))
	assert.Equal(t, int64(1), count)
}

// newCountQuery counts summary rows through the repository's own handle.
func newCountQuery(t *testing.T, repo SummaryRepository, count *int64) error {
	t.Helper()
	r, ok := repo.(*gormSummaryRepository)
	require.True(t, ok)
	return r.db.Model(&domain.ChatSummary{}).Count(count).Error
}

func TestUpsertOnSendConcurrentSendsAllLand(t *testing.T) {
	repo := NewSummaryRepository(newTestDB(t))
	ctx := context.Background()
	key := domain.ChatKey(patient.ID, doctor.ID)

	const sendsPerSide = 10
	var wg sync.WaitGroup
	errs := make(chan error, sendsPerSide*2)

	for i := 0; i < sendsPerSide; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- repo.UpsertOnSend(ctx, key, patient, doctor.ID, domain.RoleDoctor, "ping", time.Now().UTC())
		}()
		go func() {
			defer wg.Done()
			errs <- repo.UpsertOnSend(ctx, key, doctor, patient.ID, domain.RolePatient, "pong", time.Now().UTC())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s, err := repo.FindByChatKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sendsPerSide, s.UnreadFor(doctor.ID))
	assert.Equal(t, sendsPerSide, s.UnreadFor(patient.ID))
}

func TestUpsertOnSendValidation(t *testing.T) {
	repo := NewSummaryRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	assert.Error(t, repo.UpsertOnSend(ctx, "", patient, doctor.ID, domain.RoleDoctor, "hi", now))
	assert.Error(t, repo.UpsertOnSend(ctx, domain.ChatKey(patient.ID, doctor.ID), patient, patient.ID, domain.RolePatient, "hi", now))
	assert.Error(t, repo.UpsertOnSend(ctx, "9_10", patient, doctor.ID, domain.RoleDoctor, "hi", now))
	assert.Error(t, repo.UpsertOnSend(ctx, domain.ChatKey(patient.ID, doctor.ID), patient, doctor.ID, domain.RoleDoctor, "  ", now))
}

func TestZeroUnreadResetsOnlyOwnSide(t *testing.T) {
	repo := NewSummaryRepository(newTestDB(t))
	ctx := context.Background()
	key := domain.ChatKey(patient.ID, doctor.ID)
	now := time.Now().UTC()

	require.NoError(t, repo.UpsertOnSend(ctx, key, patient, doctor.ID, domain.RoleDoctor, "ping", now))
	require.NoError(t, repo.UpsertOnSend(ctx, key, doctor, patient.ID, domain.RolePatient, "pong", now))

	require.NoError(t, repo.ZeroUnread(ctx, key, doctor.ID))

	s, err := repo.FindByChatKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, s.UnreadFor(doctor.ID))
	assert.Equal(t, 1, s.UnreadFor(patient.ID))
}

func TestZeroUnreadWithoutRowIsNoOp(t *testing.T) {
	repo := NewSummaryRepository(newTestDB(t))
	ctx := context.Background()

	assert.NoError(t, repo.ZeroUnread(ctx, domain.ChatKey(patient.ID, doctor.ID), doctor.ID))
	assert.Error(t, repo.ZeroUnread(ctx, domain.ChatKey(patient.ID, doctor.ID), 99))
}

func TestTouchLastSeenAllStampsBothSides(t *testing.T) {
	repo := NewSummaryRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	// Doctor 2 talks to patients 1 and 3, sitting on a different side of
	// each row (2 is high against 1, low against 3).
	require.NoError(t, repo.UpsertOnSend(ctx, domain.ChatKey(1, 2), patient, 2, domain.RoleDoctor, "a", now))
	other := domain.Principal{ID: 3, Role: domain.RolePatient, DisplayName: "Other"}
	require.NoError(t, repo.UpsertOnSend(ctx, domain.ChatKey(3, 2), other, 2, domain.RoleDoctor, "b", now))

	stamp := now.Add(time.Minute)
	require.NoError(t, repo.TouchLastSeenAll(ctx, 2, stamp))

	first, err := repo.FindByChatKey(ctx, domain.ChatKey(1, 2))
	require.NoError(t, err)
	require.NotNil(t, first.LastSeenOf(2))
	assert.Nil(t, first.LastSeenOf(1))

	second, err := repo.FindByChatKey(ctx, domain.ChatKey(3, 2))
	require.NoError(t, err)
	require.NotNil(t, second.LastSeenOf(2))
	assert.Nil(t, second.LastSeenOf(3))
}

func TestFindForUserOrdersByRecency(t *testing.T) {
	repo := NewSummaryRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, repo.UpsertOnSend(ctx, domain.ChatKey(1, 2), patient, 2, domain.RoleDoctor, "older", base))
	other := domain.Principal{ID: 3, Role: domain.RolePatient, DisplayName: "Other"}
	require.NoError(t, repo.UpsertOnSend(ctx, domain.ChatKey(3, 2), other, 2, domain.RoleDoctor, "newer", base.Add(time.Minute)))

	summaries, err := repo.FindForUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "newer", summaries[0].LastMessageBody)
	assert.Equal(t, "older", summaries[1].LastMessageBody)

	// Patient 1 only participates in one conversation.
	mine, err := repo.FindForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.ChatKey(1, 2), mine[0].ChatKey)
}

func TestFindByChatKeyMissing(t *testing.T) {
	repo := NewSummaryRepository(newTestDB(t))

	_, err := repo.FindByChatKey(context.Background(), domain.ChatKey(8, 9))
	assert.ErrorIs(t, err, ErrSummaryNotFound)
}
