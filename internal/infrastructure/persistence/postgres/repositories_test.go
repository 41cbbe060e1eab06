package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/ccs/internal/domain/models"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func seedTenant(t *testing.T, db *gorm.DB) *models.Tenant {
	t.Helper()
	tenant := models.NewTenant(uuid.NewString(), "sunrise-eldercare", "Sunrise Care")
	tenant.SystemInstructions = "You are Grace, a patient companion."
	tenant.KnowledgeText = "Visiting hours are 9am to 5pm."
	require.NoError(t, db.Create(tenant).Error)

	temp := float32(0.3)
	companion := &models.Companion{
		ID:                 uuid.NewString(),
		TenantID:           tenant.ID,
		Key:                "grace",
		Name:               "Grace",
		SystemInstructions: "Speak slowly and warmly.",
		Temperature:        &temp,
		IsDefault:          true,
	}
	require.NoError(t, db.Create(companion).Error)
	return tenant
}

func TestTenantRepositoryFindBySlug(t *testing.T) {
	db := newTestDB(t)
	seedTenant(t, db)
	repo := NewTenantRepository(db, logger.NewNoopLogger())

	tenant, err := repo.FindBySlug(context.Background(), "sunrise-eldercare")
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Care", tenant.Name)
	require.Len(t, tenant.Companions, 1, "companions must be preloaded")
	assert.Equal(t, "grace", tenant.Companions[0].Key)
}

func TestTenantRepositoryFindBySlugNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewTenantRepository(db, logger.NewNoopLogger())

	_, err := repo.FindBySlug(context.Background(), "nobody-home")
	require.Error(t, err)
	assert.True(t, ccserrors.IsNotFoundError(err))
}

func TestSessionRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	repo := NewSessionRepository(db, logger.NewNoopLogger())
	ctx := context.Background()

	session := models.NewSession(uuid.NewString(), tenant.ID, models.JSONMap{"channel": "widget"})
	require.NoError(t, repo.Save(ctx, session))

	got, err := repo.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.TenantID)
	assert.Equal(t, "widget", got.Metadata["channel"])
	assert.False(t, got.Suspicious)
}

func TestSessionRepositoryFindByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db, logger.NewNoopLogger())

	_, err := repo.FindByID(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.True(t, ccserrors.IsNotFoundError(err))
}

func TestSessionRepositoryUpdateFlagsPartial(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	repo := NewSessionRepository(db, logger.NewNoopLogger())
	ctx := context.Background()

	session := models.NewSession(uuid.NewString(), tenant.ID, models.JSONMap{"channel": "widget"})
	require.NoError(t, repo.Save(ctx, session))

	suspicious := true
	level := 8
	err := repo.UpdateFlags(ctx, session.ID, models.SessionFlagsUpdate{
		Suspicious:    &suspicious,
		RiskLevel:     &level,
		MetadataPatch: models.JSONMap{"last_verdict": "blocked"},
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.Suspicious)
	assert.Equal(t, 8, got.RiskLevel)
	assert.False(t, got.NeedsHuman, "omitted field must stay unchanged")
	assert.Equal(t, "widget", got.Metadata["channel"], "existing metadata keys must survive a patch")
	assert.Equal(t, "blocked", got.Metadata["last_verdict"])

	// A later update that omits suspicious must not reset it.
	needsHuman := true
	require.NoError(t, repo.UpdateFlags(ctx, session.ID, models.SessionFlagsUpdate{
		NeedsHuman: &needsHuman,
	}))
	got, err = repo.FindByID(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, got.Suspicious)
	assert.True(t, got.NeedsHuman)
}

func TestSessionRepositoryUpdateFlagsEmptyIsNoop(t *testing.T) {
	db := newTestDB(t)
	repo := NewSessionRepository(db, logger.NewNoopLogger())

	// No round trip happens, so even an unknown session id succeeds.
	err := repo.UpdateFlags(context.Background(), uuid.NewString(), models.SessionFlagsUpdate{})
	require.NoError(t, err)
}

func TestMessageRepositoryAppendAndList(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	sessions := NewSessionRepository(db, logger.NewNoopLogger())
	messages := NewMessageRepository(db, logger.NewNoopLogger())
	ctx := context.Background()

	session := models.NewSession(uuid.NewString(), tenant.ID, nil)
	require.NoError(t, sessions.Save(ctx, session))

	first := &models.Message{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		Role:       "user",
		Content:    "Hello there",
		SenderType: "user",
	}
	second := &models.Message{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		Role:       "assistant",
		Content:    "Hello! How can I help?",
		SenderType: "assistant",
	}
	require.NoError(t, messages.Append(ctx, first))
	require.NoError(t, messages.Append(ctx, second))

	got, err := messages.ListBySession(ctx, session.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Hello there", got[0].Content)
	assert.Equal(t, "Hello! How can I help?", got[1].Content)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestMessageRepositoryListKeepsMostRecent(t *testing.T) {
	db := newTestDB(t)
	tenant := seedTenant(t, db)
	sessions := NewSessionRepository(db, logger.NewNoopLogger())
	messages := NewMessageRepository(db, logger.NewNoopLogger())
	ctx := context.Background()

	session := models.NewSession(uuid.NewString(), tenant.ID, nil)
	require.NoError(t, sessions.Save(ctx, session))

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		require.NoError(t, messages.Append(ctx, &models.Message{
			ID:         uuid.NewString(),
			SessionID:  session.ID,
			Role:       "user",
			Content:    fmt.Sprintf("turn-%02d", i),
			SenderType: "user",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := messages.ListBySession(ctx, session.ID, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "turn-07", got[0].Content)
	assert.Equal(t, "turn-11", got[len(got)-1].Content)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].CreatedAt.Before(got[i-1].CreatedAt))
	}
}
