package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/domain/repository"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
)

// sessionRepositoryImpl implements repository.SessionRepository using GORM.
type sessionRepositoryImpl struct {
	db  *gorm.DB
	log logger.Logger
}

// NewSessionRepository creates a new PostgreSQL session repository.
func NewSessionRepository(db *gorm.DB, log logger.Logger) repository.SessionRepository {
	return &sessionRepositoryImpl{
		db:  db,
		log: log.WithComponent("session_repository"),
	}
}

// FindByID retrieves a session by its identifier.
func (r *sessionRepositoryImpl) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", sessionID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ccserrors.ErrSessionNotFound(sessionID)
		}
		r.log.Error(ctx, "session lookup failed", err,
			logger.String("session_id", sessionID),
		)
		return nil, ccserrors.ErrServerError("session lookup failed").WithCause(err)
	}
	return &session, nil
}

// Save persists a new session.
func (r *sessionRepositoryImpl) Save(ctx context.Context, session *models.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		r.log.Error(ctx, "session save failed", err,
			logger.String("session_id", session.ID),
			logger.String("tenant_id", session.TenantID),
		)
		return ccserrors.ErrPersistenceFailure("session save failed").WithCause(err)
	}
	return nil
}

// UpdateFlags applies a partial update of the session's risk state. Nil
// fields stay untouched, and metadata patches are merged into the stored map
// key-by-key rather than replacing it.
func (r *sessionRepositoryImpl) UpdateFlags(ctx context.Context, sessionID string, update models.SessionFlagsUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.Where("id = ?", sessionID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ccserrors.ErrSessionNotFound(sessionID)
			}
			return ccserrors.ErrServerError("session lookup failed").WithCause(err)
		}

		columns := map[string]interface{}{
			"updated_at": time.Now().UTC(),
		}
		if update.Suspicious != nil {
			columns["suspicious"] = *update.Suspicious
		}
		if update.RiskLevel != nil {
			columns["risk_level"] = *update.RiskLevel
		}
		if update.NeedsHuman != nil {
			columns["needs_human"] = *update.NeedsHuman
		}
		if len(update.MetadataPatch) > 0 {
			merged := models.JSONMap{}
			for k, v := range session.Metadata {
				merged[k] = v
			}
			for k, v := range update.MetadataPatch {
				merged[k] = v
			}
			columns["metadata"] = merged
		}

		if err := tx.Model(&models.Session{}).
			Where("id = ?", sessionID).
			Updates(columns).Error; err != nil {
			return ccserrors.ErrPersistenceFailure("session flags update failed").WithCause(err)
		}
		return nil
	})
}
