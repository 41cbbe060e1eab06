package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/domain/repository"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
)

// messageRepositoryImpl implements the append-only transcript store.
type messageRepositoryImpl struct {
	db  *gorm.DB
	log logger.Logger
}

// NewMessageRepository creates a new PostgreSQL message repository.
func NewMessageRepository(db *gorm.DB, log logger.Logger) repository.MessageRepository {
	return &messageRepositoryImpl{
		db:  db,
		log: log.WithComponent("message_repository"),
	}
}

// Append writes one transcript entry. The store assigns the creation time,
// which defines ordering within the session.
func (r *messageRepositoryImpl) Append(ctx context.Context, message *models.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		r.log.Error(ctx, "message append failed", err,
			logger.String("session_id", message.SessionID),
			logger.String("role", string(message.Role)),
		)
		return ccserrors.ErrPersistenceFailure("message append failed").WithCause(err)
	}
	return nil
}

// ListBySession returns the session's messages ordered by creation time,
// oldest first. A positive limit keeps only the most recent entries; a
// non-positive limit returns the full transcript.
func (r *messageRepositoryImpl) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	q := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if limit > 0 {
		// Take the newest window, then restore chronological order below.
		q = q.Order("created_at DESC, id DESC").Limit(limit)
	} else {
		q = q.Order("created_at ASC, id ASC")
	}

	var messages []*models.Message
	if err := q.Find(&messages).Error; err != nil {
		r.log.Error(ctx, "transcript listing failed", err,
			logger.String("session_id", sessionID),
		)
		return nil, ccserrors.ErrServerError("transcript listing failed").WithCause(err)
	}
	if limit > 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}
