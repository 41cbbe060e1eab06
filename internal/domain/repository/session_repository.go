package repository

import (
	"context"

	"github.com/turtacn/ccs/internal/domain/models"
)

// SessionRepository defines the interface for session storage.
type SessionRepository interface {
	// FindByID retrieves a session by its identifier.
	FindByID(ctx context.Context, sessionID string) (*models.Session, error)

	// Save persists a new session.
	Save(ctx context.Context, session *models.Session) error

	// UpdateFlags applies a partial update of the session's risk state.
	// Omitted fields are left unchanged; metadata patches merge key-by-key.
	UpdateFlags(ctx context.Context, sessionID string, update models.SessionFlagsUpdate) error
}

// MessageRepository defines the interface for the append-only transcript.
type MessageRepository interface {
	// Append writes one message. The store assigns the creation time, which
	// defines transcript ordering.
	Append(ctx context.Context, message *models.Message) error

	// ListBySession returns the session's messages ordered by creation time,
	// oldest first. A positive limit keeps only the most recent entries.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
}
