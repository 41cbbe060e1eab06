// Package service contains the application services orchestrating the
// domain around the chat pipeline.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/domain/repository"
	ccserrors "github.com/turtacn/ccs/pkg/errors"
	"github.com/turtacn/ccs/pkg/logger"
)

// SessionAppService wraps session continuity and flag bookkeeping.
type SessionAppService struct {
	sessions repository.SessionRepository
	log      logger.Logger
}

// NewSessionAppService creates the session application service.
func NewSessionAppService(sessions repository.SessionRepository, log logger.Logger) *SessionAppService {
	return &SessionAppService{
		sessions: sessions,
		log:      log.WithComponent("session_service"),
	}
}

// GetOrCreate returns the session for sessionID, creating it when absent.
// A client-supplied identifier that does not exist yet is adopted as the
// canonical id, so retries and reconnects with a client-generated id are
// idempotent. An empty sessionID creates a session under a fresh id.
func (s *SessionAppService) GetOrCreate(ctx context.Context, sessionID, tenantID string, metadata models.JSONMap) (*models.Session, bool, error) {
	if sessionID != "" {
		session, err := s.sessions.FindByID(ctx, sessionID)
		if err == nil {
			return session, false, nil
		}
		if !ccserrors.IsNotFoundError(err) {
			return nil, false, err
		}
		// Fall through to creation using the supplied id.
	} else {
		sessionID = uuid.NewString()
	}

	session := models.NewSession(sessionID, tenantID, metadata)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// Get returns an existing session.
func (s *SessionAppService) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.sessions.FindByID(ctx, sessionID)
}

// UpdateFlagsBestEffort applies a partial risk-state update. The update is
// advisory: a persistence failure is logged and reported as false, never as
// an error, so the caller can continue the turn.
func (s *SessionAppService) UpdateFlagsBestEffort(ctx context.Context, sessionID string, update models.SessionFlagsUpdate) bool {
	start := time.Now()
	if err := s.sessions.UpdateFlags(ctx, sessionID, update); err != nil {
		s.log.Warn(ctx, "session flag update failed, continuing turn",
			logger.String("session_id", sessionID),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err),
		)
		return false
	}
	return true
}
