package service

import (
	"context"

	"github.com/turtacn/ccs/internal/domain/models"
)

// AuditTrail records security-relevant pipeline events. Publishing is
// best effort; a failed publish is logged and never fails the turn.
type AuditTrail interface {
	Publish(ctx context.Context, event models.AuditEvent) error
	Close() error
}
