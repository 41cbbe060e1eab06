package models

import (
	"time"

	"github.com/turtacn/ccs/pkg/constants"
)

// AuditEvent is a structured record of a security-relevant pipeline outcome,
// published to the audit topic. Emission is best-effort and never blocks a
// turn.
type AuditEvent struct {
	EventType  constants.AuditEventType `json:"event_type"`
	TenantSlug string                   `json:"tenant_slug,omitempty"`
	SessionID  string                   `json:"session_id,omitempty"`
	ClientKey  string                   `json:"client_key,omitempty"`
	RequestID  string                   `json:"request_id,omitempty"`
	RiskLevel  int                      `json:"risk_level,omitempty"`
	Reason     string                   `json:"reason,omitempty"`
	OccurredAt time.Time                `json:"occurred_at"`
}
