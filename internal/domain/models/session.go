package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/turtacn/ccs/pkg/constants"
)

// JSONMap is free-form session metadata persisted as a JSON column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer so gorm can persist the map as JSON.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata column type %T", value)
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// Session is one ongoing conversation instance tied to a tenant. Sessions are
// created on the first turn if absent and are never deleted by the pipeline.
// Risk flags are mutated by classifier outcomes; RiskLevel always reflects
// the most recent assessment, not an aggregate.
type Session struct {
	ID       string `json:"id" gorm:"column:id;primaryKey"`
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;index;not null"`

	Metadata JSONMap `json:"metadata" gorm:"column:metadata;type:jsonb"`

	Suspicious bool `json:"suspicious" gorm:"column:suspicious;not null;default:false"`
	RiskLevel  int  `json:"risk_level" gorm:"column:risk_level;not null;default:0"`
	NeedsHuman bool `json:"needs_human" gorm:"column:needs_human;not null;default:false"`

	// MessageCount and LastMessageAt are maintained by a store-side trigger
	// on message insert; the pipeline treats them as read-only.
	MessageCount  int64      `json:"message_count" gorm:"column:message_count;not null;default:0"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" gorm:"column:last_message_at"`

	CreatedAt time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"column:updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"`
}

// TableName sets the table name for gorm.
func (Session) TableName() string {
	return "sessions"
}

// NewSession creates a session owned by the given tenant.
func NewSession(id, tenantID string, metadata JSONMap) *Session {
	now := time.Now().UTC()
	if metadata == nil {
		metadata = JSONMap{}
	}
	return &Session{
		ID:        id,
		TenantID:  tenantID,
		Metadata:  metadata,
		RiskLevel: 0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SessionFlagsUpdate is a partial update of a session's risk state. Nil
// fields leave the stored value unchanged. MetadataPatch entries are merged
// into the existing metadata map key-by-key.
type SessionFlagsUpdate struct {
	Suspicious    *bool
	RiskLevel     *int
	NeedsHuman    *bool
	MetadataPatch JSONMap
}

// IsEmpty reports whether the update would change nothing.
func (u SessionFlagsUpdate) IsEmpty() bool {
	return u.Suspicious == nil && u.RiskLevel == nil && u.NeedsHuman == nil && len(u.MetadataPatch) == 0
}

// Message is one immutable transcript entry, strictly ordered by creation
// time within its session.
type Message struct {
	ID        string `json:"id" gorm:"column:id;primaryKey"`
	SessionID string `json:"session_id" gorm:"column:session_id;index;not null"`

	Role       constants.MessageRole `json:"role" gorm:"column:role;not null"`
	Content    string                `json:"content" gorm:"column:content;type:text;not null"`
	SenderType constants.SenderType  `json:"sender_type" gorm:"column:sender_type;not null"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index"`
}

// TableName sets the table name for gorm.
func (Message) TableName() string {
	return "messages"
}
