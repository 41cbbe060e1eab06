package models

import (
	"time"

	"github.com/turtacn/ccs/pkg/constants"
)

// Companion is a named persona variant within a tenant. Fields left empty
// (or nil for numeric overrides) inherit the tenant default during merge.
// The key is unique within its tenant; at most one companion is flagged
// default.
type Companion struct {
	ID       string `json:"id" gorm:"column:id;primaryKey"`
	TenantID string `json:"tenant_id" gorm:"column:tenant_id;uniqueIndex:idx_companion_tenant_key;not null"`

	// Key is the stable identifier clients send to select this companion.
	Key string `json:"key" gorm:"column:key;uniqueIndex:idx_companion_tenant_key;not null"`

	Name               string `json:"name" gorm:"column:name"`
	Greeting           string `json:"greeting" gorm:"column:greeting"`
	SystemInstructions string `json:"system_instructions" gorm:"column:system_instructions;type:text"`
	Personality        string `json:"personality" gorm:"column:personality;type:text"`
	Language           string `json:"language" gorm:"column:language"`

	// Temperature and MaxTokens are pointer overrides: nil inherits.
	Temperature *float32 `json:"temperature,omitempty" gorm:"column:temperature"`
	MaxTokens   *int     `json:"max_tokens,omitempty" gorm:"column:max_tokens"`

	IsDefault bool `json:"is_default" gorm:"column:is_default;not null;default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// TableName sets the table name for gorm.
func (Companion) TableName() string {
	return "companions"
}

// PersonaConfig is the fully-resolved persona for one turn: the tenant
// defaults with any selected companion overlaid field-by-field. It is a
// value object, never persisted.
type PersonaConfig struct {
	Name               string
	Greeting           string
	SystemInstructions string
	Personality        string
	KnowledgeText      string
	Language           string
	Temperature        float32
	MaxTokens          int
}

// ResolvePersona merges a tenant's default persona with an optional
// companion. Companion fields override field-by-field; absent fields inherit
// the tenant default. KnowledgeText is tenant-level and never overridden.
func ResolvePersona(t *Tenant, c *Companion) PersonaConfig {
	p := PersonaConfig{
		Name:               t.AIName,
		Greeting:           t.Greeting,
		SystemInstructions: t.SystemInstructions,
		KnowledgeText:      t.KnowledgeText,
		Language:           t.Language,
		Temperature:        t.Temperature,
		MaxTokens:          t.MaxTokens,
	}
	if p.Temperature == 0 {
		p.Temperature = constants.DefaultTemperature
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = constants.DefaultMaxTokens
	}

	if c == nil {
		return p
	}
	if c.Name != "" {
		p.Name = c.Name
	}
	if c.Greeting != "" {
		p.Greeting = c.Greeting
	}
	if c.SystemInstructions != "" {
		p.SystemInstructions = c.SystemInstructions
	}
	if c.Personality != "" {
		p.Personality = c.Personality
	}
	if c.Language != "" {
		p.Language = c.Language
	}
	if c.Temperature != nil {
		p.Temperature = *c.Temperature
	}
	if c.MaxTokens != nil {
		p.MaxTokens = *c.MaxTokens
	}
	return p
}
