// Package models defines the domain models for the CCS Companion Chat Service.
// This file contains the Tenant domain model with business logic.
package models

import (
	"strings"
	"time"

	"github.com/turtacn/ccs/pkg/constants"
)

// Tenant represents a customer organization owning one conversational
// configuration. Each tenant carries the default persona used when no
// companion is selected. Tenants are created by provisioning and are
// read-only to the chat pipeline.
type Tenant struct {
	// ID is the internal unique identifier for the tenant.
	ID string `json:"id" gorm:"column:id;primaryKey"`

	// Slug is the stable, unique, URL-safe tenant identifier clients send.
	Slug string `json:"slug" gorm:"column:slug;uniqueIndex;not null"`

	// Name is the display name of the tenant organization.
	Name string `json:"name" gorm:"column:name;not null"`

	// Status indicates the current lifecycle status of the tenant.
	Status constants.TenantStatus `json:"status" gorm:"column:status;not null;default:active"`

	// AIName is the default persona's presented name.
	AIName string `json:"ai_name" gorm:"column:ai_name"`

	// Greeting is the canned opening line shown before the first turn.
	Greeting string `json:"greeting" gorm:"column:greeting"`

	// SystemInstructions is the default persona's system prompt.
	SystemInstructions string `json:"system_instructions" gorm:"column:system_instructions;type:text"`

	// KnowledgeText is optional tenant-level reference material injected into
	// the prompt. It is tenant-scoped and not overridden per companion.
	KnowledgeText string `json:"knowledge_text" gorm:"column:knowledge_text;type:text"`

	// Language is the default reply language (BCP 47 tag).
	Language string `json:"language" gorm:"column:language"`

	// Temperature is the default sampling temperature.
	Temperature float32 `json:"temperature" gorm:"column:temperature"`

	// MaxTokens caps completion length for this tenant.
	MaxTokens int `json:"max_tokens" gorm:"column:max_tokens"`

	// Companions are the named persona variants registered for this tenant.
	Companions []Companion `json:"companions,omitempty" gorm:"foreignKey:TenantID;references:ID"`

	CreatedAt time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"column:updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"`
}

// TableName sets the table name for gorm.
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant creates a new Tenant with sensible defaults applied.
func NewTenant(id, slug, name string) *Tenant {
	now := time.Now().UTC()
	return &Tenant{
		ID:          id,
		Slug:        slug,
		Name:        name,
		Status:      constants.TenantStatusActive,
		AIName:      "Assistant",
		Greeting:    "Hello! How can I help you today?",
		Language:    "en",
		Temperature: constants.DefaultTemperature,
		MaxTokens:   constants.DefaultMaxTokens,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsActive checks if the tenant can serve chat turns.
func (t *Tenant) IsActive() bool {
	return t.Status == constants.TenantStatusActive && t.DeletedAt == nil
}

// Type derives the tenant's vertical classification from its slug. The
// classification hints the risk judge about benign patterns for the vertical
// and selects the deflection copy for blocked turns.
func (t *Tenant) Type() constants.TenantType {
	slug := strings.ToLower(t.Slug)
	switch {
	case strings.Contains(slug, "elder") || strings.Contains(slug, "senior") || strings.Contains(slug, "care"):
		return constants.TenantTypeEldercare
	case strings.Contains(slug, "restaurant") || strings.Contains(slug, "cafe") || strings.Contains(slug, "bistro") || strings.Contains(slug, "kitchen"):
		return constants.TenantTypeRestaurant
	default:
		return constants.TenantTypeGeneral
	}
}

// DefaultCompanion returns the companion flagged as default, or nil when the
// tenant relies solely on its base persona.
func (t *Tenant) DefaultCompanion() *Companion {
	for i := range t.Companions {
		if t.Companions[i].IsDefault {
			return &t.Companions[i]
		}
	}
	return nil
}

// CompanionByKey returns the companion with the given key, or nil.
func (t *Tenant) CompanionByKey(key string) *Companion {
	for i := range t.Companions {
		if t.Companions[i].Key == key {
			return &t.Companions[i]
		}
	}
	return nil
}
