// Package repository defines the storage interfaces for the domain models.
// Implementations live under internal/infrastructure/persistence.
package repository

import (
	"context"

	"github.com/turtacn/ccs/internal/domain/models"
)

// TenantRepository defines the interface for interacting with tenant storage.
type TenantRepository interface {
	// FindBySlug retrieves a tenant by its unique slug, with companions
	// preloaded so resolution costs a single round trip.
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)

	// FindAll retrieves all tenants, with pagination.
	FindAll(ctx context.Context, limit, offset int) ([]*models.Tenant, error)

	// Save persists a new tenant.
	Save(ctx context.Context, tenant *models.Tenant) error

	// SaveCompanion persists a new companion for a tenant.
	SaveCompanion(ctx context.Context, companion *models.Companion) error
}
