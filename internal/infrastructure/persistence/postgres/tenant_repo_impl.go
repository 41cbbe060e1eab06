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

// tenantRepositoryImpl implements repository.TenantRepository using GORM.
type tenantRepositoryImpl struct {
	db  *gorm.DB
	log logger.Logger
}

// NewTenantRepository creates a new PostgreSQL tenant repository.
func NewTenantRepository(db *gorm.DB, log logger.Logger) repository.TenantRepository {
	return &tenantRepositoryImpl{
		db:  db,
		log: log.WithComponent("tenant_repository"),
	}
}

// FindBySlug retrieves a tenant and its companions in one round trip.
func (r *tenantRepositoryImpl) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	start := time.Now()

	var tenant models.Tenant
	err := r.db.WithContext(ctx).
		Preload("Companions").
		Where("slug = ? AND deleted_at IS NULL", slug).
		First(&tenant).Error

	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ccserrors.ErrTenantNotFound(slug)
		}
		r.log.Error(ctx, "tenant lookup failed", err,
			logger.String("tenant_slug", slug),
			logger.Duration("elapsed", elapsed),
		)
		return nil, ccserrors.ErrServerError("tenant lookup failed").WithCause(err)
	}

	r.log.Debug(ctx, "tenant resolved",
		logger.String("tenant_slug", slug),
		logger.Int("companions", len(tenant.Companions)),
		logger.Duration("elapsed", elapsed),
	)
	return &tenant, nil
}

// FindAll retrieves tenants with pagination, newest first.
func (r *tenantRepositoryImpl) FindAll(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	if limit <= 0 {
		limit = 50
	}

	var tenants []*models.Tenant
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tenants).Error
	if err != nil {
		r.log.Error(ctx, "tenant listing failed", err)
		return nil, ccserrors.ErrServerError("tenant listing failed").WithCause(err)
	}
	return tenants, nil
}

// Save persists a new tenant.
func (r *tenantRepositoryImpl) Save(ctx context.Context, tenant *models.Tenant) error {
	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		r.log.Error(ctx, "tenant save failed", err,
			logger.String("tenant_slug", tenant.Slug),
		)
		return ccserrors.ErrPersistenceFailure("tenant save failed").WithCause(err)
	}
	return nil
}

// SaveCompanion persists a new companion for a tenant.
func (r *tenantRepositoryImpl) SaveCompanion(ctx context.Context, companion *models.Companion) error {
	if err := r.db.WithContext(ctx).Create(companion).Error; err != nil {
		r.log.Error(ctx, "companion save failed", err,
			logger.String("tenant_id", companion.TenantID),
			logger.String("companion_key", companion.Key),
		)
		return ccserrors.ErrPersistenceFailure("companion save failed").WithCause(err)
	}
	return nil
}
