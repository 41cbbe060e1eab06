package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/domain/repository"
	"github.com/turtacn/ccs/pkg/constants"
	"github.com/turtacn/ccs/pkg/logger"
)

// ====== Tenant Config Cache ======

// CachedTenantRepository wraps a TenantRepository with a two-tier read cache:
// an in-process L1 in front of a shared redis L2. Lookups for the same slug
// are collapsed through singleflight so a cold cache produces one datastore
// round trip, not a thundering herd. Writes bypass the cache and invalidate
// the slug.
type CachedTenantRepository struct {
	inner repository.TenantRepository
	l1    *gocache.Cache
	rdb   *goredis.Client // nil disables the L2 tier
	group singleflight.Group
	log   logger.Logger

	l1TTL time.Duration
	l2TTL time.Duration
}

// NewCachedTenantRepository builds the caching wrapper. rdb may be nil, in
// which case only the in-process tier is used.
func NewCachedTenantRepository(inner repository.TenantRepository, rdb *goredis.Client, log logger.Logger) *CachedTenantRepository {
	return &CachedTenantRepository{
		inner: inner,
		l1:    gocache.New(constants.TenantConfigCacheL1TTL, 2*constants.TenantConfigCacheL1TTL),
		rdb:   rdb,
		log:   log.WithComponent("tenant_cache"),
		l1TTL: constants.TenantConfigCacheL1TTL,
		l2TTL: constants.TenantConfigCacheTTL,
	}
}

func tenantCacheKey(slug string) string {
	return fmt.Sprintf("ccs:tenant:%s", slug)
}

// FindBySlug resolves a tenant through the cache tiers.
func (r *CachedTenantRepository) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	if v, ok := r.l1.Get(slug); ok {
		return v.(*models.Tenant), nil
	}

	v, err, _ := r.group.Do(slug, func() (interface{}, error) {
		if tenant := r.fromRedis(ctx, slug); tenant != nil {
			r.l1.Set(slug, tenant, r.l1TTL)
			return tenant, nil
		}

		tenant, err := r.inner.FindBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		r.l1.Set(slug, tenant, r.l1TTL)
		r.toRedis(ctx, slug, tenant)
		return tenant, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Tenant), nil
}

// FindAll is an admin path and always hits the datastore.
func (r *CachedTenantRepository) FindAll(ctx context.Context, limit, offset int) ([]*models.Tenant, error) {
	return r.inner.FindAll(ctx, limit, offset)
}

// Save persists and invalidates the slug across both tiers.
func (r *CachedTenantRepository) Save(ctx context.Context, tenant *models.Tenant) error {
	if err := r.inner.Save(ctx, tenant); err != nil {
		return err
	}
	r.Invalidate(ctx, tenant.Slug)
	return nil
}

// SaveCompanion persists a companion. The owning tenant's cached config is
// stale afterwards, but only the slug key can be invalidated, so the caller
// provides it via InvalidateTenant when known; here we drop nothing and rely
// on TTL expiry plus explicit invalidation from the admin path.
func (r *CachedTenantRepository) SaveCompanion(ctx context.Context, companion *models.Companion) error {
	return r.inner.SaveCompanion(ctx, companion)
}

// Invalidate drops the slug from both cache tiers.
func (r *CachedTenantRepository) Invalidate(ctx context.Context, slug string) {
	r.l1.Delete(slug)
	if r.rdb != nil {
		if err := r.rdb.Del(ctx, tenantCacheKey(slug)).Err(); err != nil {
			r.log.Warn(ctx, "redis invalidation failed",
				logger.String("tenant_slug", slug),
				logger.Error(err),
			)
		}
	}
}

func (r *CachedTenantRepository) fromRedis(ctx context.Context, slug string) *models.Tenant {
	if r.rdb == nil {
		return nil
	}
	raw, err := r.rdb.Get(ctx, tenantCacheKey(slug)).Bytes()
	if err != nil {
		if err != goredis.Nil {
			r.log.Warn(ctx, "redis read failed", logger.String("tenant_slug", slug), logger.Error(err))
		}
		return nil
	}
	var tenant models.Tenant
	if err := json.Unmarshal(raw, &tenant); err != nil {
		r.log.Warn(ctx, "redis entry corrupt, dropping", logger.String("tenant_slug", slug), logger.Error(err))
		_ = r.rdb.Del(ctx, tenantCacheKey(slug)).Err()
		return nil
	}
	return &tenant
}

func (r *CachedTenantRepository) toRedis(ctx context.Context, slug string, tenant *models.Tenant) {
	if r.rdb == nil {
		return
	}
	raw, err := json.Marshal(tenant)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, tenantCacheKey(slug), raw, r.l2TTL).Err(); err != nil {
		r.log.Warn(ctx, "redis write failed", logger.String("tenant_slug", slug), logger.Error(err))
	}
}
