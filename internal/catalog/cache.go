package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/paulexconde/camperportal/internal/models"
	"github.com/paulexconde/camperportal/internal/pkg/logger"
	"github.com/paulexconde/camperportal/internal/services"
	"github.com/redis/go-redis/v9"
)

const cacheKey = "camper_portal:catalog:sections"

// CachedProvider keeps the catalog in Redis. Redis failures fall through to the
// wrapped provider.
type CachedProvider struct {
	next   services.CatalogProvider
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewCachedProvider(next services.CatalogProvider, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedProvider {
	return &CachedProvider{next: next, client: client, ttl: ttl, log: log}
}

func (p *CachedProvider) Sections(ctx context.Context) ([]models.Section, error) {
	raw, err := p.client.Get(ctx, cacheKey).Bytes()
	switch {
	case err == nil:
		var sections []models.Section
		if err := json.Unmarshal(raw, &sections); err == nil {
			return sections, nil
		}
		p.log.Warn("discarding unreadable catalog cache entry", "key", cacheKey)
	case !errors.Is(err, redis.Nil):
		p.log.Warn("catalog cache unavailable", "error", err)
	}

	sections, err := p.next.Sections(ctx)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(sections); err == nil {
		if err := p.client.Set(ctx, cacheKey, raw, p.ttl).Err(); err != nil {
			p.log.Warn("failed to cache catalog", "error", err)
		}
	}
	return sections, nil
}

// Invalidate drops the cached catalog so the next read reloads it.
func (p *CachedProvider) Invalidate(ctx context.Context) error {
	return p.client.Del(ctx, cacheKey).Err()
}
