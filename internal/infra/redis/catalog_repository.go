package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"training-progress-service/internal/domain"
	"training-progress-service/internal/infra/memory"
)

// CatalogRepository caches catalog documents in Redis and falls back to a
// loader on cache miss. Catalogs are stored as: SET catalog:{catalogID} {json}
type CatalogRepository struct {
	client *redis.Client
	loader memory.CatalogLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCatalogRepository builds the repository. Cache failures are logged to
// logger, or to slog.Default() when it is nil.
func NewCatalogRepository(client *redis.Client, loader memory.CatalogLoader, ttl time.Duration, logger *slog.Logger) *CatalogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger.With("component", "catalog_cache"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context, catalogID string) (*domain.Catalog, error) {
	if c, ok := r.cached(ctx, catalogID); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(catalogID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if c, ok := r.cached(ctx, catalogID); ok {
			return c, nil
		}

		c, err := r.loader.LoadCatalog(ctx, catalogID)
		if err != nil {
			return nil, err
		}
		c.Index()

		raw, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encode catalog: %w", err)
		}
		if err := r.client.Set(ctx, r.key(catalogID), raw, r.ttlWithJitter()).Err(); err != nil {
			r.logger.Warn("catalog cache write failed", "catalog", catalogID, "err", err)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Catalog), nil
}

func (r *CatalogRepository) cached(ctx context.Context, catalogID string) (*domain.Catalog, bool) {
	raw, err := r.client.Get(ctx, r.key(catalogID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("catalog cache read failed", "catalog", catalogID, "err", err)
		}
		return nil, false
	}
	var c domain.Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		r.logger.Warn("catalog cache entry corrupt", "catalog", catalogID, "err", err)
		return nil, false
	}
	return c.Index(), true
}

func (r *CatalogRepository) key(catalogID string) string {
	return "catalog:" + catalogID
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
