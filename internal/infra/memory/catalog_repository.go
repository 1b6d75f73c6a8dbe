package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"training-progress-service/internal/domain"
)

// CatalogLoader fetches catalog content from a backing store (files, Postgres).
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, catalogID string) (*domain.Catalog, error)
}

// CatalogRepository caches catalogs with TTL to avoid repeated loads.
type CatalogRepository struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedCatalog
}

type cachedCatalog struct {
	catalog   *domain.Catalog
	expiresAt time.Time
}

func NewCatalogRepository(loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCatalog),
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context, catalogID string) (*domain.Catalog, error) {
	if c, ok := r.cached(catalogID); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(catalogID, func() (interface{}, error) {
		if c, ok := r.cached(catalogID); ok {
			return c, nil
		}

		c, err := r.loader.LoadCatalog(ctx, catalogID)
		if err != nil {
			return nil, err
		}
		c.Index()

		r.mu.Lock()
		r.cache[catalogID] = cachedCatalog{
			catalog:   c,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Catalog), nil
}

// Invalidate drops a cached catalog so the next read reloads it.
func (r *CatalogRepository) Invalidate(catalogID string) {
	r.mu.Lock()
	delete(r.cache, catalogID)
	r.mu.Unlock()
}

func (r *CatalogRepository) cached(catalogID string) (*domain.Catalog, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[catalogID]; ok && entry.expiresAt.After(now) {
		return entry.catalog, true
	}
	return nil, false
}

// ttlWithJitter must be called with mu held; rnd is not safe for concurrent use.
func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticCatalogLoader struct {
	catalogs map[string]*domain.Catalog
}

func NewStaticCatalogLoader(catalogs ...*domain.Catalog) *StaticCatalogLoader {
	l := &StaticCatalogLoader{catalogs: make(map[string]*domain.Catalog, len(catalogs))}
	for _, c := range catalogs {
		l.catalogs[c.ID] = c
	}
	return l
}

func (l *StaticCatalogLoader) LoadCatalog(_ context.Context, catalogID string) (*domain.Catalog, error) {
	if c, ok := l.catalogs[catalogID]; ok {
		return c, nil
	}
	return nil, domain.ErrCatalogNotFound
}
