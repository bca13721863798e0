package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"catalog/internal/config"
	"catalog/internal/domain"
	"catalog/internal/enrich"
	"catalog/internal/fetch"
	"catalog/internal/monitoring"
	"catalog/internal/store"
)

// Pipeline composes the fetch, enrich and cache layers into the single
// public operation GetItems. Calls are serialized so the cache file and
// the tracker state only ever have one writer.
type Pipeline struct {
	mu       sync.Mutex
	cfg      *config.Settings
	fetcher  *fetch.PageFetcher
	enricher *enrich.Enricher
	cache    *store.CacheStore
	tracker  *store.Tracker
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func New(cfg *config.Settings, f *fetch.PageFetcher, e *enrich.Enricher, c *store.CacheStore, t *store.Tracker, m *monitoring.Metrics, l *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		fetcher:  f,
		enricher: e,
		cache:    c,
		tracker:  t,
		metrics:  m,
		logger:   l,
	}
}

// GetItems returns the current catalog: from the cache when a valid
// record exists, otherwise via a full fetch+enrich cycle whose result
// is persisted before being returned. When the caller cancels ctx the
// result is an empty slice and no error; only an exhausted fetch retry
// surfaces as an error.
func (p *Pipeline) GetItems(ctx context.Context) ([]domain.CatalogItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracker.ShouldInvalidate(p.cfg.SessionToken, p.cfg.Filters(), p.cfg.Hash())

	if rec := p.cache.Load(); rec != nil {
		p.metrics.CacheHits.Inc()
		p.logger.Debug("serving catalog from cache",
			zap.Int("items", len(rec.Items)),
			zap.Time("expires_at", rec.ExpiresAt))
		return rec.Items, nil
	}
	p.metrics.CacheMisses.Inc()

	items, err := p.fetcher.FetchAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			p.logger.Info("catalog refresh cancelled")
			return []domain.CatalogItem{}, nil
		}
		return nil, err
	}

	items = p.enricher.Enrich(ctx, items)
	if ctx.Err() != nil {
		p.logger.Info("catalog refresh cancelled during enrichment")
		return []domain.CatalogItem{}, nil
	}

	rec := &domain.CacheRecord{
		Items:     items,
		ExpiresAt: time.Now().Add(p.cfg.CacheTTL),
	}
	// Persistence failure is logged inside Save and never blocks the
	// freshly fetched result from being returned.
	p.cache.Save(rec)

	p.logger.Info("catalog refreshed",
		zap.Int("items", len(items)),
		zap.Time("expires_at", rec.ExpiresAt))
	return items, nil
}

// Invalidate discards the cached record so the next GetItems call runs
// a full fetch cycle.
func (p *Pipeline) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Invalidate()
}
