package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"catalog/internal/config"
	"catalog/internal/domain"
	"catalog/internal/extract"
	"catalog/internal/fetch"
	"catalog/internal/monitoring"
)

// Enricher visits every item's detail page under a bounded worker count
// and merges in the fields the listing page does not carry.
type Enricher struct {
	client  *fetch.Client
	cfg     *config.Settings
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewEnricher(client *fetch.Client, cfg *config.Settings, m *monitoring.Metrics, l *zap.Logger) *Enricher {
	return &Enricher{client: client, cfg: cfg, metrics: m, logger: l}
}

// Enrich visits every item exactly once, at most EnrichConcurrency
// detail fetches in flight. The output is one-to-one with the input:
// an item whose detail page cannot be fetched keeps its pre-enrichment
// state and never blocks the others. Cancellation stops new visits;
// in-flight ones unwind at their next network call.
func (e *Enricher) Enrich(ctx context.Context, items []domain.CatalogItem) []domain.CatalogItem {
	out := make([]domain.CatalogItem, len(items))
	copy(out, items)

	sem := semaphore.NewWeighted(int64(e.cfg.EnrichConcurrency))
	var wg sync.WaitGroup
	for i := range out {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(item *domain.CatalogItem) {
			defer wg.Done()
			defer sem.Release(1)
			e.visit(ctx, item)
		}(&out[i])
	}
	wg.Wait()
	return out
}

func (e *Enricher) visit(ctx context.Context, item *domain.CatalogItem) {
	if err := fetch.Sleep(ctx, e.cfg.DetailDelay()); err != nil {
		return
	}

	detailURL := e.client.Resolve(item.DetailURL)
	body, err := e.client.Get(ctx, detailURL)
	if err != nil {
		if ctx.Err() == nil {
			e.metrics.EnrichFailures.WithLabelValues("detail_fetch").Inc()
			e.logger.Warn("detail page fetch failed, keeping item unenriched",
				zap.String("name", item.Name),
				zap.String("url", detailURL),
				zap.Error(err))
		}
		return
	}

	d, err := extract.DetailPage(body, e.client.BaseURL())
	if err != nil {
		e.metrics.EnrichFailures.WithLabelValues("detail_parse").Inc()
		e.logger.Warn("detail page did not parse",
			zap.String("name", item.Name), zap.Error(err))
		return
	}

	if d.DownloadURL == "" {
		e.metrics.EnrichFailures.WithLabelValues("download_link").Inc()
		e.logger.Warn("detail page has no download link", zap.String("name", item.Name))
	}

	item.DownloadURL = d.DownloadURL
	item.Tags = d.Tags
	item.LastUpdated = d.LastUpdated
	item.Version = d.Version
}
