package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"catalog/internal/config"
	"catalog/internal/domain"
	"catalog/internal/extract"
	"catalog/internal/monitoring"
)

// PageFetcher retrieves the configured range of listing pages, extracts
// candidates and deduplicates them. Any failure inside a page set
// restarts the whole set with linear backoff, up to the retry limit.
type PageFetcher struct {
	client  *Client
	cfg     *config.Settings
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewPageFetcher(client *Client, cfg *config.Settings, m *monitoring.Metrics, l *zap.Logger) *PageFetcher {
	return &PageFetcher{client: client, cfg: cfg, metrics: m, logger: l}
}

// FetchAll fetches pages [1, PageCount] and returns the deduplicated
// candidates. Cancellation unwinds immediately and never consumes a
// retry attempt.
func (f *PageFetcher) FetchAll(ctx context.Context) ([]domain.CatalogItem, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, err := f.fetchPageSet(ctx)
		if err == nil {
			return DedupeByImage(items), nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		if attempt >= f.cfg.RetryLimit {
			break
		}
		f.metrics.FetchRetries.Inc()
		f.logger.Warn("page set fetch failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("retry_limit", f.cfg.RetryLimit),
			zap.Error(err))
		if err := Sleep(ctx, f.cfg.RequestDelay*time.Duration(attempt+1)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("fetching %d listing pages: %w", f.cfg.PageCount, lastErr)
}

func (f *PageFetcher) fetchPageSet(ctx context.Context) ([]domain.CatalogItem, error) {
	if f.cfg.ParallelFetch && f.cfg.PageCount > 1 {
		return f.fetchParallel(ctx)
	}
	return f.fetchSequential(ctx)
}

func (f *PageFetcher) fetchSequential(ctx context.Context) ([]domain.CatalogItem, error) {
	var items []domain.CatalogItem
	for page := 1; page <= f.cfg.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := f.fetchPage(ctx, page)
		if err != nil {
			return nil, err
		}
		items = append(items, got...)
	}
	return items, nil
}

func (f *PageFetcher) fetchParallel(ctx context.Context) ([]domain.CatalogItem, error) {
	// One goroutine per page; page counts are small and bounded by
	// configuration, so no extra limiter is applied here.
	type pageResult struct {
		items []domain.CatalogItem
		err   error
	}
	results := make(chan pageResult, f.cfg.PageCount)
	for page := 1; page <= f.cfg.PageCount; page++ {
		go func(page int) {
			got, err := f.fetchPage(ctx, page)
			results <- pageResult{items: got, err: err}
		}(page)
	}

	var items []domain.CatalogItem
	var firstErr error
	for i := 0; i < f.cfg.PageCount; i++ {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		// Appended in completion order; which duplicate survives
		// dedupe is therefore unspecified across runs.
		items = append(items, res.items...)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return items, nil
}

func (f *PageFetcher) fetchPage(ctx context.Context, page int) ([]domain.CatalogItem, error) {
	if err := Sleep(ctx, f.cfg.PageDelay()); err != nil {
		return nil, err
	}

	pageURL := f.listingURL(page)
	body, err := f.client.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetching page %d: %w", page, err)
	}
	f.metrics.PagesFetched.Inc()

	items, err := extract.ListingItems(body, f.client.BaseURL())
	if err != nil {
		f.logger.Warn("listing page did not parse, treating as empty",
			zap.Int("page", page), zap.Error(err))
		return nil, nil
	}
	if len(items) == 0 {
		f.logger.Warn("listing page yielded no candidates", zap.Int("page", page))
	}
	return items, nil
}

func (f *PageFetcher) listingURL(page int) string {
	q := url.Values{}
	q.Set("sort", string(f.cfg.SortField))
	q.Set("dir", string(f.cfg.SortDir))
	q.Set("compat", strconv.Itoa(f.cfg.Compatibility))
	if len(f.cfg.TypeFilters) > 0 {
		q.Set("types", strings.Join(f.cfg.TypeFilters, ","))
	}
	q.Set("page", strconv.Itoa(page))
	return f.cfg.BaseURL + "/catalog?" + q.Encode()
}

// DedupeByImage removes candidates whose image URL was already seen,
// keeping the first occurrence in slice order. It never grows the input
// and is idempotent.
func DedupeByImage(items []domain.CatalogItem) []domain.CatalogItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]domain.CatalogItem, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.ImageURL]; dup {
			continue
		}
		seen[item.ImageURL] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Sleep pauses for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
