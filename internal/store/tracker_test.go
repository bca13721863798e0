package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"catalog/internal/domain"
	"catalog/internal/monitoring"
)

func testTracker(t *testing.T) (*Tracker, *CacheStore) {
	t.Helper()
	s := NewCacheStore(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop())
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	return NewTracker(s, m, zap.NewNop()), s
}

func baseFilters() domain.Filters {
	return domain.Filters{
		Types:         []string{"hair", "clothing"},
		Sort:          domain.SortUpdated,
		Dir:           domain.SortDesc,
		Compatibility: 1,
	}
}

func TestShouldInvalidateOnEachTrigger(t *testing.T) {
	changedFilters := func(mutate func(*domain.Filters)) domain.Filters {
		f := baseFilters()
		mutate(&f)
		return f
	}

	tests := []struct {
		name    string
		cookie  string
		filters domain.Filters
		hash    string
	}{
		{"cookie change", "session-b", baseFilters(), "hash-1"},
		{"sort field change", "session-a", changedFilters(func(f *domain.Filters) { f.Sort = domain.SortName }), "hash-1"},
		{"sort direction change", "session-a", changedFilters(func(f *domain.Filters) { f.Dir = domain.SortAsc }), "hash-1"},
		{"compatibility change", "session-a", changedFilters(func(f *domain.Filters) { f.Compatibility = 3 }), "hash-1"},
		{"type filter change", "session-a", changedFilters(func(f *domain.Filters) { f.Types = []string{"hair"} }), "hash-1"},
		{"settings hash change", "session-a", baseFilters(), "hash-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, cache := testTracker(t)

			// Record the baseline, then cache a valid record.
			tracker.ShouldInvalidate("session-a", baseFilters(), "hash-1")
			cache.Save(&domain.CacheRecord{
				Items:     []domain.CatalogItem{{Name: "one", ImageURL: "img/1"}},
				ExpiresAt: time.Now().Add(time.Hour),
			})

			if !tracker.ShouldInvalidate(tt.cookie, tt.filters, tt.hash) {
				t.Fatal("expected the change to invalidate")
			}
			if cache.Load() != nil {
				t.Fatal("expected the cached record to be deleted")
			}

			// The last-seen values were updated, so repeating the same
			// inputs must not invalidate again.
			if tracker.ShouldInvalidate(tt.cookie, tt.filters, tt.hash) {
				t.Error("unchanged inputs must not invalidate")
			}
		})
	}
}

func TestShouldInvalidateUnchanged(t *testing.T) {
	tracker, cache := testTracker(t)

	tracker.ShouldInvalidate("session-a", baseFilters(), "hash-1")
	cache.Save(&domain.CacheRecord{
		Items:     []domain.CatalogItem{{Name: "one", ImageURL: "img/1"}},
		ExpiresAt: time.Now().Add(time.Hour),
	})

	if tracker.ShouldInvalidate("session-a", baseFilters(), "hash-1") {
		t.Fatal("identical inputs must not invalidate")
	}
	if cache.Load() == nil {
		t.Fatal("cached record must survive")
	}
}

func TestChangedTriggers(t *testing.T) {
	prev := domain.InvalidationState{Cookie: "a", Filters: baseFilters(), SettingsHash: "h1"}

	if got := ChangedTriggers(prev, prev); len(got) != 0 {
		t.Errorf("identical states fired %v", got)
	}

	cur := prev
	cur.Cookie = "b"
	cur.SettingsHash = "h2"
	got := ChangedTriggers(prev, cur)
	if len(got) != 2 || got[0] != "cookie" || got[1] != "settings" {
		t.Errorf("triggers = %v, want [cookie settings]", got)
	}
}

// The very first check has no recorded hash and must only record the
// baseline, not invalidate on hash grounds.
func TestFirstCheckRecordsHashBaseline(t *testing.T) {
	prev := domain.InvalidationState{Cookie: "a", Filters: baseFilters()}
	cur := prev
	cur.SettingsHash = "h1"

	if got := ChangedTriggers(prev, cur); len(got) != 0 {
		t.Errorf("first hash sighting fired %v", got)
	}

	// Once a baseline exists, a differing hash fires.
	next := cur
	next.SettingsHash = "h2"
	if got := ChangedTriggers(cur, next); len(got) != 1 || got[0] != "settings" {
		t.Errorf("triggers = %v, want [settings]", got)
	}
}
