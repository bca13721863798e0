package store

import (
	"go.uber.org/zap"

	"catalog/internal/domain"
	"catalog/internal/monitoring"
)

// Tracker decides when the cached catalog can no longer be trusted.
// Three triggers are evaluated on every call, each able to force
// invalidation on its own: a cookie change, a sort/filter change, and a
// settings-hash change. The last-seen state lives next to the cache
// record so the comparison survives process restarts.
type Tracker struct {
	store   *CacheStore
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

func NewTracker(store *CacheStore, m *monitoring.Metrics, l *zap.Logger) *Tracker {
	return &Tracker{store: store, metrics: m, logger: l}
}

// ShouldInvalidate compares the current values against the last-seen
// ones, deletes the cache file when any trigger fires, and records the
// current values unconditionally.
func (t *Tracker) ShouldInvalidate(cookie string, filters domain.Filters, settingsHash string) bool {
	prev := t.store.LoadState()
	cur := domain.InvalidationState{Cookie: cookie, Filters: filters, SettingsHash: settingsHash}

	triggers := ChangedTriggers(prev, cur)
	if len(triggers) > 0 {
		t.logger.Info("invalidating catalog cache", zap.Strings("triggers", triggers))
		for _, trigger := range triggers {
			t.metrics.Invalidations.WithLabelValues(trigger).Inc()
		}
		t.store.Invalidate()
	}
	t.store.SaveState(cur)
	return len(triggers) > 0
}

// ChangedTriggers is the pure trigger evaluation: it names every
// trigger that fires going from prev to cur. The settings-hash trigger
// only fires once a baseline hash exists; the very first check records
// the baseline without invalidating on hash grounds.
func ChangedTriggers(prev, cur domain.InvalidationState) []string {
	var triggers []string
	if prev.Cookie != cur.Cookie {
		triggers = append(triggers, "cookie")
	}
	if !prev.Filters.Equal(cur.Filters) {
		triggers = append(triggers, "filters")
	}
	if prev.SettingsHash != "" && prev.SettingsHash != cur.SettingsHash {
		triggers = append(triggers, "settings")
	}
	return triggers
}
