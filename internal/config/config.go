package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"catalog/internal/domain"
)

// Settings is the immutable, validated configuration snapshot the whole
// pipeline runs from. It is built once at startup and never mutated; a
// cookie or filter change is delivered as a fresh snapshot.
type Settings struct {
	BaseURL      string
	SessionToken string
	UserAgent    string

	RequestDelay      time.Duration
	RetryLimit        int
	PageCount         int
	CacheTTL          time.Duration
	EnrichConcurrency int
	ParallelFetch     bool
	ReducedDelay      bool

	TypeFilters   []string
	SortField     domain.SortField
	SortDir       domain.SortDir
	Compatibility int

	ServerPort string
	LogLevel   string
	CachePath  string

	hash string
}

// rawSettings mirrors the environment surface before validation.
type rawSettings struct {
	BaseURL           string `mapstructure:"BASE_URL"`
	SessionToken      string `mapstructure:"SESSION_TOKEN"`
	UserAgent         string `mapstructure:"USER_AGENT"`
	RequestDelayMS    int    `mapstructure:"REQUEST_DELAY_MS"`
	RetryLimit        int    `mapstructure:"RETRY_LIMIT"`
	PageCount         int    `mapstructure:"PAGE_COUNT"`
	CacheTTLMinutes   int    `mapstructure:"CACHE_TTL_MINUTES"`
	EnrichConcurrency int    `mapstructure:"ENRICH_CONCURRENCY"`
	ParallelFetch     bool   `mapstructure:"PARALLEL_FETCH"`
	ReducedDelay      bool   `mapstructure:"REDUCED_DELAY"`
	TypeFilters       string `mapstructure:"TYPE_FILTERS"`
	SortField         string `mapstructure:"SORT_FIELD"`
	SortDir           string `mapstructure:"SORT_DIR"`
	Compatibility     int    `mapstructure:"COMPATIBILITY"`
	ServerPort        string `mapstructure:"SERVER_PORT"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	CachePath         string `mapstructure:"CACHE_PATH"`
}

// Load reads configuration from .env / environment variables.
// Unrecognized or unparsable values fall back to defaults and are logged;
// loading never fails on bad values, only on an unreadable config shape.
func Load(logger *zap.Logger) (*Settings, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// The .env file is optional; production configures via environment.
	_ = viper.ReadInConfig()

	viper.SetDefault("BASE_URL", "https://catalog.example.com")
	viper.SetDefault("SESSION_TOKEN", "")
	viper.SetDefault("USER_AGENT", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/107.0.0.0 Safari/537.36")
	viper.SetDefault("REQUEST_DELAY_MS", 500)
	viper.SetDefault("RETRY_LIMIT", 3)
	viper.SetDefault("PAGE_COUNT", 3)
	viper.SetDefault("CACHE_TTL_MINUTES", 60)
	viper.SetDefault("ENRICH_CONCURRENCY", 4)
	viper.SetDefault("PARALLEL_FETCH", false)
	viper.SetDefault("REDUCED_DELAY", false)
	viper.SetDefault("TYPE_FILTERS", "")
	viper.SetDefault("SORT_FIELD", string(domain.SortUpdated))
	viper.SetDefault("SORT_DIR", string(domain.SortDesc))
	viper.SetDefault("COMPATIBILITY", 0)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("CACHE_PATH", "catalog-cache.db")

	var raw rawSettings
	if err := viper.Unmarshal(&raw); err != nil {
		return nil, err
	}
	return fromRaw(raw, logger), nil
}

// fromRaw converts the raw environment surface into a validated snapshot.
// It is total: every field either parses or is replaced by its default.
func fromRaw(raw rawSettings, logger *zap.Logger) *Settings {
	s := &Settings{
		BaseURL:           strings.TrimRight(raw.BaseURL, "/"),
		SessionToken:      raw.SessionToken,
		UserAgent:         raw.UserAgent,
		RequestDelay:      time.Duration(raw.RequestDelayMS) * time.Millisecond,
		RetryLimit:        raw.RetryLimit,
		PageCount:         raw.PageCount,
		CacheTTL:          time.Duration(raw.CacheTTLMinutes) * time.Minute,
		EnrichConcurrency: raw.EnrichConcurrency,
		ParallelFetch:     raw.ParallelFetch,
		ReducedDelay:      raw.ReducedDelay,
		TypeFilters:       splitTypeFilters(raw.TypeFilters),
		Compatibility:     raw.Compatibility,
		ServerPort:        raw.ServerPort,
		LogLevel:          raw.LogLevel,
		CachePath:         raw.CachePath,
	}

	switch domain.SortField(raw.SortField) {
	case domain.SortUpdated, domain.SortName, domain.SortDownloads, domain.SortLikes:
		s.SortField = domain.SortField(raw.SortField)
	default:
		logger.Warn("unknown sort field, using default",
			zap.String("value", raw.SortField), zap.String("default", string(domain.SortUpdated)))
		s.SortField = domain.SortUpdated
	}

	switch domain.SortDir(raw.SortDir) {
	case domain.SortAsc, domain.SortDesc:
		s.SortDir = domain.SortDir(raw.SortDir)
	default:
		logger.Warn("unknown sort direction, using default",
			zap.String("value", raw.SortDir), zap.String("default", string(domain.SortDesc)))
		s.SortDir = domain.SortDesc
	}

	if s.Compatibility < 0 || s.Compatibility > 3 {
		logger.Warn("compatibility filter out of range, using default", zap.Int("value", s.Compatibility))
		s.Compatibility = 0
	}
	if s.RequestDelay < 0 {
		logger.Warn("negative request delay, using zero", zap.Duration("value", s.RequestDelay))
		s.RequestDelay = 0
	}
	if s.RetryLimit < 0 {
		logger.Warn("negative retry limit, using zero", zap.Int("value", s.RetryLimit))
		s.RetryLimit = 0
	}
	if s.PageCount < 1 {
		logger.Warn("page count below one, using one", zap.Int("value", s.PageCount))
		s.PageCount = 1
	}
	if s.EnrichConcurrency < 1 {
		logger.Warn("enrich concurrency below one, using one", zap.Int("value", s.EnrichConcurrency))
		s.EnrichConcurrency = 1
	}
	if s.CacheTTL <= 0 {
		logger.Warn("non-positive cache TTL, using one hour", zap.Duration("value", s.CacheTTL))
		s.CacheTTL = time.Hour
	}

	s.hash = computeHash(s)
	return s
}

func splitTypeFilters(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Filters returns the sort/filter tuple sent with listing requests and
// compared by the invalidation tracker.
func (s *Settings) Filters() domain.Filters {
	return domain.Filters{
		Types:         s.TypeFilters,
		Sort:          s.SortField,
		Dir:           s.SortDir,
		Compatibility: s.Compatibility,
	}
}

// Hash is a stable content hash of the snapshot. Two snapshots with the
// same scrape-relevant configuration produce the same hash.
func (s *Settings) Hash() string {
	return s.hash
}

// PageDelay is the pause applied before each listing page request.
// It is halved when pages are fetched in parallel and the reduced-delay
// flag is set, to bound total wall-clock time.
func (s *Settings) PageDelay() time.Duration {
	if s.ParallelFetch && s.ReducedDelay && s.PageCount > 1 {
		return s.RequestDelay / 2
	}
	return s.RequestDelay
}

// DetailDelay is the pause applied before each detail page request,
// following the same halving policy as page fetching.
func (s *Settings) DetailDelay() time.Duration {
	if s.EnrichConcurrency > 1 && s.ReducedDelay {
		return s.RequestDelay / 2
	}
	return s.RequestDelay
}

func computeHash(s *Settings) string {
	// Only scrape-relevant fields participate; the server port or log
	// level changing must not throw away a perfectly good cache.
	data, _ := json.Marshal(struct {
		BaseURL           string
		SessionToken      string
		UserAgent         string
		RequestDelayMS    int64
		RetryLimit        int
		PageCount         int
		CacheTTLMinutes   int64
		EnrichConcurrency int
		ParallelFetch     bool
		ReducedDelay      bool
		TypeFilters       []string
		SortField         domain.SortField
		SortDir           domain.SortDir
		Compatibility     int
	}{
		s.BaseURL, s.SessionToken, s.UserAgent,
		s.RequestDelay.Milliseconds(), s.RetryLimit, s.PageCount,
		int64(s.CacheTTL.Minutes()), s.EnrichConcurrency,
		s.ParallelFetch, s.ReducedDelay,
		s.TypeFilters, s.SortField, s.SortDir, s.Compatibility,
	})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
