package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"catalog/internal/config"
	"catalog/internal/domain"
	"catalog/internal/monitoring"
)

func testSettings(baseURL string) *config.Settings {
	return &config.Settings{
		BaseURL:           baseURL,
		UserAgent:         "catalog-test",
		RetryLimit:        3,
		PageCount:         1,
		EnrichConcurrency: 1,
		SortField:         domain.SortUpdated,
		SortDir:           domain.SortDesc,
	}
}

func testFetcher(t *testing.T, cfg *config.Settings) *PageFetcher {
	t.Helper()
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	return NewPageFetcher(client, cfg, m, zap.NewNop())
}

func catalogItemHTML(name, image, publisher string) string {
	return fmt.Sprintf(`<div class="catalog-item">
		<div class="item-title"><a href="/item/%s">%s</a></div>
		<div class="item-publisher">%s</div>
		<img src="%s"/>
	</div>`, name, name, publisher, image)
}

func listingHTML(items ...string) string {
	page := `<html><body><div class="catalog-list">`
	for _, it := range items {
		page += it
	}
	return page + `</div></body></html>`
}

func imageURLs(items []domain.CatalogItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ImageURL
	}
	return out
}

func TestFetchAllSequentialDedupe(t *testing.T) {
	pages := map[string]string{
		"1": listingHTML(
			catalogItemHTML("ItemA", "img/A", "pub-page-1"),
			catalogItemHTML("ItemB", "img/B", "pub-page-1"),
			catalogItemHTML("ItemC", "img/C", "pub-page-1"),
		),
		"2": listingHTML(
			catalogItemHTML("ItemB", "img/B", "pub-page-2"),
			catalogItemHTML("ItemD", "img/D", "pub-page-2"),
		),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pages[r.URL.Query().Get("page")])
	}))
	defer srv.Close()

	cfg := testSettings(srv.URL)
	cfg.PageCount = 2

	items, err := testFetcher(t, cfg).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	want := []string{"img/A", "img/B", "img/C", "img/D"}
	if got := imageURLs(items); !reflect.DeepEqual(got, want) {
		t.Fatalf("images = %v, want %v", got, want)
	}
	// Duplicate B must survive from page 1, the first occurrence.
	if items[1].Publisher != "pub-page-1" {
		t.Errorf("duplicate winner came from %q, want pub-page-1", items[1].Publisher)
	}
}

func TestFetchAllListingQueryParams(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Encode())
		fmt.Fprint(w, listingHTML(catalogItemHTML("A", "img/A", "p")))
	}))
	defer srv.Close()

	cfg := testSettings(srv.URL)
	cfg.TypeFilters = []string{"hair", "clothing"}
	cfg.SortField = domain.SortName
	cfg.SortDir = domain.SortAsc
	cfg.Compatibility = 2

	if _, err := testFetcher(t, cfg).FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	want := "compat=2&dir=asc&page=1&sort=name&types=hair%2Cclothing"
	if got := gotQuery.Load().(string); got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestFetchAllEmptyPageIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>maintenance</body></html>")
	}))
	defer srv.Close()

	items, err := testFetcher(t, testSettings(srv.URL)).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestFetchAllRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, listingHTML(catalogItemHTML("A", "img/A", "p")))
	}))
	defer srv.Close()

	items, err := testFetcher(t, testSettings(srv.URL)).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll after transient failures: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
}

func TestFetchAllRetryLimitExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	items, err := testFetcher(t, testSettings(srv.URL)).FetchAll(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if items != nil {
		t.Errorf("expected no partial result, got %d items", len(items))
	}
	// The initial attempt plus RetryLimit restarts.
	if got := calls.Load(); got != 4 {
		t.Errorf("expected 4 requests, got %d", got)
	}
}

func TestFetchAllParallelPageFailureFailsSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "broken", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, listingHTML(catalogItemHTML("A", "img/A", "p")))
	}))
	defer srv.Close()

	cfg := testSettings(srv.URL)
	cfg.PageCount = 3
	cfg.ParallelFetch = true
	cfg.RetryLimit = 0

	if _, err := testFetcher(t, cfg).FetchAll(context.Background()); err == nil {
		t.Fatal("expected a failing page to fail the whole set")
	}
}

func TestFetchAllCancellation(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, listingHTML(catalogItemHTML("A", "img/A", "p")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testFetcher(t, testSettings(srv.URL)).FetchAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("cancelled fetch must not issue requests, got %d", got)
	}
}

func TestDedupeByImage(t *testing.T) {
	items := []domain.CatalogItem{
		{Name: "one", ImageURL: "img/1"},
		{Name: "two", ImageURL: "img/2"},
		{Name: "one again", ImageURL: "img/1"},
		{Name: "three", ImageURL: "img/3"},
	}

	got := DedupeByImage(items)
	if len(got) > len(items) {
		t.Fatal("dedupe must never grow the input")
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if got[0].Name != "one" {
		t.Errorf("first occurrence must win, got %q", got[0].Name)
	}

	again := DedupeByImage(got)
	if !reflect.DeepEqual(again, got) {
		t.Error("dedupe must be idempotent")
	}
}
