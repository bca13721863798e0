package domain

import "time"

// Gender classifies who a catalog item is made for.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderUnisex Gender = "unisex"
)

// SortField is one of the listing orderings the remote service accepts.
type SortField string

const (
	SortUpdated   SortField = "updated"
	SortName      SortField = "name"
	SortDownloads SortField = "downloads"
	SortLikes     SortField = "likes"
)

// SortDir is the listing sort direction.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// Filters is the sort/filter tuple sent with every listing request.
type Filters struct {
	Types         []string
	Sort          SortField
	Dir           SortDir
	Compatibility int
}

// Equal reports whether two filter tuples are identical, including the
// type filter list in order.
func (f Filters) Equal(o Filters) bool {
	if f.Sort != o.Sort || f.Dir != o.Dir || f.Compatibility != o.Compatibility {
		return false
	}
	if len(f.Types) != len(o.Types) {
		return false
	}
	for i := range f.Types {
		if f.Types[i] != o.Types[i] {
			return false
		}
	}
	return true
}

// CatalogItem is one normalized catalog entry. ImageURL doubles as the
// deduplication identity; items without an image are dropped during
// extraction and never reach the rest of the pipeline.
type CatalogItem struct {
	Name        string     `json:"name"`
	Publisher   string     `json:"publisher"`
	Category    string     `json:"category"`
	ImageURL    string     `json:"image_url"`
	DetailURL   string     `json:"detail_url"`
	DownloadURL string     `json:"download_url"`
	Gender      Gender     `json:"gender"`
	Tags        []string   `json:"tags"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Version     string     `json:"version,omitempty"`
}

// CacheRecord is the unit persisted to disk: the full item list plus the
// instant after which it may no longer be served.
type CacheRecord struct {
	Items     []CatalogItem
	ExpiresAt time.Time
}

// Expired reports whether the record may no longer be served at the given
// instant. An expired record is indistinguishable from an absent one.
func (r *CacheRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// InvalidationState is the last-seen tuple the invalidation tracker
// compares against on every call. A zero SettingsHash means no baseline
// has been recorded yet.
type InvalidationState struct {
	Cookie       string
	Filters      Filters
	SettingsHash string
}
