package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalog/internal/domain"
)

// ListingItems parses a full listing page and extracts every candidate
// it can. Candidates the markup does not fully describe are skipped
// individually; a page with no candidates yields an empty slice.
func ListingItems(htmlContent string, base *url.URL) ([]domain.CatalogItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	var items []domain.CatalogItem
	doc.Find(".catalog-list .catalog-item").Each(func(i int, s *goquery.Selection) {
		if item := ListingItem(s, base); item != nil {
			items = append(items, *item)
		}
	})
	return items, nil
}

// ListingItem extracts one candidate from a single listing fragment.
// It returns nil when the fragment lacks a name or an image, since an
// imageless candidate has no deduplication identity.
func ListingItem(s *goquery.Selection, base *url.URL) *domain.CatalogItem {
	// goquery decodes HTML entities when parsing, so Text() is already
	// entity-decoded; only whitespace needs trimming here.
	name := strings.TrimSpace(s.Find(".item-title a").First().Text())
	if name == "" {
		name = strings.TrimSpace(s.Find(".item-title").First().Text())
	}
	if name == "" {
		return nil
	}

	imageURL, _ := s.Find("img").First().Attr("src")
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return nil
	}

	detailURL, _ := s.Find(".item-title a").First().Attr("href")
	if detailURL == "" {
		detailURL, _ = s.Find("a").First().Attr("href")
	}
	detailURL = resolveRef(base, strings.TrimSpace(detailURL))

	item := &domain.CatalogItem{
		Name:      name,
		Publisher: strings.TrimSpace(s.Find(".item-publisher").First().Text()),
		Category:  strings.TrimSpace(s.Find(".item-category").First().Text()),
		ImageURL:  imageURL,
		DetailURL: detailURL,
		Gender:    parseGender(s.Find(".item-gender").First().Text()),
	}
	return item
}

func parseGender(raw string) domain.Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m":
		return domain.GenderMale
	case "female", "f":
		return domain.GenderFemale
	default:
		return domain.GenderUnisex
	}
}

// resolveRef makes ref absolute against base. Unparsable refs are
// returned unchanged rather than dropped; the fetch layer will surface
// the failure when the URL is actually used.
func resolveRef(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return ref
	}
	return base.ResolveReference(u).String()
}
