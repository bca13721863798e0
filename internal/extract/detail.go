package extract

import (
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Detail holds the fields only available on an item's detail page.
// Every field degrades independently: a missing download anchor, an
// unparsable timestamp or an absent version never affect each other.
type Detail struct {
	DownloadURL string
	Tags        []string
	LastUpdated *time.Time
	Version     string
}

// Timestamp layouts seen on detail pages, tried in order.
var updatedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// DetailPage extracts the enrichment fields from one detail document.
// It performs no I/O and never fails; absent fields come back zero.
func DetailPage(htmlContent string, base *url.URL) (Detail, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return Detail{}, err
	}

	var d Detail

	if href, ok := findDownloadHref(doc); ok {
		d.DownloadURL = NormalizeDownloadURL(href, base)
	}

	doc.Find(".tag-list .tag").Each(func(i int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			d.Tags = append(d.Tags, tag)
		}
	})

	d.LastUpdated = parseUpdated(doc)
	d.Version = strings.TrimSpace(doc.Find(".item-version").First().Text())

	return d, nil
}

func findDownloadHref(doc *goquery.Document) (string, bool) {
	sel := doc.Find("a.download-button").First()
	if sel.Length() == 0 {
		sel = doc.Find(".download a").First()
	}
	href, ok := sel.Attr("href")
	href = strings.TrimSpace(href)
	return href, ok && href != ""
}

func parseUpdated(doc *goquery.Document) *time.Time {
	raw, ok := doc.Find(".last-updated time").First().Attr("datetime")
	if !ok {
		raw = doc.Find(".last-updated").First().Text()
	}
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Updated:"))
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range updatedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// NormalizeDownloadURL turns a raw download href into one consistently
// escaped absolute URL. The raw markup mixes entity-encoded and
// percent-encoded segments, so the value is fully decoded first and then
// re-encoded for just the characters the remote host rejects bare.
func NormalizeDownloadURL(raw string, base *url.URL) string {
	s := html.UnescapeString(raw)
	s = resolveRef(base, s)
	if decoded, err := url.PathUnescape(s); err == nil {
		s = decoded
	}
	s = strings.NewReplacer(" ", "%20", "'", "%27").Replace(s)
	return s
}
