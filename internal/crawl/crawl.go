// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl extracts image metadata from arbitrary web pages.
package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/image-engine/pkg/types"
)

// Crawler fetches a page and extracts its <img> elements as ImageRecords.
type Crawler struct {
	Client *http.Client
}

// Crawl downloads pageURL, parses the HTML, and returns a record for each
// usable <img>: absolute URL, alt text, and the text of an enclosing
// <figure> as caption. data: URIs and empty sources are skipped. The
// result is capped at cfg.MaxImages.
func (c *Crawler) Crawl(ctx context.Context, pageURL string, cfg types.CrawlConfig) ([]types.ImageRecord, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	maxImages := cfg.MaxImages
	if maxImages <= 0 {
		maxImages = 400
	}

	var records []types.ImageRecord
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}

		abs := resolveURL(base, src)
		if abs == "" {
			return true
		}

		records = append(records, types.ImageRecord{
			ID:        types.ImageID(abs),
			URL:       abs,
			AltText:   strings.TrimSpace(sel.AttrOr("alt", "")),
			Caption:   figureCaption(sel),
			SourceURL: pageURL,
			Provider:  "crawl",
		})
		return len(records) < maxImages
	})

	for i := range records {
		records[i].RelevanceScore = positionScore(i, len(records))
	}
	return records, nil
}

// resolveURL makes src absolute against the page URL. Returns "" for
// unparseable or non-HTTP results.
func resolveURL(base *url.URL, src string) string {
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}

// figureCaption returns the trimmed text of the <figcaption> inside the
// image's enclosing <figure>, falling back to the whole figure text.
func figureCaption(sel *goquery.Selection) string {
	fig := sel.Closest("figure")
	if fig.Length() == 0 {
		return ""
	}
	if cap := fig.Find("figcaption").First(); cap.Length() > 0 {
		return squashSpace(cap.Text())
	}
	return squashSpace(fig.Text())
}

// squashSpace trims and collapses runs of whitespace to single spaces.
func squashSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// positionScore mirrors the provider scoring: earlier images on the page
// rank higher.
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}
