// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/image-engine/pkg/types"
)

// wikipediaAPIBase is the Wikipedia media-list REST endpoint. Declared as
// a var so tests can substitute an httptest server.
var wikipediaAPIBase = "https://en.wikipedia.org/api/rest_v1/page/media-list"

// WikipediaBackend lists the media of the Wikipedia article matching the
// query. It needs no API key, which makes it the fallback when keyed
// providers exhaust their quotas.
type WikipediaBackend struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (b *WikipediaBackend) Name() string { return "wikipedia" }

// Fetch retrieves the media list for the article titled like the query
// (spaces become underscores, per Wikipedia URL conventions).
func (b *WikipediaBackend) Fetch(ctx context.Context, query string, cfg types.FetchConfig) ([]types.ImageRecord, error) {
	title := strings.ReplaceAll(strings.TrimSpace(query), " ", "_")
	if title == "" {
		return nil, fmt.Errorf("empty wikipedia title")
	}

	reqURL := wikipediaAPIBase + "/" + url.PathEscape(title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wikipedia API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia API returned HTTP %d for %q", resp.StatusCode, title)
	}

	var wr wikipediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("parsing wikipedia response: %w", err)
	}

	articleURL := "https://en.wikipedia.org/wiki/" + title

	var kept []wikipediaItem
	for _, item := range wr.Items {
		if item.Original.Source != "" {
			kept = append(kept, item)
		}
	}

	var records []types.ImageRecord
	for i, item := range kept {
		src := normalizeWikipediaURL(item.Original.Source)
		records = append(records, types.ImageRecord{
			ID:             types.ImageID(src),
			URL:            src,
			AltText:        cleanWikipediaTitle(item.Title),
			SourceURL:      articleURL,
			Provider:       "wikipedia",
			RelevanceScore: positionScore(i, len(kept)),
		})
		if cfg.MaxImages > 0 && len(records) >= cfg.MaxImages {
			break
		}
	}
	return records, nil
}

// normalizeWikipediaURL prefixes protocol-relative URLs ("//upload...").
func normalizeWikipediaURL(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}

// cleanWikipediaTitle strips the "File:" prefix and the extension,
// replacing underscores with spaces.
func cleanWikipediaTitle(title string) string {
	title = strings.TrimPrefix(title, "File:")
	if idx := strings.LastIndex(title, "."); idx > 0 {
		title = title[:idx]
	}
	return strings.TrimSpace(strings.ReplaceAll(title, "_", " "))
}

// Wikipedia media-list JSON structures.
type wikipediaResponse struct {
	Items []wikipediaItem `json:"items"`
}

type wikipediaItem struct {
	Title    string            `json:"title"`
	Original wikipediaOriginal `json:"original"`
}

type wikipediaOriginal struct {
	Source string `json:"source"`
}
