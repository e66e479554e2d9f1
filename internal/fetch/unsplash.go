// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/image-engine/internal/httputil"
	"github.com/pdiddy/image-engine/pkg/types"
)

// unsplashAPIBase is the Unsplash photo search endpoint. Declared as a
// var so tests can substitute an httptest server.
var unsplashAPIBase = "https://api.unsplash.com/search/photos"

// unsplashMaxPerPage is the per_page ceiling documented by Unsplash.
const unsplashMaxPerPage = 30

// UnsplashBackend queries the Unsplash search API.
type UnsplashBackend struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (b *UnsplashBackend) Name() string { return "unsplash" }

// Fetch queries Unsplash and returns at most MaxImages records. Rate
// limiting (HTTP 429) is retried with backoff.
func (b *UnsplashBackend) Fetch(ctx context.Context, query string, cfg types.FetchConfig) ([]types.ImageRecord, error) {
	if cfg.UnsplashAccessKey == "" {
		return nil, fmt.Errorf("unsplash access key missing")
	}

	perPage := cfg.PerRequest
	if perPage <= 0 {
		perPage = 10
	}
	if perPage > unsplashMaxPerPage {
		perPage = unsplashMaxPerPage
	}

	params := url.Values{
		"query":    {query},
		"per_page": {fmt.Sprintf("%d", perPage)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, unsplashAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Authorization", "Client-ID "+cfg.UnsplashAccessKey)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("unsplash API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsplash API returned HTTP %d", resp.StatusCode)
	}

	var ur unsplashResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, fmt.Errorf("parsing unsplash response: %w", err)
	}

	total := len(ur.Results)
	var records []types.ImageRecord
	for i, photo := range ur.Results {
		if photo.URLs.Regular == "" {
			continue
		}
		records = append(records, types.ImageRecord{
			ID:             types.ImageID(photo.URLs.Regular),
			URL:            photo.URLs.Regular,
			AltText:        strings.TrimSpace(photo.AltDescription),
			Caption:        strings.TrimSpace(photo.Description),
			SourceURL:      photo.Links.HTML,
			Provider:       "unsplash",
			RelevanceScore: positionScore(i, total),
		})
		if cfg.MaxImages > 0 && len(records) >= cfg.MaxImages {
			break
		}
	}
	return records, nil
}

// Unsplash API JSON structures.
type unsplashResponse struct {
	Results []unsplashPhoto `json:"results"`
}

type unsplashPhoto struct {
	AltDescription string        `json:"alt_description"`
	Description    string        `json:"description"`
	URLs           unsplashURLs  `json:"urls"`
	Links          unsplashLinks `json:"links"`
}

type unsplashURLs struct {
	Regular string `json:"regular"`
}

type unsplashLinks struct {
	HTML string `json:"html"`
}
