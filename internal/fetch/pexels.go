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

// pexelsAPIBase is the Pexels photo search endpoint. Declared as a var
// so tests can substitute an httptest server.
var pexelsAPIBase = "https://api.pexels.com/v1/search"

// PexelsBackend queries the Pexels search API.
type PexelsBackend struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (b *PexelsBackend) Name() string { return "pexels" }

// Fetch queries Pexels and returns at most MaxImages records.
func (b *PexelsBackend) Fetch(ctx context.Context, query string, cfg types.FetchConfig) ([]types.ImageRecord, error) {
	if cfg.PexelsAPIKey == "" {
		return nil, fmt.Errorf("pexels API key missing")
	}

	perPage := cfg.PerRequest
	if perPage <= 0 {
		perPage = 30
	}

	params := url.Values{
		"query":    {query},
		"per_page": {fmt.Sprintf("%d", perPage)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pexelsAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Authorization", cfg.PexelsAPIKey)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("pexels API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels API returned HTTP %d", resp.StatusCode)
	}

	var pr pexelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("parsing pexels response: %w", err)
	}

	total := len(pr.Photos)
	var records []types.ImageRecord
	for i, photo := range pr.Photos {
		if photo.Src.Medium == "" {
			continue
		}
		records = append(records, types.ImageRecord{
			ID:             types.ImageID(photo.Src.Medium),
			URL:            photo.Src.Medium,
			AltText:        strings.TrimSpace(photo.Alt),
			SourceURL:      photo.URL,
			Provider:       "pexels",
			RelevanceScore: positionScore(i, total),
		})
		if cfg.MaxImages > 0 && len(records) >= cfg.MaxImages {
			break
		}
	}
	return records, nil
}

// Pexels API JSON structures.
type pexelsResponse struct {
	Photos []pexelsPhoto `json:"photos"`
}

type pexelsPhoto struct {
	Alt string    `json:"alt"`
	URL string    `json:"url"`
	Src pexelsSrc `json:"src"`
}

type pexelsSrc struct {
	Medium string `json:"medium"`
}
