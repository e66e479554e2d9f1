// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/image-engine/pkg/types"
)

// googleAPIBase is the Google Custom Search endpoint. Declared as a var
// so tests can substitute an httptest server.
var googleAPIBase = "https://www.googleapis.com/customsearch/v1"

// googleMaxStart is the highest start index Google Custom Search accepts.
const googleMaxStart = 90

// GoogleBackend queries the Google Custom Search JSON API with
// searchType=image.
type GoogleBackend struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (b *GoogleBackend) Name() string { return "google" }

// Fetch pages through Google Custom Search image results until MaxImages
// records are collected or the API stops returning items. HTTP 429 maps
// to ErrQuotaExceeded so the orchestrator can fall back. When a later
// page fails, the records already collected are returned together with
// the error.
func (b *GoogleBackend) Fetch(ctx context.Context, query string, cfg types.FetchConfig) ([]types.ImageRecord, error) {
	if cfg.GoogleAPIKey == "" || cfg.GoogleCX == "" {
		return nil, fmt.Errorf("google API key or search engine ID missing")
	}

	maxImages := cfg.MaxImages
	if maxImages <= 0 {
		maxImages = 100
	}
	perRequest := cfg.PerRequest
	if perRequest <= 0 || perRequest > 10 {
		perRequest = 10
	}

	var records []types.ImageRecord
	var pageErr error
	for len(records) < maxImages {
		if len(records) > 0 && cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return records, ctx.Err()
			case <-time.After(cfg.PageDelay):
			}
		}

		page, err := b.fetchPage(ctx, query, len(records)%googleMaxStart+1, perRequest, cfg)
		if err != nil {
			if len(records) == 0 {
				return nil, err
			}
			// Keep what we have; the caller logs the page failure.
			pageErr = fmt.Errorf("after %d records: %w", len(records), err)
			break
		}
		if len(page) == 0 {
			break
		}
		records = append(records, page...)
	}

	if len(records) > maxImages {
		records = records[:maxImages]
	}
	for i := range records {
		records[i].RelevanceScore = positionScore(i, len(records))
	}
	return records, pageErr
}

func (b *GoogleBackend) fetchPage(ctx context.Context, query string, start, num int, cfg types.FetchConfig) ([]types.ImageRecord, error) {
	params := url.Values{
		"q":          {query},
		"cx":         {cfg.GoogleCX},
		"key":        {cfg.GoogleAPIKey},
		"searchType": {"image"},
		"num":        {fmt.Sprintf("%d", num)},
		"start":      {fmt.Sprintf("%d", start)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google API returned HTTP %d", resp.StatusCode)
	}

	var gr googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("parsing google response: %w", err)
	}

	var records []types.ImageRecord
	for _, item := range gr.Items {
		if item.Link == "" {
			continue
		}
		records = append(records, types.ImageRecord{
			ID:        types.ImageID(item.Link),
			URL:       item.Link,
			AltText:   strings.TrimSpace(item.Title),
			Caption:   strings.TrimSpace(item.Snippet),
			SourceURL: item.Image.ContextLink,
			Provider:  "google",
		})
	}
	return records, nil
}

// Google Custom Search JSON structures.
type googleResponse struct {
	Items []googleItem `json:"items"`
}

type googleItem struct {
	Link    string      `json:"link"`
	Title   string      `json:"title"`
	Snippet string      `json:"snippet"`
	Image   googleImage `json:"image"`
}

type googleImage struct {
	ContextLink string `json:"contextLink"`
}
