// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch queries image provider APIs and returns unified,
// deduplicated image metadata records.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pdiddy/image-engine/pkg/types"
)

// ErrQuotaExceeded signals that a provider rejected the request because
// its daily quota is exhausted (Google Custom Search returns HTTP 429).
// The orchestrator reacts by running the Wikipedia fallback.
var ErrQuotaExceeded = errors.New("provider quota exceeded")

// Backend fetches image metadata from a single provider. Each provider
// (Google, Unsplash, Pexels, Wikipedia) implements this interface.
type Backend interface {
	Name() string
	Fetch(ctx context.Context, query string, cfg types.FetchConfig) ([]types.ImageRecord, error)
}

// Output holds the fetched records and batch statistics.
type Output struct {
	Records       []types.ImageRecord
	DupsRemoved   int
	BackendErrors []string
}

// Fetch fans the query out to all primary backends concurrently,
// deduplicates the combined records, and truncates to MaxImages. When a
// primary backend reports quota exhaustion, or all primaries fail, the
// fallback backend (Wikipedia) runs afterwards. Per-backend failures are
// reported as warnings on w without failing the batch.
func Fetch(ctx context.Context, query string, primaries []Backend, fallback Backend, cfg types.FetchConfig, w io.Writer) (Output, error) {
	if strings.TrimSpace(query) == "" {
		return Output{}, fmt.Errorf("query is empty: provide one or more search terms")
	}
	if len(primaries) == 0 && fallback == nil {
		return Output{}, fmt.Errorf("no image providers configured")
	}

	type backendResult struct {
		records []types.ImageRecord
		err     error
		name    string
	}

	ch := make(chan backendResult, len(primaries))
	var wg sync.WaitGroup

	for i, b := range primaries {
		if i > 0 && cfg.InterProviderDelay > 0 {
			time.Sleep(cfg.InterProviderDelay)
		}
		wg.Add(1)
		go func(b Backend) {
			defer wg.Done()
			records, err := b.Fetch(ctx, query, cfg)
			ch <- backendResult{records: records, err: err, name: b.Name()}
		}(b)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	var all []types.ImageRecord
	var backendErrors []string
	needFallback := len(primaries) == 0

	for br := range ch {
		if br.err != nil {
			msg := fmt.Sprintf("%s: %v", br.name, br.err)
			backendErrors = append(backendErrors, msg)
			fmt.Fprintf(w, "warning: provider %s failed: %v\n", br.name, br.err)
			if errors.Is(br.err, ErrQuotaExceeded) {
				needFallback = true
			}
		}
		// A backend may return partial records alongside its error.
		all = append(all, br.records...)
	}

	if len(all) == 0 && len(backendErrors) > 0 {
		needFallback = true
	}

	if needFallback && fallback != nil {
		fmt.Fprintf(w, "falling back to %s\n", fallback.Name())
		records, err := fallback.Fetch(ctx, query, cfg)
		if err != nil {
			msg := fmt.Sprintf("%s: %v", fallback.Name(), err)
			backendErrors = append(backendErrors, msg)
			fmt.Fprintf(w, "warning: provider %s failed: %v\n", fallback.Name(), err)
		} else {
			all = append(all, records...)
		}
	}

	deduped, removed := deduplicate(all)

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].RelevanceScore > deduped[j].RelevanceScore
	})

	if cfg.MaxImages > 0 && len(deduped) > cfg.MaxImages {
		deduped = deduped[:cfg.MaxImages]
	}

	now := time.Now().UTC()
	for i := range deduped {
		deduped[i].FetchedAt = now
	}

	return Output{
		Records:       deduped,
		DupsRemoved:   removed,
		BackendErrors: backendErrors,
	}, nil
}

// deduplicate merges records that share a URL or, secondarily, an
// identical normalized alt text.
func deduplicate(records []types.ImageRecord) ([]types.ImageRecord, int) {
	seen := make(map[string]int) // dedup key → index in deduped
	var deduped []types.ImageRecord
	removed := 0

	for _, r := range records {
		key := ""
		if r.URL != "" {
			key = "url:" + r.URL
		}
		if idx, ok := seen[key]; key != "" && ok {
			mergeInto(&deduped[idx], r)
			removed++
			continue
		}

		altKey := "alt:" + normalizeText(r.AltText)
		if altKey != "alt:" {
			if idx, ok := seen[altKey]; ok {
				mergeInto(&deduped[idx], r)
				removed++
				continue
			}
		}

		idx := len(deduped)
		deduped = append(deduped, r)
		if key != "" {
			seen[key] = idx
		}
		if altKey != "alt:" {
			seen[altKey] = idx
		}
	}
	return deduped, removed
}

// mergeInto fills empty fields of dst from src and keeps the higher score.
func mergeInto(dst *types.ImageRecord, src types.ImageRecord) {
	if dst.AltText == "" && src.AltText != "" {
		dst.AltText = src.AltText
	}
	if dst.Caption == "" && src.Caption != "" {
		dst.Caption = src.Caption
	}
	if dst.SourceURL == "" && src.SourceURL != "" {
		dst.SourceURL = src.SourceURL
	}
	if src.RelevanceScore > dst.RelevanceScore {
		dst.RelevanceScore = src.RelevanceScore
	}
	if dst.Provider != src.Provider && !strings.Contains(dst.Provider, src.Provider) {
		dst.Provider = dst.Provider + "," + src.Provider
	}
}

// normalizeText returns a lowercased, punctuation-stripped version of s.
func normalizeText(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// positionScore assigns a relevance score to the i-th of total records
// based on provider ordering: 1.0 for the first, fading to 0.1.
func positionScore(i, total int) float64 {
	if total <= 1 {
		return 1.0
	}
	return 1.0 - float64(i)/float64(total-1)*0.9
}

// FormatTable writes records as a human-readable table to w.
func FormatTable(out Output, w io.Writer) {
	if len(out.Records) == 0 {
		fmt.Fprintln(w, "No images found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-40s  %-6s  %-24s  %s\n",
		"Rank", "Alt text", "Score", "Objects", "Provider")
	fmt.Fprintln(w, strings.Repeat("-", 96))

	for i, r := range out.Records {
		alt := r.AltText
		if len(alt) > 40 {
			alt = alt[:37] + "..."
		}
		objects := strings.Join(r.DetectedObjects, ",")
		if len(objects) > 24 {
			objects = objects[:21] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-40s  %-6.2f  %-24s  %s\n",
			i+1, alt, r.RelevanceScore, objects, r.Provider)
	}

	fmt.Fprintf(w, "\n%d images", len(out.Records))
	if out.DupsRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", out.DupsRemoved)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes records as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Records)
}
