// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/image-engine/pkg/types"
)

func testCfg() types.FetchConfig {
	return types.FetchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   5 * time.Second,
			UserAgent: "image-engine-test/0.1",
		},
		MaxImages:  50,
		PerRequest: 10,
	}
}

// fakeBackend returns canned records or an error.
type fakeBackend struct {
	name    string
	records []types.ImageRecord
	err     error
	calls   int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Fetch(_ context.Context, _ string, _ types.FetchConfig) ([]types.ImageRecord, error) {
	f.calls++
	return f.records, f.err
}

func rec(url, alt, provider string, score float64) types.ImageRecord {
	return types.ImageRecord{
		ID:             types.ImageID(url),
		URL:            url,
		AltText:        alt,
		Provider:       provider,
		RelevanceScore: score,
	}
}

func TestFetchRejectsEmptyQuery(t *testing.T) {
	_, err := Fetch(context.Background(), "   ", []Backend{&fakeBackend{name: "a"}}, nil, testCfg(), &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestFetchRejectsNoProviders(t *testing.T) {
	_, err := Fetch(context.Background(), "dogs", nil, nil, testCfg(), &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected error when no providers configured")
	}
}

func TestFetchCombinesProviders(t *testing.T) {
	a := &fakeBackend{name: "google", records: []types.ImageRecord{
		rec("https://img/1.jpg", "dog one", "google", 1.0),
		rec("https://img/2.jpg", "dog two", "google", 0.5),
	}}
	b := &fakeBackend{name: "unsplash", records: []types.ImageRecord{
		rec("https://img/3.jpg", "dog three", "unsplash", 0.8),
	}}

	out, err := Fetch(context.Background(), "dogs", []Backend{a, b}, nil, testCfg(), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(out.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(out.Records))
	}
	// Sorted by score descending.
	for i := 1; i < len(out.Records); i++ {
		if out.Records[i].RelevanceScore > out.Records[i-1].RelevanceScore {
			t.Errorf("records not sorted by score: %v", out.Records)
		}
	}
	for _, r := range out.Records {
		if r.FetchedAt.IsZero() {
			t.Errorf("record %s missing FetchedAt", r.ID)
		}
	}
}

func TestFetchCollectsBackendErrorsAsWarnings(t *testing.T) {
	good := &fakeBackend{name: "unsplash", records: []types.ImageRecord{
		rec("https://img/1.jpg", "cat", "unsplash", 1.0),
	}}
	bad := &fakeBackend{name: "pexels", err: fmt.Errorf("HTTP 500")}

	var buf bytes.Buffer
	out, err := Fetch(context.Background(), "cats", []Backend{good, bad}, nil, testCfg(), &buf)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(out.Records) != 1 {
		t.Errorf("got %d records, want 1", len(out.Records))
	}
	if len(out.BackendErrors) != 1 || !strings.Contains(out.BackendErrors[0], "pexels") {
		t.Errorf("BackendErrors = %v", out.BackendErrors)
	}
	if !strings.Contains(buf.String(), "warning: provider pexels failed") {
		t.Errorf("missing warning in output: %q", buf.String())
	}
}

func TestFetchKeepsPartialRecordsFromFailingBackend(t *testing.T) {
	// A paging backend can fail midway and return what it collected.
	partial := &fakeBackend{
		name:    "google",
		records: []types.ImageRecord{rec("https://img/1.jpg", "dog one", "google", 1.0)},
		err:     fmt.Errorf("after 1 records: HTTP 500"),
	}

	var buf bytes.Buffer
	out, err := Fetch(context.Background(), "dogs", []Backend{partial}, nil, testCfg(), &buf)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(out.Records) != 1 {
		t.Fatalf("got %d records, want the partial page kept", len(out.Records))
	}
	if len(out.BackendErrors) != 1 || !strings.Contains(out.BackendErrors[0], "google") {
		t.Errorf("BackendErrors = %v", out.BackendErrors)
	}
	if !strings.Contains(buf.String(), "warning: provider google failed") {
		t.Errorf("missing warning in output: %q", buf.String())
	}
}

func TestFetchQuotaTriggersFallback(t *testing.T) {
	google := &fakeBackend{name: "google", err: fmt.Errorf("page 1: %w", ErrQuotaExceeded)}
	wiki := &fakeBackend{name: "wikipedia", records: []types.ImageRecord{
		rec("https://img/w.jpg", "wiki image", "wikipedia", 1.0),
	}}

	var buf bytes.Buffer
	out, err := Fetch(context.Background(), "dogs", []Backend{google}, wiki, testCfg(), &buf)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if wiki.calls != 1 {
		t.Errorf("fallback called %d times, want 1", wiki.calls)
	}
	if len(out.Records) != 1 || out.Records[0].Provider != "wikipedia" {
		t.Errorf("records = %v", out.Records)
	}
	if !strings.Contains(buf.String(), "falling back to wikipedia") {
		t.Errorf("missing fallback notice: %q", buf.String())
	}
}

func TestFetchFallbackWhenAllPrimariesFail(t *testing.T) {
	bad := &fakeBackend{name: "unsplash", err: fmt.Errorf("HTTP 503")}
	wiki := &fakeBackend{name: "wikipedia", records: []types.ImageRecord{
		rec("https://img/w.jpg", "wiki image", "wikipedia", 1.0),
	}}

	out, err := Fetch(context.Background(), "dogs", []Backend{bad}, wiki, testCfg(), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if wiki.calls != 1 {
		t.Errorf("fallback called %d times, want 1", wiki.calls)
	}
	if len(out.Records) != 1 {
		t.Errorf("got %d records, want 1", len(out.Records))
	}
}

func TestFetchFallbackNotRunWhenPrimariesSucceed(t *testing.T) {
	good := &fakeBackend{name: "unsplash", records: []types.ImageRecord{
		rec("https://img/1.jpg", "cat", "unsplash", 1.0),
	}}
	wiki := &fakeBackend{name: "wikipedia"}

	_, err := Fetch(context.Background(), "cats", []Backend{good}, wiki, testCfg(), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if wiki.calls != 0 {
		t.Errorf("fallback called %d times, want 0", wiki.calls)
	}
}

func TestFetchTruncatesToMaxImages(t *testing.T) {
	var records []types.ImageRecord
	for i := 0; i < 10; i++ {
		records = append(records, rec(fmt.Sprintf("https://img/%d.jpg", i), fmt.Sprintf("dog %d", i), "google", positionScore(i, 10)))
	}
	b := &fakeBackend{name: "google", records: records}

	cfg := testCfg()
	cfg.MaxImages = 3

	out, err := Fetch(context.Background(), "dogs", []Backend{b}, nil, cfg, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(out.Records) != 3 {
		t.Errorf("got %d records, want 3", len(out.Records))
	}
}

// --- dedup/merge ---

func TestDeduplicateByURL(t *testing.T) {
	a := rec("https://img/same.jpg", "a dog", "google", 0.9)
	b := rec("https://img/same.jpg", "", "unsplash", 0.4)
	b.Caption = "a caption"

	deduped, removed := deduplicate([]types.ImageRecord{a, b})

	if removed != 1 || len(deduped) != 1 {
		t.Fatalf("removed=%d len=%d, want 1 and 1", removed, len(deduped))
	}
	got := deduped[0]
	if got.AltText != "a dog" {
		t.Errorf("AltText = %q", got.AltText)
	}
	if got.Caption != "a caption" {
		t.Errorf("merge did not fill Caption: %q", got.Caption)
	}
	if got.RelevanceScore != 0.9 {
		t.Errorf("RelevanceScore = %f, want 0.9", got.RelevanceScore)
	}
	if got.Provider != "google,unsplash" {
		t.Errorf("Provider = %q", got.Provider)
	}
}

func TestDeduplicateByNormalizedAltText(t *testing.T) {
	a := rec("https://img/1.jpg", "Golden Gate Bridge!", "google", 0.9)
	b := rec("https://img/2.jpg", "golden gate bridge", "pexels", 0.5)

	deduped, removed := deduplicate([]types.ImageRecord{a, b})

	if removed != 1 || len(deduped) != 1 {
		t.Fatalf("removed=%d len=%d, want 1 and 1", removed, len(deduped))
	}
	if deduped[0].URL != "https://img/1.jpg" {
		t.Errorf("kept URL = %q", deduped[0].URL)
	}
}

func TestDeduplicateKeepsDistinctRecords(t *testing.T) {
	a := rec("https://img/1.jpg", "a dog", "google", 0.9)
	b := rec("https://img/2.jpg", "a cat", "google", 0.8)

	deduped, removed := deduplicate([]types.ImageRecord{a, b})
	if removed != 0 || len(deduped) != 2 {
		t.Errorf("removed=%d len=%d, want 0 and 2", removed, len(deduped))
	}
}

func TestDeduplicateEmptyAltNotAKey(t *testing.T) {
	a := rec("https://img/1.jpg", "", "google", 0.9)
	b := rec("https://img/2.jpg", "", "google", 0.8)

	deduped, removed := deduplicate([]types.ImageRecord{a, b})
	if removed != 0 || len(deduped) != 2 {
		t.Errorf("records with empty alt text must not merge: removed=%d len=%d", removed, len(deduped))
	}
}

// --- scoring ---

func TestPositionScore(t *testing.T) {
	tests := []struct {
		i, total int
		want     float64
	}{
		{0, 10, 1.0},
		{9, 10, 0.1},
		{0, 1, 1.0},
		{0, 0, 1.0},
	}
	for _, tt := range tests {
		got := positionScore(tt.i, tt.total)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("positionScore(%d, %d) = %f, want %f", tt.i, tt.total, got, tt.want)
		}
	}
}

// --- formatting ---

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(Output{}, &buf)
	if !strings.Contains(buf.String(), "No images found.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestFormatTableCountsAndDups(t *testing.T) {
	out := Output{
		Records: []types.ImageRecord{
			rec("https://img/1.jpg", "a very good dog", "google", 1.0),
		},
		DupsRemoved: 2,
	}
	var buf bytes.Buffer
	FormatTable(out, &buf)
	s := buf.String()
	if !strings.Contains(s, "a very good dog") {
		t.Errorf("missing alt text: %q", s)
	}
	if !strings.Contains(s, "1 images (2 duplicates removed)") {
		t.Errorf("missing summary: %q", s)
	}
}
