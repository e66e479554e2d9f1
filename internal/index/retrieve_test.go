// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdiddy/image-engine/pkg/types"
)

func seedStore(t *testing.T) (*Store, string) {
	t.Helper()
	s, dataDir := newTestStore(t)

	r1 := testRecord("https://img.example.com/1.jpg", "golden retriever running")
	r1.DetectedObjects = []string{"dog"}
	r1.Detections = []types.Detection{{Label: "dog", Confidence: 0.9}}

	r2 := testRecord("https://img.example.com/2.jpg", "city skyline at night")
	r2.Provider = "pexels"

	r3 := testRecord("https://img.example.com/3.jpg", "a dog and a bicycle")
	r3.DetectedObjects = []string{"dog", "bicycle"}
	r3.Detections = []types.Detection{
		{Label: "dog", Confidence: 0.55},
		{Label: "bicycle", Confidence: 0.88},
	}

	writeTestQueryFile(t, dataDir, "mixed batch", []types.ImageRecord{r1, r2, r3})
	if _, err := s.Ingest(context.Background(), io.Discard); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	return s, dataDir
}

func TestRetrieveFullText(t *testing.T) {
	s, _ := seedStore(t)

	results, err := s.Retrieve(context.Background(), QueryOptions{Query: "skyline"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].URL != "https://img.example.com/2.jpg" {
		t.Errorf("URL = %q, want the skyline image", results[0].URL)
	}
	if results[0].Query != "mixed batch" {
		t.Errorf("Query = %q, want %q", results[0].Query, "mixed batch")
	}
}

func TestRetrieveMatchesObjectLabels(t *testing.T) {
	s, _ := seedStore(t)

	// "bicycle" appears only in detected object labels, not alt text
	// of image 3; FTS indexes the objects column too.
	results, err := s.Retrieve(context.Background(), QueryOptions{Query: "bicycle"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
}

func TestRetrieveObjectFilter(t *testing.T) {
	s, _ := seedStore(t)

	results, err := s.Retrieve(context.Background(), QueryOptions{Object: "dog"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
}

func TestRetrieveObjectFilterWithMinConfidence(t *testing.T) {
	s, _ := seedStore(t)

	results, err := s.Retrieve(context.Background(),
		QueryOptions{Object: "dog", MinConfidence: 0.8})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (only the 0.9 detection)", len(results))
	}
	if results[0].URL != "https://img.example.com/1.jpg" {
		t.Errorf("URL = %q, want image 1", results[0].URL)
	}
}

func TestRetrieveProviderFilter(t *testing.T) {
	s, _ := seedStore(t)

	results, err := s.Retrieve(context.Background(), QueryOptions{Provider: "pexels"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Provider != "pexels" {
		t.Errorf("Provider = %q, want pexels", results[0].Provider)
	}
}

func TestRetrieveMaxResults(t *testing.T) {
	s, _ := seedStore(t)

	results, err := s.Retrieve(context.Background(), QueryOptions{MaxResults: 2})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}
}

func TestRetrieveNoMatch(t *testing.T) {
	s, _ := seedStore(t)

	results, err := s.Retrieve(context.Background(), QueryOptions{Query: "submarine"})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestRetrieveQuotesPunctuation(t *testing.T) {
	s, _ := seedStore(t)

	// FTS5 operators in user input must not break the query.
	if _, err := s.Retrieve(context.Background(), QueryOptions{Query: `dog AND NOT "cat*`}); err != nil {
		t.Errorf("Retrieve() with punctuation error = %v", err)
	}
}

func TestFTSQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dog", `"dog"`},
		{"golden retriever", `"golden" "retriever"`},
		{`cat*`, `"cat*"`},
		{`a"b`, `"ab"`},
	}
	for _, tt := range tests {
		if got := ftsQuote(tt.in); got != tt.want {
			t.Errorf("ftsQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExportJSON(t *testing.T) {
	s, dataDir := seedStore(t)

	if err := s.ExportJSON(context.Background(), QueryOptions{}); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, indexDir, "export.json"))
	if err != nil {
		t.Fatalf("reading export.json: %v", err)
	}

	var doc struct {
		Count  int `json:"count"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parsing export.json: %v", err)
	}
	if doc.Count != 3 {
		t.Errorf("Count = %d, want 3", doc.Count)
	}
	if len(doc.Images) != 3 {
		t.Errorf("len(Images) = %d, want 3", len(doc.Images))
	}
}

func TestExportFiltered(t *testing.T) {
	s, dataDir := seedStore(t)

	if err := s.ExportJSON(context.Background(), QueryOptions{Object: "dog"}); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dataDir, indexDir, "export.json"))
	if err != nil {
		t.Fatalf("reading export.json: %v", err)
	}
	var doc struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("parsing export.json: %v", err)
	}
	if doc.Count != 2 {
		t.Errorf("Count = %d, want 2", doc.Count)
	}
}
