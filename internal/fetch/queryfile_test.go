// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"path/filepath"
	"testing"

	"github.com/pdiddy/image-engine/pkg/types"
)

func TestQueryFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queries", "golden-retriever.yaml")

	out := Output{
		Records: []types.ImageRecord{
			{
				ID:              "abc123def456",
				URL:             "https://img/1.jpg",
				AltText:         "a golden retriever",
				Caption:         "running on grass",
				Provider:        "google",
				RelevanceScore:  0.9,
				DetectedObjects: []string{"dog", "person"},
				Detections: []types.Detection{
					{Label: "dog", Confidence: 0.87, X: 10, Y: 20, Width: 100, Height: 80},
				},
			},
		},
		DupsRemoved:   2,
		BackendErrors: []string{"pexels: HTTP 500"},
	}

	cfg := testCfg()
	if err := WriteQueryFile(path, "golden retriever", []string{"google", "unsplash"}, true, cfg, out); err != nil {
		t.Fatalf("WriteQueryFile: %v", err)
	}

	qf, err := ReadQueryFile(path)
	if err != nil {
		t.Fatalf("ReadQueryFile: %v", err)
	}

	if qf.Query != "golden retriever" {
		t.Errorf("Query = %q", qf.Query)
	}
	if !qf.Config.Annotated {
		t.Error("Annotated flag lost")
	}
	if len(qf.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(qf.Records))
	}
	r := qf.Records[0]
	if r.URL != "https://img/1.jpg" || r.AltText != "a golden retriever" {
		t.Errorf("record = %+v", r)
	}
	if len(r.DetectedObjects) != 2 || r.DetectedObjects[0] != "dog" {
		t.Errorf("DetectedObjects = %v", r.DetectedObjects)
	}
	if len(r.Detections) != 1 || r.Detections[0].Label != "dog" {
		t.Errorf("Detections = %v", r.Detections)
	}
	if qf.Summary.Total != 1 || qf.Summary.DuplicatesRemoved != 2 {
		t.Errorf("Summary = %+v", qf.Summary)
	}
	if qf.Summary.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestQueryFileRewritePreservesSummary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dogs.yaml")

	out := Output{
		Records:       []types.ImageRecord{{ID: "a1b2c3", URL: "https://img/1.jpg", AltText: "a dog"}},
		DupsRemoved:   3,
		BackendErrors: []string{"pexels: HTTP 500"},
	}
	if err := WriteQueryFile(path, "dogs", []string{"google"}, false, testCfg(), out); err != nil {
		t.Fatalf("WriteQueryFile: %v", err)
	}

	qf, err := ReadQueryFile(path)
	if err != nil {
		t.Fatalf("ReadQueryFile: %v", err)
	}
	fetchedAt := qf.Summary.Timestamp

	// Annotate and rewrite in place, as the detect stage does.
	qf.Records[0].DetectedObjects = []string{"dog"}
	qf.Config.Annotated = true
	if err := qf.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadQueryFile(path)
	if err != nil {
		t.Fatalf("ReadQueryFile: %v", err)
	}
	if !got.Config.Annotated {
		t.Error("Annotated flag lost")
	}
	if len(got.Records) != 1 || len(got.Records[0].DetectedObjects) != 1 {
		t.Fatalf("records = %+v", got.Records)
	}
	if got.Summary.DuplicatesRemoved != 3 {
		t.Errorf("DuplicatesRemoved = %d, want 3", got.Summary.DuplicatesRemoved)
	}
	if len(got.Summary.BackendErrors) != 1 || got.Summary.BackendErrors[0] != "pexels: HTTP 500" {
		t.Errorf("BackendErrors = %v", got.Summary.BackendErrors)
	}
	if !got.Summary.Timestamp.Equal(fetchedAt) {
		t.Errorf("Timestamp changed on rewrite: %v != %v", got.Summary.Timestamp, fetchedAt)
	}
	if len(got.Config.Providers) != 1 || got.Config.Providers[0] != "google" {
		t.Errorf("Providers = %v", got.Config.Providers)
	}
}

func TestReadQueryFileMissing(t *testing.T) {
	_, err := ReadQueryFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestQuerySlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Golden Retriever", "golden-retriever"},
		{"  spaces  around  ", "spaces-around"},
		{"C++ & Go!", "c-go"},
		{"", "query"},
		{"!!!", "query"},
	}
	for _, tt := range tests {
		if got := QuerySlug(tt.in); got != tt.want {
			t.Errorf("QuerySlug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
