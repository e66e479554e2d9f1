// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/image-engine/pkg/types"
)

// QueryFile is the on-disk representation of a fetch batch. The index
// stage ingests these files, so a fetch can be replayed into the index
// without re-querying providers.
type QueryFile struct {
	Query   string              `yaml:"query"`
	Config  QueryFileConfig     `yaml:"config"`
	Records []types.ImageRecord `yaml:"records"`
	Summary QuerySummary        `yaml:"summary"`
}

// QueryFileConfig stores the fetch configuration that produced the records.
type QueryFileConfig struct {
	MaxImages int      `yaml:"max_images"`
	Providers []string `yaml:"providers,omitempty"`
	Annotated bool     `yaml:"annotated"`
}

// QuerySummary stores batch statistics and a timestamp.
type QuerySummary struct {
	Total             int       `yaml:"total"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	BackendErrors     []string  `yaml:"backend_errors,omitempty"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves a fetch batch to a YAML file.
func WriteQueryFile(path, query string, providers []string, annotated bool, cfg types.FetchConfig, out Output) error {
	qf := QueryFile{
		Query: query,
		Config: QueryFileConfig{
			MaxImages: cfg.MaxImages,
			Providers: providers,
			Annotated: annotated,
		},
		Records: out.Records,
		Summary: QuerySummary{
			Total:             len(out.Records),
			DuplicatesRemoved: out.DupsRemoved,
			BackendErrors:     out.BackendErrors,
			Timestamp:         time.Now().UTC(),
		},
	}
	return qf.Write(path)
}

// Write saves the query file as-is. Stages that rewrite a file in place
// use this so the fetch summary, providers, and timestamp survive.
func (qf *QueryFile) Write(path string) error {
	data, err := yaml.Marshal(qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating query directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved fetch batch.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file %s: %w", path, err)
	}
	return &qf, nil
}

// QuerySlug converts a query string to a filesystem-safe slug for the
// query file name (e.g. "Golden Gate!" → "golden-gate").
func QuerySlug(query string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(query)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if slug == "" {
		slug = "query"
	}
	return slug
}
