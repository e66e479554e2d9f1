// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

// exportDoc is the on-disk shape of an index export.
type exportDoc struct {
	Count  int           `json:"count" yaml:"count"`
	Images []QueryResult `json:"images" yaml:"images"`
}

// ExportYAML writes matching records to dataDir/index/export.yaml.
func (s *Store) ExportYAML(ctx context.Context, opts QueryOptions) error {
	return s.export(ctx, opts, "export.yaml", func(doc exportDoc) ([]byte, error) {
		return yaml.Marshal(doc)
	})
}

// ExportJSON writes matching records to dataDir/index/export.json.
func (s *Store) ExportJSON(ctx context.Context, opts QueryOptions) error {
	return s.export(ctx, opts, "export.json", func(doc exportDoc) ([]byte, error) {
		return json.MarshalIndent(doc, "", "  ")
	})
}

func (s *Store) export(ctx context.Context, opts QueryOptions, name string, marshal func(exportDoc) ([]byte, error)) error {
	if opts.MaxResults == 0 {
		opts.MaxResults = -1
	}

	results, err := s.Retrieve(ctx, opts)
	if err != nil {
		return fmt.Errorf("retrieving records for export: %w", err)
	}

	data, err := marshal(exportDoc{Count: len(results), Images: results})
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}

	outPath := filepath.Join(s.dataDir, indexDir, name)
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}
