// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/image-engine/internal/index"
	"github.com/pdiddy/image-engine/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the image index (store, query, export, stats)",
	Long: `Index manages the local SQLite image index built from saved query
files. Use subcommands to ingest query files, search indexed images, or
export the index.`,
}

// --- store subcommand ---

var indexStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Ingest saved query files into the image index",
	Long: `Store reads query YAML files from data/queries/, ingests them into a
SQLite database with FTS5 indexing, and writes an export file. Unchanged
query files are skipped on subsequent runs.`,
	RunE: runIndexStore,
}

func runIndexStore(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d query file(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- query subcommand ---

var indexQueryCmd = &cobra.Command{
	Use:   "query [terms]",
	Short: "Search the image index with full-text search and filters",
	Long: `Query searches the image index using FTS5 full-text search over alt
text, captions, and detected object labels, optionally combined with
structured filters (detected object, provider, minimum confidence).`,
	RunE: runIndexQuery,
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	opts := queryOptsFromFlags(cmd, args)
	if opts.Query == "" && opts.Object == "" && opts.Provider == "" {
		return fmt.Errorf("query or filter required: provide search terms, --object, or --provider")
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	results, err := store.Retrieve(context.Background(), opts)
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	index.FormatResults(os.Stdout, results)
	return nil
}

// --- export subcommand ---

var indexExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the image index to YAML or JSON",
	Long: `Export writes the full image index (or a filtered subset) to
data/index/export.yaml or export.json. Supports the same filter flags
as query for partial exports.`,
	RunE: runIndexExport,
}

func runIndexExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)
	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")

	switch format {
	case "yaml", "":
		if err := store.ExportYAML(context.Background(), opts); err != nil {
			return err
		}
		fmt.Printf("Exported to %s/index/export.yaml\n", dataDir)
	case "json":
		if err := store.ExportJSON(context.Background(), opts); err != nil {
			return err
		}
		fmt.Printf("Exported to %s/index/export.json\n", dataDir)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	return nil
}

// --- stats subcommand ---

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show image index row counts",
	RunE:  runIndexStats,
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.CollectStats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("images:      %d\n", stats.Images)
	fmt.Printf("detections:  %d\n", stats.Detections)
	fmt.Printf("query files: %d\n", stats.QueryFiles)
	if len(stats.Providers) > 0 {
		providers := make([]string, 0, len(stats.Providers))
		for p, n := range stats.Providers {
			providers = append(providers, fmt.Sprintf("%s=%d", p, n))
		}
		fmt.Printf("providers:   %s\n", strings.Join(providers, " "))
	}
	return nil
}

// --- shared helpers ---

func openStore(cmd *cobra.Command) (*index.Store, error) {
	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return index.NewStore(types.IndexConfig{
		DataDir:    dataDir,
		MaxResults: maxResults,
	})
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) index.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}

	object, _ := cmd.Flags().GetString("object")
	provider, _ := cmd.Flags().GetString("provider")
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")
	limit, _ := cmd.Flags().GetInt("limit")

	return index.QueryOptions{
		Query:         queryText,
		Object:        object,
		Provider:      provider,
		MinConfidence: minConfidence,
		MaxResults:    limit,
	}
}

func init() {
	// Shared flags on the parent command, inherited by subcommands.
	indexCmd.PersistentFlags().Int("max-results", 10, "maximum number of query results")

	// Query flags.
	indexQueryCmd.Flags().String("query", "", "full-text search query")
	indexQueryCmd.Flags().String("object", "", "filter by detected object label")
	indexQueryCmd.Flags().String("provider", "", "filter by source provider")
	indexQueryCmd.Flags().Float64("min-confidence", 0, "minimum detection confidence")
	indexQueryCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	indexQueryCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	indexExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	indexExportCmd.Flags().String("query", "", "full-text search filter for partial export")
	indexExportCmd.Flags().String("object", "", "filter by detected object for partial export")
	indexExportCmd.Flags().String("provider", "", "filter by provider for partial export")
	indexExportCmd.Flags().Float64("min-confidence", 0, "minimum detection confidence for partial export")
	indexExportCmd.Flags().Int("limit", 0, "maximum records to export (0 = all)")

	// Wire subcommands.
	indexCmd.AddCommand(indexStoreCmd)
	indexCmd.AddCommand(indexQueryCmd)
	indexCmd.AddCommand(indexExportCmd)
	indexCmd.AddCommand(indexStatsCmd)

	rootCmd.AddCommand(indexCmd)
}
