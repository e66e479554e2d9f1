// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index persists ImageRecords in SQLite and serves ranked
// full-text queries over their metadata.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/image-engine/internal/fetch"
	"github.com/pdiddy/image-engine/pkg/types"
)

const (
	queriesDir = "queries"
	indexDir   = "index"
	dbFile     = "images.db"
)

// Store manages the image index SQLite database.
type Store struct {
	db         *sql.DB
	dataDir    string
	maxResults int
}

// NewStore opens or creates the image index at dataDir/index/images.db,
// creating the schema if it does not exist.
func NewStore(cfg types.IndexConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.DataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	s := &Store{
		db:         db,
		dataDir:    cfg.DataDir,
		maxResults: maxResults,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS images (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			url TEXT NOT NULL,
			alt_text TEXT,
			caption TEXT,
			objects TEXT,
			source_url TEXT,
			provider TEXT,
			relevance_score REAL,
			detected_objects TEXT,
			local_path TEXT,
			fetched_at TEXT,
			query TEXT,
			query_file TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_images_query_file ON images(query_file)`,
		`CREATE TABLE IF NOT EXISTS detections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			image_id TEXT NOT NULL REFERENCES images(id) ON DELETE CASCADE,
			label TEXT NOT NULL,
			confidence REAL,
			x INTEGER,
			y INTEGER,
			width INTEGER,
			height INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_image_id ON detections(image_id)`,
		`CREATE INDEX IF NOT EXISTS idx_detections_label ON detections(label)`,
		`CREATE TABLE IF NOT EXISTS ingest_status (
			query_file TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='images_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE images_fts USING fts5(alt_text, caption, objects, content=images, content_rowid=rowid)`,
			`CREATE TRIGGER images_ai AFTER INSERT ON images BEGIN
				INSERT INTO images_fts(rowid, alt_text, caption, objects)
				VALUES (new.rowid, new.alt_text, new.caption, new.objects);
			END`,
			`CREATE TRIGGER images_ad AFTER DELETE ON images BEGIN
				INSERT INTO images_fts(images_fts, rowid, alt_text, caption, objects)
				VALUES('delete', old.rowid, old.alt_text, old.caption, old.objects);
			END`,
			`CREATE TRIGGER images_au AFTER UPDATE ON images BEGIN
				INSERT INTO images_fts(images_fts, rowid, alt_text, caption, objects)
				VALUES('delete', old.rowid, old.alt_text, old.caption, old.objects);
				INSERT INTO images_fts(rowid, alt_text, caption, objects)
				VALUES (new.rowid, new.alt_text, new.caption, new.objects);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// IngestSummary holds counts from an index ingestion run.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
	Images  int
}

// Total returns the number of query files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest reads query files from dataDir/queries/ and populates the
// database. Files unchanged since the last run are skipped; changed
// files replace their previous rows. On success it writes export.yaml.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	queryDir := filepath.Join(s.dataDir, queriesDir)

	entries, err := os.ReadDir(queryDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading query directory %s: %w", queryDir, err)
	}

	var summary IngestSummary

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		name := entry.Name()
		filePath := filepath.Join(queryDir, name)

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM ingest_status WHERE query_file = ?`, name,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", name)
			summary.Skipped++
			continue
		}

		isUpdate := err == nil

		qf, err := fetch.ReadQueryFile(filePath)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if err := s.ingestQueryFile(ctx, name, qf, modTime, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		summary.Images += len(qf.Records)
		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d images)\n", name, len(qf.Records))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexed %s (%d images)\n", name, len(qf.Records))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d (%d images)\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed, summary.Images)

	if summary.Indexed > 0 || summary.Updated > 0 {
		if err := s.ExportYAML(ctx, QueryOptions{}); err != nil {
			fmt.Fprintf(w, "warning: export.yaml write failed: %v\n", err)
		}
	}

	return summary, nil
}

func (s *Store) ingestQueryFile(ctx context.Context, name string, qf *fetch.QueryFile, modTime string, isUpdate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Remove old rows if re-ingesting a changed file. The FTS delete
	// trigger and the detections cascade keep the side tables in sync.
	if isUpdate {
		if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE query_file = ?`, name); err != nil {
			return fmt.Errorf("deleting old images: %w", err)
		}
	}

	imgStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO images (id, url, alt_text, caption, objects, source_url, provider,
			relevance_score, detected_objects, local_path, fetched_at, query, query_file)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			url=excluded.url, alt_text=excluded.alt_text, caption=excluded.caption,
			objects=excluded.objects, source_url=excluded.source_url,
			provider=excluded.provider, relevance_score=excluded.relevance_score,
			detected_objects=excluded.detected_objects, local_path=excluded.local_path,
			fetched_at=excluded.fetched_at, query=excluded.query, query_file=excluded.query_file`)
	if err != nil {
		return fmt.Errorf("preparing image insert: %w", err)
	}
	defer imgStmt.Close()

	detStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO detections (image_id, label, confidence, x, y, width, height)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing detection insert: %w", err)
	}
	defer detStmt.Close()

	for _, r := range qf.Records {
		objectsJSON, _ := json.Marshal(r.DetectedObjects)
		fetchedAt := ""
		if !r.FetchedAt.IsZero() {
			fetchedAt = r.FetchedAt.UTC().Format(time.RFC3339)
		}

		_, err := imgStmt.ExecContext(ctx,
			r.ID, r.URL, r.AltText, r.Caption, strings.Join(r.DetectedObjects, " "),
			r.SourceURL, r.Provider, r.RelevanceScore, string(objectsJSON),
			r.LocalPath, fetchedAt, qf.Query, name,
		)
		if err != nil {
			return fmt.Errorf("inserting image %s: %w", r.ID, err)
		}

		// A record upserted from another query file may carry stale boxes.
		if _, err := tx.ExecContext(ctx, `DELETE FROM detections WHERE image_id = ?`, r.ID); err != nil {
			return fmt.Errorf("clearing detections for %s: %w", r.ID, err)
		}
		for _, d := range r.Detections {
			if _, err := detStmt.ExecContext(ctx,
				r.ID, d.Label, d.Confidence, d.X, d.Y, d.Width, d.Height,
			); err != nil {
				return fmt.Errorf("inserting detection for %s: %w", r.ID, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ingest_status (query_file, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(query_file) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		name, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating ingest status: %w", err)
	}

	return tx.Commit()
}
