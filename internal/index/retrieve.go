// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/image-engine/pkg/types"
)

// QueryOptions controls filtering and ranking of index queries.
type QueryOptions struct {
	// Query is a full-text search over alt text, captions, and detected
	// object labels. Empty means match everything.
	Query string
	// Object restricts results to images where the given label was
	// detected.
	Object string
	// Provider restricts results to a single source provider.
	Provider string
	// MinConfidence drops images whose best detection for Object (or any
	// detection, when Object is empty) scores below it.
	MinConfidence float64
	// MaxResults caps the result count. Zero falls back to the store
	// default; negative means unlimited.
	MaxResults int
}

// QueryResult is an indexed image with the query that produced it.
type QueryResult struct {
	types.ImageRecord `yaml:",inline"`
	Query             string `json:"query" yaml:"query"`
}

// Retrieve queries the index. With a full-text query, results are
// ordered by FTS5 rank; otherwise by fetch time, newest first.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	var (
		conditions []string
		args       []any
		orderBy    string
	)

	base := `SELECT i.id, i.url, i.alt_text, i.caption, i.source_url, i.provider,
		i.relevance_score, i.detected_objects, i.local_path, i.fetched_at, i.query
		FROM images i`

	if opts.Query != "" {
		base += ` JOIN images_fts ON images_fts.rowid = i.rowid`
		conditions = append(conditions, `images_fts MATCH ?`)
		args = append(args, ftsQuote(opts.Query))
		orderBy = `ORDER BY images_fts.rank`
	} else {
		orderBy = `ORDER BY i.fetched_at DESC, i.relevance_score DESC`
	}

	if opts.Object != "" {
		cond := `EXISTS (SELECT 1 FROM detections d WHERE d.image_id = i.id AND d.label = ?`
		args = append(args, opts.Object)
		if opts.MinConfidence > 0 {
			cond += ` AND d.confidence >= ?`
			args = append(args, opts.MinConfidence)
		}
		cond += `)`
		conditions = append(conditions, cond)
	} else if opts.MinConfidence > 0 {
		conditions = append(conditions,
			`EXISTS (SELECT 1 FROM detections d WHERE d.image_id = i.id AND d.confidence >= ?)`)
		args = append(args, opts.MinConfidence)
	}

	if opts.Provider != "" {
		conditions = append(conditions, `i.provider = ?`)
		args = append(args, opts.Provider)
	}

	query := base
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	query += ` ` + orderBy

	limit := opts.MaxResults
	if limit == 0 {
		limit = s.maxResults
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		r.Detections, err = s.loadDetections(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

func scanResult(rows *sql.Rows) (QueryResult, error) {
	var (
		r           QueryResult
		objectsJSON sql.NullString
		fetchedAt   sql.NullString
	)
	err := rows.Scan(&r.ID, &r.URL, &r.AltText, &r.Caption, &r.SourceURL,
		&r.Provider, &r.RelevanceScore, &objectsJSON, &r.LocalPath,
		&fetchedAt, &r.Query)
	if err != nil {
		return QueryResult{}, fmt.Errorf("scanning row: %w", err)
	}

	if objectsJSON.Valid && objectsJSON.String != "" {
		if err := json.Unmarshal([]byte(objectsJSON.String), &r.DetectedObjects); err != nil {
			return QueryResult{}, fmt.Errorf("decoding detected objects for %s: %w", r.ID, err)
		}
	}
	if fetchedAt.Valid && fetchedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, fetchedAt.String); err == nil {
			r.FetchedAt = t
		}
	}

	return r, nil
}

func (s *Store) loadDetections(ctx context.Context, imageID string) ([]types.Detection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, confidence, x, y, width, height
		 FROM detections WHERE image_id = ? ORDER BY confidence DESC`, imageID)
	if err != nil {
		return nil, fmt.Errorf("querying detections: %w", err)
	}
	defer rows.Close()

	var dets []types.Detection
	for rows.Next() {
		var d types.Detection
		if err := rows.Scan(&d.Label, &d.Confidence, &d.X, &d.Y, &d.Width, &d.Height); err != nil {
			return nil, fmt.Errorf("scanning detection: %w", err)
		}
		dets = append(dets, d)
	}
	return dets, rows.Err()
}

// ftsQuote wraps each term in double quotes so punctuation in user
// input is not parsed as FTS5 query syntax.
func ftsQuote(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, ``)+`"`)
	}
	return strings.Join(quoted, " ")
}

// Stats summarizes index contents.
type Stats struct {
	Images     int
	Detections int
	QueryFiles int
	Providers  map[string]int
}

// CollectStats reports row counts and a per-provider breakdown.
func (s *Store) CollectStats(ctx context.Context) (Stats, error) {
	st := Stats{Providers: map[string]int{}}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT count(*) FROM images`, &st.Images},
		{`SELECT count(*) FROM detections`, &st.Detections},
		{`SELECT count(*) FROM ingest_status`, &st.QueryFiles},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("collecting stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, count(*) FROM images GROUP BY provider`)
	if err != nil {
		return Stats{}, fmt.Errorf("collecting provider stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var provider string
		var n int
		if err := rows.Scan(&provider, &n); err != nil {
			return Stats{}, fmt.Errorf("scanning provider stats: %w", err)
		}
		st.Providers[provider] = n
	}

	return st, rows.Err()
}

// FormatResults writes results as a readable table.
func FormatResults(w io.Writer, results []QueryResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "%d. %s\n", i+1, r.URL)
		if r.AltText != "" {
			fmt.Fprintf(w, "   alt: %s\n", r.AltText)
		}
		if len(r.DetectedObjects) > 0 {
			fmt.Fprintf(w, "   objects: %s\n", strings.Join(r.DetectedObjects, ", "))
		}
		fmt.Fprintf(w, "   provider: %s  score: %.2f  query: %s\n", r.Provider, r.RelevanceScore, r.Query)
	}
}
