// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pdiddy/image-engine/pkg/types"
)

// DownloadResult holds the outcome of a batch image download run.
type DownloadResult struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Total returns the total number of records processed.
func (r DownloadResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// DownloadBatch saves the image bytes for each record into destDir,
// named by record ID with an extension sniffed from the content. Images
// already on disk are skipped. Individual failures are reported on w and
// do not stop the batch. Successful downloads set LocalPath on the record.
func DownloadBatch(ctx context.Context, client *http.Client, records []types.ImageRecord, destDir string, cfg types.FetchConfig, w io.Writer) (DownloadResult, []types.ImageRecord) {
	var result DownloadResult

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		fmt.Fprintf(w, "failed to create %s: %v\n", destDir, err)
		result.Failed = len(records)
		return result, records
	}

	for i := range records {
		r := &records[i]

		if i > 0 && cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return result, records
			case <-time.After(cfg.PageDelay):
			}
		}

		if existing := findExisting(destDir, r.ID); existing != "" {
			r.LocalPath = existing
			fmt.Fprintf(w, "skipped: %s (already exists)\n", r.ID)
			result.Skipped++
			continue
		}

		path, err := downloadImage(ctx, client, r.URL, destDir, r.ID, cfg)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", r.ID, err)
			result.Failed++
			continue
		}
		r.LocalPath = path
		fmt.Fprintf(w, "downloaded: %s\n", filepath.Base(path))
		result.Downloaded++
	}

	fmt.Fprintf(w, "\nDownload summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result, records
}

// findExisting returns the path of an already-downloaded image for id, or "".
func findExisting(destDir, id string) string {
	matches, err := filepath.Glob(filepath.Join(destDir, id+".*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// downloadImage fetches url into destDir/<id>.<ext> via a temporary file
// that is renamed on success, so a partial download never leaves a
// truncated image behind. Non-image content is rejected.
func downloadImage(ctx context.Context, client *http.Client, imageURL, destDir, id string, cfg types.FetchConfig) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, imageURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	mtype := mimetype.Detect(data)
	if !isImageMIME(mtype.String()) {
		return "", fmt.Errorf("content type %s is not an image", mtype.String())
	}

	destPath := filepath.Join(destDir, id+mtype.Extension())

	tmpFile, err := os.CreateTemp(destDir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing image: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming download: %w", err)
	}
	return destPath, nil
}

// isImageMIME reports whether a MIME type names an image format.
func isImageMIME(mime string) bool {
	return len(mime) > 6 && mime[:6] == "image/"
}
