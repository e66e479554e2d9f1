// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package detect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pdiddy/image-engine/pkg/types"
)

// Annotator downloads image bytes and runs the detector over them,
// filling DetectedObjects and Detections on each record.
type Annotator struct {
	Client   *http.Client
	Detector Detector
	Cfg      types.DetectionConfig
	HTTP     types.HTTPConfig
}

// AnnotateBatch annotates records in place using a bounded worker pool
// (Cfg.Workers, default 4). Per-image failures are reported on w and
// leave the record unannotated; the batch always completes. Returns the
// number of successfully annotated records.
func (a *Annotator) AnnotateBatch(ctx context.Context, records []types.ImageRecord, w io.Writer) int {
	workers := a.Cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	if workers > len(records) {
		workers = len(records)
	}
	if workers == 0 {
		return 0
	}

	var (
		mu        sync.Mutex
		annotated int
	)

	jobs := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				_, err := a.Annotate(ctx, &records[idx])
				mu.Lock()
				if err != nil {
					fmt.Fprintf(w, "warning: annotation failed for %s: %v\n", records[idx].ID, err)
				} else {
					annotated++
				}
				mu.Unlock()
			}
		}()
	}

	for idx := range records {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return annotated
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	fmt.Fprintf(w, "annotated %d/%d images\n", annotated, len(records))
	return annotated
}

// Annotate downloads the record's image and runs the detector, setting
// DetectedObjects and Detections on success.
func (a *Annotator) Annotate(ctx context.Context, record *types.ImageRecord) ([]types.Detection, error) {
	data, err := a.fetchImage(ctx, record.URL)
	if err != nil {
		return nil, err
	}

	detections, err := a.Detector.Detect(data)
	if err != nil {
		return nil, fmt.Errorf("detecting objects: %w", err)
	}

	record.Detections = detections
	record.DetectedObjects = UniqueLabels(detections)
	return detections, nil
}

// fetchImage downloads the image bytes and verifies they are an image.
func (a *Annotator) fetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.HTTP.UserAgent)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, imageURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("content type %s is not an image", mtype.String())
	}
	return data, nil
}
