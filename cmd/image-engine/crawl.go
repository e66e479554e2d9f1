// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/image-engine/internal/crawl"
	"github.com/pdiddy/image-engine/internal/fetch"
	"github.com/pdiddy/image-engine/pkg/types"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl [url]",
	Short: "Extract images from a web page",
	Long: `Crawl downloads a page, extracts every usable <img> element with its
alt text and figure caption, and writes the results to a query file the
same way fetch does. Use --detect to annotate the extracted images with
object detection.`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().Int("max-images", 400, "maximum images to extract from the page")
	crawlCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 30s)")
	crawlCmd.Flags().Bool("detect", false, "annotate extracted images with object detection")
	crawlCmd.Flags().Bool("json", false, "output results as JSON")
	crawlCmd.Flags().String("prototxt", "data/models/MobileNetSSD_deploy.prototxt", "Caffe network description for --detect")
	crawlCmd.Flags().String("model", "data/models/MobileNetSSD_deploy.caffemodel", "Caffe weights for --detect")
	crawlCmd.Flags().Float64("confidence", 0.5, "minimum detection confidence for --detect")

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	pageURL := args[0]
	if _, err := url.ParseRequestURI(pageURL); err != nil {
		return fmt.Errorf("invalid URL %q: %w", pageURL, err)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	maxImages, _ := cmd.Flags().GetInt("max-images")

	cfg := types.CrawlConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		MaxImages: maxImages,
	}

	client := &http.Client{Timeout: cfg.Timeout}
	crawler := &crawl.Crawler{Client: client}

	ctx := cmd.Context()
	records, err := crawler.Crawl(ctx, pageURL, cfg)
	if err != nil {
		return err
	}

	annotated := false
	if doDetect, _ := cmd.Flags().GetBool("detect"); doDetect {
		n, err := annotateRecords(ctx, cmd, client, cfg.HTTPConfig, records)
		if err != nil {
			return err
		}
		annotated = n > 0
	}

	out := fetch.Output{Records: records}

	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
	slug := crawlSlug(pageURL)
	queryPath := filepath.Join(dataDir, "queries", slug+".yaml")

	fetchCfg := types.FetchConfig{HTTPConfig: cfg.HTTPConfig, MaxImages: cfg.MaxImages}
	if err := fetch.WriteQueryFile(queryPath, pageURL, []string{"crawl"}, annotated, fetchCfg, out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Saved %d records to %s\n", len(records), queryPath)

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return fetch.FormatJSON(out, os.Stdout)
	}
	fetch.FormatTable(out, os.Stdout)
	return nil
}

// crawlSlug names the query file after the page host and path, with a
// timestamp so repeated crawls of the same page do not collide.
func crawlSlug(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "crawl-" + time.Now().UTC().Format("20060102-150405")
	}
	base := fetch.QuerySlug(u.Host + " " + u.Path)
	return "crawl-" + base + "-" + time.Now().UTC().Format("20060102-150405")
}
