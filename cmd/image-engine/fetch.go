// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/image-engine/internal/detect"
	"github.com/pdiddy/image-engine/internal/fetch"
	"github.com/pdiddy/image-engine/pkg/types"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultPageDelay = 1 * time.Second
	defaultUserAgent = "image-engine/0.1"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [query]",
	Short: "Query image providers and save the ranked results",
	Long: `Fetch queries the enabled image provider APIs (Google Custom Search,
Unsplash, Pexels) concurrently, deduplicates and ranks the combined results,
and writes them to a query file under the data directory. When a provider
runs out of quota the Wikipedia media list is used as a fallback source.

With --detect, each image is run through MobileNet-SSD object detection and
the detected labels are stored alongside the record. With --download, image
files are saved under data/images/<query-slug>/.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().Int("max-images", 20, "maximum images to collect")
	fetchCmd.Flags().Int("per-request", 10, "page size for paginating providers")
	fetchCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 30s)")
	fetchCmd.Flags().Duration("page-delay", 0, "delay between pagination requests (default 1s)")
	fetchCmd.Flags().String("providers", "google,unsplash,pexels", "comma-separated providers to query")
	fetchCmd.Flags().Bool("no-fallback", false, "disable the Wikipedia quota fallback")
	fetchCmd.Flags().Bool("no-rerank", false, "keep provider position ordering instead of BM25 reranking")
	fetchCmd.Flags().Bool("detect", false, "annotate results with object detection")
	fetchCmd.Flags().Bool("download", false, "download image files to data/images/")
	fetchCmd.Flags().Bool("json", false, "output results as JSON")
	fetchCmd.Flags().String("google-api-key", "", "Google Custom Search API key")
	fetchCmd.Flags().String("google-cx", "", "Google programmable search engine ID")
	fetchCmd.Flags().String("unsplash-access-key", "", "Unsplash access key")
	fetchCmd.Flags().String("pexels-api-key", "", "Pexels API key")
	fetchCmd.Flags().String("prototxt", "data/models/MobileNetSSD_deploy.prototxt", "Caffe network description for --detect")
	fetchCmd.Flags().String("model", "data/models/MobileNetSSD_deploy.caffemodel", "Caffe weights for --detect")
	fetchCmd.Flags().Float64("confidence", 0.5, "minimum detection confidence for --detect")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, providers := fetchConfigFromFlags(cmd)
	client := &http.Client{Timeout: cfg.Timeout}

	wikipediaListed := false
	for _, p := range providers {
		switch p {
		case "google":
			cfg.EnableGoogle = true
		case "unsplash":
			cfg.EnableUnsplash = true
		case "pexels":
			cfg.EnablePexels = true
		case "wikipedia":
			wikipediaListed = true
		default:
			return fmt.Errorf("unknown provider %q: use google, unsplash, pexels, or wikipedia", p)
		}
	}
	noFallback, _ := cmd.Flags().GetBool("no-fallback")
	cfg.EnableWikipedia = wikipediaListed || !noFallback

	primaries, fallback := fetch.Backends(client, cfg)
	if len(primaries) == 0 {
		if fallback == nil {
			return fmt.Errorf("no providers enabled")
		}
		// Wikipedia-only runs promote the fallback to primary.
		primaries = []fetch.Backend{fallback}
		fallback = nil
	}

	ctx := cmd.Context()
	out, err := fetch.Fetch(ctx, query, primaries, fallback, cfg, os.Stderr)
	if err != nil {
		return err
	}

	// Annotate before reranking so detected labels count toward relevance.
	annotated := false
	if doDetect, _ := cmd.Flags().GetBool("detect"); doDetect {
		n, err := annotateRecords(ctx, cmd, client, cfg.HTTPConfig, out.Records)
		if err != nil {
			return err
		}
		annotated = n > 0
	}

	if noRerank, _ := cmd.Flags().GetBool("no-rerank"); !noRerank {
		out.Records = fetch.Rerank(query, out.Records)
	}

	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")
	slug := fetch.QuerySlug(query)

	if download, _ := cmd.Flags().GetBool("download"); download {
		destDir := filepath.Join(dataDir, "images", slug)
		var result fetch.DownloadResult
		result, out.Records = fetch.DownloadBatch(ctx, client, out.Records, destDir, cfg, os.Stderr)
		if result.Failed > 0 {
			fmt.Fprintf(os.Stderr, "warning: %d image(s) failed to download\n", result.Failed)
		}
	}

	queryPath := filepath.Join(dataDir, "queries", slug+".yaml")
	if err := fetch.WriteQueryFile(queryPath, query, providers, annotated, cfg, out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Saved %d records to %s\n", len(out.Records), queryPath)

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return fetch.FormatJSON(out, os.Stdout)
	}
	fetch.FormatTable(out, os.Stdout)
	return nil
}

func fetchConfigFromFlags(cmd *cobra.Command) (types.FetchConfig, []string) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	pageDelay, _ := cmd.Flags().GetDuration("page-delay")
	if pageDelay == 0 {
		pageDelay = defaultPageDelay
	}
	maxImages, _ := cmd.Flags().GetInt("max-images")
	perRequest, _ := cmd.Flags().GetInt("per-request")

	googleKey, _ := cmd.Flags().GetString("google-api-key")
	googleCX, _ := cmd.Flags().GetString("google-cx")
	unsplashKey, _ := cmd.Flags().GetString("unsplash-access-key")
	pexelsKey, _ := cmd.Flags().GetString("pexels-api-key")

	cfg := types.FetchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
		MaxImages:         maxImages,
		PerRequest:        perRequest,
		PageDelay:         pageDelay,
		GoogleAPIKey:      secretDefault("google-api-key", googleKey),
		GoogleCX:          secretDefault("google-cx", googleCX),
		UnsplashAccessKey: secretDefault("unsplash-access-key", unsplashKey),
		PexelsAPIKey:      secretDefault("pexels-api-key", pexelsKey),
	}

	raw, _ := cmd.Flags().GetString("providers")
	var providers []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(strings.ToLower(p))
		if p != "" {
			providers = append(providers, p)
		}
	}

	return cfg, providers
}

// annotateRecords runs object detection over records in place and
// returns the number annotated.
func annotateRecords(ctx context.Context, cmd *cobra.Command, client *http.Client, httpCfg types.HTTPConfig, records []types.ImageRecord) (int, error) {
	detCfg := detectionConfigFromFlags(cmd)

	detector, err := detect.NewMobileNetSSD(detCfg)
	if err != nil {
		return 0, err
	}
	defer detector.Close()

	annotator := &detect.Annotator{
		Client:   client,
		Detector: detector,
		Cfg:      detCfg,
		HTTP:     httpCfg,
	}
	return annotator.AnnotateBatch(ctx, records, os.Stderr), nil
}

func detectionConfigFromFlags(cmd *cobra.Command) types.DetectionConfig {
	prototxt, _ := cmd.Flags().GetString("prototxt")
	model, _ := cmd.Flags().GetString("model")
	confidence, _ := cmd.Flags().GetFloat64("confidence")

	return types.DetectionConfig{
		Enabled:             true,
		PrototxtPath:        prototxt,
		ModelPath:           model,
		ConfidenceThreshold: confidence,
	}
}
