// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/image-engine/internal/detect"
	"github.com/pdiddy/image-engine/internal/fetch"
	"github.com/pdiddy/image-engine/pkg/types"
)

var detectCmd = &cobra.Command{
	Use:   "detect [query-files...]",
	Short: "Run object detection over saved query files or a single image",
	Long: `Detect annotates previously fetched query files with MobileNet-SSD
object detection: each record gains detected object labels and bounding
boxes, and the file is rewritten in place.

With --file, detect instead runs the network over one local image file
and prints the detections.`,
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().String("file", "", "detect objects in a single local image file")
	detectCmd.Flags().String("prototxt", "data/models/MobileNetSSD_deploy.prototxt", "Caffe network description")
	detectCmd.Flags().String("model", "data/models/MobileNetSSD_deploy.caffemodel", "Caffe weights")
	detectCmd.Flags().Float64("confidence", 0.5, "minimum detection confidence")
	detectCmd.Flags().Int("workers", 4, "concurrent annotation workers")
	detectCmd.Flags().Duration("timeout", 0, "HTTP request timeout for image downloads (default 30s)")

	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	localFile, _ := cmd.Flags().GetString("file")
	if localFile == "" && len(args) == 0 {
		return fmt.Errorf("provide query files to annotate or --file for a single image")
	}

	detCfg := detectionConfigFromFlags(cmd)
	if workers, err := cmd.Flags().GetInt("workers"); err == nil {
		detCfg.Workers = workers
	}

	detector, err := detect.NewMobileNetSSD(detCfg)
	if err != nil {
		return err
	}
	defer detector.Close()

	if localFile != "" {
		return detectLocalFile(detector, localFile)
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	annotator := &detect.Annotator{
		Client:   &http.Client{Timeout: timeout},
		Detector: detector,
		Cfg:      detCfg,
		HTTP: types.HTTPConfig{
			Timeout:   timeout,
			UserAgent: defaultUserAgent,
		},
	}

	ctx := cmd.Context()
	failures := 0
	for _, path := range args {
		qf, err := fetch.ReadQueryFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed  %s: %v\n", path, err)
			failures++
			continue
		}

		n := annotator.AnnotateBatch(ctx, qf.Records, os.Stderr)

		// Rewrite in place, keeping the original fetch summary.
		if n > 0 {
			qf.Config.Annotated = true
		}
		if err := qf.Write(path); err != nil {
			fmt.Fprintf(os.Stderr, "failed  %s: %v\n", path, err)
			failures++
			continue
		}
		fmt.Fprintf(os.Stderr, "updated %s\n", path)
	}

	if failures > 0 {
		return fmt.Errorf("%d query file(s) failed annotation", failures)
	}
	return nil
}

func detectLocalFile(detector detect.Detector, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading image %s: %w", path, err)
	}

	start := time.Now()
	detections, err := detector.Detect(data)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if len(detections) == 0 {
		fmt.Printf("%s: no objects detected (%v)\n", path, elapsed.Round(time.Millisecond))
		return nil
	}

	fmt.Printf("%s: %d detection(s) in %v\n", path, len(detections), elapsed.Round(time.Millisecond))
	for _, d := range detections {
		fmt.Printf("  %-12s %.2f  [%d,%d %dx%d]\n",
			d.Label, d.Confidence, d.X, d.Y, d.Width, d.Height)
	}
	fmt.Printf("objects: %s\n", strings.Join(detect.UniqueLabels(detections), ", "))
	return nil
}
