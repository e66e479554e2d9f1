// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// modelFiles maps destination filenames under data/models/ to their
// upstream URLs (the MobileNet-SSD Caffe release).
var modelFiles = map[string]string{
	"MobileNetSSD_deploy.prototxt":   "https://raw.githubusercontent.com/chuanqi305/MobileNet-SSD/master/deploy.prototxt",
	"MobileNetSSD_deploy.caffemodel": "https://github.com/chuanqi305/MobileNet-SSD/raw/master/mobilenet_iter_73000.caffemodel",
}

// Models downloads the pretrained MobileNet-SSD network files into
// data/models/. Files already present are left alone.
func Models() error {
	dir := filepath.Join("data", "models")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	for name, url := range modelFiles {
		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err == nil {
			fmt.Printf("  %s (exists)\n", dest)
			continue
		}
		if err := downloadFile(dest, url); err != nil {
			return err
		}
		fmt.Printf("  %s\n", dest)
	}
	return nil
}

func downloadFile(dest, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
