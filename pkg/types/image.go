// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the image-engine pipeline.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Detection is a single object found in an image by the detector.
// Box coordinates are pixels in the decoded image.
type Detection struct {
	// Label is the detected object class (e.g. "dog", "car").
	Label string `json:"label" yaml:"label"`

	// Confidence is the detector's confidence in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// ImageRecord holds the metadata collected for one image, from the
// provider response plus optional detector annotation.
type ImageRecord struct {
	// ID is a slug derived from the image URL (first 12 hex chars of its
	// SHA-256). Stable across providers that return the same URL.
	ID string `json:"id" yaml:"id"`

	// URL is the direct image URL.
	URL string `json:"url" yaml:"url"`

	// AltText is the title or alt description supplied by the provider.
	AltText string `json:"alt_text" yaml:"alt_text"`

	// Caption is the snippet, description, or figure caption, when available.
	Caption string `json:"caption,omitempty" yaml:"caption,omitempty"`

	// SourceURL is the page the image was found on (context link).
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// Provider identifies which backend found this image
	// (e.g. "google", "unsplash", "crawl"). Comma-joined after merging.
	Provider string `json:"provider" yaml:"provider"`

	// RelevanceScore is a value between 0.0 and 1.0 indicating relevance
	// to the query that produced this record.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// DetectedObjects lists the unique object labels found by the
	// detector, sorted. Empty when the image was not annotated.
	DetectedObjects []string `json:"detected_objects,omitempty" yaml:"detected_objects,omitempty"`

	// Detections holds the full per-box detector output.
	Detections []Detection `json:"detections,omitempty" yaml:"detections,omitempty"`

	// LocalPath is the filesystem path of the downloaded image, when the
	// fetch stage was asked to download.
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`

	// FetchedAt is when the record was produced.
	FetchedAt time.Time `json:"fetched_at,omitempty" yaml:"fetched_at,omitempty"`
}

// ImageID returns the slug for an image URL.
func ImageID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:12]
}
