// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "image-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// FetchConfig holds settings for the provider fetch stage.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxImages is the maximum number of records to return per fetch (default 100).
	MaxImages int `json:"max_images" yaml:"max_images"`

	// PerRequest is the page size for providers that paginate. Google
	// Custom Search caps this at 10.
	PerRequest int `json:"per_request" yaml:"per_request"`

	// PageDelay is the delay between pagination requests to the same
	// provider (default 1s).
	PageDelay time.Duration `json:"page_delay" yaml:"page_delay"`

	// InterProviderDelay staggers the concurrent provider calls (default 0).
	InterProviderDelay time.Duration `json:"inter_provider_delay" yaml:"inter_provider_delay"`

	// EnableGoogle controls whether the Google Custom Search backend is used.
	EnableGoogle bool `json:"enable_google" yaml:"enable_google"`

	// EnableUnsplash controls whether the Unsplash backend is used.
	EnableUnsplash bool `json:"enable_unsplash" yaml:"enable_unsplash"`

	// EnablePexels controls whether the Pexels backend is used.
	EnablePexels bool `json:"enable_pexels" yaml:"enable_pexels"`

	// EnableWikipedia controls whether the Wikipedia media-list fallback
	// runs when a primary provider exhausts its quota.
	EnableWikipedia bool `json:"enable_wikipedia" yaml:"enable_wikipedia"`

	// GoogleAPIKey authenticates Google Custom Search requests.
	GoogleAPIKey string `json:"google_api_key,omitempty" yaml:"google_api_key,omitempty"`

	// GoogleCX is the Google programmable search engine identifier.
	GoogleCX string `json:"google_cx,omitempty" yaml:"google_cx,omitempty"`

	// UnsplashAccessKey authenticates Unsplash requests (Client-ID scheme).
	UnsplashAccessKey string `json:"unsplash_access_key,omitempty" yaml:"unsplash_access_key,omitempty"`

	// PexelsAPIKey authenticates Pexels requests.
	PexelsAPIKey string `json:"pexels_api_key,omitempty" yaml:"pexels_api_key,omitempty"`
}

// CrawlConfig holds settings for the page crawl stage.
type CrawlConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxImages caps the number of images extracted from one page (default 400).
	MaxImages int `json:"max_images" yaml:"max_images"`
}

// DetectionConfig holds settings for the object detection stage.
type DetectionConfig struct {
	// Enabled controls whether fetched images are annotated.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// PrototxtPath is the path to the Caffe network description
	// (MobileNetSSD_deploy.prototxt).
	PrototxtPath string `json:"prototxt_path" yaml:"prototxt_path"`

	// ModelPath is the path to the pretrained weights
	// (MobileNetSSD_deploy.caffemodel).
	ModelPath string `json:"model_path" yaml:"model_path"`

	// ConfidenceThreshold is the minimum confidence for a detection to be
	// kept (default 0.5).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// Workers is the number of concurrent annotation workers (default 4).
	Workers int `json:"workers" yaml:"workers"`
}

// IndexConfig holds settings for the persistent image index.
type IndexConfig struct {
	// DataDir is the base directory for pipeline data (contains queries/,
	// index/, images/).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// MaxResults is the default maximum number of query results (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// ServerConfig holds settings for the web UI.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// LogDir is the directory for rotated request logs (default "storage/logs").
	LogDir string `json:"log_dir" yaml:"log_dir"`
}
