// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const pexelsBody = `{
	"photos": [
		{
			"alt": "Brown dog running",
			"url": "https://www.pexels.com/photo/12345/",
			"src": {"medium": "https://images.pexels.com/photos/12345/med.jpg"}
		}
	]
}`

func TestPexelsFetchAuthHeader(t *testing.T) {
	var capturedReq *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
		fmt.Fprint(w, pexelsBody)
	}))
	defer ts.Close()

	old := pexelsAPIBase
	pexelsAPIBase = ts.URL
	defer func() { pexelsAPIBase = old }()

	cfg := testCfg()
	cfg.PexelsAPIKey = "pex-key"

	b := &PexelsBackend{Client: ts.Client()}
	records, err := b.Fetch(context.Background(), "dogs", cfg)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// Pexels uses the bare key, no scheme prefix.
	if got := capturedReq.Header.Get("Authorization"); got != "pex-key" {
		t.Errorf("Authorization = %q, want %q", got, "pex-key")
	}

	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	r := records[0]
	if r.URL != "https://images.pexels.com/photos/12345/med.jpg" {
		t.Errorf("URL = %q", r.URL)
	}
	if r.AltText != "Brown dog running" {
		t.Errorf("AltText = %q", r.AltText)
	}
	if r.SourceURL != "https://www.pexels.com/photo/12345/" {
		t.Errorf("SourceURL = %q", r.SourceURL)
	}
	if r.Provider != "pexels" {
		t.Errorf("Provider = %q", r.Provider)
	}
}

func TestPexelsFetchMissingKey(t *testing.T) {
	b := &PexelsBackend{Client: http.DefaultClient}
	_, err := b.Fetch(context.Background(), "dogs", testCfg())
	if err == nil {
		t.Fatal("expected error when API key missing")
	}
}
