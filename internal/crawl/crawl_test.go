// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pdiddy/image-engine/pkg/types"
)

const testPage = `<!DOCTYPE html>
<html><body>
	<img src="/static/dog.jpg" alt="A brown dog">
	<figure>
		<img src="https://cdn.example.com/cat.png" alt="A cat">
		<figcaption>  A cat sleeping
			on a sofa  </figcaption>
	</figure>
	<img src="data:image/gif;base64,R0lGOD==" alt="inline">
	<img src="" alt="empty">
	<img src="relative/bird.webp">
</body></html>`

func testCfg() types.CrawlConfig {
	return types.CrawlConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   5 * time.Second,
			UserAgent: "image-engine-test/0.1",
		},
		MaxImages: 400,
	}
}

func TestCrawlExtractsImages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, testPage)
	}))
	defer ts.Close()

	c := &Crawler{Client: ts.Client()}
	records, err := c.Crawl(context.Background(), ts.URL+"/gallery/", testCfg())
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	// data: URI and empty src are skipped.
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	dog := records[0]
	if dog.URL != ts.URL+"/static/dog.jpg" {
		t.Errorf("root-relative URL = %q", dog.URL)
	}
	if dog.AltText != "A brown dog" {
		t.Errorf("AltText = %q", dog.AltText)
	}
	if dog.Caption != "" {
		t.Errorf("Caption = %q, want empty", dog.Caption)
	}
	if dog.Provider != "crawl" {
		t.Errorf("Provider = %q", dog.Provider)
	}
	if dog.SourceURL != ts.URL+"/gallery/" {
		t.Errorf("SourceURL = %q", dog.SourceURL)
	}

	cat := records[1]
	if cat.URL != "https://cdn.example.com/cat.png" {
		t.Errorf("absolute URL = %q", cat.URL)
	}
	if cat.Caption != "A cat sleeping on a sofa" {
		t.Errorf("figure caption = %q", cat.Caption)
	}

	bird := records[2]
	if bird.URL != ts.URL+"/gallery/relative/bird.webp" {
		t.Errorf("relative URL = %q", bird.URL)
	}
}

func TestCrawlCapsAtMaxImages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>")
		for i := 0; i < 20; i++ {
			fmt.Fprintf(w, `<img src="/img%d.jpg" alt="img %d">`, i, i)
		}
		fmt.Fprint(w, "</body></html>")
	}))
	defer ts.Close()

	cfg := testCfg()
	cfg.MaxImages = 5

	c := &Crawler{Client: ts.Client()}
	records, err := c.Crawl(context.Background(), ts.URL, cfg)
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("got %d records, want 5", len(records))
	}
	if records[0].RelevanceScore != 1.0 {
		t.Errorf("first score = %f, want 1.0", records[0].RelevanceScore)
	}
}

func TestCrawlNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := &Crawler{Client: ts.Client()}
	if _, err := c.Crawl(context.Background(), ts.URL, testCfg()); err == nil {
		t.Fatal("expected error on HTTP 404")
	}
}

func TestCrawlInvalidURL(t *testing.T) {
	c := &Crawler{Client: http.DefaultClient}
	if _, err := c.Crawl(context.Background(), "://bad", testCfg()); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}
