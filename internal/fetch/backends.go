// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"net/http"

	"github.com/pdiddy/image-engine/pkg/types"
)

// Backends builds the primary backends enabled in cfg, plus the
// Wikipedia fallback when EnableWikipedia is set. Callers that want a
// Wikipedia-only run can promote the fallback themselves.
func Backends(client *http.Client, cfg types.FetchConfig) ([]Backend, Backend) {
	var primaries []Backend
	if cfg.EnableGoogle {
		primaries = append(primaries, &GoogleBackend{Client: client})
	}
	if cfg.EnableUnsplash {
		primaries = append(primaries, &UnsplashBackend{Client: client})
	}
	if cfg.EnablePexels {
		primaries = append(primaries, &PexelsBackend{Client: client})
	}

	var fallback Backend
	if cfg.EnableWikipedia {
		fallback = &WikipediaBackend{Client: client}
	}
	return primaries, fallback
}
