// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/pdiddy/image-engine/internal/index"
)

var galleryTmpl = template.Must(template.New("gallery").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>image-engine</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
form { margin-bottom: 1.5rem; }
input[type=text] { padding: 0.3rem; width: 20rem; }
.grid { display: flex; flex-wrap: wrap; gap: 1rem; }
.card { width: 260px; border: 1px solid #ddd; padding: 0.5rem; }
.card img { max-width: 100%; height: auto; }
.meta { font-size: 0.8rem; color: #555; }
.objects { font-size: 0.8rem; color: #060; }
</style>
</head>
<body>
<h1>image-engine</h1>
<form method="get" action="/">
<input type="text" name="q" value="{{.Query}}" placeholder="search images">
<button type="submit">Search</button>
</form>
{{if .Results}}
<div class="grid">
{{range .Results}}
<div class="card">
<a href="{{.URL}}"><img src="{{.URL}}" alt="{{.AltText}}" loading="lazy"></a>
<div class="meta">{{.AltText}}</div>
{{if .DetectedObjects}}<div class="objects">{{join .DetectedObjects ", "}}</div>{{end}}
<div class="meta">{{.Provider}} &middot; {{printf "%.2f" .RelevanceScore}}</div>
</div>
{{end}}
</div>
{{else}}
<p>No images found. Fetch and index a query first.</p>
{{end}}
</body>
</html>
`))

type galleryData struct {
	Query   string
	Results []index.QueryResult
}

func (s *Server) handleGallery(c *fiber.Ctx) error {
	opts, err := s.searchOptions(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(err.Error())
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = 30
	}

	results, err := s.store.Retrieve(c.Context(), opts)
	if err != nil {
		s.log.WithError(err).Error("gallery query failed")
		return c.Status(fiber.StatusInternalServerError).SendString("query failed")
	}

	var b strings.Builder
	if err := galleryTmpl.Execute(&b, galleryData{Query: opts.Query, Results: results}); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("render failed")
	}

	c.Type("html", "utf-8")
	return c.SendString(b.String())
}
