// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/image-engine/internal/index"
	"github.com/pdiddy/image-engine/pkg/types"
)

// Server serves the image index over HTTP.
type Server struct {
	app   *fiber.App
	store *index.Store
	log   *logrus.Logger
	cfg   types.ServerConfig
}

// New builds a Server with routes registered. The caller owns the
// store and closes it after Shutdown.
func New(store *index.Store, log *logrus.Logger, cfg types.ServerConfig) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "image-engine",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
	})

	s := &Server{app: app, store: store, log: log, cfg: cfg}

	app.Use(s.requestLogger)
	app.Get("/", s.handleGallery)
	app.Get("/api/search", s.handleSearch)
	app.Get("/api/health", s.handleHealth)

	return s
}

// Listen blocks serving HTTP until Shutdown is called.
func (s *Server) Listen() error {
	s.log.WithField("addr", s.cfg.Addr).Info("server listening")
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	fields := logrus.Fields{
		"method":     c.Method(),
		"path":       c.Path(),
		"status":     c.Response().StatusCode(),
		"latency_ms": time.Since(start).Milliseconds(),
		"ip":         c.IP(),
	}
	switch status := c.Response().StatusCode(); {
	case status >= 500:
		s.log.WithFields(fields).Error("server error")
	case status >= 400:
		s.log.WithFields(fields).Warn("client error")
	default:
		s.log.WithFields(fields).Info("request")
	}

	return err
}

// searchOptions reads the shared query parameters used by the gallery
// page and the search API.
func (s *Server) searchOptions(c *fiber.Ctx) (index.QueryOptions, error) {
	opts := index.QueryOptions{
		Query:    c.Query("q"),
		Object:   c.Query("object"),
		Provider: c.Query("provider"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return opts, fmt.Errorf("invalid limit %q", raw)
		}
		opts.MaxResults = limit
	}
	if raw := c.Query("min_confidence"); raw != "" {
		conf, err := strconv.ParseFloat(raw, 64)
		if err != nil || conf < 0 || conf > 1 {
			return opts, fmt.Errorf("invalid min_confidence %q", raw)
		}
		opts.MinConfidence = conf
	}

	return opts, nil
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	opts, err := s.searchOptions(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	results, err := s.store.Retrieve(c.Context(), opts)
	if err != nil {
		s.log.WithError(err).Error("index query failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "query failed"})
	}

	return c.JSON(fiber.Map{
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	stats, err := s.store.CollectStats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "degraded"})
	}
	return c.JSON(fiber.Map{
		"status":      "ok",
		"images":      stats.Images,
		"detections":  stats.Detections,
		"query_files": stats.QueryFiles,
	})
}
