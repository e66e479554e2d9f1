// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the image index over HTTP: a browsable
// gallery page and a small JSON search API.
package server

import (
	"io"
	"os"
	"path/filepath"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the server logger. Output goes to stderr and, when
// logDir is non-empty, to a size-rotated file under logDir.
func NewLogger(logDir string) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&formatter.Formatter{
		TimestampFormat: time.RFC3339,
		HideKeys:        false,
		NoColors:        true,
	})

	writers := []io.Writer{os.Stderr}
	if logDir != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(logDir, "image-engine.log"),
			MaxSize:    100, // MB
			MaxAge:     7,   // days
			MaxBackups: 3,
			Compress:   true,
		})
	}
	logger.SetOutput(io.MultiWriter(writers...))

	return logger
}
