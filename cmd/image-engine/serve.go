// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/image-engine/internal/index"
	"github.com/pdiddy/image-engine/internal/server"
	"github.com/pdiddy/image-engine/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the image index over HTTP",
	Long: `Serve starts an HTTP server with a browsable gallery of indexed images
at / and a JSON search API at /api/search. The index must be populated
with "image-engine index store" first.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("log-dir", "storage/logs", "directory for rotated request logs (empty disables file logging)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	logDir, _ := cmd.Flags().GetString("log-dir")
	dataDir, _ := rootCmd.PersistentFlags().GetString("data-dir")

	store, err := index.NewStore(types.IndexConfig{DataDir: dataDir})
	if err != nil {
		return err
	}
	defer store.Close()

	cfg := types.ServerConfig{Addr: addr, LogDir: logDir}
	log := server.NewLogger(cfg.LogDir)
	srv := server.New(store, log, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
