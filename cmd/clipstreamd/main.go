// Command clipstreamd runs the video processing daemon: it consumes upload
// events, drives videos through the pipeline, and maintains the similarity
// index.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"clipstream/internal/config"
	"clipstream/internal/daemon"
	"clipstream/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := daemon.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("daemon bootstrap failed", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		d.Close()
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("clipstreamd shutting down")
}
