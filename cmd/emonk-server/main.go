// Command emonk-server runs the Emonk HTTP surface: the externally-triggered
// scheduler tick endpoint, the chat webhook, and the admin job-management
// API.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auriga-os/emonk/internal/app"
	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/server"
)

func main() {
	common.LoadVersionFromFile()

	configPath := os.Getenv("EMONK_CONFIG")
	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(cfg, a.Logger)

	srv := server.NewServer(a)

	shutdownChan := make(chan struct{})
	srv.SetShutdownChannel(shutdownChan)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error().Err(err).Msg("HTTP server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		a.Logger.Info().Msg("Shutdown signal received")
	case <-shutdownChan:
		a.Logger.Info().Msg("Shutdown requested")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := a.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("error releasing app resources")
	}

	common.PrintShutdownBanner(a.Logger)
}
