package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/splax/teamhub/internal/dashboard/server"
	"github.com/splax/teamhub/internal/i18n"
	"github.com/splax/teamhub/pkg/api/client"
	"github.com/splax/teamhub/pkg/config"
	"github.com/splax/teamhub/pkg/logger"
)

func main() {
	cfg, err := config.LoadDashboardConfig()
	if err != nil {
		logger.New("dashboard", logger.ParseLevel("info")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("dashboard", logger.ParseLevel(cfg.LogLevel))

	api, err := client.New(cfg.APIBaseURL)
	if err != nil {
		log.Error("invalid api base url", "error", err)
		os.Exit(1)
	}
	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		log.Error("failed to load translations", "error", err)
		os.Exit(1)
	}
	handler, err := server.New(cfg, api, bundle, log)
	if err != nil {
		log.Error("failed to configure dashboard", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errorCh := make(chan error, 1)
	go func() {
		log.Info("dashboard starting", "addr", cfg.Addr, "api", api.BaseURL(), "locales", bundle.Locales())
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("dashboard stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
