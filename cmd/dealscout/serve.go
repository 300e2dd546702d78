package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/dealscout/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP search API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log, os.Stdout)
	slog.Info("dealscout starting",
		"env", cfg.Server.Env,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"version", cmd.Root().Version,
	)

	// ── 3. Build the search stack (browser launches lazily) ─────────
	st, err := buildStack(cfg)
	if err != nil {
		slog.Error("failed to initialise search", "error", err)
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("shutdown error", "error", err)
		}
	}()

	// ── 4. Setup router ─────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{
		Searcher:  st.aggregator,
		Cache:     st.cache,
		StartTime: time.Now(),
	}
	if st.browser != nil {
		deps.Browser = st.browser
	}
	router := api.NewRouter(ctx, cfg, deps)

	// ── 5. Start HTTP server ────────────────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Addr(), "placeholder", cfg.PlaceholderImageURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-serveErr:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
			return err
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// st.Close() runs via defer and kills Chrome.
	slog.Info("dealscout stopped")
	return nil
}
