// Command api serves the GeoPulse companion HTTP API in front of a GeoPulse
// server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/geopulse-companion/internal/app"
	"github.com/pkordes/geopulse-companion/internal/config"
	"github.com/pkordes/geopulse-companion/internal/handler"
	"github.com/pkordes/geopulse-companion/internal/middleware"
)

// shutdownGrace bounds how long in-flight requests may run after a signal.
const shutdownGrace = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// serve runs the API until ctx is cancelled, then drains connections.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("starting components: %w", err)
	}
	defer a.Close()
	logger.Info("components ready", "storage", cfg.StorageDriver, "api_url", cfg.APIURL)

	// WriteTimeout covers the upstream GeoPulse call most handlers make.
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router(a, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}

// router stacks the middleware in front of the API routes. Recoverer sits
// inside the request log so panics are logged as 500s; the body limit
// answers 413 before any handler reads.
func router(a *app.App, cfg config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	srv := handler.NewServer(handler.Services{
		Session:  a.Session,
		Theme:    a.Theme,
		System:   a.System,
		Coverage: a.Coverage,
		Timezone: a.Timezone,
	}, logger)
	r.Mount("/", srv.Routes())
	return r
}
