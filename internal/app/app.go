// Package app assembles the companion from configuration: storage backend,
// API client, session, theme, time zone and coverage. Both binaries build on
// it, so the server and the CLI share one session between runs.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pkordes/geopulse-companion/internal/apiclient"
	"github.com/pkordes/geopulse-companion/internal/config"
	"github.com/pkordes/geopulse-companion/internal/coverage"
	"github.com/pkordes/geopulse-companion/internal/session"
	"github.com/pkordes/geopulse-companion/internal/storage"
	"github.com/pkordes/geopulse-companion/internal/theme"
	"github.com/pkordes/geopulse-companion/internal/timezone"
)

// App holds the wired components.
type App struct {
	Config   config.Config
	Log      *slog.Logger
	KV       storage.KV
	Client   *apiclient.Client
	Timezone *timezone.Context
	Session  *session.Store
	Theme    *theme.Manager
	Classes  *theme.ClassSet
	System   *theme.Broadcast
	Coverage *coverage.Store

	closeKV func()
}

// Option adjusts how the App is built.
type Option func(*options)

type options struct {
	httpClient *http.Client
}

// WithHTTPClient sets the transport used to reach the GeoPulse API.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New opens the configured storage and builds the App over it. Call Close
// when done.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kv, closeKV, err := OpenStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a, err := Build(ctx, cfg, kv, logger, opts...)
	if err != nil {
		closeKV()
		return nil, err
	}
	a.closeKV = closeKV
	return a, nil
}

// Build wires the components over an already opened kv. Saved credentials
// are restored and the theme is initialized from storage; no network call
// is made.
func Build(ctx context.Context, cfg config.Config, kv storage.KV, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	clientOpts := []apiclient.Option{apiclient.WithLogger(logger)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(o.httpClient))
	}
	client, err := apiclient.New(cfg.APIURL, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("app.Build: %w", err)
	}
	vault := &credentialVault{kv: kv, client: client, log: logger}
	vault.load(ctx)

	tz := timezone.New(logger)
	sess := session.NewStore(&persistingAPI{Client: client, vault: vault}, session.NewSnapshotStore(kv, logger), tz, logger)

	classes := &theme.ClassSet{}
	system := &theme.Broadcast{}
	themes := theme.NewManager(kv, classes, system, logger)
	themes.Initialize(ctx)

	cov, err := coverage.NewStore(client, logger)
	if err != nil {
		themes.Close()
		return nil, fmt.Errorf("app.Build: %w", err)
	}

	return &App{
		Config:   cfg,
		Log:      logger,
		KV:       kv,
		Client:   client,
		Timezone: tz,
		Session:  sess,
		Theme:    themes,
		Classes:  classes,
		System:   system,
		Coverage: cov,
		closeKV:  func() {},
	}, nil
}

// Close stops the theme listener and releases storage.
func (a *App) Close() {
	a.Theme.Close()
	a.closeKV()
}

// NewLogger returns a JSON slog.Logger writing to w at level ("debug",
// "info", "warn" or "error"; anything else is info).
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
