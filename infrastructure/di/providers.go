// Package di assembles the application from its configuration.
package di

import (
	"context"
	"time"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/aymericbeaumet/loupe/application/session"
	"github.com/aymericbeaumet/loupe/application/view"
	"github.com/aymericbeaumet/loupe/infrastructure/backend"
	"github.com/aymericbeaumet/loupe/infrastructure/config"
	"github.com/aymericbeaumet/loupe/infrastructure/index"
	"github.com/aymericbeaumet/loupe/infrastructure/persistence/badger"
	"github.com/aymericbeaumet/loupe/interfaces/http/rest"
	"github.com/aymericbeaumet/loupe/interfaces/websocket"
	"github.com/aymericbeaumet/loupe/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Level    zap.AtomicLevel
	Logger   *zap.Logger
	Metrics  *observability.Collector
	Tracing  *observability.TracerProvider
	Store    *badger.RecordStore
	Index    *index.Index
	Fetcher  session.Fetcher
	Sessions []session.Option
	Hub      *websocket.Hub
	Views    *websocket.Server
	Router   *rest.Router
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogLevel,
	ProvideLogger,
	ProvideMetrics,
	ProvideTracing,
	ProvideStore,
	ProvideIndex,
	ProvideFetcher,
	ProvideSessionOptions,
	ProvideHub,
	ProvideViewServer,
	rest.NewRouter,
	wire.Struct(new(Container), "*"),
)

// ProvideLogLevel parses the configured level into a level that can be
// changed while running.
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	return zap.ParseAtomicLevel(cfg.LogLevel)
}

// ProvideLogger creates the application logger
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("env", string(cfg.Environment))), nil
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("loupe")
}

// ProvideTracing installs the global tracer provider.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingOptions{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideStore opens the record store backing the development index.
func ProvideStore(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector) (*badger.RecordStore, func(), error) {
	store, err := badger.Open(badger.Options{
		Dir:      cfg.Index.DataDir,
		InMemory: cfg.Index.InMemory,
		Logger:   logger,
		Observer: metrics,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close record store", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideIndex creates the development index and restores it from store.
func ProvideIndex(ctx context.Context, store *badger.RecordStore, metrics *observability.Collector, logger *zap.Logger) (*index.Index, error) {
	ix := index.New(
		index.WithStore(store),
		index.WithObserver(metrics),
		index.WithLogger(logger),
	)
	if err := ix.Restore(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

// ProvideFetcher picks the trie source: the remote service when a backend
// URL is configured, the development index otherwise.
func ProvideFetcher(cfg *config.Config, ix *index.Index, logger *zap.Logger) (session.Fetcher, error) {
	if cfg.Backend.URL == "" {
		logger.Info("Serving fragments from the embedded index", zap.Bool("rooted", cfg.Backend.Rooted))
		return &index.Fetcher{Index: ix, Rooted: cfg.Backend.Rooted}, nil
	}
	logger.Info("Serving fragments from backend",
		zap.String("url", cfg.Backend.URL),
		zap.Bool("rooted", cfg.Backend.Rooted),
	)
	client, err := backend.NewClient(backend.Options{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
		Rooted:  cfg.Backend.Rooted,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ProvideSessionOptions configures every query session.
func ProvideSessionOptions(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) []session.Option {
	return []session.Option{
		session.WithObserver(metrics),
		session.WithLogger(logger),
		session.WithViewOptions(view.WithLayout(cfg.View.Layout)),
	}
}

// ProvideHub creates the view connection hub
func ProvideHub(metrics *observability.Collector, logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(metrics.ViewConnections, logger)
}

// ProvideViewServer creates the view websocket server
func ProvideViewServer(cfg *config.Config, hub *websocket.Hub, fetcher session.Fetcher, opts []session.Option, logger *zap.Logger) *websocket.Server {
	return websocket.NewServer(hub, fetcher, websocket.OriginChecker(cfg.Server.AllowedOrigins), logger, opts...)
}
