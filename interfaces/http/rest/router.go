// Package rest wires the HTTP surface: the development index, server side
// element building, the view websocket and the browser client.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/aymericbeaumet/loupe/application/session"
	"github.com/aymericbeaumet/loupe/infrastructure/config"
	"github.com/aymericbeaumet/loupe/infrastructure/index"
	"github.com/aymericbeaumet/loupe/interfaces/http/rest/handlers"
	"github.com/aymericbeaumet/loupe/interfaces/http/rest/middleware"
	"github.com/aymericbeaumet/loupe/interfaces/http/ui"
	"github.com/aymericbeaumet/loupe/interfaces/websocket"
	apperrors "github.com/aymericbeaumet/loupe/pkg/errors"
	"github.com/aymericbeaumet/loupe/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	config  *config.Config
	index   *index.Index
	fetcher session.Fetcher
	views   *websocket.Server
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewRouter creates a new router instance. metrics may be nil.
func NewRouter(
	cfg *config.Config,
	ix *index.Index,
	fetcher session.Fetcher,
	views *websocket.Server,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		config:  cfg,
		index:   ix,
		fetcher: fetcher,
		views:   views,
		metrics: metrics,
		logger:  logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "traceparent"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	errs := apperrors.NewErrorHandler(rt.logger, rt.config.Debug)

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil && rt.config.Metrics.Enabled {
		router.Method(http.MethodGet, rt.config.Metrics.Path, rt.metrics.Handler())
	}

	// The same paths the inspected trie service exposes
	indexHandler := handlers.NewIndexHandler(rt.index, errs, rt.logger)
	router.Get("/debug/nodes", indexHandler.DebugNodes)
	router.Route("/records", func(r chi.Router) {
		r.Post("/", indexHandler.AddRecords)
		r.Get("/query", indexHandler.QueryRecords)
		r.Post("/query", indexHandler.QueryRecords)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/elements", handlers.NewElementsHandler(rt.fetcher, errs, rt.logger).GetElements)
		if rt.views != nil {
			r.Get("/view/ws", rt.views.HandleWebSocket)
		}
	})

	router.Handle("/*", ui.Handler())

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports ready once the index is restored.
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.index == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
