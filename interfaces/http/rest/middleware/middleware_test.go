package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type observation struct {
	method, route string
	status        int
}

type recorder struct{ seen []observation }

func (r *recorder) ObserveHTTP(method, route string, status int, _ time.Duration) {
	r.seen = append(r.seen, observation{method, route, status})
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	rec := &recorder{}
	router := chi.NewRouter()
	router.Use(Metrics(rec))
	router.Get("/records/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Get("/plain", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/records/1", "/records/2", "/plain", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, rec.seen, 4)
	assert.Equal(t, observation{"GET", "/records/{id}", http.StatusTeapot}, rec.seen[0])
	assert.Equal(t, "/records/{id}", rec.seen[1].route)
	assert.Equal(t, observation{"GET", "/plain", http.StatusOK}, rec.seen[2])
	assert.Equal(t, http.StatusNotFound, rec.seen[3].status)
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/records?query=hi", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/records", fields["path"])
	assert.Equal(t, "hi", fields["query"])
	assert.EqualValues(t, http.StatusCreated, fields["status"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}
