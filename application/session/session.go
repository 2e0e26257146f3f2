// Package session owns the single outstanding fetch of an interactive query
// and the view built from its result.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aymericbeaumet/loupe/application/view"
	"github.com/aymericbeaumet/loupe/domain/graph"
	"github.com/aymericbeaumet/loupe/domain/trie"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Fetcher retrieves the trie fragment for a query. It should stop early
// when ctx is cancelled.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (*trie.Payload, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, query string) (*trie.Payload, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, query string) (*trie.Payload, error) {
	return f(ctx, query)
}

// ErrorHandler receives fetch, build and render failures unchanged. It is
// called without the session lock held and must not call Close.
type ErrorHandler func(query string, err error)

// Observer is notified of request outcomes.
type Observer interface {
	ObserveFetch(outcome string, elapsed time.Duration)
	ObserveBuild(stats graph.Stats)
}

// Request outcomes reported to the Observer.
const (
	OutcomeRendered  = "rendered"
	OutcomeCancelled = "cancelled"
	OutcomeStale     = "stale"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
)

// Option configures a Session.
type Option func(*Session)

// WithErrorHandler sets the failure callback.
func WithErrorHandler(h ErrorHandler) Option {
	return func(s *Session) { s.onError = h }
}

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithViewOptions forwards options to every view.Render call.
func WithViewOptions(opts ...view.Option) Option {
	return func(s *Session) { s.viewOpts = append(s.viewOpts, opts...) }
}

// WithBuilder replaces the default element builder.
func WithBuilder(b graph.Builder) Option {
	return func(s *Session) { s.builder = b }
}

// Session runs at most one fetch at a time. A new Submit cancels the
// previous one, and a result that is no longer current is dropped
// silently, even if the fetcher ignored the cancellation.
type Session struct {
	fetcher  Fetcher
	surface  view.Surface
	builder  graph.Builder
	viewOpts []view.Option
	onError  ErrorHandler
	observer Observer
	logger   *zap.Logger

	mu         sync.Mutex
	base       context.Context
	stop       context.CancelFunc
	generation uint64
	cancel     context.CancelFunc
	current    *view.View
	closed     bool
	wg         sync.WaitGroup
}

// New creates a session drawing on surface.
func New(fetcher Fetcher, surface view.Surface, opts ...Option) *Session {
	s := &Session{
		fetcher: fetcher,
		surface: surface,
		logger:  zap.NewNop(),
		onError: func(string, error) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.base, s.stop = context.WithCancel(context.Background())
	return s
}

// Submit starts fetching query, cancels whatever was in flight and destroys
// the current view, so a failed query leaves nothing drawn. The returned
// channel is closed once this request has been applied or discarded. After
// Close it is returned already closed.
func (s *Session) Submit(query string) <-chan struct{} {
	done := make(chan struct{})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(done)
		return done
	}
	if s.cancel != nil {
		s.cancel()
	}
	// The previous graph no longer answers the query being typed.
	if s.current != nil {
		s.current.Destroy()
		s.current = nil
	}
	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, gen, query, done)
	return done
}

// Current returns the view of the latest applied request, if any.
func (s *Session) Current() *view.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close cancels the outstanding fetch, destroys the current view and waits
// for in-flight requests to finish. Later Submits are no-ops.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stop()
	if s.current != nil {
		s.current.Destroy()
		s.current = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("Session closed")
}

func (s *Session) run(ctx context.Context, gen uint64, query string, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	ctx, span := otel.Tracer("loupe/session").Start(ctx, "session.request")
	span.SetAttributes(attribute.String("query", query), attribute.Int64("generation", int64(gen)))
	defer span.End()

	start := time.Now()
	payload, err := s.fetcher.Fetch(ctx, query)
	elapsed := time.Since(start)

	outcome, failure := s.apply(ctx, gen, query, payload, err)
	s.observe(outcome, elapsed)
	span.SetAttributes(attribute.String("outcome", outcome))

	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		s.logger.Warn("Query failed", zap.String("query", query), zap.String("outcome", outcome), zap.Error(failure))
		s.onError(query, failure)
	}
}

// apply installs the result of request gen if it is still current. It
// returns the outcome and the failure to report, if any.
func (s *Session) apply(ctx context.Context, gen uint64, query string, payload *trie.Payload, fetchErr error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.generation {
		return OutcomeStale, nil
	}
	if fetchErr != nil {
		if ctx.Err() != nil || errors.Is(fetchErr, context.Canceled) {
			return OutcomeCancelled, nil
		}
		return OutcomeFailed, fetchErr
	}

	elements, err := s.builder.Build(payload)
	if err != nil {
		return OutcomeMalformed, err
	}
	if s.observer != nil {
		s.observer.ObserveBuild(graph.Summarize(elements))
	}

	v, err := view.Render(s.surface, elements, append([]view.Option{view.WithLogger(s.logger)}, s.viewOpts...)...)
	if err != nil {
		return OutcomeFailed, err
	}
	s.current = v

	s.logger.Debug("Query rendered", zap.String("query", query), zap.Int("elements", len(elements)))
	return OutcomeRendered, nil
}

func (s *Session) observe(outcome string, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveFetch(outcome, elapsed)
	}
}
