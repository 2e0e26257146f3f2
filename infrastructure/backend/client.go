// Package backend fetches trie fragments from a running search service.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/sony/gobreaker"

	"github.com/aymericbeaumet/loupe/domain/trie"
	apperrors "github.com/aymericbeaumet/loupe/pkg/errors"
)

const (
	serviceName  = "trie-backend"
	nodesPath    = "/debug/nodes"
	maxBodyBytes = 64 << 20

	defaultTripAfter   = 5
	defaultOpenTimeout = 30 * time.Second
)

// Client calls GET /debug/nodes on the search service.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	rooted  bool
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Rooted asks for the single subtree at the query instead of the word
	// mapping.
	Rooted     bool
	HTTPClient *http.Client
	Logger     *zap.Logger

	// TripAfter consecutive availability failures open the circuit for
	// OpenTimeout. Zero values pick 5 and 30s.
	TripAfter   uint32
	OpenTimeout time.Duration
}

// NewClient validates the base URL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid backend url %q", opts.BaseURL))
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tripAfter := opts.TripAfter
	if tripAfter == 0 {
		tripAfter = defaultTripAfter
	}
	openTimeout := opts.OpenTimeout
	if openTimeout == 0 {
		openTimeout = defaultOpenTimeout
	}

	return &Client{
		base:    base,
		http:    httpClient,
		timeout: opts.Timeout,
		rooted:  opts.Rooted,
		logger:  logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        serviceName,
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= tripAfter
			},
			IsSuccessful: func(err error) bool {
				return !unavailable(err)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}, nil
}

// unavailable reports whether err says the service is down rather than
// the request being wrong or abandoned.
func unavailable(err error) bool {
	if err == nil {
		return false
	}
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		return false
	}
	switch appErr.Type {
	case apperrors.ErrorTypeNetwork, apperrors.ErrorTypeTimeout:
		return true
	case apperrors.ErrorTypeExternal:
		status, _ := appErr.Details["upstream_status"].(int)
		return status >= 500
	}
	return false
}

func (c *Client) endpoint(query string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + nodesPath
	q := url.Values{"query": {query}}
	if c.rooted {
		q.Set("rooted", "true")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Fetch returns the fragment for query. When ctx is cancelled the context
// error is returned as is; every other failure is an *apperrors.AppError.
// While the circuit is open Fetch fails fast with an UNAVAILABLE error.
func (c *Client) Fetch(ctx context.Context, query string) (*trie.Payload, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewUnavailableError(serviceName).WithCause(err)
		}
		return nil, err
	}
	return result.(*trie.Payload), nil
}

func (c *Client) fetch(ctx context.Context, query string) (_ *trie.Payload, err error) {
	ctx, span := otel.Tracer("loupe/backend").Start(ctx, "backend.fetch")
	span.SetAttributes(attribute.String("query", query), attribute.Bool("rooted", c.rooted))
	defer func() {
		if err != nil && ctx.Err() == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	parent := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(query), nil)
	if err != nil {
		return nil, apperrors.NewInternalError("build backend request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("backend fetch").WithCause(err)
		}
		return nil, apperrors.NewNetworkError("backend unreachable", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug("Backend responded",
		zap.String("query", query),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewExternalError(serviceName, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if parent.Err() != nil {
			return nil, parent.Err()
		}
		return nil, apperrors.NewNetworkError("read backend response", err)
	}

	payload, err := trie.DecodePayload(body)
	if err != nil {
		return nil, apperrors.NewMalformedError(serviceName, err)
	}
	return payload, nil
}
