// Package metrics exposes the Prometheus metrics of booru-enum.
// The metrics themselves are defined in their packages (client, cache,
// pagination, extractor) via promauto and registered on the default registry.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/booru-enum/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all booru metrics are registered on.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Path is where Server exposes metrics.
const Path = "/metrics"

// Handler returns the HTTP handler for the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Server serves the metrics endpoint for the lifetime of a run.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Listen binds addr and starts serving in the background.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	s := &Server{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
	}

	logger := logging.NewLogger("metrics")
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics server started")

	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - booru_requests_total{host, status} (Counter): Requests by API host and HTTP status
//   - booru_request_duration_seconds{host} (Histogram): Request duration including retries
//   - booru_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - booru_retries_total{error_class} (Counter): Retry attempts by error class
//   - booru_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - booru_retry_exhausted_total{error_class} (Counter): Requests that exhausted their attempts
//
// Cache Metrics (pkg/cache):
//   - booru_cache_hits_total{layer="redis"} (Counter): Fresh page cache hits
//   - booru_cache_misses_total (Counter): Cache misses, stale entries included
//   - booru_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the cache
//   - booru_304_responses_total (Counter): Stale pages revalidated with 304 Not Modified
//   - booru_conditional_requests_total (Counter): Requests sent with If-None-Match/If-Modified-Since
//   - booru_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - booru_pages_fetched_total{outcome} (Counter): Pages by outcome (records, empty, error)
//   - booru_page_records (Histogram): Records decoded per page
//
// Item Metrics (pkg/extractor):
//   - booru_items_total{category, outcome} (Counter): Records emitted or skipped per site
//
// Example Prometheus Queries:
//
//   # Skip ratio per site
//   sum by (category) (rate(booru_items_total{outcome="skipped"}[5m])) /
//   sum by (category) (rate(booru_items_total[5m]))
//
//   # Cache Hit Rate
//   sum(rate(booru_cache_hits_total[5m])) /
//   (sum(rate(booru_cache_hits_total[5m])) + sum(rate(booru_cache_misses_total[5m])))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(booru_request_duration_seconds_bucket[5m]))
