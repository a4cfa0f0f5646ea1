// Package client provides the HTTP transport for booru API pages with
// retry, error classification, metrics and an optional Redis page cache.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/booru-enum/pkg/cache"
	"github.com/Sternrassler/booru-enum/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booru_requests_total",
		Help: "Total API requests by host and status",
	}, []string{"host", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booru_request_duration_seconds",
		Help:    "API request duration in seconds by host",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"host"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booru_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// Client fetches API pages.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis enables the page cache. Nil disables caching.
	Redis *redis.Client

	// User-Agent header sent with every request (REQUIRED)
	UserAgent string

	// Timeout per HTTP attempt
	Timeout time.Duration

	// CacheTTL applies when a response carries no Expires header
	CacheTTL time.Duration

	// Retry
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		CacheTTL:  cache.DefaultTTL,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	logger := logging.NewLogger("booru-client")

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cache:  cacheManager,
		config: cfg,
		logger: logger,
	}, nil
}

// BuildURL merges params into the endpoint's own query string.
// Params replace endpoint values with the same key.
func BuildURL(endpoint *url.URL, params url.Values) *url.URL {
	u := *endpoint
	query := u.Query()
	for key, values := range params {
		query[key] = values
	}
	u.RawQuery = query.Encode()
	return &u
}

// Get fetches one page and returns its body. Non-2xx responses are
// returned as *HTTPError. It implements pagination.Transport.
func (c *Client) Get(ctx context.Context, endpoint *url.URL, params url.Values, headers http.Header) ([]byte, error) {
	u := BuildURL(endpoint, params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	return c.Do(req)
}

// Do performs a GET request with caching and retry and returns the body.
func (c *Client) Do(req *http.Request) ([]byte, error) {
	ctx := req.Context()
	host := req.URL.Host
	target := req.URL.String()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(host).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Cache
	var cacheKey cache.CacheKey
	var cachedEntry *cache.Entry
	if c.cache != nil {
		cacheKey = cache.KeyForURL(req.URL)

		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("url", target).Dur("age", entry.Age()).Msg("Cache hit")
			return entry.Body, nil
		case errors.Is(err, cache.ErrStale):
			cachedEntry = entry
			c.logger.Debug().
				Str("url", target).
				Str("etag", entry.ETag).
				Msg("Revalidating stale cache entry")
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("url", target).Msg("Cache get error")
		}
	}

	// Step 2: Set request headers
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("url", target).
		Str("method", req.Method).
		Msg("Executing request")

	// Step 3: Execute with retry
	var body []byte
	var resp *http.Response

	retryErr := retryWithBackoff(ctx, c.config.Retry, func() (ErrorClass, error) {
		attemptReq := req.Clone(ctx)
		if cachedEntry.Revalidatable() {
			cachedEntry.SetConditionalHeaders(attemptReq.Header)
			cache.ConditionalRequestsSent.Inc()
		}

		var reqErr error
		resp, reqErr = c.httpClient.Do(attemptReq)
		if reqErr != nil {
			if ctx.Err() != nil {
				// caller gave up, unclassified errors are not retried
				return "", reqErr
			}
			c.logger.Error().Err(reqErr).Str("url", target).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(host, "network_error").Inc()
			return ErrorClassNetwork, reqErr
		}
		defer resp.Body.Close()

		var readErr error
		body, readErr = io.ReadAll(resp.Body)
		if readErr != nil {
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(host, "network_error").Inc()
			return ErrorClassNetwork, fmt.Errorf("read response body: %w", readErr)
		}

		status := strconv.Itoa(resp.StatusCode)
		requestsTotal.WithLabelValues(host, status).Inc()

		if resp.StatusCode == http.StatusNotModified {
			return "", nil
		}

		if errClass := classifyStatus(resp.StatusCode); errClass != "" {
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			c.logger.Warn().
				Str("url", target).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("API request error")

			return errClass, &HTTPError{
				StatusCode: resp.StatusCode,
				ErrorClass: errClass,
				Message:    resp.Status,
				URL:        target,
				RetryAfter: parseRetryAfter(resp.Header),
			}
		}

		return "", nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	// Step 4: 304 Not Modified
	if resp.StatusCode == http.StatusNotModified {
		if cachedEntry == nil {
			return nil, &HTTPError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassClient,
				Message:    "not modified without a cached entry",
				URL:        target,
			}
		}

		cache.NotModifiedResponses.Inc()
		newExpires := cache.ExpiresFrom(resp.Header, c.config.CacheTTL)
		if err := c.cache.Extend(ctx, cacheKey, cachedEntry, newExpires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to extend cache entry")
		}
		c.logger.Debug().Str("url", target).Msg("304 Not Modified - using cache")
		return cachedEntry.Body, nil
	}

	// Step 5: Update cache
	if c.cache != nil && resp.StatusCode == http.StatusOK {
		entry := cache.NewEntry(resp, body, c.config.CacheTTL)
		if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("url", target).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return body, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
