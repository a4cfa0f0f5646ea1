// Package cache provides a Redis-backed cache for API pages.
//
// Re-running the same search (or resuming a partially consumed one) hits the
// same cursor values again. Caching page bodies keeps those repeats off the
// booru's API:
//
//   - Deterministic cache keys from host, path and query parameters
//   - ETag / Last-Modified support for conditional requests
//   - TTL from the Expires header, DefaultTTL otherwise
//   - Prometheus metrics for observability
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.KeyForURL(requestURL)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API
//	}
//
// # Storing Responses
//
//	entry := cache.NewEntry(resp, body, 0)
//	if err := manager.Set(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Conditional Requests
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrStale) {
//		entry.SetConditionalHeaders(req.Header)
//		// on 304 Not Modified:
//		manager.Extend(ctx, key, entry, cache.ExpiresFrom(resp.Header, 0))
//	}
//
// # Metrics
//
//   - booru_cache_hits_total{layer="redis"} - Cache hits
//   - booru_cache_misses_total - Cache misses
//   - booru_cache_size_bytes{layer="redis"} - Bytes written
//   - booru_304_responses_total - Conditional request successes
//   - booru_conditional_requests_total - Conditional requests sent
//   - booru_cache_errors_total{operation} - Cache operation errors
package cache
