package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "booru"

// CacheKey represents a unique identifier for a cached API page.
type CacheKey struct {
	// Host is the API host (e.g., "danbooru.donmai.us")
	Host string

	// Endpoint is the API path (e.g., "/posts.json")
	Endpoint string

	// QueryParams are the request parameters, cursor included
	QueryParams url.Values
}

// KeyForURL builds the cache key of a fully assembled request URL.
func KeyForURL(u *url.URL) CacheKey {
	return CacheKey{
		Host:        u.Host,
		Endpoint:    u.Path,
		QueryParams: u.Query(),
	}
}

// String generates a deterministic cache key string.
// Format: booru:host:endpoint:query1=val1:query2=val2
//
// Example:
//
//	booru:danbooru.donmai.us:posts.json:page=2:tags=sky
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	if k.Host != "" {
		parts = append(parts, strings.ToLower(k.Host))
	}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			values := k.QueryParams[key]
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
