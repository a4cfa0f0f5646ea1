package cache

import (
	"net/http"
	"time"
)

// DefaultTTL applies when a response has no usable Expires header,
// which is the common case for booru APIs.
const DefaultTTL = 5 * time.Minute

// NewEntry builds an entry from a 200 response whose body has already been
// read. fallbackTTL <= 0 means DefaultTTL.
func NewEntry(resp *http.Response, body []byte, fallbackTTL time.Duration) *Entry {
	entry := &Entry{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
		Expires:     ExpiresFrom(resp.Header, fallbackTTL),
		StoredAt:    time.Now(),
	}

	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		entry.LastModified = lm
	}

	return entry
}

// ExpiresFrom returns the expiry announced by headers, or now + fallback
// when Expires is missing or unparsable. An Expires in the past yields now.
// fallback <= 0 means DefaultTTL.
func ExpiresFrom(headers http.Header, fallback time.Duration) time.Time {
	if fallback <= 0 {
		fallback = DefaultTTL
	}
	now := time.Now()

	expires, err := http.ParseTime(headers.Get("Expires"))
	if err != nil {
		return now.Add(fallback)
	}
	if expires.Before(now) {
		return now
	}
	return expires
}
