package cache

import (
	"net/http"
	"time"
)

// Entry is one cached page body plus what is needed to revalidate it.
type Entry struct {
	Body         []byte    `json:"body"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero"`

	// Expires is when the page must be revalidated or fetched again.
	Expires  time.Time `json:"expires"`
	StoredAt time.Time `json:"stored_at"`
}

// Fresh reports whether the entry can be served without asking the API.
func (e *Entry) Fresh() bool {
	return time.Now().Before(e.Expires)
}

// TTL returns the time until expiration, 0 once expired.
func (e *Entry) TTL() time.Duration {
	return max(time.Until(e.Expires), 0)
}

// Age returns how long ago the body was stored.
func (e *Entry) Age() time.Duration {
	return time.Since(e.StoredAt)
}

// Revalidatable reports whether a conditional request can be made for the
// entry. A nil entry is not revalidatable.
func (e *Entry) Revalidatable() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}

// SetConditionalHeaders adds If-None-Match, or If-Modified-Since when there
// is no ETag.
func (e *Entry) SetConditionalHeaders(h http.Header) {
	switch {
	case e == nil || h == nil:
	case e.ETag != "":
		h.Set("If-None-Match", e.ETag)
	case !e.LastModified.IsZero():
		h.Set("If-Modified-Since", e.LastModified.UTC().Format(http.TimeFormat))
	}
}
