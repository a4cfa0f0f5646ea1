package cache

import (
	"net/http"
	"testing"
	"time"
)

func within(t *testing.T, got, want time.Time, tolerance time.Duration) {
	t.Helper()
	if diff := got.Sub(want); diff < -tolerance || diff > tolerance {
		t.Errorf("time = %v, want %v (diff %v)", got, want, diff)
	}
}

func TestNewEntry(t *testing.T) {
	body := []byte(`[{"id":1,"file_url":"/data/a.jpg"}]`)
	expires := time.Now().Add(time.Hour)
	lastModified := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header: http.Header{
			"Expires":       {expires.Format(http.TimeFormat)},
			"Last-Modified": {lastModified.Format(http.TimeFormat)},
			"Etag":          {`"page-1"`},
			"Content-Type":  {"application/json; charset=utf-8"},
		},
	}

	entry := NewEntry(resp, body, 0)

	if string(entry.Body) != string(body) {
		t.Errorf("Body = %s, want %s", entry.Body, body)
	}
	if entry.ETag != `"page-1"` {
		t.Errorf("ETag = %q", entry.ETag)
	}
	if entry.ContentType != "application/json; charset=utf-8" {
		t.Errorf("ContentType = %q", entry.ContentType)
	}
	if !entry.LastModified.Equal(lastModified) {
		t.Errorf("LastModified = %v, want %v", entry.LastModified, lastModified)
	}
	within(t, entry.Expires, expires, 2*time.Second)
	within(t, entry.StoredAt, time.Now(), 2*time.Second)
}

func TestNewEntry_FallbackTTL(t *testing.T) {
	tests := []struct {
		name     string
		fallback time.Duration
		want     time.Duration
	}{
		{"zero means default", 0, DefaultTTL},
		{"negative means default", -time.Second, DefaultTTL},
		{"explicit fallback", 30 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}
			entry := NewEntry(resp, []byte("[]"), tt.fallback)

			within(t, entry.Expires, time.Now().Add(tt.want), 2*time.Second)
			if entry.Revalidatable() {
				t.Error("Entry without validators should not be revalidatable")
			}
		})
	}
}

func TestExpiresFrom(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		expires string
		want    time.Time
	}{
		{"future header", now.Add(time.Hour).Format(http.TimeFormat), now.Add(time.Hour)},
		{"missing header", "", now.Add(time.Minute)},
		{"garbage header", "tomorrow-ish", now.Add(time.Minute)},
		{"past header", now.Add(-time.Hour).Format(http.TimeFormat), now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.expires != "" {
				headers.Set("Expires", tt.expires)
			}
			within(t, ExpiresFrom(headers, time.Minute), tt.want, 2*time.Second)
		})
	}
}
