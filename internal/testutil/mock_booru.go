// Package testutil provides testing utilities for booru enumeration.
package testutil

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a fixed response for a mock endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// PagedResponse serves one body per cursor value. Cursor values past the
// last page get Empty.
type PagedResponse struct {
	CursorParam string
	Start       int
	Pages       []string
	Empty       string
	ContentType string
}

// RecordedRequest is one request seen by the mock server.
type RecordedRequest struct {
	Path   string
	Query  url.Values
	Header http.Header
}

// MockBooru is a configurable mock image-board API for testing.
type MockBooru struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewMockBooru creates a new mock booru server.
func NewMockBooru() *MockBooru {
	mock := &MockBooru{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if !exists {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBooru) URL() string {
	return m.server.URL
}

// Endpoint returns the absolute URL of path on the mock server.
func (m *MockBooru) Endpoint(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockBooru) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockBooru) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockBooru) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockBooru) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetPages configures a paged endpoint.
func (m *MockBooru) SetPages(path string, paged PagedResponse) {
	if paged.CursorParam == "" {
		paged.CursorParam = "page"
	}
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if paged.ContentType != "" {
			w.Header().Set("Content-Type", paged.ContentType)
		}

		value, err := strconv.Atoi(r.URL.Query().Get(paged.CursorParam))
		if err != nil {
			http.Error(w, "bad cursor", http.StatusBadRequest)
			return
		}

		idx := value - paged.Start
		if idx < 0 || idx >= len(paged.Pages) {
			w.Write([]byte(paged.Empty))
			return
		}
		w.Write([]byte(paged.Pages[idx]))
	})
}

// SetJSONPages configures a JSON record-list endpoint paged by "page" from 1.
func (m *MockBooru) SetJSONPages(path string, pages ...string) {
	m.SetPages(path, PagedResponse{
		CursorParam: "page",
		Start:       1,
		Pages:       pages,
		Empty:       "[]",
		ContentType: "application/json; charset=utf-8",
	})
}

// SetXMLPages configures an XML attribute-tree endpoint paged by cursorParam from start.
func (m *MockBooru) SetXMLPages(path, cursorParam string, start int, pages ...string) {
	m.SetPages(path, PagedResponse{
		CursorParam: cursorParam,
		Start:       start,
		Pages:       pages,
		Empty:       `<?xml version="1.0" encoding="UTF-8"?><posts count="0" offset="0"></posts>`,
		ContentType: "application/xml; charset=utf-8",
	})
}

// Requests returns a copy of all recorded requests.
func (m *MockBooru) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockBooru) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// CursorValues returns the value of param for every recorded request, in order.
func (m *MockBooru) CursorValues(param string) []string {
	reqs := m.Requests()
	values := make([]string, 0, len(reqs))
	for _, r := range reqs {
		values = append(values, r.Query.Get(param))
	}
	return values
}

// JSONPage renders records as a JSON array.
func JSONPage(records ...map[string]any) string {
	if records == nil {
		records = []map[string]any{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// XMLPage renders records as <posts><post attr="..."/>...</posts>.
// Attributes are written in sorted order.
func XMLPage(records ...map[string]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<posts count="` + strconv.Itoa(len(records)) + `" offset="0">`)
	for _, rec := range records {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("<post")
		for _, k := range keys {
			b.WriteString(" " + k + `="`)
			xml.EscapeText(&b, []byte(rec[k]))
			b.WriteString(`"`)
		}
		b.WriteString("/>")
	}
	b.WriteString("</posts>")
	return b.String()
}
