// Package query holds the per-run search state for a booru enumeration:
// the tag string, the API endpoint, request headers and the pagination cursor.
package query

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultCursorParam is the request parameter most boorus page with.
const DefaultCursorParam = "page"

// Context is the immutable part of one enumeration run.
// The mutable part lives in Cursor values, which are owned by the run.
type Context struct {
	// Endpoint is the absolute API URL every page request goes to.
	Endpoint *url.URL

	// Tags is the raw, percent-decoded search query.
	Tags string

	// Headers are sent with every page request. May be empty.
	Headers http.Header

	cursor Cursor
}

// Option customizes a Context.
type Option func(*Context)

// WithCursor overrides the cursor parameter name and its start/step policy.
// Offset-style APIs use a step equal to the page size.
func WithCursor(param string, start, step int) Option {
	return func(c *Context) {
		c.cursor = Cursor{Param: param, Start: start, Step: step}
	}
}

// WithHeader adds a header sent with every page request.
func WithHeader(key, value string) Option {
	return func(c *Context) {
		c.Headers.Add(key, value)
	}
}

// New initializes the query context for one run.
func New(endpoint, tags string, opts ...Option) (*Context, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("endpoint must be an absolute URL (got %q)", endpoint)
	}

	c := &Context{
		Endpoint: u,
		Tags:     tags,
		Headers:  http.Header{},
		cursor:   Cursor{Param: DefaultCursorParam, Start: 1, Step: 1},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cursor.Param == "" {
		c.cursor.Param = DefaultCursorParam
	}
	if c.cursor.Step == 0 {
		c.cursor.Step = 1
	}

	return c, nil
}

// Cursor returns the configured cursor. It has not been reset yet.
func (c *Context) Cursor() Cursor {
	return c.cursor
}

// Params builds the request parameters for the given cursor.
// The result always carries "tags" and the cursor parameter.
func (c *Context) Params(cur Cursor) url.Values {
	params := url.Values{}
	params.Set("tags", c.Tags)
	params.Set(cur.Param, strconv.Itoa(cur.Value))
	return params
}

// Cursor is the pagination position of a run.
type Cursor struct {
	// Param is the request parameter that carries Value.
	Param string

	// Start is the value of the first page.
	Start int

	// Step is added to Value for every following page.
	Step int

	// Value is the current position.
	Value int

	started bool
}

// Advance returns the cursor for the next request. With reset set it returns
// the first page. Advancing a cursor that was never reset panics.
func (c Cursor) Advance(reset bool) Cursor {
	if reset {
		c.Value = c.Start
		c.started = true
		return c
	}
	if !c.started {
		panic(fmt.Sprintf("query: cursor %q advanced before reset", c.Param))
	}
	c.Value += c.Step
	return c
}

// Started reports whether the cursor has been reset at least once.
func (c Cursor) Started() bool {
	return c.started
}

// String implements fmt.Stringer.
func (c Cursor) String() string {
	return c.Param + "=" + strconv.Itoa(c.Value)
}
