package pagination

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/booru-enum/pkg/decode"
	"github.com/Sternrassler/booru-enum/pkg/logging"
	"github.com/Sternrassler/booru-enum/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "booru_pages_fetched_total",
		Help: "Total pages fetched by outcome",
	}, []string{"outcome"}) // "records", "empty", "error"

	pageRecords = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "booru_page_records",
		Help:    "Number of records decoded per page",
		Buckets: []float64{0, 1, 10, 20, 50, 100, 200, 500, 1000},
	})
)

// Transport issues one GET request and returns the response body.
// Non-2xx statuses, timeouts and retries are its business.
type Transport interface {
	Get(ctx context.Context, endpoint *url.URL, params url.Values, headers http.Header) ([]byte, error)
}

// Page is the decoded result of one request.
type Page struct {
	Cursor  query.Cursor
	Records []decode.Record
}

// Exhausted reports whether the page ends the enumeration.
func (p Page) Exhausted() bool {
	return len(p.Records) == 0
}

// Fetcher runs the shared pagination loop over one transport and decoder.
type Fetcher struct {
	transport Transport
	decoder   decode.PageDecoder
	logger    zerolog.Logger
}

// NewFetcher creates a new page fetcher.
func NewFetcher(transport Transport, decoder decode.PageDecoder) *Fetcher {
	if transport == nil {
		panic("transport cannot be nil")
	}
	if decoder == nil {
		panic("decoder cannot be nil")
	}
	return &Fetcher{
		transport: transport,
		decoder:   decoder,
		logger:    logging.NewLogger("page-fetcher"),
	}
}

// SetLogger replaces the fetcher's logger.
func (f *Fetcher) SetLogger(logger zerolog.Logger) {
	f.logger = logger
}

// FetchPage requests and decodes the page at cursor.
func (f *Fetcher) FetchPage(ctx context.Context, q *query.Context, cursor query.Cursor) (Page, error) {
	start := time.Now()

	body, err := f.transport.Get(ctx, q.Endpoint, q.Params(cursor), q.Headers)
	if err != nil {
		pagesFetchedTotal.WithLabelValues("error").Inc()
		return Page{Cursor: cursor}, fmt.Errorf("fetch %s: %w", cursor, err)
	}

	records, err := f.decoder.Decode(body)
	if err != nil {
		pagesFetchedTotal.WithLabelValues("error").Inc()
		return Page{Cursor: cursor}, fmt.Errorf("decode %s: %w", cursor, err)
	}

	page := Page{Cursor: cursor, Records: records}
	pageRecords.Observe(float64(len(records)))
	if page.Exhausted() {
		pagesFetchedTotal.WithLabelValues("empty").Inc()
	} else {
		pagesFetchedTotal.WithLabelValues("records").Inc()
	}

	f.logger.Debug().
		Str("endpoint", q.Endpoint.String()).
		Str("cursor", cursor.String()).
		Int("page_records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Page fetched")

	return page, nil
}

// Records returns the lazy record sequence for one run.
// Every call starts over from the first page. A fatal error is yielded
// once with a nil record and ends the sequence.
func (f *Fetcher) Records(ctx context.Context, q *query.Context) iter.Seq2[decode.Record, error] {
	return func(yield func(decode.Record, error) bool) {
		cursor := q.Cursor().Advance(true)
		pages := 0

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			page, err := f.FetchPage(ctx, q, cursor)
			if err != nil {
				f.logger.Warn().
					Err(err).
					Str("cursor", cursor.String()).
					Int("pages", pages).
					Msg("Pagination aborted")
				yield(nil, err)
				return
			}
			pages++

			if page.Exhausted() {
				f.logger.Debug().
					Str("endpoint", q.Endpoint.String()).
					Int("pages", pages).
					Msg("Pagination exhausted")
				return
			}

			for _, rec := range page.Records {
				if !yield(rec, nil) {
					return
				}
			}

			cursor = cursor.Advance(false)
		}
	}
}
