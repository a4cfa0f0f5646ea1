// Package extractor turns the raw records of a paged booru API into the
// message stream consumed by a download job: Version, Directory, Headers,
// then one Url message per downloadable item.
package extractor

import (
	"context"
	"iter"

	"github.com/Sternrassler/booru-enum/pkg/decode"
	"github.com/Sternrassler/booru-enum/pkg/logging"
	"github.com/Sternrassler/booru-enum/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "booru_items_total",
	Help: "Total records processed by category and outcome",
}, []string{"category", "outcome"}) // "emitted", "skipped"

// RecordSource produces the raw records of one run. *pagination.Fetcher
// implements it.
type RecordSource interface {
	Records(ctx context.Context, q *query.Context) iter.Seq2[decode.Record, error]
}

// Info is the registry data an extractor is built from.
type Info struct {
	Category string
	APIURL   string
}

// Extractor enumerates one search query.
type Extractor struct {
	info   Info
	query  *query.Context
	source RecordSource
	logger zerolog.Logger
}

// New creates an extractor for tags. opts customize the query context
// (cursor policy, headers).
func New(tags string, info Info, source RecordSource, opts ...query.Option) (*Extractor, error) {
	q, err := query.New(info.APIURL, tags, opts...)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		info:   info,
		query:  q,
		source: source,
		logger: logging.ForSite("extractor", info.Category),
	}, nil
}

// SetLogger replaces the extractor's logger.
func (e *Extractor) SetLogger(logger zerolog.Logger) {
	e.logger = logger
}

// Query returns the run's query context.
func (e *Extractor) Query() *query.Context {
	return e.query
}

// JobMetadata returns the job-level metadata sent in the Directory message.
func (e *Extractor) JobMetadata() map[string]any {
	return map[string]any{
		FieldCategory: e.info.Category,
		FieldTags:     e.query.Tags,
	}
}

// Outcomes yields the emit/skip result of every record in fetch order.
// A fatal error is yielded once and ends the sequence.
func (e *Extractor) Outcomes(ctx context.Context) iter.Seq2[Outcome, error] {
	return func(yield func(Outcome, error) bool) {
		for rec, err := range e.source.Records(ctx, e.query) {
			if err != nil {
				yield(Outcome{}, err)
				return
			}
			if !yield(Derive(e.query.Endpoint, e.info.Category, e.query.Tags, rec), nil) {
				return
			}
		}
	}
}

// Messages yields the full message stream. Each call is a fresh run.
// Skipped records produce no message. A fatal error is yielded once, after
// whatever messages preceded it, and ends the sequence.
func (e *Extractor) Messages(ctx context.Context) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		if !yield(VersionMessage(ProtocolVersion), nil) {
			return
		}
		if !yield(DirectoryMessage(e.JobMetadata()), nil) {
			return
		}
		if !yield(HeadersMessage(e.query.Headers), nil) {
			return
		}

		emitted, skipped := 0, 0
		for outcome, err := range e.Outcomes(ctx) {
			if err != nil {
				e.logger.Error().
					Err(err).
					Int("emitted", emitted).
					Int("skipped", skipped).
					Msg("Enumeration aborted")
				yield(Message{}, err)
				return
			}

			if outcome.Skipped() {
				skipped++
				itemsTotal.WithLabelValues(e.info.Category, "skipped").Inc()
				e.logger.Debug().Err(outcome.Err).Msg("Record skipped")
				continue
			}

			emitted++
			itemsTotal.WithLabelValues(e.info.Category, "emitted").Inc()
			if !yield(URLMessage(outcome.Descriptor), nil) {
				return
			}
		}

		e.logger.Info().
			Str("tags", e.query.Tags).
			Int("emitted", emitted).
			Int("skipped", skipped).
			Msg("Enumeration complete")
	}
}
