// Package pagination walks a paged image-board API until it is exhausted.
//
// A Fetcher pairs a Transport (one HTTP GET per page) with a decode.PageDecoder
// (one page body to records). The loop is the same for every wire format:
//
//	cursor := q.Cursor().Advance(true)
//	for {
//		records := decode(get(endpoint, q.Params(cursor), q.Headers))
//		if len(records) == 0 {
//			return // exhausted
//		}
//		yield records...
//		cursor = cursor.Advance(false)
//	}
//
// Pages are fetched strictly one after another and only when the consumer asks
// for the next record. Transport and decode errors end the sequence; they are
// never retried here.
//
// Example usage:
//
//	fetcher := pagination.NewFetcher(httpClient, decode.List{})
//	for rec, err := range fetcher.Records(ctx, q) {
//		if err != nil {
//			return err
//		}
//		// use rec
//	}
package pagination
