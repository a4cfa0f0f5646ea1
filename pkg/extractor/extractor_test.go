package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/booru-enum/internal/testutil"
	"github.com/Sternrassler/booru-enum/pkg/client"
	"github.com/Sternrassler/booru-enum/pkg/decode"
	"github.com/Sternrassler/booru-enum/pkg/pagination"
	"github.com/Sternrassler/booru-enum/pkg/query"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSource(t *testing.T, decoder decode.PageDecoder) *pagination.Fetcher {
	t.Helper()
	cfg := client.DefaultConfig("booru-enum-test/1.0")
	cfg.Timeout = 5 * time.Second
	cfg.Retry = client.RetryConfig{
		MaxAttempts:       1,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        10 * time.Millisecond,
		BackoffMultiplier: 1,
	}
	c, err := client.New(cfg)
	require.NoError(t, err)
	return pagination.NewFetcher(c, decoder)
}

func collect(t *testing.T, e *Extractor) ([]Message, error) {
	t.Helper()
	var msgs []Message
	for msg, err := range e.Messages(context.Background()) {
		if err != nil {
			return msgs, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func urls(msgs []Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Kind == KindURL {
			out = append(out, m.URL)
		}
	}
	return out
}

func TestMessages_JSONList(t *testing.T) {
	mock := testutil.NewMockBooru()
	defer mock.Close()
	mock.SetJSONPages("/posts.json",
		testutil.JSONPage(
			map[string]any{"id": 1, "file_url": "/data/a.jpg"},
			map[string]any{"id": 2, "file_url": "https://cdn.example.com/b%20c.png"},
		),
	)

	info := Info{Category: "testbooru", APIURL: mock.Endpoint("/posts.json")}
	e, err := New("blue_sky", info, newSource(t, decode.List{}), query.WithHeader("Referer", "https://testbooru.example/"))
	require.NoError(t, err)

	msgs, err := collect(t, e)
	require.NoError(t, err)
	require.Len(t, msgs, 5)

	assert.Equal(t, KindVersion, msgs[0].Kind)
	assert.Equal(t, 1, msgs[0].Version)

	assert.Equal(t, KindDirectory, msgs[1].Kind)
	assert.Equal(t, map[string]any{"category": "testbooru", "tags": "blue_sky"}, msgs[1].Metadata)

	assert.Equal(t, KindHeaders, msgs[2].Kind)
	assert.Equal(t, "https://testbooru.example/", msgs[2].Headers.Get("Referer"))

	assert.Equal(t, []string{
		mock.URL() + "/data/a.jpg",
		"https://cdn.example.com/b%20c.png",
	}, urls(msgs))

	second := msgs[4].Metadata
	assert.Equal(t, "b c.png", second["filename"])
	assert.Equal(t, "b c", second["name"])
	assert.Equal(t, "png", second["extension"])
	assert.Equal(t, "testbooru", second["category"])
	assert.Equal(t, json.Number("2"), second["id"])

	assert.Equal(t, []string{"1", "2"}, mock.CursorValues("page"))
	for _, r := range mock.Requests() {
		assert.Equal(t, "blue_sky", r.Query.Get("tags"))
		assert.Equal(t, "https://testbooru.example/", r.Header.Get("Referer"))
	}
}

func TestMessages_XMLTree(t *testing.T) {
	mock := testutil.NewMockBooru()
	defer mock.Close()
	mock.SetXMLPages("/index.php", "pid", 0,
		testutil.XMLPage(
			map[string]string{"id": "10", "file_url": "https://img.example.com/images/x.jpg"},
			map[string]string{"id": "11", "file_url": "https://img.example.com/images/y.gif", "tags": "cat sky"},
		),
		testutil.XMLPage(
			map[string]string{"id": "12", "file_url": "/images/z.webm"},
		),
	)

	info := Info{
		Category: "xmlbooru",
		APIURL:   mock.Endpoint("/index.php") + "?page=dapi&s=post&q=index",
	}
	e, err := New("sky", info, newSource(t, decode.Tree{}), query.WithCursor("pid", 0, 1))
	require.NoError(t, err)

	msgs, err := collect(t, e)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://img.example.com/images/x.jpg",
		"https://img.example.com/images/y.gif",
		mock.URL() + "/images/z.webm",
	}, urls(msgs))

	assert.Equal(t, []string{"0", "1", "2"}, mock.CursorValues("pid"))
	for _, r := range mock.Requests() {
		assert.Equal(t, "dapi", r.Query.Get("page"))
		assert.Equal(t, "index", r.Query.Get("q"))
	}

	assert.Equal(t, "cat sky", msgs[4].Metadata["tags"])
	assert.Equal(t, "sky", msgs[3].Metadata["tags"])
	assert.Equal(t, "webm", msgs[5].Metadata["extension"])
}

func TestMessages_EmptyFirstPage(t *testing.T) {
	mock := testutil.NewMockBooru()
	defer mock.Close()
	mock.SetJSONPages("/posts.json")

	info := Info{Category: "testbooru", APIURL: mock.Endpoint("/posts.json")}
	e, err := New("nothing_here", info, newSource(t, decode.List{}))
	require.NoError(t, err)

	msgs, err := collect(t, e)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, KindVersion, msgs[0].Kind)
	assert.Equal(t, KindDirectory, msgs[1].Kind)
	assert.Equal(t, KindHeaders, msgs[2].Kind)
	assert.Empty(t, msgs[2].Headers)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestMessages_SkipsUnusableRecords(t *testing.T) {
	mock := testutil.NewMockBooru()
	defer mock.Close()
	mock.SetJSONPages("/posts.json",
		`[{"id":1},{"id":2,"file_url":"/b.jpg"},"not a post",{"id":3,"file_url":42}]`,
	)

	info := Info{Category: "skipbooru", APIURL: mock.Endpoint("/posts.json")}
	e, err := New("sky", info, newSource(t, decode.List{}))
	require.NoError(t, err)

	skippedBefore := promtest.ToFloat64(itemsTotal.WithLabelValues("skipbooru", "skipped"))
	emittedBefore := promtest.ToFloat64(itemsTotal.WithLabelValues("skipbooru", "emitted"))

	msgs, err := collect(t, e)
	require.NoError(t, err)
	assert.Equal(t, []string{mock.URL() + "/b.jpg"}, urls(msgs))

	assert.Equal(t, 3.0, promtest.ToFloat64(itemsTotal.WithLabelValues("skipbooru", "skipped"))-skippedBefore)
	assert.Equal(t, 1.0, promtest.ToFloat64(itemsTotal.WithLabelValues("skipbooru", "emitted"))-emittedBefore)

	// four records on the first page, so a second page is requested
	assert.Equal(t, 2, mock.GetRequestCount())
}

func TestMessages_FatalErrorAfterPartialOutput(t *testing.T) {
	mock := testutil.NewMockBooru()
	defer mock.Close()

	mock.SetHandler("/posts.json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte(testutil.JSONPage(map[string]any{"file_url": "/a.jpg"})))
			return
		}
		http.Error(w, "gone", http.StatusNotFound)
	})

	info := Info{Category: "testbooru", APIURL: mock.Endpoint("/posts.json")}
	e, err := New("sky", info, newSource(t, decode.List{}))
	require.NoError(t, err)

	msgs, err := collect(t, e)
	require.Error(t, err)

	var httpErr *client.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)

	assert.Len(t, msgs, 4)
	assert.Equal(t, []string{mock.URL() + "/a.jpg"}, urls(msgs))
}

func TestMessages_MalformedPageIsFatal(t *testing.T) {
	mock := testutil.NewMockBooru()
	defer mock.Close()
	mock.SetJSONPages("/posts.json", `{"success": false`)

	info := Info{Category: "testbooru", APIURL: mock.Endpoint("/posts.json")}
	e, err := New("sky", info, newSource(t, decode.List{}))
	require.NoError(t, err)

	msgs, err := collect(t, e)
	assert.ErrorIs(t, err, decode.ErrMalformed)
	assert.Len(t, msgs, 3)
}

func TestMessages_StopEarly(t *testing.T) {
	mock := testutil.NewMockBooru()
	defer mock.Close()
	mock.SetJSONPages("/posts.json",
		testutil.JSONPage(map[string]any{"file_url": "/1.jpg"}, map[string]any{"file_url": "/2.jpg"}),
		testutil.JSONPage(map[string]any{"file_url": "/3.jpg"}),
	)

	info := Info{Category: "testbooru", APIURL: mock.Endpoint("/posts.json")}
	e, err := New("sky", info, newSource(t, decode.List{}))
	require.NoError(t, err)

	var got []string
	for msg, err := range e.Messages(context.Background()) {
		require.NoError(t, err)
		if msg.Kind == KindURL {
			got = append(got, msg.URL)
			break
		}
	}

	assert.Equal(t, []string{mock.URL() + "/1.jpg"}, got)
	assert.Equal(t, 1, mock.GetRequestCount())
}

func TestMessages_Restartable(t *testing.T) {
	mock := testutil.NewMockBooru()
	defer mock.Close()
	mock.SetJSONPages("/posts.json", testutil.JSONPage(map[string]any{"file_url": "/1.jpg"}))

	info := Info{Category: "testbooru", APIURL: mock.Endpoint("/posts.json")}
	e, err := New("sky", info, newSource(t, decode.List{}))
	require.NoError(t, err)

	first, err := collect(t, e)
	require.NoError(t, err)
	second, err := collect(t, e)
	require.NoError(t, err)

	assert.Equal(t, urls(first), urls(second))
	assert.Equal(t, []string{"1", "2", "1", "2"}, mock.CursorValues("page"))
}

func TestNew_InvalidEndpoint(t *testing.T) {
	_, err := New("sky", Info{Category: "x", APIURL: "/relative/posts.json"}, newSource(t, decode.List{}))
	assert.Error(t, err)
}

func TestMessage_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{
			name: "version",
			msg:  VersionMessage(ProtocolVersion),
			want: `{"kind":"version","version":1}`,
		},
		{
			name: "directory",
			msg:  DirectoryMessage(map[string]any{"category": "testbooru", "tags": "sky"}),
			want: `{"kind":"directory","metadata":{"category":"testbooru","tags":"sky"}}`,
		},
		{
			name: "empty headers are written",
			msg:  HeadersMessage(nil),
			want: `{"kind":"headers","headers":{}}`,
		},
		{
			name: "headers",
			msg:  HeadersMessage(http.Header{"Referer": {"https://x.example/"}}),
			want: `{"kind":"headers","headers":{"Referer":["https://x.example/"]}}`,
		},
		{
			name: "url",
			msg: URLMessage(&Descriptor{
				URL:       "https://x.example/a.jpg",
				Category:  "testbooru",
				Tags:      "sky",
				Filename:  "a.jpg",
				Name:      "a",
				Extension: "jpg",
				Fields:    decode.Record{"id": json.Number("5")},
			}),
			want: `{"kind":"url","metadata":{"category":"testbooru","extension":"jpg","filename":"a.jpg","id":5,"name":"a","tags":"sky"},"url":"https://x.example/a.jpg"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestMessageKind_String(t *testing.T) {
	assert.Equal(t, "url", KindURL.String())
	assert.Equal(t, "MessageKind(9)", MessageKind(9).String())
}
