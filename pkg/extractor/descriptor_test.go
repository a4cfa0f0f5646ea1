package extractor

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/Sternrassler/booru-enum/pkg/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestResolveURL(t *testing.T) {
	endpoint := mustParse(t, "https://api.example.com/posts")

	tests := []struct {
		name    string
		rec     decode.Record
		want    string
		wantErr error
	}{
		{
			name: "absolute path is resolved against endpoint",
			rec:  decode.Record{"file_url": "/img/123.jpg"},
			want: "https://api.example.com/img/123.jpg",
		},
		{
			name: "absolute url passes through",
			rec:  decode.Record{"file_url": "https://cdn.example.com/img/123.jpg"},
			want: "https://cdn.example.com/img/123.jpg",
		},
		{
			name: "protocol relative url takes the endpoint scheme",
			rec:  decode.Record{"file_url": "//cdn.example.com/img/1.png"},
			want: "https://cdn.example.com/img/1.png",
		},
		{
			name: "relative path without slash passes through",
			rec:  decode.Record{"file_url": "img/1.png"},
			want: "img/1.png",
		},
		{
			name:    "missing file_url",
			rec:     decode.Record{"id": "1"},
			wantErr: ErrMissingField,
		},
		{
			name:    "nil record",
			rec:     nil,
			wantErr: ErrMissingField,
		},
		{
			name:    "non-string file_url",
			rec:     decode.Record{"file_url": json.Number("12")},
			wantErr: ErrInvalidField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(endpoint, tt.rec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/gallery/art%20final.png", "art final.png"},
		{"https://cdn.example.com/data/ab/cd/abcd1234.jpg?download=1", "abcd1234.jpg"},
		{"https://cdn.example.com/%E7%8C%AB.gif", "猫.gif"},
		{"https://cdn.example.com/a+b.jpg", "a+b.jpg"},
		{"https://cdn.example.com/dir/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := FilenameFromURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitExt(t *testing.T) {
	tests := []struct {
		filename string
		name     string
		ext      string
	}{
		{"art final.png", "art final", "png"},
		{"archive.tar.gz", "archive.tar", "gz"},
		{"noext", "noext", ""},
		{".hidden", ".hidden", ""},
		{"..dots", "..dots", ""},
		{"trailing.", "trailing", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			name, ext := SplitExt(tt.filename)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestDerive(t *testing.T) {
	endpoint := mustParse(t, "https://api.example.com/posts")
	rec := decode.Record{
		"id":       json.Number("42"),
		"file_url": "/gallery/art%20final.png",
		"md5":      "d41d8cd9",
	}

	outcome := Derive(endpoint, "testbooru", "sky", rec)
	require.False(t, outcome.Skipped())
	require.NoError(t, outcome.Err)

	d := outcome.Descriptor
	assert.Equal(t, "https://api.example.com/gallery/art%20final.png", d.URL)
	assert.Equal(t, "art final.png", d.Filename)
	assert.Equal(t, "art final", d.Name)
	assert.Equal(t, "png", d.Extension)
	assert.Equal(t, d.Name+"."+d.Extension, d.Filename)

	meta := d.Metadata()
	assert.Equal(t, "testbooru", meta["category"])
	assert.Equal(t, "art final.png", meta["filename"])
	assert.Equal(t, "art final", meta["name"])
	assert.Equal(t, "png", meta["extension"])
	assert.Equal(t, "sky", meta["tags"])
	assert.Equal(t, json.Number("42"), meta["id"])
	assert.Equal(t, "d41d8cd9", meta["md5"])

	_, touched := rec["category"]
	assert.False(t, touched, "Derive must not modify the raw record")
}

func TestDerive_KeepsRecordTags(t *testing.T) {
	endpoint := mustParse(t, "https://api.example.com/posts")
	rec := decode.Record{"file_url": "/a.jpg", "tags": "1girl sky"}

	outcome := Derive(endpoint, "testbooru", "sky", rec)
	require.False(t, outcome.Skipped())
	assert.Equal(t, "1girl sky", outcome.Descriptor.Metadata()["tags"])
}

func TestDerive_Skips(t *testing.T) {
	endpoint := mustParse(t, "https://api.example.com/posts")

	tests := []struct {
		name    string
		rec     decode.Record
		wantErr error
	}{
		{"no file_url", decode.Record{"id": "1"}, ErrMissingField},
		{"numeric file_url", decode.Record{"file_url": json.Number("5")}, ErrInvalidField},
		{"bad escape", decode.Record{"file_url": "https://cdn.example.com/%zz.jpg"}, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Derive(endpoint, "testbooru", "", tt.rec)
			assert.True(t, outcome.Skipped())
			assert.ErrorIs(t, outcome.Err, tt.wantErr)
		})
	}
}
