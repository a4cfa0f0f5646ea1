package extractor

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/Sternrassler/booru-enum/pkg/decode"
)

// Field names read from or added to a record.
const (
	FieldFileURL   = "file_url"
	FieldCategory  = "category"
	FieldTags      = "tags"
	FieldFilename  = "filename"
	FieldName      = "name"
	FieldExtension = "extension"
)

var (
	// ErrMissingField is returned when a record lacks a required field.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidField is returned when a required field is present but unusable.
	ErrInvalidField = errors.New("invalid field")
)

// Descriptor is a fully derived, ready-to-download item.
type Descriptor struct {
	URL       string
	Category  string
	Tags      string
	Filename  string
	Name      string
	Extension string

	// Fields are the raw record fields as returned by the API.
	Fields decode.Record
}

// Metadata returns the record fields extended with category, filename,
// name and extension. "tags" falls back to the run's tags when the record
// has none. The record itself is not modified.
func (d *Descriptor) Metadata() map[string]any {
	meta := make(map[string]any, len(d.Fields)+5)
	maps.Copy(meta, d.Fields)

	meta[FieldCategory] = d.Category
	meta[FieldFilename] = d.Filename
	meta[FieldName] = d.Name
	meta[FieldExtension] = d.Extension
	if _, ok := meta[FieldTags]; !ok {
		meta[FieldTags] = d.Tags
	}
	return meta
}

// Outcome is the result of deriving one record: either a descriptor or a skip.
type Outcome struct {
	Descriptor *Descriptor
	Err        error
}

// Skipped reports whether the record produced no descriptor.
func (o Outcome) Skipped() bool {
	return o.Descriptor == nil
}

// Emit wraps a descriptor.
func Emit(d *Descriptor) Outcome {
	return Outcome{Descriptor: d}
}

// Skip wraps the reason a record was dropped.
func Skip(reason error) Outcome {
	return Outcome{Err: reason}
}

// Derive builds the descriptor for one record. Any failure is a skip.
func Derive(endpoint *url.URL, category, tags string, rec decode.Record) Outcome {
	fileURL, err := ResolveURL(endpoint, rec)
	if err != nil {
		return Skip(err)
	}

	filename, err := FilenameFromURL(fileURL)
	if err != nil {
		return Skip(err)
	}
	name, ext := SplitExt(filename)

	return Emit(&Descriptor{
		URL:       fileURL,
		Category:  category,
		Tags:      tags,
		Filename:  filename,
		Name:      name,
		Extension: ext,
		Fields:    rec,
	})
}

// ResolveURL reads file_url from rec. Values starting with "/" are resolved
// against endpoint, anything else is returned unchanged.
func ResolveURL(endpoint *url.URL, rec decode.Record) (string, error) {
	raw, ok := rec[FieldFileURL]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, FieldFileURL)
	}
	fileURL, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %T, not a string", ErrInvalidField, FieldFileURL, raw)
	}

	if !strings.HasPrefix(fileURL, "/") {
		return fileURL, nil
	}

	ref, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidField, FieldFileURL, err)
	}
	return endpoint.ResolveReference(ref).String(), nil
}

// FilenameFromURL returns the percent-decoded last path segment of rawURL.
func FilenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidField, FieldFileURL, err)
	}

	p := u.EscapedPath()
	segment := p[strings.LastIndex(p, "/")+1:]

	filename, err := url.PathUnescape(segment)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidField, FieldFileURL, err)
	}
	return filename, nil
}

// SplitExt splits filename into name and extension (without the dot).
// Leading dots do not start an extension, so ".hidden" has none.
func SplitExt(filename string) (name, ext string) {
	i := strings.LastIndex(filename, ".")
	if i <= 0 || strings.Trim(filename[:i], ".") == "" {
		return filename, ""
	}
	return filename[:i], filename[i+1:]
}
