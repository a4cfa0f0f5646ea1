// Package decode turns one page of an image-board API response into raw records.
//
// Two wire formats are supported:
//   - List: a JSON array of objects, one record per object.
//   - Tree: an XML document whose root element has one child element per record;
//     the child's attributes are the record.
package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/antchfx/xmlquery"
)

// ErrMalformed is returned when a page body is not valid for the expected format.
var ErrMalformed = errors.New("malformed page body")

// Record is one raw item as returned by the API.
// JSON numbers are kept as json.Number, XML attribute values are strings.
type Record map[string]any

// PageDecoder decodes a response body into records in document order.
// An empty result means the API is exhausted.
type PageDecoder interface {
	Decode(body []byte) ([]Record, error)
}

// Format names a wire format.
type Format string

const (
	// FormatJSON selects the List decoder.
	FormatJSON Format = "json"

	// FormatXML selects the Tree decoder.
	FormatXML Format = "xml"
)

// ForFormat returns the decoder for a format. listKey is only used by FormatJSON.
func ForFormat(format Format, listKey string) (PageDecoder, error) {
	switch format {
	case FormatJSON, "":
		return List{Key: listKey}, nil
	case FormatXML:
		return Tree{}, nil
	default:
		return nil, fmt.Errorf("unknown page format %q", format)
	}
}

// List decodes JSON record lists.
type List struct {
	// Key unwraps responses shaped like {"posts": [...]}. Empty means the
	// body itself is the array.
	Key string
}

// Decode implements PageDecoder.
// Elements that are not JSON objects become nil records so the page
// length still matches the array length.
func (l List) Decode(body []byte) ([]Record, error) {
	raw := json.RawMessage(body)

	if l.Key != "" {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		inner, ok := wrapper[l.Key]
		if !ok {
			return nil, fmt.Errorf("%w: key %q not found", ErrMalformed, l.Key)
		}
		raw = inner
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	records := make([]Record, 0, len(items))
	for _, item := range items {
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()

		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			records = append(records, nil)
			continue
		}
		records = append(records, Record(rec))
	}

	return records, nil
}

// Tree decodes XML attribute trees.
type Tree struct{}

// Decode implements PageDecoder.
func (Tree) Decode(body []byte) ([]Record, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	root := firstElement(doc)
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}

	var records []Record
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		rec := make(Record, len(child.Attr))
		for _, attr := range child.Attr {
			name := attr.Name.Local
			if attr.Name.Space != "" {
				name = attr.Name.Space + ":" + name
			}
			rec[name] = attr.Value
		}
		records = append(records, rec)
	}

	return records, nil
}

func firstElement(n *xmlquery.Node) *xmlquery.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}
