package extractor

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// MessageKind tags a Message.
type MessageKind int

const (
	// KindVersion carries the protocol version. Always first.
	KindVersion MessageKind = iota + 1

	// KindDirectory carries job-level metadata (category, tags).
	KindDirectory

	// KindHeaders carries the request headers downloads should reuse.
	KindHeaders

	// KindURL carries one downloadable item.
	KindURL
)

// ProtocolVersion is the value of the Version message.
const ProtocolVersion = 1

// String implements fmt.Stringer.
func (k MessageKind) String() string {
	switch k {
	case KindVersion:
		return "version"
	case KindDirectory:
		return "directory"
	case KindHeaders:
		return "headers"
	case KindURL:
		return "url"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k MessageKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Message is one envelope of the output stream. Only the fields that
// belong to Kind are set.
type Message struct {
	Kind     MessageKind    `json:"kind"`
	Version  int            `json:"version,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Headers  http.Header    `json:"headers,omitempty"`
	URL      string         `json:"url,omitempty"`
}

// VersionMessage returns Version(v).
func VersionMessage(v int) Message {
	return Message{Kind: KindVersion, Version: v}
}

// DirectoryMessage returns Directory(metadata).
func DirectoryMessage(metadata map[string]any) Message {
	return Message{Kind: KindDirectory, Metadata: metadata}
}

// HeadersMessage returns Headers(headers). A nil map is sent as empty.
func HeadersMessage(headers http.Header) Message {
	if headers == nil {
		headers = http.Header{}
	}
	return Message{Kind: KindHeaders, Headers: headers.Clone()}
}

// URLMessage returns Url(url, metadata) for a descriptor.
func URLMessage(d *Descriptor) Message {
	return Message{Kind: KindURL, URL: d.URL, Metadata: d.Metadata()}
}

// MarshalJSON always writes the headers of a Headers message, even when empty.
func (m Message) MarshalJSON() ([]byte, error) {
	type plain Message
	if m.Kind == KindHeaders {
		headers := m.Headers
		if headers == nil {
			headers = http.Header{}
		}
		return json.Marshal(struct {
			Kind    MessageKind `json:"kind"`
			Headers http.Header `json:"headers"`
		}{m.Kind, headers})
	}
	return json.Marshal(plain(m))
}
