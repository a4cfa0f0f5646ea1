package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/Sternrassler/booru-enum/pkg/decode"
	"github.com/Sternrassler/booru-enum/pkg/extractor"
	"github.com/Sternrassler/booru-enum/pkg/query"
	"gopkg.in/yaml.v3"
)

// Site describes one image-board API.
type Site struct {
	Category string        `yaml:"category"`
	APIURL   string        `yaml:"api_url"`
	Format   decode.Format `yaml:"format"`

	// ListKey unwraps JSON responses shaped like {"<key>": [...]}.
	ListKey string `yaml:"list_key,omitempty"`

	// CursorParam defaults to "page". CursorStart defaults to 1 when unset.
	CursorParam string `yaml:"cursor_param,omitempty"`
	CursorStart *int   `yaml:"cursor_start,omitempty"`
	CursorStep  int    `yaml:"cursor_step,omitempty"`

	Headers map[string]string `yaml:"headers,omitempty"`
}

// Validate checks that the site can be turned into an extractor.
func (s Site) Validate() error {
	if s.Category == "" {
		return fmt.Errorf("site category is required")
	}
	if s.APIURL == "" {
		return fmt.Errorf("site %s: api_url is required", s.Category)
	}
	if _, err := decode.ForFormat(s.Format, s.ListKey); err != nil {
		return fmt.Errorf("site %s: %w", s.Category, err)
	}
	if s.CursorStep < 0 {
		return fmt.Errorf("site %s: cursor_step must not be negative", s.Category)
	}
	return nil
}

// Info returns the extractor registry data.
func (s Site) Info() extractor.Info {
	return extractor.Info{Category: s.Category, APIURL: s.APIURL}
}

// Decoder returns the page decoder for the site's format.
func (s Site) Decoder() (decode.PageDecoder, error) {
	return decode.ForFormat(s.Format, s.ListKey)
}

// QueryOptions returns the cursor policy and headers of the site.
func (s Site) QueryOptions() []query.Option {
	var opts []query.Option

	if s.CursorParam != "" || s.CursorStart != nil || s.CursorStep != 0 {
		start := 1
		if s.CursorStart != nil {
			start = *s.CursorStart
		}
		opts = append(opts, query.WithCursor(s.CursorParam, start, s.CursorStep))
	}

	for _, key := range slices.Sorted(maps.Keys(s.Headers)) {
		opts = append(opts, query.WithHeader(key, s.Headers[key]))
	}
	return opts
}

func intPtr(n int) *int { return &n }

// BuiltinSites are the sites known without a registry file.
var BuiltinSites = []Site{
	{Category: "danbooru", APIURL: "https://danbooru.donmai.us/posts.json", Format: decode.FormatJSON},
	{Category: "e621", APIURL: "https://e621.net/posts.json", Format: decode.FormatJSON, ListKey: "posts"},
	{Category: "konachan", APIURL: "https://konachan.com/post.json", Format: decode.FormatJSON},
	{Category: "yandere", APIURL: "https://yande.re/post.json", Format: decode.FormatJSON},
	{
		Category:    "gelbooru",
		APIURL:      "https://gelbooru.com/index.php?page=dapi&s=post&q=index",
		Format:      decode.FormatXML,
		CursorParam: "pid",
		CursorStart: intPtr(0),
	},
	{
		Category:    "safebooru",
		APIURL:      "https://safebooru.org/index.php?page=dapi&s=post&q=index",
		Format:      decode.FormatXML,
		CursorParam: "pid",
		CursorStart: intPtr(0),
	},
}

// Registry maps categories to sites.
type Registry struct {
	sites map[string]Site
}

// NewRegistry builds a registry from sites. Later sites replace earlier
// ones with the same category.
func NewRegistry(sites ...Site) (*Registry, error) {
	r := &Registry{sites: make(map[string]Site, len(sites))}
	for _, s := range sites {
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry returns a registry holding BuiltinSites.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinSites...)
	if err != nil {
		panic(err)
	}
	return r
}

// registryFile is the YAML layout of a sites file.
type registryFile struct {
	Sites []Site `yaml:"sites"`
}

// LoadRegistry returns the built-in sites overlaid with the sites in path.
// An empty path returns the built-ins.
func LoadRegistry(path string) (*Registry, error) {
	r := DefaultRegistry()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sites file: %w", err)
	}

	for _, s := range file.Sites {
		if err := r.Add(s); err != nil {
			return nil, fmt.Errorf("sites file %s: %w", path, err)
		}
	}
	return r, nil
}

// Add validates and registers a site.
func (r *Registry) Add(s Site) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.sites[strings.ToLower(s.Category)] = s
	return nil
}

// Lookup returns the site for a category. Lookups ignore case.
func (r *Registry) Lookup(category string) (Site, bool) {
	s, ok := r.sites[strings.ToLower(category)]
	return s, ok
}

// Categories returns the registered categories in sorted order.
func (r *Registry) Categories() []string {
	return slices.Sorted(maps.Keys(r.sites))
}
