package db

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Artwork is the canonical record every catalog adapter produces.
type Artwork struct {
	ID        string `json:"id" mapstructure:"id"`
	Title     string `json:"title" mapstructure:"title"`
	Artist    string `json:"artist,omitempty" mapstructure:"artist"` // empty = absent
	ImageURL  string `json:"imageUrl" mapstructure:"imageUrl"`
	Source    string `json:"source" mapstructure:"source"`
	SourceURL string `json:"sourceUrl" mapstructure:"sourceUrl"`
}

// Key returns the composite (source, id) key used for persistence and caches.
func (a Artwork) Key() string {
	return ArtworkKey(a.Source, a.ID)
}

type SavedItem struct {
	Artwork `mapstructure:",squash"`
	Key     string    `json:"key" mapstructure:"key"`
	SavedAt time.Time `json:"savedAt" mapstructure:"savedAt"`
}

type Folder struct {
	ID        string    `json:"id" mapstructure:"id"`
	Name      string    `json:"name" mapstructure:"name"`
	Slug      string    `json:"slug" mapstructure:"slug"`
	Images    []string  `json:"images" mapstructure:"images"` // artwork keys, set semantics
	CreatedAt time.Time `json:"createdAt" mapstructure:"createdAt"`
}

// Contains reports whether key is a member of the folder.
func (f Folder) Contains(key string) bool {
	for _, k := range f.Images {
		if k == key {
			return true
		}
	}
	return false
}

var ErrMalformedKey = errors.New("malformed artwork key")

// ArtworkKey encodes source and native id into a single path-safe key.
// Both halves are query-escaped so neither can contain ':' or '/'.
func ArtworkKey(source, id string) string {
	return url.QueryEscape(source) + ":" + url.QueryEscape(id)
}

// ParseKey reverses ArtworkKey.
func ParseKey(key string) (source, id string, err error) {
	s, i, ok := strings.Cut(key, ":")
	if !ok || s == "" || i == "" {
		return "", "", ErrMalformedKey
	}
	if source, err = url.QueryUnescape(s); err != nil {
		return "", "", ErrMalformedKey
	}
	if id, err = url.QueryUnescape(i); err != nil {
		return "", "", ErrMalformedKey
	}
	return source, id, nil
}
