// Package catalog serves the embedded photo and brochure database used by the
// send_media and send_brochure actions.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed photos.json
var photosFS embed.FS

// Photo is one catalog entry.
type Photo struct {
	URL     string   `json:"url"`
	Caption string   `json:"caption"`
	Tags    []string `json:"tags,omitempty"`
}

type database struct {
	Photos    map[string]map[string]Photo `json:"photos"`
	Brochures map[string]Photo            `json:"brochures"`
	Captions  map[string]string           `json:"default_captions"`
}

// Catalog answers photo lookups by category and optional subfilters.
type Catalog struct {
	db database
}

// Load parses the embedded photo database.
func Load() (*Catalog, error) {
	raw, err := photosFS.ReadFile("photos.json")
	if err != nil {
		return nil, fmt.Errorf("read photo database: %w", err)
	}
	var db database
	if err := json.Unmarshal(raw, &db); err != nil {
		return nil, fmt.Errorf("parse photo database: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Lookup finds a photo by category and subfilters. An exact subcategory match
// wins; otherwise any photo in the category whose tags overlap the subfilters
// is an acceptable alternative; otherwise the first photo in the category.
// ok is false only when the whole category is unknown.
func (c *Catalog) Lookup(category string, subfilters ...string) (Photo, bool) {
	entries, ok := c.db.Photos[strings.ToLower(strings.TrimSpace(category))]
	if !ok || len(entries) == 0 {
		return Photo{}, false
	}

	for _, f := range subfilters {
		if p, ok := entries[strings.ToLower(strings.TrimSpace(f))]; ok {
			return c.withDefaultCaption(category, p), true
		}
	}

	if len(subfilters) > 0 {
		for _, p := range entries {
			if tagsOverlap(p.Tags, subfilters) {
				return c.withDefaultCaption(category, p), true
			}
		}
	}

	for _, p := range entries {
		return c.withDefaultCaption(category, p), true
	}
	return Photo{}, false
}

// Brochure returns the brochure for a property key, falling back to the
// general brochure when the key has none.
func (c *Catalog) Brochure(propertyKey string) (Photo, bool) {
	if p, ok := c.db.Brochures[strings.ToLower(propertyKey)]; ok {
		return p, true
	}
	p, ok := c.db.Brochures["general"]
	return p, ok
}

func (c *Catalog) withDefaultCaption(category string, p Photo) Photo {
	if p.Caption == "" {
		p.Caption = c.db.Captions[strings.ToLower(category)]
	}
	return p
}

func tagsOverlap(tags, filters []string) bool {
	for _, tag := range tags {
		for _, f := range filters {
			if strings.EqualFold(tag, strings.TrimSpace(f)) {
				return true
			}
		}
	}
	return false
}
