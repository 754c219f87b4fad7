package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Artist is a catalog artist. It is immutable once fetched within a session.
type Artist struct {
	ID   string `json:"id" yaml:"id" msgpack:"id"`
	Name string `json:"name" yaml:"name" msgpack:"name"`
	// CatalogSize is the total number of tracks the provider lists for the
	// artist. Zero means unknown.
	CatalogSize int      `json:"catalog_size" yaml:"catalog_size" msgpack:"catalog_size"`
	Countries   []string `json:"countries,omitempty" yaml:"countries,omitempty" msgpack:"countries,omitempty"`
}

// Track is one entry of an artist's popularity-ordered catalog.
type Track struct {
	ID       string `json:"id" yaml:"id" msgpack:"id"`
	ArtistID string `json:"artist_id" yaml:"artist_id" msgpack:"artist_id"`
	Title    string `json:"title" yaml:"title" msgpack:"title"`
	Album    string `json:"album,omitempty" yaml:"album,omitempty" msgpack:"album,omitempty"`
	// ReleaseYear is zero when the provider does not know it.
	ReleaseYear int `json:"release_year" yaml:"release_year" msgpack:"release_year"`
	// PopularityRank is 1-based; zero when the provider omits it.
	PopularityRank int      `json:"popularity_rank" yaml:"popularity_rank" msgpack:"popularity_rank"`
	CountryTags    []string `json:"country_tags,omitempty" yaml:"country_tags,omitempty" msgpack:"country_tags,omitempty"`
}

// Quality is passed through to the catalog; trawl never decodes audio.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// ParseQuality normalizes a user supplied quality label.
func ParseQuality(value string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(value))); q {
	case QualityLow, QualityMedium, QualityHigh:
		return q, nil
	case "":
		return QualityHigh, nil
	default:
		return "", fmt.Errorf("unsupported quality %q (want low, medium, or high)", value)
	}
}

// Client is the remote catalog as seen by discovery and download.
//
// Lookup misses wrap services.ErrNotFound; network and server failures wrap
// services.ErrTransport.
type Client interface {
	Artist(ctx context.Context, id string) (Artist, error)
	// Similar returns similar artist ids, most similar first.
	Similar(ctx context.Context, id string) ([]string, error)
	// Tracks returns the artist's catalog in the provider's popularity order.
	Tracks(ctx context.Context, id string) ([]Track, error)
	// Fetch opens the audio payload for a track. Callers close the reader.
	Fetch(ctx context.Context, trackID string, quality Quality) (io.ReadCloser, error)
}
