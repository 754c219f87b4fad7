package params

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Parameter categories compared on resume. Fields outside these categories
// (max artists, quality, parallelism, output layout) may change between
// batches of one session.
const (
	CategorySeeds     = "seeds"
	CategorySelection = "selection"
	CategoryTraversal = "traversal"
	CategoryFilters   = "filters"
)

// Categories lists parameter categories in reporting order.
var Categories = []string{CategorySeeds, CategorySelection, CategoryTraversal, CategoryFilters}

type seedsView struct {
	Seeds []string `json:"seeds"`
}

type selectionView struct {
	TracksPerArtist int `json:"tracks_per_artist"`
}

type traversalView struct {
	SimilarCount       int      `json:"similar_count"`
	MaxDepth           int      `json:"max_depth"`
	MaxSimilarAttempts int      `json:"max_similar_attempts"`
	Exclude            []string `json:"exclude"`
}

type filtersView struct {
	Years     *YearRange `json:"years"`
	Countries []string   `json:"countries"`
	InTop     *InTop     `json:"in_top"`
}

// CategoryFingerprints hashes each parameter category independently so a
// mismatch can be reported by name. Parameters must be normalized.
func (p Parameters) CategoryFingerprints() map[string]string {
	return map[string]string{
		CategorySeeds:     digest(seedsView{Seeds: nonNil(p.Seeds)}),
		CategorySelection: digest(selectionView{TracksPerArtist: p.TracksPerArtist}),
		CategoryTraversal: digest(traversalView{
			SimilarCount:       p.SimilarCount,
			MaxDepth:           p.MaxDepth,
			MaxSimilarAttempts: p.MaxSimilarAttempts,
			Exclude:            nonNil(p.Exclude),
		}),
		CategoryFilters: digest(filtersView{Years: p.Years, Countries: nonNil(p.Countries), InTop: p.InTop}),
	}
}

// Fingerprint is a single digest over every category.
func (p Parameters) Fingerprint() string {
	cats := p.CategoryFingerprints()
	ordered := make([]string, 0, len(Categories))
	for _, name := range Categories {
		ordered = append(ordered, name+"="+cats[name])
	}
	return digest(ordered)
}

// MismatchedCategories compares stored category fingerprints with p and
// returns the names that differ, in reporting order.
func (p Parameters) MismatchedCategories(stored map[string]string) []string {
	current := p.CategoryFingerprints()
	var out []string
	for _, name := range Categories {
		if stored[name] != current[name] {
			out = append(out, name)
		}
	}
	return out
}

func digest(v any) string {
	// Marshal of these plain views cannot fail.
	data, _ := json.Marshal(v)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16])
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
