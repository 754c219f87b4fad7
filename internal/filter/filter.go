package filter

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"trawl/internal/catalog"
	"trawl/internal/params"
)

// Rejection reasons reported for artists with an empty selection.
const (
	ReasonNoTracks     = "no_tracks"
	ReasonNoneInTop    = "none_in_top"
	ReasonNoCountry    = "no_content_in_countries"
	ReasonNotFound     = "not_found"
	reasonYearsPattern = "no_content_in_years_%s"
)

// Result is the filter verdict for one artist.
type Result struct {
	Tracks   []catalog.Track
	Accepted bool
	// Reason explains a rejection; empty when accepted.
	Reason string
	// Matched counts tracks passing the year and country predicates before the
	// in-top restriction and selection cap.
	Matched int
}

// Apply filters tracks, which must be in provider popularity order, and
// returns at most p.TracksPerArtist of them. It never pads the selection with
// non-matching tracks and never reorders.
func Apply(tracks []catalog.Track, artist catalog.Artist, p params.Parameters) Result {
	if len(tracks) == 0 {
		return Result{Reason: ReasonNoTracks}
	}

	inTop := func(int, catalog.Track) bool { return true }
	if p.InTop != nil && p.Years != nil {
		size := artist.CatalogSize
		if size <= 0 {
			size = len(tracks)
		}
		cutoff := Cutoff(size, *p.InTop)
		inTop = func(pos int, t catalog.Track) bool {
			rank := t.PopularityRank
			if rank <= 0 {
				rank = pos + 1
			}
			return rank <= cutoff
		}
	}

	var (
		selected = make([]catalog.Track, 0, min(len(tracks), p.TracksPerArtist))
		matched  int
	)
	for pos, t := range tracks {
		if p.Years != nil && !p.Years.Contains(t.ReleaseYear) {
			continue
		}
		if len(p.Countries) > 0 && !intersects(t.CountryTags, p.Countries) {
			continue
		}
		matched++
		if !inTop(pos, t) {
			continue
		}
		if len(selected) < p.TracksPerArtist {
			selected = append(selected, t)
		}
	}

	if len(selected) > 0 {
		return Result{Tracks: selected, Accepted: true, Matched: matched}
	}
	return Result{Reason: rejectionReason(matched, p), Matched: matched}
}

func rejectionReason(matched int, p params.Parameters) string {
	switch {
	case matched > 0:
		return ReasonNoneInTop
	case p.Years != nil:
		return fmt.Sprintf(reasonYearsPattern, p.Years)
	case len(p.Countries) > 0:
		return ReasonNoCountry
	default:
		return ReasonNoTracks
	}
}

// Cutoff returns the size of the in-top prefix for a catalog of size tracks.
// Percentages round up: 15% of 110 is 17.
func Cutoff(size int, top params.InTop) int {
	if !top.IsPercent() {
		return top.Count
	}
	// The epsilon keeps exact products such as 5% of 100 from rounding up
	// through float error.
	return int(math.Ceil(float64(size)*top.Percent/100 - 1e-9))
}

// Ordered reports whether tracks carry non-decreasing popularity ranks.
// Tracks without a rank are ignored.
func Ordered(tracks []catalog.Track) bool {
	last := 0
	for _, t := range tracks {
		if t.PopularityRank <= 0 {
			continue
		}
		if t.PopularityRank < last {
			return false
		}
		last = t.PopularityRank
	}
	return true
}

func intersects(tags, wanted []string) bool {
	for _, tag := range tags {
		if _, ok := slices.BinarySearch(wanted, strings.ToUpper(tag)); ok {
			return true
		}
	}
	return false
}
