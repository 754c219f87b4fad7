package filter_test

import (
	"fmt"
	"testing"

	"trawl/internal/catalog"
	"trawl/internal/filter"
	"trawl/internal/params"
)

func ranked(years ...int) []catalog.Track {
	out := make([]catalog.Track, len(years))
	for i, y := range years {
		out[i] = catalog.Track{
			ID:             fmt.Sprintf("t%d", i+1),
			Title:          fmt.Sprintf("Track %d", i+1),
			ReleaseYear:    y,
			PopularityRank: i + 1,
		}
	}
	return out
}

func ids(tracks []catalog.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}

func TestCutoffArithmetic(t *testing.T) {
	tests := []struct {
		size int
		top  params.InTop
		want int
	}{
		{110, params.InTop{Percent: 15}, 17},
		{100, params.InTop{Percent: 5}, 5},
		{3, params.InTop{Percent: 10}, 1},
		{100, params.InTop{Percent: 100}, 100},
		{7, params.InTop{Count: 4}, 4},
	}
	for _, tc := range tests {
		if got := filter.Cutoff(tc.size, tc.top); got != tc.want {
			t.Fatalf("Cutoff(%d, %s) = %d, want %d", tc.size, tc.top, got, tc.want)
		}
	}
}

func TestApplyNoFiltersTakesPrefixInOrder(t *testing.T) {
	tracks := ranked(2001, 2002, 2003, 2004, 2005, 2006, 2007)
	res := filter.Apply(tracks, catalog.Artist{ID: "A"}, params.Parameters{TracksPerArtist: 5})
	if !res.Accepted {
		t.Fatalf("expected accepted, got %+v", res)
	}
	if got := fmt.Sprint(ids(res.Tracks)); got != "[t1 t2 t3 t4 t5]" {
		t.Fatalf("unexpected selection %s", got)
	}
}

func TestApplyStrictNeverPads(t *testing.T) {
	// Ten tracks, only t2 and t4 fall in 2020 and inside the top 5.
	tracks := ranked(2019, 2020, 2018, 2020, 2017, 2016, 2020, 2020, 2015, 2014)
	p := params.Parameters{
		TracksPerArtist: 5,
		Years:           &params.YearRange{From: 2020, To: 2020},
		InTop:           &params.InTop{Count: 5},
	}
	res := filter.Apply(tracks, catalog.Artist{ID: "A", CatalogSize: 10}, p)
	if !res.Accepted {
		t.Fatalf("expected accepted, got %+v", res)
	}
	if got := fmt.Sprint(ids(res.Tracks)); got != "[t2 t4]" {
		t.Fatalf("expected exactly two tracks, got %s", got)
	}
	if res.Matched != 4 {
		t.Fatalf("expected 4 year matches before in-top, got %d", res.Matched)
	}
}

func TestApplyInTopPercentUsesCatalogSize(t *testing.T) {
	tracks := ranked(2020, 2020, 2020, 2020)
	p := params.Parameters{
		TracksPerArtist: 10,
		Years:           &params.YearRange{From: 2020, To: 2020},
		InTop:           &params.InTop{Percent: 5},
	}
	// 5% of 40 is 2, so only the first two ranks qualify.
	res := filter.Apply(tracks, catalog.Artist{ID: "A", CatalogSize: 40}, p)
	if got := fmt.Sprint(ids(res.Tracks)); got != "[t1 t2]" {
		t.Fatalf("unexpected selection %s", got)
	}
	// Without a catalog size the track count stands in: 5% of 4 rounds up to 1.
	res = filter.Apply(tracks, catalog.Artist{ID: "A"}, p)
	if got := fmt.Sprint(ids(res.Tracks)); got != "[t1]" {
		t.Fatalf("unexpected selection %s", got)
	}
}

func TestApplyInTopIgnoredWithoutYears(t *testing.T) {
	tracks := ranked(2001, 2002, 2003)
	res := filter.Apply(tracks, catalog.Artist{ID: "A"}, params.Parameters{TracksPerArtist: 3, InTop: &params.InTop{Count: 1}})
	if len(res.Tracks) != 3 {
		t.Fatalf("in-top applies only alongside a year filter, got %v", ids(res.Tracks))
	}
}

func TestApplyCountryFilter(t *testing.T) {
	tracks := ranked(2000, 2000, 2000)
	tracks[0].CountryTags = []string{"de"}
	tracks[2].CountryTags = []string{"fr", "us"}
	p := params.Parameters{TracksPerArtist: 5, Countries: []string{"FR", "US"}}
	res := filter.Apply(tracks, catalog.Artist{ID: "A"}, p)
	if got := fmt.Sprint(ids(res.Tracks)); got != "[t3]" {
		t.Fatalf("unexpected selection %s", got)
	}
}

func TestApplyRejectionReasons(t *testing.T) {
	if res := filter.Apply(nil, catalog.Artist{ID: "A"}, params.Parameters{TracksPerArtist: 1}); res.Accepted || res.Reason != filter.ReasonNoTracks {
		t.Fatalf("empty catalog: %+v", res)
	}

	tracks := ranked(1990, 1991)
	p := params.Parameters{TracksPerArtist: 2, Years: &params.YearRange{From: 2020, To: 2024}}
	res := filter.Apply(tracks, catalog.Artist{ID: "A"}, p)
	if res.Accepted || res.Reason != "no_content_in_years_2020-2024" {
		t.Fatalf("years: %+v", res)
	}

	tracks = ranked(2000, 2000, 2021)
	p = params.Parameters{TracksPerArtist: 2, Years: &params.YearRange{From: 2021, To: 2021}, InTop: &params.InTop{Count: 2}}
	res = filter.Apply(tracks, catalog.Artist{ID: "A"}, p)
	if res.Accepted || res.Reason != filter.ReasonNoneInTop {
		t.Fatalf("in-top: %+v", res)
	}
}

func TestApplyFallsBackToPositionWithoutRanks(t *testing.T) {
	tracks := ranked(2020, 2020, 2020)
	for i := range tracks {
		tracks[i].PopularityRank = 0
	}
	p := params.Parameters{TracksPerArtist: 3, Years: &params.YearRange{From: 2020, To: 2020}, InTop: &params.InTop{Count: 2}}
	res := filter.Apply(tracks, catalog.Artist{ID: "A"}, p)
	if got := fmt.Sprint(ids(res.Tracks)); got != "[t1 t2]" {
		t.Fatalf("unexpected selection %s", got)
	}
}

func TestOrdered(t *testing.T) {
	if !filter.Ordered(ranked(1, 2, 3)) {
		t.Fatal("sequential ranks should be ordered")
	}
	tracks := ranked(1, 2, 3)
	tracks[0].PopularityRank, tracks[2].PopularityRank = 3, 1
	if filter.Ordered(tracks) {
		t.Fatal("swapped ranks should not be ordered")
	}
}
