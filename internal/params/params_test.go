package params_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"trawl/internal/params"
	"trawl/internal/services"
)

func baseParams() params.Parameters {
	p := params.Parameters{
		Seeds:           []string{"b", "a", "b", " "},
		TracksPerArtist: 5,
		SimilarCount:    3,
		MaxDepth:        2,
		Countries:       []string{"us", "GB", "US"},
		Exclude:         []string{"z", "x"},
	}
	p.Normalize()
	return p
}

func TestNormalize(t *testing.T) {
	p := baseParams()
	if !slices.Equal(p.Seeds, []string{"b", "a"}) {
		t.Fatalf("seeds should be deduplicated in order, got %v", p.Seeds)
	}
	if !slices.Equal(p.Countries, []string{"GB", "US"}) {
		t.Fatalf("countries should be uppercased and sorted, got %v", p.Countries)
	}
	if !slices.Equal(p.Exclude, []string{"x", "z"}) {
		t.Fatalf("exclude should be sorted, got %v", p.Exclude)
	}
	if p.MaxSimilarAttempts != params.DefaultMaxSimilarAttempts {
		t.Fatalf("expected default max similar attempts, got %d", p.MaxSimilarAttempts)
	}
	if !p.IsExcluded("z") || p.IsExcluded("a") {
		t.Fatal("unexpected exclusion lookup")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*params.Parameters)
		want   string
	}{
		{"no seeds", func(p *params.Parameters) { p.Seeds = nil }, "seed"},
		{"tracks", func(p *params.Parameters) { p.TracksPerArtist = 0 }, "tracks per artist"},
		{"depth without similar", func(p *params.Parameters) { p.SimilarCount = 0 }, "requires similar"},
		{"in-top without years", func(p *params.Parameters) { p.InTop = &params.InTop{Count: 5} }, "requires a year filter"},
		{"negative max artists", func(p *params.Parameters) { p.MaxArtists = -1 }, "max artists"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := baseParams()
			tc.mutate(&p)
			err := p.Validate()
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}

	p := baseParams()
	p.Years = &params.YearRange{From: 2020, To: 2024}
	p.InTop = &params.InTop{Percent: 15}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid params, got %v", err)
	}
}

func TestParseYears(t *testing.T) {
	r, err := params.ParseYears("2021")
	if err != nil || r.From != 2021 || r.To != 2021 {
		t.Fatalf("single year: %+v %v", r, err)
	}
	r, err = params.ParseYears(" 2019 - 2024 ")
	if err != nil || r.From != 2019 || r.To != 2024 {
		t.Fatalf("range: %+v %v", r, err)
	}
	if !r.Contains(2019) || !r.Contains(2024) || r.Contains(2025) {
		t.Fatal("range should be inclusive")
	}
	if r, err := params.ParseYears(""); r != nil || err != nil {
		t.Fatalf("empty input should mean no filter, got %+v %v", r, err)
	}
	for _, bad := range []string{"2024-2019", "abc", "20", "2020-"} {
		if _, err := params.ParseYears(bad); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", bad, err)
		}
	}
}

func TestParseInTop(t *testing.T) {
	top, err := params.ParseInTop("15%")
	if err != nil || !top.IsPercent() || top.Percent != 15 {
		t.Fatalf("percent: %+v %v", top, err)
	}
	if top.String() != "15%" {
		t.Fatalf("unexpected string %q", top.String())
	}
	top, err = params.ParseInTop("50")
	if err != nil || top.IsPercent() || top.Count != 50 {
		t.Fatalf("count: %+v %v", top, err)
	}
	for _, bad := range []string{"0", "-3", "0%", "150%", "x%"} {
		if _, err := params.ParseInTop(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := params.SplitList([]string{"a, b", "c", "a", ""})
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected list %v", got)
	}
}

func TestFingerprintIgnoresBatchSettings(t *testing.T) {
	p := baseParams()
	q := p
	q.MaxArtists = 10
	if p.Fingerprint() != q.Fingerprint() {
		t.Fatal("max artists must not affect the fingerprint")
	}
	if mismatched := q.MismatchedCategories(p.CategoryFingerprints()); len(mismatched) != 0 {
		t.Fatalf("expected no mismatches, got %v", mismatched)
	}
}

func TestMismatchedCategoriesNamesChanges(t *testing.T) {
	p := baseParams()
	stored := p.CategoryFingerprints()

	q := baseParams()
	q.TracksPerArtist = 7
	q.Years = &params.YearRange{From: 2000, To: 2001}
	got := q.MismatchedCategories(stored)
	if !slices.Equal(got, []string{params.CategorySelection, params.CategoryFilters}) {
		t.Fatalf("unexpected mismatches %v", got)
	}
	if p.Fingerprint() == q.Fingerprint() {
		t.Fatal("fingerprints should differ")
	}

	r := baseParams()
	r.Seeds = []string{"a", "b"}
	if got := r.MismatchedCategories(stored); !slices.Equal(got, []string{params.CategorySeeds}) {
		t.Fatalf("seed order change should be reported, got %v", got)
	}
}

func TestLoadSeedFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"seeds.txt", "# favourites\na1\n\n a2 # trailing\na1\n", []string{"a1", "a2"}},
		{"list.yaml", "- a1\n- a3\n", []string{"a1", "a3"}},
		{"doc.yml", "seeds:\n  - b1\n  - b2\n", []string{"b1", "b2"}},
	}
	for _, tc := range tests {
		path := filepath.Join(dir, tc.name)
		if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
			t.Fatalf("write %s: %v", tc.name, err)
		}
		got, err := params.LoadSeedFile(path)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if !slices.Equal(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("# nothing\n"), 0o644); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	if _, err := params.LoadSeedFile(empty); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for empty file, got %v", err)
	}
	if _, err := params.LoadSeedFile(filepath.Join(dir, "missing.txt")); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing file, got %v", err)
	}
}
