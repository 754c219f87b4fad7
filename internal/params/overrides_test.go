package params_test

import (
	"slices"
	"testing"

	"trawl/internal/params"
)

func TestOverridesApply(t *testing.T) {
	stored := baseParams()
	tracks := 1

	tests := []struct {
		name     string
		o        params.Overrides
		mismatch []string
	}{
		{name: "none", o: params.Overrides{}},
		{name: "same value", o: params.Overrides{Countries: []string{"gb", "us"}}},
		{name: "tracks", o: params.Overrides{TracksPerArtist: &tracks}, mismatch: []string{params.CategorySelection}},
		{name: "years", o: params.Overrides{Years: &params.YearRange{From: 1999, To: 1999}}, mismatch: []string{params.CategoryFilters}},
		{name: "exclude", o: params.Overrides{Exclude: []string{"q"}}, mismatch: []string{params.CategoryTraversal}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.o.Apply(stored).MismatchedCategories(stored.CategoryFingerprints())
			if !slices.Equal(got, tc.mismatch) {
				t.Fatalf("expected mismatches %v, got %v", tc.mismatch, got)
			}
		})
	}
}

func TestOverridesApplyLeavesBaseUntouched(t *testing.T) {
	stored := baseParams()
	before := stored.Fingerprint()
	depth := 0
	params.Overrides{MaxDepth: &depth, Countries: []string{"FR"}, InTop: &params.InTop{Count: 3}}.Apply(stored)
	if stored.Fingerprint() != before || stored.InTop != nil || stored.MaxDepth != 2 {
		t.Fatalf("base parameters were modified: %+v", stored)
	}
	if !(params.Overrides{}).IsZero() || (params.Overrides{MaxDepth: &depth}).IsZero() {
		t.Fatal("IsZero reports the wrong state")
	}
}
