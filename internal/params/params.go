package params

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"trawl/internal/services"
)

// DefaultMaxSimilarAttempts bounds how many reserve candidates one parent may
// try while substituting rejected children.
const DefaultMaxSimilarAttempts = 20

// YearRange is an inclusive release-year range. A single year has From == To.
type YearRange struct {
	From int `json:"from" msgpack:"from"`
	To   int `json:"to" msgpack:"to"`
}

// Contains reports whether year falls inside the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.From && year <= r.To
}

func (r YearRange) String() string {
	if r.From == r.To {
		return strconv.Itoa(r.From)
	}
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

// InTop restricts selection to a prefix of an artist's popularity-ranked
// catalog. Exactly one of Count or Percent is set.
type InTop struct {
	Count   int     `json:"count,omitempty" msgpack:"count,omitempty"`
	Percent float64 `json:"percent,omitempty" msgpack:"percent,omitempty"`
}

// IsPercent reports whether the prefix is percentage based.
func (t InTop) IsPercent() bool { return t.Percent > 0 }

func (t InTop) String() string {
	if t.IsPercent() {
		return strconv.FormatFloat(t.Percent, 'f', -1, 64) + "%"
	}
	return strconv.Itoa(t.Count)
}

// Parameters is the value object describing one discovery session.
type Parameters struct {
	Seeds              []string   `json:"seeds" msgpack:"seeds"`
	TracksPerArtist    int        `json:"tracks_per_artist" msgpack:"tracks_per_artist"`
	SimilarCount       int        `json:"similar_count" msgpack:"similar_count"`
	MaxDepth           int        `json:"max_depth" msgpack:"max_depth"`
	Years              *YearRange `json:"years,omitempty" msgpack:"years,omitempty"`
	Countries          []string   `json:"countries,omitempty" msgpack:"countries,omitempty"`
	Exclude            []string   `json:"exclude,omitempty" msgpack:"exclude,omitempty"`
	InTop              *InTop     `json:"in_top,omitempty" msgpack:"in_top,omitempty"`
	MaxArtists         int        `json:"max_artists,omitempty" msgpack:"max_artists,omitempty"`
	MaxSimilarAttempts int        `json:"max_similar_attempts" msgpack:"max_similar_attempts"`
}

// Normalize deduplicates seeds preserving order, uppercases and sorts
// countries, and sorts the exclusion set.
func (p *Parameters) Normalize() {
	p.Seeds = uniqueOrdered(p.Seeds, nil)
	p.Countries = uniqueSorted(p.Countries, strings.ToUpper)
	p.Exclude = uniqueSorted(p.Exclude, nil)
	if p.MaxSimilarAttempts == 0 {
		p.MaxSimilarAttempts = DefaultMaxSimilarAttempts
	}
}

// Validate checks the parameters. Failures wrap services.ErrValidation.
func (p Parameters) Validate() error {
	var problems []string
	if len(p.Seeds) == 0 {
		problems = append(problems, "at least one seed artist is required")
	}
	if p.TracksPerArtist < 1 {
		problems = append(problems, "tracks per artist must be >= 1")
	}
	if p.SimilarCount < 0 {
		problems = append(problems, "similar count must be >= 0")
	}
	if p.MaxDepth < 0 {
		problems = append(problems, "depth must be >= 0")
	}
	if p.MaxDepth > 0 && p.SimilarCount == 0 {
		problems = append(problems, "depth > 0 requires similar count > 0")
	}
	if p.Years != nil && p.Years.From > p.Years.To {
		problems = append(problems, fmt.Sprintf("year range %d-%d is reversed", p.Years.From, p.Years.To))
	}
	if p.InTop != nil {
		if p.Years == nil {
			problems = append(problems, "in-top filter requires a year filter")
		}
		if p.InTop.IsPercent() && p.InTop.Percent > 100 {
			problems = append(problems, "in-top percentage must be in (0, 100]")
		}
		if !p.InTop.IsPercent() && p.InTop.Count < 1 {
			problems = append(problems, "in-top count must be >= 1")
		}
	}
	if p.MaxArtists < 0 {
		problems = append(problems, "max artists must be >= 0")
	}
	if p.MaxSimilarAttempts < 0 {
		problems = append(problems, "max similar attempts must be >= 0")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(problems, "; "))
}

// IsExcluded reports whether id is in the exclusion set.
func (p Parameters) IsExcluded(id string) bool {
	_, found := slices.BinarySearch(p.Exclude, id)
	return found
}

// ParseYears accepts "2021" or "2019-2024".
func ParseYears(value string) (*YearRange, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	from, to, isRange := strings.Cut(value, "-")
	start, err := parseYear(from)
	if err != nil {
		return nil, err
	}
	end := start
	if isRange {
		if end, err = parseYear(to); err != nil {
			return nil, err
		}
	}
	if start > end {
		return nil, fmt.Errorf("%w: year range %q is reversed", services.ErrValidation, value)
	}
	return &YearRange{From: start, To: end}, nil
}

func parseYear(value string) (int, error) {
	year, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || year < 1000 || year > 9999 {
		return 0, fmt.Errorf("%w: invalid year %q", services.ErrValidation, value)
	}
	return year, nil
}

// ParseInTop accepts a count ("50") or a percentage ("15%").
func ParseInTop(value string) (*InTop, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if pct, ok := strings.CutSuffix(value, "%"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil || math.IsNaN(f) || f <= 0 || f > 100 {
			return nil, fmt.Errorf("%w: invalid in-top percentage %q", services.ErrValidation, value)
		}
		return &InTop{Percent: f}, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return nil, fmt.Errorf("%w: invalid in-top count %q", services.ErrValidation, value)
	}
	return &InTop{Count: n}, nil
}

// SplitList flattens repeated and comma separated flag values, trimming
// blanks and dropping duplicates while preserving first-seen order.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		for part := range strings.SplitSeq(v, ",") {
			out = append(out, part)
		}
	}
	return uniqueOrdered(out, nil)
}

func uniqueOrdered(values []string, transform func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if transform != nil {
			v = transform(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func uniqueSorted(values []string, transform func(string) string) []string {
	out := uniqueOrdered(values, transform)
	slices.Sort(out)
	return out
}
