package params

import "slices"

// Overrides holds discovery values given explicitly when a session is
// resumed without seeds. Nil fields were not given.
type Overrides struct {
	TracksPerArtist *int
	SimilarCount    *int
	MaxDepth        *int
	Years           *YearRange
	Countries       []string
	Exclude         []string
	InTop           *InTop
}

// IsZero reports whether no override was given.
func (o Overrides) IsZero() bool {
	return o.TracksPerArtist == nil && o.SimilarCount == nil && o.MaxDepth == nil &&
		o.Years == nil && o.Countries == nil && o.Exclude == nil && o.InTop == nil
}

// Apply returns a normalized copy of base with the overrides laid on top.
// base is not modified.
func (o Overrides) Apply(base Parameters) Parameters {
	p := base
	p.Seeds = slices.Clone(base.Seeds)
	p.Countries = slices.Clone(base.Countries)
	p.Exclude = slices.Clone(base.Exclude)
	if o.TracksPerArtist != nil {
		p.TracksPerArtist = *o.TracksPerArtist
	}
	if o.SimilarCount != nil {
		p.SimilarCount = *o.SimilarCount
	}
	if o.MaxDepth != nil {
		p.MaxDepth = *o.MaxDepth
	}
	if o.Years != nil {
		y := *o.Years
		p.Years = &y
	}
	if o.Countries != nil {
		p.Countries = slices.Clone(o.Countries)
	}
	if o.Exclude != nil {
		p.Exclude = slices.Clone(o.Exclude)
	}
	if o.InTop != nil {
		t := *o.InTop
		p.InTop = &t
	}
	p.Normalize()
	return p
}
