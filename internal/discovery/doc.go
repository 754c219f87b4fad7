// Package discovery implements the seeded breadth-first walk over the
// catalog's similarity graph.
//
// The frontier, visited set, and per-parent reserves live in the session
// checkpoint, ordered by (seed, depth, discovery order): each seed's tree is
// exhausted before the next seed starts, and an artist reachable from two
// seeds is processed once, under whichever reaches it first. A rejected
// non-seed artist is replaced from its parent's reserve of unused similar
// artists (skip-and-advance) so filters do not shrink the breadth of the
// walk, bounded by max_similar_attempts per parent.
package discovery
