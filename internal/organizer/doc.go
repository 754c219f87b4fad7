// Package organizer owns the on-disk layout of downloaded tracks.
//
// Downloads land in a per-artist tree (TrackPath, Destinations). After a
// run, Finalize can flatten the files produced by that run into the output
// root with numeric shuffle prefixes and write a zip of the whole tree. The
// finalize steps run under an advisory flock on <output>/.trawl.lock so two
// processes never rearrange the same directory at once.
package organizer
