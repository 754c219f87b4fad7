package organizer

import (
	"path/filepath"
	"strings"

	"trawl/internal/catalog"
	"trawl/internal/textutil"
)

// DefaultExtension is used when the configured extension is empty.
const DefaultExtension = "mp3"

// TrackPath returns the default layout destination for a track:
// outdir/<artist>/<Artist - Title>.<ext>.
func TrackPath(outdir string, artist catalog.Artist, track catalog.Track, ext string) string {
	return filepath.Join(outdir, ArtistDir(artist), FileName(artist, track, ext, false))
}

// ArtistDir is the per-artist folder name, falling back to the artist id.
func ArtistDir(artist catalog.Artist) string {
	return textutil.FileNameOr(artist.Name, "artist-"+artist.ID)
}

// FileName builds "<Artist> - <Title>.<ext>". With disambiguate set the
// track id is appended to the stem so tracks sharing a title land in
// distinct files. The stem is truncated so the whole name stays within
// textutil.MaxNameBytes.
func FileName(artist catalog.Artist, track catalog.Track, ext string, disambiguate bool) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = DefaultExtension
	}
	title := strings.TrimSpace(track.Title)
	if title == "" {
		title = "track-" + track.ID
	}
	stem := title
	if name := strings.TrimSpace(artist.Name); name != "" {
		stem = name + " - " + title
	}
	suffix := ""
	if disambiguate {
		suffix = " [" + textutil.FileNameOr(track.ID, "id") + "]"
	}
	budget := textutil.MaxNameBytes - len(suffix) - len(ext) - 1
	stem = textutil.TruncateBytes(textutil.FileNameOr(stem, "track-"+track.ID), budget)
	return strings.TrimSpace(stem) + suffix + "." + ext
}

// Destinations maps each track id to its destination under outdir. Titles
// that collide after sanitization (case-insensitively) are disambiguated
// by track id for every track involved, so the result does not depend on
// which duplicate arrives first.
func Destinations(outdir string, artist catalog.Artist, tracks []catalog.Track, ext string) map[string]string {
	counts := make(map[string]int, len(tracks))
	for _, tr := range tracks {
		counts[collisionKey(artist, tr, ext)]++
	}
	dir := filepath.Join(outdir, ArtistDir(artist))
	out := make(map[string]string, len(tracks))
	for _, tr := range tracks {
		dup := counts[collisionKey(artist, tr, ext)] > 1
		out[tr.ID] = filepath.Join(dir, FileName(artist, tr, ext, dup))
	}
	return out
}

func collisionKey(artist catalog.Artist, track catalog.Track, ext string) string {
	return strings.ToLower(FileName(artist, track, ext, false))
}
