package tagging

import (
	"os"
	"path/filepath"
	"testing"

	"trawl/internal/catalog"
)

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	audio := []byte("not-really-audio-but-opaque-bytes")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		t.Fatal(err)
	}

	artist := catalog.Artist{ID: "a1", Name: "Sigur Rós"}
	track := catalog.Track{ID: "t9", Title: "Hoppípolla", Album: "Takk", ReleaseYear: 2005}
	if err := New().Write(path, artist, track); err != nil {
		t.Fatalf("Write: %v", err)
	}

	gotArtist, gotTitle, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if gotArtist != "Sigur Rós" || gotTitle != "Hoppípolla" {
		t.Fatalf("unexpected frames artist=%q title=%q", gotArtist, gotTitle)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) <= len(audio) {
		t.Fatalf("expected tag to be prepended, size %d", len(data))
	}
	if string(data[len(data)-len(audio):]) != string(audio) {
		t.Fatal("audio payload must be preserved after the tag")
	}
}

func TestWriteMissingFile(t *testing.T) {
	err := New().Write(filepath.Join(t.TempDir(), "missing.mp3"), catalog.Artist{}, catalog.Track{})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSupports(t *testing.T) {
	for ext, want := range map[string]bool{"mp3": true, ".MP3": true, "flac": false, "": false} {
		if got := Supports(ext); got != want {
			t.Errorf("Supports(%q) = %v, want %v", ext, got, want)
		}
	}
}
