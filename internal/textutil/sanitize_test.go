package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Boards of Canada", "Boards of Canada"},
		{"separators", "AC/DC: Live", "AC-DC- Live"},
		{"removed", `What? "Now" <x>|`, "What Now x"},
		{"control", "Tab\tNew\nLine\x00", "Tab New Line"},
		{"hidden", "..hidden", "hidden"},
		{"trailing dot", "Name.", "Name"},
		{"empty", "   ", ""},
		{"nfc", "Beyonce\u0301", "Beyonc\u00e9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.in); got != tt.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileNameTruncates(t *testing.T) {
	long := strings.Repeat("\u00e9", 150)
	got := SanitizeFileName(long)
	if len(got) > MaxNameBytes {
		t.Fatalf("expected at most %d bytes, got %d", MaxNameBytes, len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}
	if len(got) != MaxNameBytes {
		t.Fatalf("expected exactly %d bytes for two-byte runes, got %d", MaxNameBytes, len(got))
	}
}

func TestTruncateBytes(t *testing.T) {
	if got := TruncateBytes("abc€", 4); got != "abc" {
		t.Fatalf("expected rune boundary cut, got %q", got)
	}
	if got := TruncateBytes("short", 10); got != "short" {
		t.Fatalf("expected unchanged string, got %q", got)
	}
}

func TestFileNameOr(t *testing.T) {
	if got := FileNameOr("???", "track-42"); got != "track-42" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := FileNameOr("Song", "track-42"); got != "Song" {
		t.Fatalf("expected sanitized name, got %q", got)
	}
}
