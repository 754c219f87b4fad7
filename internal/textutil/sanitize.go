package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxNameBytes caps a single path component, leaving room under the common
// 255-byte filesystem limit for prefixes and ".part" suffixes.
const MaxNameBytes = 200

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName returns name as a single safe path component: NFC
// normalized, unsafe characters replaced, control characters dropped,
// whitespace collapsed, and truncated to MaxNameBytes on a rune boundary.
// Leading dots are stripped so names never become hidden files. Returns
// an empty string when nothing survives.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(name)
	name = fileNameReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	name = strings.TrimLeft(name, ".")
	name = TruncateBytes(name, MaxNameBytes)
	return strings.TrimRight(strings.TrimSpace(name), ".")
}

// FileNameOr sanitizes name and substitutes fallback when the result is empty.
func FileNameOr(name, fallback string) string {
	if out := SanitizeFileName(name); out != "" {
		return out
	}
	return SanitizeFileName(fallback)
}

// TruncateBytes shortens s to at most n bytes without splitting a rune.
func TruncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
