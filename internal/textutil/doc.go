// Package textutil turns catalog artist names and track titles into file
// names that are stable across platforms: Unicode NFC, no path separators
// or shell-hostile characters, and bounded in byte length.
package textutil
