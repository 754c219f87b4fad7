// Package tagging writes ID3v2 metadata into downloaded MP3 files.
//
// Tagging is optional (download.write_tags) and best effort: the download
// orchestrator logs a tagging failure and keeps the file.
package tagging
