// Package server implements `trawl serve`: a small HTTP server that lets a
// browser walk the output directory and lists session checkpoints as JSON.
//
// Routes:
//
//	GET /healthz                 liveness check
//	GET /files/...               directory listings and downloads
//	GET /api/sessions            every stored session
//	GET /api/sessions/{session}  one session
//
// Dot files and partial downloads are never served.
package server
