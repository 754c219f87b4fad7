// Package download turns an accepted artist's track selection into files.
//
// Each track becomes a Task that moves pending -> cached|downloading ->
// succeeded|failed|skipped. Tasks run on an errgroup limited to the
// configured parallelism and report their terminal state to one aggregator
// goroutine, which owns the Result and the stats collector. Payloads stream
// to "<dest>.part" and are renamed into place only after fsync, so an
// interrupted run never leaves a truncated file under a final name.
package download
