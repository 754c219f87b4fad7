// Package workflow hosts the batch controller that ties discovery, download,
// checkpointing, and output organization into one session run.
//
// Runner.Run processes artists strictly one after another. After each artist
// (and all of its download tasks) reaches a terminal state the checkpoint is
// saved, so the last saved checkpoint is always a clean resume point. A run
// stops when the frontier is exhausted, when max_artists artists were
// processed in this invocation, or when its context is cancelled. Only the
// first two save further state and run the organizer.
package workflow
