package download

import (
	"errors"
	"fmt"

	"trawl/internal/catalog"
)

// State is the lifecycle position of one download task.
type State string

const (
	StatePending     State = "pending"
	StateCached      State = "cached"
	StateDownloading State = "downloading"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
	StateSkipped     State = "skipped"
)

// ReasonCancelled marks a task abandoned because the run was interrupted.
const ReasonCancelled = "cancelled"

// ErrInvalidTransition is returned when a task would move out of a terminal
// state or skip a required step.
var ErrInvalidTransition = errors.New("invalid task transition")

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateSkipped
}

var allowedTransitions = map[State][]State{
	StatePending:     {StateCached, StateDownloading},
	StateCached:      {StateSkipped, StateDownloading},
	StateDownloading: {StateSucceeded, StateFailed},
}

// Task is one (artist, track, quality) download and its destination.
type Task struct {
	Track    catalog.Track
	ArtistID string
	Quality  catalog.Quality
	Dest     string

	State    State
	Reason   string
	Bytes    int64
	Attempts int
	// Source is the cache path a skipped task was materialized from.
	Source string
}

func newTask(artistID string, track catalog.Track, quality catalog.Quality, dest string) Task {
	return Task{Track: track, ArtistID: artistID, Quality: quality, Dest: dest, State: StatePending}
}

// transition moves the task to next. Terminal states are final.
func (t *Task) transition(next State, reason string) error {
	for _, allowed := range allowedTransitions[t.State] {
		if allowed == next {
			t.State = next
			t.Reason = reason
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s for track %s", ErrInvalidTransition, t.State, next, t.Track.ID)
}
