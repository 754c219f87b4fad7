package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trawl/internal/catalog"
	"trawl/internal/checkpoint"
	"trawl/internal/filter"
	"trawl/internal/logging"
	"trawl/internal/services"
)

// Step is the outcome of processing one artist.
type Step struct {
	Artist    catalog.Artist
	Depth     int
	SeedIndex int
	// Parent is the artist whose similarity list produced this one; empty
	// for seeds.
	Parent   string
	Tracks   []catalog.Track
	Accepted bool
	Reason   string
	// Enqueued lists the similar artists added to the frontier.
	Enqueued []string
	// Substitute is the reserve candidate that replaced this rejected
	// artist, if any.
	Substitute string
}

// Engine walks the similarity graph one artist at a time. All traversal
// state lives in the checkpoint passed to Next, so an Engine is stateless
// and may be reused across sessions.
type Engine struct {
	client catalog.Client
	logger *slog.Logger
}

// New constructs an Engine.
func New(client catalog.Client, logger *slog.Logger) *Engine {
	return &Engine{client: client, logger: logging.NewComponentLogger(logger, "discovery")}
}

// Next processes exactly one artist from the frontier of cp, mutating cp in
// memory. It returns false when the frontier is exhausted. On error cp is
// left partially mutated and must not be persisted; the last saved
// checkpoint remains the resume point.
func (e *Engine) Next(ctx context.Context, cp *checkpoint.Checkpoint) (Step, bool, error) {
	p := cp.Params
	logger := logging.WithContext(ctx, e.logger)
	for {
		if err := ctx.Err(); err != nil {
			return Step{}, false, err
		}
		entry, ok := cp.Pop()
		if !ok {
			return Step{}, false, nil
		}
		if cp.IsVisited(entry.ArtistID) {
			continue
		}
		if p.IsExcluded(entry.ArtistID) {
			logger.Debug("skipping excluded artist", logging.String(logging.FieldArtistID, entry.ArtistID))
			continue
		}
		cp.MarkVisited(entry.ArtistID)

		step, err := e.process(ctx, logger, cp, entry)
		if err != nil {
			return Step{}, false, err
		}
		cp.Log = append(cp.Log, checkpoint.Record{
			ID:       entry.ArtistID,
			Name:     step.Artist.Name,
			Depth:    entry.Depth,
			Seed:     entry.Seed,
			Parent:   entry.Parent,
			Accepted: step.Accepted,
			Reason:   step.Reason,
			Tracks:   len(step.Tracks),
		})
		if step.Accepted {
			cp.Counters.ArtistsAccepted++
		} else {
			cp.Counters.ArtistsRejected++
		}
		cp.ProcessedCount++
		return step, true, nil
	}
}

func (e *Engine) process(ctx context.Context, logger *slog.Logger, cp *checkpoint.Checkpoint, entry checkpoint.Entry) (Step, error) {
	p := cp.Params
	step := Step{
		Artist:    catalog.Artist{ID: entry.ArtistID},
		Depth:     entry.Depth,
		SeedIndex: entry.Seed,
		Parent:    entry.Parent,
	}
	artistLogger := logger.With(
		logging.String(logging.FieldArtistID, entry.ArtistID),
		logging.Int(logging.FieldDepth, entry.Depth),
	)

	artist, err := e.client.Artist(ctx, entry.ArtistID)
	if err == nil {
		step.Artist = artist
		step.Tracks, err = e.client.Tracks(ctx, entry.ArtistID)
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		artistLogger.Info("artist not found in catalog", logging.Error(err))
		step.Tracks = nil
		step.Reason = filter.ReasonNotFound
		step.Substitute = e.substitute(cp, entry, artistLogger)
		return step, nil
	case err != nil:
		return Step{}, fmt.Errorf("discover artist %s: %w", entry.ArtistID, err)
	}

	if !filter.Ordered(step.Tracks) {
		logging.WarnWithContext(artistLogger, "catalog returned tracks out of popularity order", "rank_order_violation",
			logging.String(logging.FieldErrorHint, "provider order is used as-is; report the artist to the catalog operator"),
			logging.String(logging.FieldImpact, "in-top filtering may select different tracks"),
		)
	}

	verdict := filter.Apply(step.Tracks, step.Artist, p)
	step.Tracks = verdict.Tracks
	step.Accepted = verdict.Accepted
	step.Reason = verdict.Reason
	if !verdict.Accepted {
		artistLogger.Debug("artist rejected", logging.String("reason", verdict.Reason), logging.Int("matched", verdict.Matched))
		step.Substitute = e.substitute(cp, entry, artistLogger)
		return step, nil
	}

	if entry.Depth < p.MaxDepth && p.SimilarCount > 0 {
		similar, err := e.client.Similar(ctx, entry.ArtistID)
		switch {
		case errors.Is(err, services.ErrNotFound):
			artistLogger.Debug("no similar artists listed")
		case err != nil:
			return Step{}, fmt.Errorf("similar artists of %s: %w", entry.ArtistID, err)
		default:
			step.Enqueued = expand(cp, entry, similar)
		}
	}
	return step, nil
}

// expand enqueues the first SimilarCount unseen candidates at depth+1 and
// keeps the remainder as the parent's reserve.
func expand(cp *checkpoint.Checkpoint, parent checkpoint.Entry, similar []string) []string {
	p := cp.Params
	reserve := &checkpoint.Reserve{Depth: parent.Depth + 1, Seed: parent.Seed}
	seen := make(map[string]struct{}, len(similar))
	var enqueued []string
	for _, id := range similar {
		if id == "" || id == parent.ArtistID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if cp.IsVisited(id) || cp.IsPending(id) || p.IsExcluded(id) {
			continue
		}
		if len(enqueued) < p.SimilarCount {
			cp.Push(checkpoint.Entry{ArtistID: id, Depth: parent.Depth + 1, Seed: parent.Seed, Parent: parent.ArtistID})
			enqueued = append(enqueued, id)
			continue
		}
		reserve.Candidates = append(reserve.Candidates, id)
	}
	if len(reserve.Candidates) > 0 {
		if cp.Reserves == nil {
			cp.Reserves = map[string]*checkpoint.Reserve{}
		}
		cp.Reserves[parent.ArtistID] = reserve
	}
	return enqueued
}

// substitute replaces a rejected child with the next unseen candidate from
// its parent's reserve, at the same depth and seed. Seeds are never
// substituted. Candidates that became visited, pending, or excluded since
// the reserve was built are discarded without consuming an attempt.
func (e *Engine) substitute(cp *checkpoint.Checkpoint, rejected checkpoint.Entry, logger *slog.Logger) string {
	if rejected.Parent == "" {
		return ""
	}
	reserve := cp.Reserves[rejected.Parent]
	if reserve == nil {
		return ""
	}
	p := cp.Params
	defer func() {
		if len(reserve.Candidates) == 0 {
			delete(cp.Reserves, rejected.Parent)
		}
	}()
	for reserve.Attempts < p.MaxSimilarAttempts && len(reserve.Candidates) > 0 {
		id := reserve.Candidates[0]
		reserve.Candidates = reserve.Candidates[1:]
		if cp.IsVisited(id) || cp.IsPending(id) || p.IsExcluded(id) {
			continue
		}
		reserve.Attempts++
		cp.Push(checkpoint.Entry{ArtistID: id, Depth: reserve.Depth, Seed: reserve.Seed, Parent: rejected.Parent})
		logger.Debug("substituted rejected artist",
			logging.String("substitute", id),
			logging.String("parent", rejected.Parent),
			logging.Int("attempt", reserve.Attempts),
		)
		return id
	}
	if reserve.Attempts >= p.MaxSimilarAttempts {
		logger.Debug("similar attempts exhausted", logging.String("parent", rejected.Parent), logging.Int("attempts", reserve.Attempts))
	}
	return ""
}
