package organizer

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Move records one file relocation so indexes can follow it.
type Move struct {
	From string `json:"from"`
	To   string `json:"to"`
}

var prefixPattern = regexp.MustCompile(`^(\d{3,})_`)

// NewRand returns a generator seeded with seed, or a randomly seeded one
// when seed is nil.
func NewRand(seed *uint64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(*seed, *seed))
}

// Shuffle moves files into outdir under "%03d_<name>" prefixes in random
// order. Numbering continues after the highest prefix already present in
// outdir so successive batches never collide. Directories under outdir
// left empty by the moves are removed. Missing source files are skipped.
func Shuffle(outdir string, files []string, rng *rand.Rand) ([]Move, error) {
	if rng == nil {
		rng = NewRand(nil)
	}
	next, err := highestPrefix(outdir)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(files))
	for _, f := range files {
		if _, statErr := os.Stat(f); statErr == nil {
			order = append(order, f)
		}
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	moves := make([]Move, 0, len(order))
	emptied := map[string]struct{}{}
	for _, src := range order {
		next++
		base := prefixPattern.ReplaceAllString(filepath.Base(src), "")
		dst := filepath.Join(outdir, fmt.Sprintf("%03d_%s", next, base))
		for exists(dst) {
			next++
			dst = filepath.Join(outdir, fmt.Sprintf("%03d_%s", next, base))
		}
		if err := os.Rename(src, dst); err != nil {
			return moves, fmt.Errorf("shuffle %s: %w", src, err)
		}
		moves = append(moves, Move{From: src, To: dst})
		emptied[filepath.Dir(src)] = struct{}{}
	}

	for dir := range emptied {
		removeEmptyParents(outdir, dir)
	}
	return moves, nil
}

func highestPrefix(outdir string) (int, error) {
	entries, err := os.ReadDir(outdir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read output dir: %w", err)
	}
	highest := 0
	for _, e := range entries {
		m := prefixPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, convErr := strconv.Atoi(m[1]); convErr == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}

// removeEmptyParents removes dir and its ancestors while they are empty,
// stopping at root.
func removeEmptyParents(root, dir string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			return
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
