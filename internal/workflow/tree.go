package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"trawl/internal/checkpoint"
	"trawl/internal/fileutil"
	"trawl/internal/params"
)

// TreeNode is one processed artist in the discovery tree.
type TreeNode struct {
	ID       string      `json:"id"`
	Name     string      `json:"name,omitempty"`
	Depth    int         `json:"depth"`
	Parent   string      `json:"parent,omitempty"`
	Accepted bool        `json:"accepted"`
	Reason   string      `json:"reason,omitempty"`
	Tracks   int         `json:"tracks"`
	Children []*TreeNode `json:"children,omitempty"`
}

// FilteredArtist is a rejected artist and the reason it was filtered out.
type FilteredArtist struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Depth  int    `json:"depth"`
	Parent string `json:"parent,omitempty"`
	Reason string `json:"reason"`
}

// Tree is the exported view of a session's traversal.
type Tree struct {
	Session     string            `json:"session"`
	GeneratedAt time.Time         `json:"generated_at"`
	Params      params.Parameters `json:"params"`
	Complete    bool              `json:"complete"`
	Seeds       []*TreeNode       `json:"seeds"`
	Accepted    int               `json:"accepted"`
	FilteredOut []FilteredArtist  `json:"filtered_out"`
	Pending     []string          `json:"pending,omitempty"`
}

// BuildTree arranges the processed-artist log of cp by parent. Seeds that
// were excluded or not yet processed do not appear under Seeds.
func BuildTree(cp *checkpoint.Checkpoint, now time.Time) Tree {
	tree := Tree{
		Session:     cp.Session,
		GeneratedAt: now.UTC(),
		Params:      cp.Params,
		Complete:    cp.Complete,
		Seeds:       []*TreeNode{},
		FilteredOut: []FilteredArtist{},
	}
	nodes := make(map[string]*TreeNode, len(cp.Log))
	for _, rec := range cp.Log {
		node := &TreeNode{
			ID:       rec.ID,
			Name:     rec.Name,
			Depth:    rec.Depth,
			Parent:   rec.Parent,
			Accepted: rec.Accepted,
			Reason:   rec.Reason,
			Tracks:   rec.Tracks,
		}
		nodes[rec.ID] = node
		if rec.Accepted {
			tree.Accepted++
		} else {
			tree.FilteredOut = append(tree.FilteredOut, FilteredArtist{
				ID: rec.ID, Name: rec.Name, Depth: rec.Depth, Parent: rec.Parent, Reason: rec.Reason,
			})
		}
	}
	// The log is in processing order and parents are always processed
	// before their children, so a single pass attaches every node.
	for _, rec := range cp.Log {
		node := nodes[rec.ID]
		if parent, ok := nodes[rec.Parent]; ok && rec.Parent != "" {
			parent.Children = append(parent.Children, node)
			continue
		}
		tree.Seeds = append(tree.Seeds, node)
	}
	for _, e := range cp.Frontier {
		tree.Pending = append(tree.Pending, e.ArtistID)
	}
	return tree
}

// WriteTree writes tree as indented JSON, atomically.
func WriteTree(path string, tree Tree) error {
	data, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	data = append(data, '\n')
	if _, err := fileutil.WriteAtomic(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write tree: %w", err)
	}
	return nil
}
