package tree

import (
	"time"

	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

// Node is one admitted thought plus its tree state.
//
// A node is created once on admission and mutated only by backpropagation
// (visit/value statistics) and guidance attachment. It is removed only by
// pruning or whole-tree eviction.
type Node struct {
	// ID uniquely identifies the node within its tree.
	ID string

	// ParentID is empty for the root.
	ParentID string

	// Depth is the distance from the root (root = 0).
	Depth int

	// ChildIDs holds children in admission order.
	ChildIDs []string

	// Record is the admitted thought (the tree's own copy).
	Record *thought.Record

	// VisitCount and TotalValue are maintained by backpropagation.
	VisitCount int
	TotalValue float64

	// IsTerminal mirrors the record's continuation flag: a thought that
	// needs no successor is terminal.
	IsTerminal bool

	// LastAccessed is touched on admission, cursor moves, and
	// backpropagation. Pruning uses it as the tie-break key.
	LastAccessed time.Time

	// Guidance carries the mode guidance attached after scoring, if any.
	Guidance *Guidance
}

// Guidance is strategy and perspective advice attached to a node by the
// thinking-mode layer.
type Guidance struct {
	Strategy    string `json:"strategy"`
	Perspective string `json:"perspective"`
}

// AverageValue returns TotalValue / VisitCount, or 0 for unvisited nodes.
func (n *Node) AverageValue() float64 {
	if n.VisitCount == 0 {
		return 0
	}
	return n.TotalValue / float64(n.VisitCount)
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.ChildIDs) == 0 }

func (n *Node) touch(now time.Time) { n.LastAccessed = now }
