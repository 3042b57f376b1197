// Package tree implements the per-session branching thought tree.
//
// Thoughts are placed by role: branches attach under their named origin,
// revisions become siblings of the thought they correct, and plain thoughts
// extend the cursor. The tree enforces a node-count ceiling through
// value-guided pruning; insertion itself never fails for capacity reasons.
package tree

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

// DefaultCapacity is the node-count ceiling used when none is configured.
const DefaultCapacity = 1000

// ErrNodeNotFound is returned when an operation addresses an absent node id.
// It wraps thought.ErrTree.
var ErrNodeNotFound = fmt.Errorf("%w: node not found", thought.ErrTree)

// Tree is the branching thought tree for one session.
//
// Invariants held after every mutation:
//   - the root and the cursor are present and never pruned
//   - every non-root node's parent exists in the node map
//   - Size() <= capacity
type Tree struct {
	nodes    map[string]*Node
	rootID   string
	cursorID string
	capacity int

	now func() time.Time
}

// New creates an empty tree with the given node-count ceiling.
// Non-positive capacities fall back to DefaultCapacity. The floor is 3 so
// the never-pruned root and cursor always fit under the ceiling.
func New(capacity int) *Tree {
	if capacity <= 0 {
		capacity = DefaultCapacity
	} else if capacity < 3 {
		capacity = 3
	}
	return &Tree{
		nodes:    make(map[string]*Node),
		capacity: capacity,
		now:      time.Now,
	}
}

// Size returns the number of nodes in the tree.
func (t *Tree) Size() int { return len(t.nodes) }

// Capacity returns the node-count ceiling.
func (t *Tree) Capacity() int { return t.capacity }

// Root returns the root node, or nil for an empty tree.
func (t *Tree) Root() *Node { return t.nodes[t.rootID] }

// Cursor returns the cursor node, or nil for an empty tree.
func (t *Tree) Cursor() *Node { return t.nodes[t.cursorID] }

// Node returns the node with the given id.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// AddThought places a thought record in the tree and returns the new node.
//
// Placement rules, in priority order:
//  1. Branch markers: the parent is the node carrying the origin thought
//     number, preferring a match on the cursor's ancestor chain when the
//     number is ambiguous across branches. An unmatched origin falls back
//     to the cursor; branches are never rejected.
//  2. Revision markers: the new node becomes a sibling of the revised node
//     (same parent, same depth). Revising the root instead yields a child
//     of the root. An unmatched target falls back to plain placement.
//  3. Plain: child of the cursor, or the root of an empty tree. Only plain
//     admission advances the cursor.
//
// If admission would push the size past capacity, pruning runs first.
func (t *Tree) AddThought(rec *thought.Record) *Node {
	if t.Size()+1 > t.capacity {
		t.prune(t.capacity - 1)
	}

	now := t.now()
	node := &Node{
		ID:           uuid.NewString(),
		Record:       rec,
		IsTerminal:   !rec.NextNeeded,
		LastAccessed: now,
	}

	if t.rootID == "" {
		t.nodes[node.ID] = node
		t.rootID = node.ID
		t.cursorID = node.ID
		return node
	}

	switch {
	case rec.IsBranch():
		parent := t.FindByNumber(rec.BranchFromNumber)
		if parent == nil {
			parent = t.Cursor()
		}
		t.attach(node, parent, now)

	case rec.Revises():
		target := t.FindByNumber(rec.RevisesNumber)
		switch {
		case target == nil:
			t.attach(node, t.Cursor(), now)
			t.cursorID = node.ID
		case target.ID == t.rootID:
			t.attach(node, target, now)
		default:
			t.attach(node, t.nodes[target.ParentID], now)
		}

	default:
		t.attach(node, t.Cursor(), now)
		t.cursorID = node.ID
	}

	return node
}

// attach registers node as a child of parent.
func (t *Tree) attach(node *Node, parent *Node, now time.Time) {
	node.ParentID = parent.ID
	node.Depth = parent.Depth + 1
	parent.ChildIDs = append(parent.ChildIDs, node.ID)
	parent.touch(now)
	t.nodes[node.ID] = node
}

// SetCursor repoints the cursor to the given node.
func (t *Tree) SetCursor(id string) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	t.cursorID = id
	n.touch(t.now())
	return nil
}

// FindByNumber returns the node carrying the given thought number.
//
// When several nodes share the number (the same position re-stated on
// different branches), the match that is an ancestor of the cursor, or
// the cursor itself, wins, so lookups resolve against the caller's
// current line of reasoning. Returns nil when no node matches.
func (t *Tree) FindByNumber(number int) *Node {
	for n := t.Cursor(); n != nil; n = t.nodes[n.ParentID] {
		if n.Record.Number == number {
			return n
		}
		if n.ParentID == "" {
			break
		}
	}

	// No match on the cursor chain: fall back to a tree-wide scan over
	// sorted ids so the result is deterministic across calls.
	ids := make([]string, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if t.nodes[id].Record.Number == number {
			return t.nodes[id]
		}
	}
	return nil
}

// AncestorPath returns the nodes from the root down to id inclusive.
func (t *Tree) AncestorPath(id string) ([]*Node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, id)
	}
	var reversed []*Node
	for ; n != nil; n = t.nodes[n.ParentID] {
		reversed = append(reversed, n)
		if n.ParentID == "" {
			break
		}
	}
	path := make([]*Node, len(reversed))
	for i, node := range reversed {
		path[len(reversed)-1-i] = node
	}
	return path, nil
}

// Children returns the ordered children of a node.
func (t *Tree) Children(id string) []*Node {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.ChildIDs))
	for _, cid := range n.ChildIDs {
		out = append(out, t.nodes[cid])
	}
	return out
}

// Leaves returns all nodes without children.
func (t *Tree) Leaves() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if n.IsLeaf() {
			out = append(out, n)
		}
	}
	return out
}

// Expandable returns all non-terminal nodes.
func (t *Tree) Expandable() []*Node {
	var out []*Node
	for _, n := range t.nodes {
		if !n.IsTerminal {
			out = append(out, n)
		}
	}
	return out
}

// prune removes low-value nodes until Size() <= target or only the root
// and the cursor remain. Leaves are pruned before interior nodes; when
// every leaf is protected (a linear chain, for one) an interior node is
// removed and its children are spliced onto its parent so the tree stays
// connected. Within each class the lowest average value goes first,
// unvisited nodes are kept longest, and ties break on the oldest
// LastAccessed. The root and the cursor are never pruned.
func (t *Tree) prune(target int) {
	for t.Size() > target {
		victim := t.pruneCandidate()
		if victim == nil {
			return
		}
		t.remove(victim)
	}
}

func (t *Tree) pruneCandidate() *Node {
	var bestLeaf, bestInner *Node
	for _, n := range t.nodes {
		if n.ID == t.rootID || n.ID == t.cursorID {
			continue
		}
		if n.IsLeaf() {
			if bestLeaf == nil || pruneBefore(n, bestLeaf) {
				bestLeaf = n
			}
		} else if bestInner == nil || pruneBefore(n, bestInner) {
			bestInner = n
		}
	}
	if bestLeaf != nil {
		return bestLeaf
	}
	return bestInner
}

// pruneBefore reports whether a should be pruned before b.
func pruneBefore(a, b *Node) bool {
	aUnvisited := a.VisitCount == 0
	bUnvisited := b.VisitCount == 0
	if aUnvisited != bUnvisited {
		// Visited nodes with a known (low) value go before unvisited ones.
		return bUnvisited
	}
	if av, bv := a.AverageValue(), b.AverageValue(); av != bv {
		return av < bv
	}
	return a.LastAccessed.Before(b.LastAccessed)
}

// remove detaches n and splices its children onto n's parent at n's
// position, lifting the moved subtrees one level.
func (t *Tree) remove(n *Node) {
	if parent, ok := t.nodes[n.ParentID]; ok {
		for i, cid := range parent.ChildIDs {
			if cid != n.ID {
				continue
			}
			spliced := make([]string, 0, len(parent.ChildIDs)-1+len(n.ChildIDs))
			spliced = append(spliced, parent.ChildIDs[:i]...)
			spliced = append(spliced, n.ChildIDs...)
			spliced = append(spliced, parent.ChildIDs[i+1:]...)
			parent.ChildIDs = spliced
			break
		}
		for _, cid := range n.ChildIDs {
			child := t.nodes[cid]
			child.ParentID = n.ParentID
			t.liftDepth(child)
		}
	}
	delete(t.nodes, n.ID)
}

func (t *Tree) liftDepth(n *Node) {
	n.Depth--
	for _, cid := range n.ChildIDs {
		t.liftDepth(t.nodes[cid])
	}
}
