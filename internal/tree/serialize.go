package tree

// SerialKind tags the serialized tree variant.
type SerialKind string

const (
	// KindNode marks a fully serialized node.
	KindNode SerialKind = "node"
	// KindTruncated marks a subtree cut off by the depth limit.
	KindTruncated SerialKind = "truncated"
)

// SerialNode is the closed serialized form of a subtree: either a node with
// its children, or a marker recording how many children were truncated by
// the depth limit. No other variants exist.
type SerialNode struct {
	Kind SerialKind `json:"kind"`

	// Node fields (Kind == KindNode).
	ID           string        `json:"id,omitempty"`
	Number       int           `json:"thought_number,omitempty"`
	Content      string        `json:"content,omitempty"`
	Depth        int           `json:"depth"`
	Visits       int           `json:"visits"`
	AverageValue float64       `json:"average_value"`
	Terminal     bool          `json:"terminal,omitempty"`
	BranchID     string        `json:"branch_id,omitempty"`
	Guidance     *Guidance     `json:"guidance,omitempty"`
	Children     []*SerialNode `json:"children,omitempty"`

	// Truncation fields (Kind == KindTruncated).
	HiddenChildren int `json:"hidden_children,omitempty"`
}

// Serialize renders the tree from the root down to maxDepth levels.
// Subtrees beyond maxDepth are replaced with a truncation marker counting
// the hidden children. A negative maxDepth disables the limit. Returns nil
// for an empty tree.
func (t *Tree) Serialize(maxDepth int) *SerialNode {
	root := t.Root()
	if root == nil {
		return nil
	}
	return t.serializeNode(root, maxDepth)
}

func (t *Tree) serializeNode(n *Node, remaining int) *SerialNode {
	sn := &SerialNode{
		Kind:         KindNode,
		ID:           n.ID,
		Number:       n.Record.Number,
		Content:      n.Record.Content,
		Depth:        n.Depth,
		Visits:       n.VisitCount,
		AverageValue: n.AverageValue(),
		Terminal:     n.IsTerminal,
		BranchID:     n.Record.BranchID,
		Guidance:     n.Guidance,
	}

	if len(n.ChildIDs) == 0 {
		return sn
	}

	if remaining == 0 {
		sn.Children = []*SerialNode{{
			Kind:           KindTruncated,
			Depth:          n.Depth + 1,
			HiddenChildren: len(n.ChildIDs),
		}}
		return sn
	}

	next := remaining
	if next > 0 {
		next--
	}
	for _, cid := range n.ChildIDs {
		sn.Children = append(sn.Children, t.serializeNode(t.nodes[cid], next))
	}
	return sn
}
