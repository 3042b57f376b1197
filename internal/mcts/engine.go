// Package mcts implements UCB1 best-first scoring and suggestion over a
// thought tree.
//
// The engine is stateless: every method operates on the tree it is handed
// and keeps no state of its own. Backpropagate is the sole mutator of node
// visit/value statistics in the system.
package mcts

import (
	"fmt"
	"math"
	"sort"

	"github.com/fyrsmithlabs/thinkd/internal/thought"
	"github.com/fyrsmithlabs/thinkd/internal/tree"
)

// DefaultExploration is the UCB1 exploration constant when none is
// configured (the canonical sqrt(2)).
var DefaultExploration = math.Sqrt2

// Strategy selects how SuggestNext weighs exploration against exploitation.
type Strategy string

const (
	// StrategyExplore favors rarely visited nodes.
	StrategyExplore Strategy = "explore"
	// StrategyExploit ranks nodes on observed reward alone.
	StrategyExploit Strategy = "exploit"
	// StrategyBalanced uses the configured exploration constant as-is.
	StrategyBalanced Strategy = "balanced"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyExplore, StrategyExploit, StrategyBalanced:
		return true
	}
	return false
}

// NodeInfo is the caller-facing projection of a tree node. Internal node
// references never cross the engine boundary.
type NodeInfo struct {
	ID           string  `json:"node_id"`
	Number       int     `json:"thought_number"`
	Depth        int     `json:"depth"`
	Visits       int     `json:"visits"`
	AverageValue float64 `json:"average_value"`
	ChildCount   int     `json:"child_count"`
	Terminal     bool    `json:"terminal"`
}

// Suggestion is the outcome of a SuggestNext call.
type Suggestion struct {
	// Suggestion is the highest-scoring expandable node, nil when every
	// node is terminal.
	Suggestion *NodeInfo `json:"suggestion"`
	// Score is the UCB1 score of the suggested node.
	Score float64 `json:"score"`
	// Alternatives holds the remaining expandable nodes, best first.
	Alternatives []NodeInfo `json:"alternatives"`
}

// Stats are aggregate statistics for one tree.
type Stats struct {
	TotalNodes       int     `json:"total_nodes"`
	MaxDepth         int     `json:"max_depth"`
	UnexploredNodes  int     `json:"unexplored_nodes"`
	MeanAverageValue float64 `json:"mean_average_value"`
	TerminalNodes    int     `json:"terminal_nodes"`
}

// Engine scores and guides a thought tree.
type Engine struct {
	exploration float64
}

// New creates an engine with the given exploration constant.
// Non-positive values fall back to DefaultExploration.
func New(exploration float64) *Engine {
	if exploration <= 0 {
		exploration = DefaultExploration
	}
	return &Engine{exploration: exploration}
}

// UCB1 computes the upper confidence bound for a node.
//
// Unvisited nodes score +Inf so they are always tried before revisiting:
// the bound is value/visits + c*sqrt(ln(parentVisits)/visits) otherwise.
func UCB1(visits int, totalValue float64, parentVisits int, c float64) float64 {
	if visits == 0 {
		return math.Inf(1)
	}
	exploitation := totalValue / float64(visits)
	if parentVisits < 1 {
		parentVisits = 1
	}
	exploration := c * math.Sqrt(math.Log(float64(parentVisits))/float64(visits))
	return exploitation + exploration
}

// Backpropagate adds one visit and the score to every node from nodeID up
// to the root inclusive, and returns the number of nodes updated.
func (e *Engine) Backpropagate(t *tree.Tree, nodeID string, score float64) (int, error) {
	path, err := t.AncestorPath(nodeID)
	if err != nil {
		return 0, fmt.Errorf("backpropagate: %w", err)
	}
	for _, n := range path {
		n.VisitCount++
		n.TotalValue += score
	}
	return len(path), nil
}

// SuggestNext ranks the expandable nodes under the given strategy.
//
// The exploration constant is scaled per strategy: balanced uses the
// configured constant, explore doubles it, exploit drops it to (almost)
// zero so ranking follows observed reward alone. Each node is scored with
// its parent's visit count. When every node is terminal, the suggestion is
// nil and alternatives are empty.
func (e *Engine) SuggestNext(t *tree.Tree, strategy Strategy) (*Suggestion, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: unknown strategy %q", thought.ErrValidation, strategy)
	}

	c := e.exploration
	switch strategy {
	case StrategyExplore:
		c *= 2
	case StrategyExploit:
		c = 0.01
	}

	type scored struct {
		info  NodeInfo
		score float64
	}

	var candidates []scored
	for _, n := range t.Expandable() {
		parentVisits := 1
		if parent, ok := t.Node(n.ParentID); ok {
			parentVisits = parent.VisitCount
		}
		candidates = append(candidates, scored{
			info:  toNodeInfo(n),
			score: UCB1(n.VisitCount, n.TotalValue, parentVisits, c),
		})
	}

	if len(candidates) == 0 {
		return &Suggestion{Alternatives: []NodeInfo{}}, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := &Suggestion{
		Suggestion:   &candidates[0].info,
		Score:        candidates[0].score,
		Alternatives: make([]NodeInfo, 0, len(candidates)-1),
	}
	for _, c := range candidates[1:] {
		out.Alternatives = append(out.Alternatives, c.info)
	}
	return out, nil
}

// BestPath descends from the root into the highest-average-value child
// repeatedly until a leaf. Empty for an empty tree.
func (e *Engine) BestPath(t *tree.Tree) []NodeInfo {
	var path []NodeInfo
	n := t.Root()
	for n != nil {
		path = append(path, toNodeInfo(n))
		children := t.Children(n.ID)
		if len(children) == 0 {
			break
		}
		best := children[0]
		for _, c := range children[1:] {
			if c.AverageValue() > best.AverageValue() {
				best = c
			}
		}
		n = best
	}
	return path
}

// TreeStats computes aggregate statistics for the tree.
func (e *Engine) TreeStats(t *tree.Tree) Stats {
	s := Stats{}
	var valueSum float64
	for _, n := range allNodes(t) {
		s.TotalNodes++
		if n.Depth > s.MaxDepth {
			s.MaxDepth = n.Depth
		}
		if n.VisitCount == 0 {
			s.UnexploredNodes++
		}
		if n.IsTerminal {
			s.TerminalNodes++
		}
		valueSum += n.AverageValue()
	}
	if s.TotalNodes > 0 {
		s.MeanAverageValue = valueSum / float64(s.TotalNodes)
	}
	return s
}

// allNodes walks the tree from the root. Detached nodes cannot exist by
// the tree's parent invariant.
func allNodes(t *tree.Tree) []*tree.Node {
	root := t.Root()
	if root == nil {
		return nil
	}
	var out []*tree.Node
	stack := []*tree.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		stack = append(stack, t.Children(n.ID)...)
	}
	return out
}

func toNodeInfo(n *tree.Node) NodeInfo {
	return NodeInfo{
		ID:           n.ID,
		Number:       n.Record.Number,
		Depth:        n.Depth,
		Visits:       n.VisitCount,
		AverageValue: n.AverageValue(),
		ChildCount:   len(n.ChildIDs),
		Terminal:     n.IsTerminal,
	}
}

// ToNodeInfo projects a node to its caller-facing shape.
func ToNodeInfo(n *tree.Node) NodeInfo { return toNodeInfo(n) }
