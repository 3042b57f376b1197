package thinking

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

// ConfidenceAssessor scores a newly admitted thought given its ancestor
// context. It is the one awaited collaborator in the submit path; an LLM-
// backed assessor plugs in here, and its failure is a caller-flow concern
// rather than a tree invariant.
type ConfidenceAssessor interface {
	// Assess returns a confidence score in [0, 1] for the record in the
	// context of the thoughts leading up to it.
	Assess(ctx context.Context, rec *thought.Record, ancestors []*thought.Record) (float64, error)
}

// HeuristicAssessor scores thoughts from surface features alone: length,
// hedging language, and chain position. It is the default assessor when no
// external collaborator is wired.
type HeuristicAssessor struct{}

// NewHeuristicAssessor returns the default assessor.
func NewHeuristicAssessor() *HeuristicAssessor { return &HeuristicAssessor{} }

var hedges = []string{
	"maybe", "perhaps", "not sure", "might be", "unclear", "possibly", "i think",
}

var anchors = []string{
	"therefore", "because", "so that", "which means", "it follows",
}

// Assess implements ConfidenceAssessor.
func (a *HeuristicAssessor) Assess(_ context.Context, rec *thought.Record, ancestors []*thought.Record) (float64, error) {
	score := 0.5

	// Substantial thoughts inspire more confidence than one-liners.
	switch n := len(rec.Content); {
	case n >= 200:
		score += 0.15
	case n >= 50:
		score += 0.1
	case n < 10:
		score -= 0.15
	}

	lower := strings.ToLower(rec.Content)
	for _, h := range hedges {
		if strings.Contains(lower, h) {
			score -= 0.05
		}
	}
	for _, a := range anchors {
		if strings.Contains(lower, a) {
			score += 0.05
		}
	}

	// Deeper chains have accumulated context worth trusting slightly more.
	if len(ancestors) >= 3 {
		score += 0.05
	}

	// Revisions signal the caller caught a problem; start them cautious.
	if rec.Revises() {
		score -= 0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}
