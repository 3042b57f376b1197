package thinking

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

func assess(t *testing.T, content string, ancestors int, revision bool) float64 {
	t.Helper()
	r := &thought.Record{
		Content:       content,
		Number:        ancestors + 1,
		TotalExpected: 10,
		NextNeeded:    true,
	}
	if revision {
		r.IsRevision = true
		r.RevisesNumber = 1
	}
	anc := make([]*thought.Record, ancestors)
	for i := range anc {
		anc[i] = &thought.Record{Content: "prior", Number: i + 1, TotalExpected: 10}
	}
	score, err := NewHeuristicAssessor().Assess(context.Background(), r, anc)
	require.NoError(t, err)
	return score
}

func TestHeuristicAssessorBounds(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		ancestors int
		revision  bool
	}{
		{name: "tiny thought", content: "ok"},
		{name: "long confident thought", content: strings.Repeat("therefore it follows that the approach holds. ", 10), ancestors: 5},
		{name: "hedged thought", content: "maybe, perhaps, not sure, might be, unclear, possibly"},
		{name: "revision", content: "correcting the earlier step", revision: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := assess(t, tt.content, tt.ancestors, tt.revision)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestHeuristicAssessorOrdering(t *testing.T) {
	confident := assess(t, strings.Repeat("the invariant holds because each step preserves it. ", 5), 4, false)
	hedged := assess(t, "maybe? not sure.", 0, false)
	assert.Greater(t, confident, hedged)

	plain := assess(t, "weigh both options on the same evidence and pick one", 0, false)
	revised := assess(t, "weigh both options on the same evidence and pick one", 0, true)
	assert.Greater(t, plain, revised, "revisions start more cautious")
}
