package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thinkd/internal/services"
	"github.com/fyrsmithlabs/thinkd/internal/thought"
	"github.com/fyrsmithlabs/thinkd/internal/tree"
)

func TestGetSummaryReturnsOpaqueTree(t *testing.T) {
	reg := newTestRegistry(t)
	s, err := NewServer(nil, reg)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		stored, err := reg.History().Add(&thought.Record{
			Content:       fmt.Sprintf("step %d", i),
			Number:        i,
			TotalExpected: 3,
			NextNeeded:    true,
			SessionID:     "s1",
		})
		require.NoError(t, err)
		_, err = reg.Thinking().RecordThought(ctx, stored)
		require.NoError(t, err)
	}

	res, out, err := s.handleGetSummary(ctx, nil, getSummaryInput{SessionID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, out.Stats.TotalNodes)
	assert.Len(t, out.BestPath, 3)

	// The payload round-trips into the serialized node form.
	var sn tree.SerialNode
	require.NoError(t, json.Unmarshal(out.Tree, &sn))
	assert.Equal(t, tree.KindNode, sn.Kind)
	require.Len(t, sn.Children, 1)
}

func TestGetSummaryRequiresTreeMode(t *testing.T) {
	reg := newTestRegistry(t)
	noTree := services.NewRegistry(services.Options{
		History:  reg.History(),
		Sessions: reg.Sessions(),
		Guard:    reg.Guard(),
		Metrics:  reg.Metrics(),
	})
	s, err := NewServer(nil, noTree)
	require.NoError(t, err)

	_, _, err = s.handleGetSummary(context.Background(), nil, getSummaryInput{SessionID: "s1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, thought.ErrValidation)
}
