package thinking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thinkd/internal/mcts"
	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTrees = 10
	return cfg
}

func rec(sessionID string, number int) *thought.Record {
	return &thought.Record{
		Content:       fmt.Sprintf("step %d: weigh the alternatives because the evidence is mixed", number),
		Number:        number,
		TotalExpected: 10,
		NextNeeded:    true,
		SessionID:     sessionID,
	}
}

// fixedAssessor returns a constant confidence for deterministic tests.
type fixedAssessor struct{ score float64 }

func (f fixedAssessor) Assess(context.Context, *thought.Record, []*thought.Record) (float64, error) {
	return f.score, nil
}

func TestRecordThoughtDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	m := New(cfg, nil, nil)

	res, err := m.RecordThought(context.Background(), rec("s1", 1))
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, m.SessionCount())
}

func TestRecordThoughtWithoutSession(t *testing.T) {
	m := New(testConfig(), nil, nil)

	res, err := m.RecordThought(context.Background(), rec("", 1))
	require.NoError(t, err)
	assert.Nil(t, res)
}

// evictingAssessor drops its session mid-assessment, standing in for a
// tracker eviction racing the admission.
type evictingAssessor struct{ m *Manager }

func (a *evictingAssessor) Assess(_ context.Context, r *thought.Record, _ []*thought.Record) (float64, error) {
	a.m.DropSessions([]string{r.SessionID})
	return 0.5, nil
}

func TestRecordThoughtToleratesEvictionDuringAssessment(t *testing.T) {
	a := &evictingAssessor{}
	m := New(testConfig(), a, nil)
	a.m = m

	res, err := m.RecordThought(context.Background(), rec("s1", 1))
	require.NoError(t, err)
	assert.Nil(t, res, "an evicted session yields no tree result")
	assert.Zero(t, m.SessionCount())
}

func TestRecordThoughtBuildsTree(t *testing.T) {
	m := New(testConfig(), fixedAssessor{0.7}, nil)
	ctx := context.Background()

	res1, err := m.RecordThought(ctx, rec("s1", 1))
	require.NoError(t, err)
	require.NotNil(t, res1)
	assert.Equal(t, 0, res1.Node.Depth)
	assert.InDelta(t, 0.7, res1.Confidence, 1e-12)
	assert.Equal(t, 1, res1.Stats.TotalNodes)

	res2, err := m.RecordThought(ctx, rec("s1", 2))
	require.NoError(t, err)
	assert.Equal(t, 1, res2.Node.Depth)
	assert.Equal(t, 2, res2.Stats.TotalNodes)
	assert.Equal(t, 1, m.SessionCount())
}

func TestRecordThoughtAutoEvaluatesByDefault(t *testing.T) {
	m := New(testConfig(), fixedAssessor{0.6}, nil)

	res, err := m.RecordThought(context.Background(), rec("s1", 1))
	require.NoError(t, err)
	// Without a mode the score is backpropagated, so the node is visited.
	assert.Equal(t, 1, res.Node.Visits)
	assert.InDelta(t, 0.6, res.Node.AverageValue, 1e-12)
	assert.Zero(t, res.Stats.UnexploredNodes)
}

func TestCreativeModeSkipsAutoEvaluate(t *testing.T) {
	m := New(testConfig(), fixedAssessor{0.6}, nil)
	_, err := m.SetMode("s1", string(ModeCreative))
	require.NoError(t, err)

	res, err := m.RecordThought(context.Background(), rec("s1", 1))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Node.Visits, "creative mode defers evaluation")
	require.NotNil(t, res.Guidance)
	assert.Equal(t, ModeCreative, res.Guidance.Mode)
	assert.Equal(t, mcts.StrategyExplore, res.Guidance.Strategy)
}

func TestOperationsRequireTree(t *testing.T) {
	m := New(testConfig(), nil, nil)

	_, err := m.Backtrack("ghost", "n1")
	assert.ErrorIs(t, err, thought.ErrTree)

	_, err = m.Evaluate("ghost", "n1", 0.5)
	assert.ErrorIs(t, err, thought.ErrTree)

	_, err = m.Suggest("ghost", mcts.StrategyBalanced)
	assert.ErrorIs(t, err, thought.ErrTree)

	_, err = m.Summary("ghost", -1)
	assert.ErrorIs(t, err, thought.ErrTree)

	_, err = m.Mode("ghost")
	assert.ErrorIs(t, err, thought.ErrTree)
}

func TestEvaluateRejectsNonFiniteScore(t *testing.T) {
	m := New(testConfig(), fixedAssessor{0.5}, nil)
	_, err := m.RecordThought(context.Background(), rec("s1", 1))
	require.NoError(t, err)

	nan := 0.0
	_, err = m.Evaluate("s1", "whatever", nan/nan)
	assert.ErrorIs(t, err, thought.ErrValidation)
}

func TestEvaluateAndBacktrack(t *testing.T) {
	m := New(testConfig(), fixedAssessor{0.5}, nil)
	ctx := context.Background()

	res1, err := m.RecordThought(ctx, rec("s1", 1))
	require.NoError(t, err)
	res2, err := m.RecordThought(ctx, rec("s1", 2))
	require.NoError(t, err)

	updated, err := m.Evaluate("s1", res2.Node.ID, 0.9)
	require.NoError(t, err)
	assert.Equal(t, 2, updated, "score propagates from the node to the root")

	info, err := m.Backtrack("s1", res1.Node.ID)
	require.NoError(t, err)
	assert.Equal(t, res1.Node.ID, info.ID)

	_, err = m.Backtrack("s1", "missing-node")
	assert.ErrorIs(t, err, thought.ErrTree)
}

func TestSuggestUsesModeStrategyByDefault(t *testing.T) {
	m := New(testConfig(), fixedAssessor{0.5}, nil)
	_, err := m.SetMode("s1", string(ModeConvergent))
	require.NoError(t, err)
	_, err = m.RecordThought(context.Background(), rec("s1", 1))
	require.NoError(t, err)

	s, err := m.Suggest("s1", "")
	require.NoError(t, err)
	require.NotNil(t, s.Suggestion)
}

func TestSummary(t *testing.T) {
	m := New(testConfig(), fixedAssessor{0.8}, nil)
	ctx := context.Background()
	_, err := m.RecordThought(ctx, rec("s1", 1))
	require.NoError(t, err)
	_, err = m.RecordThought(ctx, rec("s1", 2))
	require.NoError(t, err)

	sum, err := m.Summary("s1", -1)
	require.NoError(t, err)
	require.NotNil(t, sum.Tree)
	assert.Equal(t, 2, sum.Stats.TotalNodes)
	assert.Len(t, sum.BestPath, 2)
}

func TestSetModeCreatesTree(t *testing.T) {
	m := New(testConfig(), nil, nil)

	cfg, err := m.SetMode("s1", string(ModeAnalytical))
	require.NoError(t, err)
	assert.Equal(t, ModeAnalytical, cfg.Name)
	assert.Equal(t, 1, m.SessionCount())

	got, err := m.Mode("s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ModeAnalytical, got.Name)
}

func TestSetModeRejectsUnknown(t *testing.T) {
	m := New(testConfig(), nil, nil)
	_, err := m.SetMode("s1", "galaxy-brain")
	require.Error(t, err)
	assert.ErrorIs(t, err, thought.ErrValidation)
}

func TestCleanupEvictsByAge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTreeAge = 10 * time.Millisecond
	m := New(cfg, fixedAssessor{0.5}, nil)

	_, err := m.RecordThought(context.Background(), rec("old", 1))
	require.NoError(t, err)
	time.Sleep(15 * time.Millisecond)
	_, err = m.RecordThought(context.Background(), rec("young", 1))
	require.NoError(t, err)

	evicted := m.Cleanup()
	assert.Equal(t, []string{"old"}, evicted)
	assert.Equal(t, 1, m.SessionCount())
}

func TestCleanupEvictsLRUAboveCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentTrees = 3
	m := New(cfg, fixedAssessor{0.5}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := m.RecordThought(ctx, rec(fmt.Sprintf("s%d", i), 1))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond) // distinct lastUsed ordering
	}

	evicted := m.Cleanup()
	assert.Len(t, evicted, 2)
	assert.Equal(t, 3, m.SessionCount())
	assert.Contains(t, evicted, "s0")
	assert.Contains(t, evicted, "s1")
}

func TestDropSessionsOnTrackerEviction(t *testing.T) {
	scfg := session.DefaultConfig()
	scfg.SweepInterval = 0
	scfg.IdleTimeout = time.Nanosecond
	tracker := session.New(scfg, nil)
	defer tracker.Destroy()

	m := New(testConfig(), fixedAssessor{0.5}, nil)
	m.Subscribe(tracker)

	_, err := m.RecordThought(context.Background(), rec("s1", 1))
	require.NoError(t, err)
	tracker.RecordThought("s1")
	require.Equal(t, 1, m.SessionCount())

	time.Sleep(time.Millisecond)
	tracker.EvictIdle()

	assert.Zero(t, m.SessionCount(), "tree state tracks session eviction")
}
