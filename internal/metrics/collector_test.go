package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thinkd/internal/ring"
	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

type stubBranches int

func (s stubBranches) BranchCount() int { return int(s) }

type stubSessions int

func (s stubSessions) ActiveCount() int { return int(s) }

func rec(content string, revision bool) *thought.Record {
	r := &thought.Record{
		Content:       content,
		Number:        1,
		TotalExpected: 1,
		NextNeeded:    false,
	}
	if revision {
		r.IsRevision = true
		r.RevisesNumber = 1
	}
	return r
}

func TestRecordRequestTotals(t *testing.T) {
	c := New(nil, nil)

	c.RecordRequest(10*time.Millisecond, true)
	c.RecordRequest(30*time.Millisecond, false)

	s := c.Snapshot()
	assert.EqualValues(t, 2, s.TotalRequests)
	assert.EqualValues(t, 1, s.SuccessfulRequests)
	assert.EqualValues(t, 1, s.FailedRequests)
	assert.InDelta(t, 20.0, s.AverageDurationMs, 0.001)
	assert.Equal(t, 2, s.RequestsPerMinute)
}

func TestRollingAverageCapsAtRecentSamples(t *testing.T) {
	c := New(nil, nil)

	// 150 slow requests, then 100 fast ones: only the last 100 samples
	// feed the average.
	for i := 0; i < 150; i++ {
		c.RecordRequest(100*time.Millisecond, true)
	}
	for i := 0; i < 100; i++ {
		c.RecordRequest(10*time.Millisecond, true)
	}

	s := c.Snapshot()
	assert.InDelta(t, 10.0, s.AverageDurationMs, 0.001)
	assert.EqualValues(t, 250, s.TotalRequests)
}

func TestSlidingWindowStrictCutoff(t *testing.T) {
	buf, err := ring.New[time.Time](8)
	require.NoError(t, err)

	base := time.Now()
	buf.Add(base)                 // sample at T
	buf.Add(base.Add(rateWindow)) // sample at T+60s

	// Reading at exactly T+60s: the first sample sits on the boundary and
	// is excluded by the strict comparison.
	assert.Equal(t, 1, countWithin(buf, base.Add(rateWindow)))
	// One nanosecond earlier both are inside the window.
	assert.Equal(t, 2, countWithin(buf, base.Add(rateWindow-time.Nanosecond)))
}

func TestRecordThoughtAverages(t *testing.T) {
	c := New(stubBranches(3), stubSessions(2))

	c.RecordThought(rec("abcd", false))   // len 4
	c.RecordThought(rec("abcdefg", true)) // len 7

	s := c.Snapshot()
	assert.EqualValues(t, 2, s.TotalThoughts)
	assert.EqualValues(t, 6, s.AverageThoughtLength, "running average is rounded")
	assert.EqualValues(t, 1, s.RevisionCount)
	assert.Equal(t, 2, s.ThoughtsPerMinute)
}

func TestLiveCountsReadFromCollaborators(t *testing.T) {
	c := New(stubBranches(5), stubSessions(7))
	s := c.Snapshot()
	assert.Equal(t, 5, s.BranchCount)
	assert.Equal(t, 7, s.ActiveSessions)

	// Nil collaborators read as zero.
	s = New(nil, nil).Snapshot()
	assert.Zero(t, s.BranchCount)
	assert.Zero(t, s.ActiveSessions)
}

func TestDestroyIdempotent(t *testing.T) {
	c := New(nil, nil)
	c.RecordRequest(time.Millisecond, true)
	c.RecordThought(rec("abc", false))

	c.Destroy()
	c.Destroy()

	s := c.Snapshot()
	assert.Zero(t, s.TotalRequests)
	assert.Zero(t, s.TotalThoughts)
	assert.Zero(t, s.RequestsPerMinute)

	// Records after Destroy are ignored.
	c.RecordRequest(time.Millisecond, true)
	assert.Zero(t, c.Snapshot().TotalRequests)
}
