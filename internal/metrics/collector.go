// Package metrics collects operational counters and 60-second sliding-window
// rates for the thought core.
//
// Snapshots are derived: recomputed on every read, never persisted. Counts
// that another component already owns (branch totals, active sessions) are
// read live from that component instead of being duplicated here.
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/fyrsmithlabs/thinkd/internal/ring"
	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

const (
	// rateWindow is the trailing interval over which event rates are
	// computed. Samples at exactly now-rateWindow are excluded (strict >).
	rateWindow = 60 * time.Second

	// durationSamples caps the rolling average over recent request
	// durations.
	durationSamples = 100

	// rateSamples caps the timestamp buffers backing the sliding windows.
	rateSamples = 4096
)

// BranchCounter reports the live branch count (the history store).
type BranchCounter interface {
	BranchCount() int
}

// ActiveCounter reports the live active-session count (the tracker).
type ActiveCounter interface {
	ActiveCount() int
}

// Snapshot is the derived metrics view.
type Snapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	AverageDurationMs  float64 `json:"average_duration_ms"`
	RequestsPerMinute  int     `json:"requests_per_minute"`

	TotalThoughts        int64 `json:"total_thoughts"`
	AverageThoughtLength int64 `json:"average_thought_length"`
	RevisionCount        int64 `json:"revision_count"`
	BranchCount          int   `json:"branch_count"`
	ActiveSessions       int   `json:"active_sessions"`
	ThoughtsPerMinute    int   `json:"thoughts_per_minute"`
}

// Collector accumulates request and thought metrics.
type Collector struct {
	mu sync.Mutex

	branches BranchCounter
	sessions ActiveCounter

	totalRequests      int64
	successfulRequests int64
	durations          *ring.Buffer[time.Duration]
	requestTimes       *ring.Buffer[time.Time]

	totalThoughts  int64
	totalLength    int64
	revisionCount  int64
	thoughtTimes   *ring.Buffer[time.Time]

	destroyed bool
}

// New creates a collector reading live counts from the given sources.
// Either source may be nil; its count then reads as zero.
func New(branches BranchCounter, sessions ActiveCounter) *Collector {
	durations, _ := ring.New[time.Duration](durationSamples)
	requestTimes, _ := ring.New[time.Time](rateSamples)
	thoughtTimes, _ := ring.New[time.Time](rateSamples)
	return &Collector{
		branches:     branches,
		sessions:     sessions,
		durations:    durations,
		requestTimes: requestTimes,
		thoughtTimes: thoughtTimes,
	}
}

// RecordRequest notes one external request and its outcome.
func (c *Collector) RecordRequest(duration time.Duration, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	c.totalRequests++
	if success {
		c.successfulRequests++
	}
	c.durations.Add(duration)
	c.requestTimes.Add(time.Now())
}

// RecordThought notes one processed thought.
func (c *Collector) RecordThought(rec *thought.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return
	}

	c.totalThoughts++
	c.totalLength += int64(len(rec.Content))
	if rec.Revises() {
		c.revisionCount++
	}
	c.thoughtTimes.Add(time.Now())
}

// Snapshot computes a fresh metrics view.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	s := Snapshot{
		TotalRequests:      c.totalRequests,
		SuccessfulRequests: c.successfulRequests,
		FailedRequests:     c.totalRequests - c.successfulRequests,
		RequestsPerMinute:  countWithin(c.requestTimes, now),
		TotalThoughts:      c.totalThoughts,
		RevisionCount:      c.revisionCount,
		ThoughtsPerMinute:  countWithin(c.thoughtTimes, now),
	}

	if samples := c.durations.Snapshot(-1); len(samples) > 0 {
		var sum time.Duration
		for _, d := range samples {
			sum += d
		}
		s.AverageDurationMs = float64(sum.Milliseconds()) / float64(len(samples))
	}

	if c.totalThoughts > 0 {
		s.AverageThoughtLength = int64(math.Round(float64(c.totalLength) / float64(c.totalThoughts)))
	}

	if c.branches != nil {
		s.BranchCount = c.branches.BranchCount()
	}
	if c.sessions != nil {
		s.ActiveSessions = c.sessions.ActiveCount()
	}
	return s
}

// countWithin counts timestamps strictly newer than now - rateWindow.
func countWithin(buf *ring.Buffer[time.Time], now time.Time) int {
	cutoff := now.Add(-rateWindow)
	count := 0
	for _, ts := range buf.Snapshot(-1) {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// Destroy clears buffers and zeroes counters. Idempotent; a destroyed
// collector ignores further records.
func (c *Collector) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.durations.Clear()
	c.requestTimes.Clear()
	c.thoughtTimes.Clear()
	c.totalRequests = 0
	c.successfulRequests = 0
	c.totalThoughts = 0
	c.totalLength = 0
	c.revisionCount = 0
	c.destroyed = true
}
