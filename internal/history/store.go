// Package history implements the authoritative linear thought history,
// bounded by count and by branch age/size.
//
// The store is decoupled from the thought tree: the tree is an optional
// structural index over the same stream, and evicting history never
// corrupts it.
package history

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

// Config bounds the store.
type Config struct {
	// MaxHistorySize caps the main sequence; the oldest record is evicted
	// on overflow.
	MaxHistorySize int

	// MaxThoughtLength caps record content length in bytes.
	MaxThoughtLength int

	// MaxBranchAge evicts branches whose newest record is older than this.
	MaxBranchAge time.Duration

	// MaxThoughtsPerBranch caps each branch's own sequence.
	MaxThoughtsPerBranch int

	// CleanupInterval drives the branch-age sweep. Zero disables the
	// sweep entirely (used under test).
	CleanupInterval time.Duration
}

// DefaultConfig returns the documented limits.
func DefaultConfig() Config {
	return Config{
		MaxHistorySize:       1000,
		MaxThoughtLength:     50000,
		MaxBranchAge:         30 * time.Minute,
		MaxThoughtsPerBranch: 500,
		CleanupInterval:      5 * time.Minute,
	}
}

// Stats summarizes the store.
type Stats struct {
	TotalThoughts  int            `json:"total_thoughts"`
	BranchCounts   map[string]int `json:"branch_counts"`
	OldestThought  time.Time      `json:"oldest_thought,omitempty"`
	NewestThought  time.Time      `json:"newest_thought,omitempty"`
	MaxHistorySize int            `json:"max_history_size"`
}

// Store is the bounded thought history for the whole process.
type Store struct {
	mu       sync.RWMutex
	cfg      Config
	logger   *zap.Logger
	sequence []*thought.Record
	branches map[string][]*thought.Record

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates a store and starts its branch-age sweep (unless the cleanup
// interval is zero).
func New(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.MaxHistorySize <= 0 {
		cfg.MaxHistorySize = def.MaxHistorySize
	}
	if cfg.MaxThoughtLength <= 0 {
		cfg.MaxThoughtLength = def.MaxThoughtLength
	}
	if cfg.MaxBranchAge <= 0 {
		cfg.MaxBranchAge = def.MaxBranchAge
	}
	if cfg.MaxThoughtsPerBranch <= 0 {
		cfg.MaxThoughtsPerBranch = def.MaxThoughtsPerBranch
	}

	s := &Store{
		cfg:      cfg,
		logger:   logger.Named("history"),
		branches: make(map[string][]*thought.Record),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		go s.sweep()
	} else {
		close(s.done)
	}
	return s
}

// Add validates, clones, and appends a record.
//
// The caller's record is never mutated: when no session id is present, an
// "anonymous-" id is synthesized onto the stored clone only. The stored
// clone is returned.
func (s *Store) Add(rec *thought.Record) (*thought.Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if len(rec.Content) > s.cfg.MaxThoughtLength {
		return nil, fmt.Errorf("%w: thought length %d exceeds limit %d",
			thought.ErrValidation, len(rec.Content), s.cfg.MaxThoughtLength)
	}

	stored := rec.Clone()
	stored.Timestamp = time.Now()
	if stored.SessionID == "" {
		stored.SessionID = "anonymous-" + strings.Split(uuid.NewString(), "-")[0]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence = append(s.sequence, stored)
	if excess := len(s.sequence) - s.cfg.MaxHistorySize; excess > 0 {
		s.sequence = s.sequence[excess:]
	}

	if stored.IsBranch() {
		seq := append(s.branches[stored.BranchID], stored)
		if excess := len(seq) - s.cfg.MaxThoughtsPerBranch; excess > 0 {
			seq = seq[excess:]
		}
		s.branches[stored.BranchID] = seq
	}

	return stored, nil
}

// History returns the most recent records oldest-first. A negative limit
// returns everything; zero returns nothing.
func (s *Store) History(limit int) []*thought.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.sequence)
	if limit >= 0 && limit < n {
		n = limit
	}
	out := make([]*thought.Record, n)
	copy(out, s.sequence[len(s.sequence)-n:])
	return out
}

// Branches returns a copy of the per-branch sequences.
func (s *Store) Branches() map[string][]*thought.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]*thought.Record, len(s.branches))
	for id, seq := range s.branches {
		cp := make([]*thought.Record, len(seq))
		copy(cp, seq)
		out[id] = cp
	}
	return out
}

// BranchCount returns the number of live branches.
func (s *Store) BranchCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.branches)
}

// Stats summarizes the current store contents.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		TotalThoughts:  len(s.sequence),
		BranchCounts:   make(map[string]int, len(s.branches)),
		MaxHistorySize: s.cfg.MaxHistorySize,
	}
	for id, seq := range s.branches {
		st.BranchCounts[id] = len(seq)
	}
	if len(s.sequence) > 0 {
		st.OldestThought = s.sequence[0].Timestamp
		st.NewestThought = s.sequence[len(s.sequence)-1].Timestamp
	}
	return st
}

// Clear drops all records and branches.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence = nil
	s.branches = make(map[string][]*thought.Record)
}

// EvictStaleBranches removes branches whose newest record is older than
// the max branch age, and returns the evicted branch ids. Exposed so the
// sweep is testable without waiting for a tick.
func (s *Store) EvictStaleBranches() []string {
	cutoff := time.Now().Add(-s.cfg.MaxBranchAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, seq := range s.branches {
		if len(seq) == 0 || seq[len(seq)-1].Timestamp.Before(cutoff) {
			delete(s.branches, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// sweep runs the branch-age cleanup on the configured interval.
func (s *Store) sweep() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := s.EvictStaleBranches(); len(evicted) > 0 {
				s.logger.Debug("evicted stale branches",
					zap.Strings("branch_ids", evicted))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Destroy stops the sweep and releases state. Idempotent.
func (s *Store) Destroy() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.done
	s.Clear()
}
