// Package thinking wires the thought tree and the MCTS engine into
// per-session reasoning state: admission scoring, mode guidance, manual
// evaluation, and tree lifecycle.
package thinking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/mcts"
	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/thought"
	"github.com/fyrsmithlabs/thinkd/internal/tree"
)

// Config bounds the manager.
type Config struct {
	// Enabled turns tree mode on. When off, RecordThought is a no-op and
	// the history store remains the only consumer of submissions.
	Enabled bool

	// TreeCapacity is the per-session node ceiling.
	TreeCapacity int

	// MaxTreeAge evicts trees untouched for this long.
	MaxTreeAge time.Duration

	// MaxConcurrentTrees is the hard ceiling on live trees; the least
	// recently used tree is evicted above it.
	MaxConcurrentTrees int
}

// DefaultConfig returns the documented limits.
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		TreeCapacity:       tree.DefaultCapacity,
		MaxTreeAge:         time.Hour,
		MaxConcurrentTrees: 100,
	}
}

// ErrNoTree is returned when an operation addresses a session without a
// tree. It wraps thought.ErrTree.
var ErrNoTree = fmt.Errorf("%w: session has no thought tree", thought.ErrTree)

// Guidance is the mode-specific advice accompanying a scored thought.
type Guidance struct {
	Mode        Mode          `json:"mode"`
	Strategy    mcts.Strategy `json:"strategy"`
	Perspective string        `json:"perspective"`
}

// Result is returned for every tree-mode admission.
type Result struct {
	Node       mcts.NodeInfo `json:"node"`
	Confidence float64       `json:"confidence"`
	Stats      mcts.Stats    `json:"stats"`
	Guidance   *Guidance     `json:"guidance,omitempty"`
}

// Summary is the structured view of one session's tree.
type Summary struct {
	Tree     *tree.SerialNode `json:"tree"`
	Stats    mcts.Stats       `json:"stats"`
	BestPath []mcts.NodeInfo  `json:"best_path"`
}

type sessionState struct {
	tree     *tree.Tree
	mode     *ModeConfig
	lastUsed time.Time
}

// Manager owns per-session trees and modes.
//
// It subscribes to the session tracker's eviction and cleanup callbacks so
// tree and mode state is garbage-collected in lockstep with history
// eviction; no session outlives its tracker entry.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	logger   *zap.Logger
	assessor ConfidenceAssessor
	sessions map[string]*sessionState
}

// New creates a manager. A nil assessor falls back to the heuristic one.
func New(cfg Config, assessor ConfidenceAssessor, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if assessor == nil {
		assessor = NewHeuristicAssessor()
	}
	def := DefaultConfig()
	if cfg.TreeCapacity <= 0 {
		cfg.TreeCapacity = def.TreeCapacity
	}
	if cfg.MaxTreeAge <= 0 {
		cfg.MaxTreeAge = def.MaxTreeAge
	}
	if cfg.MaxConcurrentTrees <= 0 {
		cfg.MaxConcurrentTrees = def.MaxConcurrentTrees
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger.Named("thinking"),
		assessor: assessor,
		sessions: make(map[string]*sessionState),
	}
}

// Subscribe wires the manager to the session tracker's lifecycle.
func (m *Manager) Subscribe(tracker *session.Tracker) {
	tracker.OnEviction(m.DropSessions)
	tracker.OnPeriodicCleanup(func() { m.Cleanup() })
}

// RecordThought places the stored record in the session's tree, scores the
// new node, and returns admission results.
//
// Returns (nil, nil) when tree mode is disabled, the record carries no
// session id, or the session was evicted while the thought was being
// scored: tree state is an optional structural index, never a
// precondition for accepting a thought.
func (m *Manager) RecordThought(ctx context.Context, stored *thought.Record) (*Result, error) {
	if !m.cfg.Enabled || stored.SessionID == "" {
		return nil, nil
	}

	m.mu.Lock()
	st := m.ensureSessionLocked(stored.SessionID)
	node := st.tree.AddThought(stored)
	ancestors := m.ancestorRecordsLocked(st.tree, node)
	mode := st.mode
	m.mu.Unlock()

	confidence, err := m.assessor.Assess(ctx, stored, ancestors)
	if err != nil {
		return nil, fmt.Errorf("confidence assessment: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// The assessor ran outside the lock, so eviction or a concurrent
	// admission's pruning may have removed the session or the node.
	if cur, ok := m.sessions[stored.SessionID]; !ok || cur != st {
		m.logger.Debug("session evicted during assessment",
			zap.String("session_id", stored.SessionID))
		return nil, nil
	}
	if _, ok := st.tree.Node(node.ID); !ok {
		return nil, nil
	}

	engine := m.engineForLocked(st)
	var guidance *Guidance
	if mode != nil {
		node.Guidance = &tree.Guidance{
			Strategy:    string(mode.Strategy),
			Perspective: mode.Perspective,
		}
		guidance = &Guidance{
			Mode:        mode.Name,
			Strategy:    mode.Strategy,
			Perspective: mode.Perspective,
		}
	}
	if mode == nil || mode.AutoEvaluate {
		if _, err := engine.Backpropagate(st.tree, node.ID, confidence); err != nil {
			return nil, err
		}
	}

	stats := engine.TreeStats(st.tree)
	return &Result{
		Node:       mcts.ToNodeInfo(node),
		Confidence: confidence,
		Stats:      stats,
		Guidance:   guidance,
	}, nil
}

// Backtrack repoints the session's cursor to an earlier node.
func (m *Manager) Backtrack(sessionID, nodeID string) (*mcts.NodeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if err := st.tree.SetCursor(nodeID); err != nil {
		return nil, err
	}
	info := mcts.ToNodeInfo(st.tree.Cursor())
	return &info, nil
}

// Evaluate backpropagates a caller-assigned score from the node to the
// root and returns the updated node count.
func (m *Manager) Evaluate(sessionID, nodeID string, score float64) (int, error) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: score must be a finite number", thought.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.sessionLocked(sessionID)
	if err != nil {
		return 0, err
	}
	return m.engineForLocked(st).Backpropagate(st.tree, nodeID, score)
}

// Suggest ranks the session's expandable nodes. An empty strategy falls
// back to the session mode's strategy, then to balanced.
func (m *Manager) Suggest(sessionID string, strategy mcts.Strategy) (*mcts.Suggestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = mcts.StrategyBalanced
		if st.mode != nil {
			strategy = st.mode.Strategy
		}
	}
	return m.engineForLocked(st).SuggestNext(st.tree, strategy)
}

// Summary serializes the session's tree down to maxDepth levels, with
// aggregate stats and the current best path.
func (m *Manager) Summary(sessionID string, maxDepth int) (*Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	engine := m.engineForLocked(st)
	return &Summary{
		Tree:     st.tree.Serialize(maxDepth),
		Stats:    engine.TreeStats(st.tree),
		BestPath: engine.BestPath(st.tree),
	}, nil
}

// SetMode attaches a thinking-mode preset to the session, creating the
// session's tree if needed.
func (m *Manager) SetMode(sessionID, name string) (*ModeConfig, error) {
	cfg, err := ModeByName(name)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.ensureSessionLocked(sessionID)
	st.mode = &cfg
	return &cfg, nil
}

// Mode returns the session's mode, nil when none is set.
func (m *Manager) Mode(sessionID string) (*ModeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.sessionLocked(sessionID)
	if err != nil {
		return nil, err
	}
	return st.mode, nil
}

// SessionCount returns the number of live trees.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// DropSessions discards tree and mode state for the given sessions.
func (m *Manager) DropSessions(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.sessions, id)
	}
}

// Cleanup evicts trees past the age limit, then LRU-evicts down to the
// concurrent-tree ceiling. Returns the evicted session ids.
func (m *Manager) Cleanup() []string {
	cutoff := time.Now().Add(-m.cfg.MaxTreeAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []string
	for id, st := range m.sessions {
		if st.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, id)
		}
	}

	if excess := len(m.sessions) - m.cfg.MaxConcurrentTrees; excess > 0 {
		type aged struct {
			id       string
			lastUsed time.Time
		}
		byAge := make([]aged, 0, len(m.sessions))
		for id, st := range m.sessions {
			byAge = append(byAge, aged{id, st.lastUsed})
		}
		sort.Slice(byAge, func(i, j int) bool {
			return byAge[i].lastUsed.Before(byAge[j].lastUsed)
		})
		for _, a := range byAge[:excess] {
			delete(m.sessions, a.id)
			evicted = append(evicted, a.id)
		}
	}

	if len(evicted) > 0 {
		m.logger.Debug("evicted session trees", zap.Strings("session_ids", evicted))
	}
	return evicted
}

func (m *Manager) ensureSessionLocked(sessionID string) *sessionState {
	st, ok := m.sessions[sessionID]
	if !ok {
		st = &sessionState{tree: tree.New(m.cfg.TreeCapacity)}
		m.sessions[sessionID] = st
	}
	st.lastUsed = time.Now()
	return st
}

func (m *Manager) sessionLocked(sessionID string) (*sessionState, error) {
	st, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %q", ErrNoTree, sessionID)
	}
	st.lastUsed = time.Now()
	return st, nil
}

// engineForLocked builds an engine with the session's exploration constant.
func (m *Manager) engineForLocked(st *sessionState) *mcts.Engine {
	if st.mode != nil {
		return mcts.New(st.mode.Exploration)
	}
	return mcts.New(0)
}

func (m *Manager) ancestorRecordsLocked(t *tree.Tree, n *tree.Node) []*thought.Record {
	path, err := t.AncestorPath(n.ID)
	if err != nil {
		return nil
	}
	// Exclude the node itself; its ancestors are the assessment context.
	out := make([]*thought.Record, 0, len(path)-1)
	for _, p := range path[:len(path)-1] {
		out = append(out, p.Record)
	}
	return out
}
