// Package session tracks per-session activity and drives the idle-eviction
// sweep the rest of the core hangs cleanup off of.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config bounds the tracker.
type Config struct {
	// RateWindow is the window over which per-session thought counts roll.
	RateWindow time.Duration

	// IdleTimeout evicts sessions with no activity for this long.
	IdleTimeout time.Duration

	// ActiveThreshold is the recency window for ActiveCount.
	ActiveThreshold time.Duration

	// SweepInterval drives the idle sweep. Zero disables it (under test).
	SweepInterval time.Duration
}

// DefaultConfig returns the documented limits.
func DefaultConfig() Config {
	return Config{
		RateWindow:      time.Minute,
		IdleTimeout:     30 * time.Minute,
		ActiveThreshold: 5 * time.Minute,
		SweepInterval:   time.Minute,
	}
}

type sessionState struct {
	windowStart  time.Time
	windowCount  int
	lastActivity time.Time
}

// Tracker records per-session activity and rate-window counts.
//
// Components that hold per-session state (trees, modes) register eviction
// and cleanup callbacks so their state is garbage-collected in lockstep
// with session eviction.
type Tracker struct {
	mu       sync.Mutex
	cfg      Config
	logger   *zap.Logger
	sessions map[string]*sessionState

	onEviction []func(ids []string)
	onCleanup  []func()

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates a tracker and starts its idle sweep (unless the sweep
// interval is zero).
func New(cfg Config, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = def.RateWindow
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ActiveThreshold <= 0 {
		cfg.ActiveThreshold = def.ActiveThreshold
	}

	t := &Tracker{
		cfg:      cfg,
		logger:   logger.Named("session"),
		sessions: make(map[string]*sessionState),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		go t.sweep()
	} else {
		close(t.done)
	}
	return t
}

// RecordThought notes one thought for the session and returns the
// session's count within the current rate window. The window resets once
// it expires.
func (t *Tracker) RecordThought(sessionID string) int {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sessions[sessionID]
	if !ok {
		st = &sessionState{windowStart: now}
		t.sessions[sessionID] = st
	}
	if now.Sub(st.windowStart) >= t.cfg.RateWindow {
		st.windowStart = now
		st.windowCount = 0
	}
	st.windowCount++
	st.lastActivity = now
	return st.windowCount
}

// WindowCount returns the session's thought count within the current rate
// window without recording activity.
func (t *Tracker) WindowCount(sessionID string) int {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sessions[sessionID]
	if !ok || now.Sub(st.windowStart) >= t.cfg.RateWindow {
		return 0
	}
	return st.windowCount
}

// ActiveCount returns the number of sessions active within the recency
// threshold.
func (t *Tracker) ActiveCount() int {
	cutoff := time.Now().Add(-t.cfg.ActiveThreshold)

	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	for _, st := range t.sessions {
		if st.lastActivity.After(cutoff) {
			count++
		}
	}
	return count
}

// Remove drops a session explicitly and notifies eviction listeners.
func (t *Tracker) Remove(sessionID string) {
	t.mu.Lock()
	_, ok := t.sessions[sessionID]
	delete(t.sessions, sessionID)
	t.mu.Unlock()

	if ok {
		t.notifyEviction([]string{sessionID})
	}
}

// OnEviction registers a callback invoked with the evicted session ids on
// every idle sweep and explicit removal.
func (t *Tracker) OnEviction(fn func(ids []string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEviction = append(t.onEviction, fn)
}

// OnPeriodicCleanup registers a callback invoked on every sweep tick,
// whether or not anything was evicted.
func (t *Tracker) OnPeriodicCleanup(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCleanup = append(t.onCleanup, fn)
}

// EvictIdle drops sessions idle past the timeout and returns their ids.
// Exposed so the sweep is testable without waiting for a tick.
func (t *Tracker) EvictIdle() []string {
	cutoff := time.Now().Add(-t.cfg.IdleTimeout)

	t.mu.Lock()
	var evicted []string
	for id, st := range t.sessions {
		if st.lastActivity.Before(cutoff) {
			delete(t.sessions, id)
			evicted = append(evicted, id)
		}
	}
	t.mu.Unlock()

	if len(evicted) > 0 {
		t.notifyEviction(evicted)
	}
	return evicted
}

// notifyEviction fans out to eviction listeners. A panicking listener must
// not take down the sweep, so each call is isolated.
func (t *Tracker) notifyEviction(ids []string) {
	t.mu.Lock()
	listeners := make([]func([]string), len(t.onEviction))
	copy(listeners, t.onEviction)
	t.mu.Unlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("eviction listener panicked",
						zap.Any("panic", r))
				}
			}()
			fn(ids)
		}()
	}
}

func (t *Tracker) notifyCleanup() {
	t.mu.Lock()
	listeners := make([]func(), len(t.onCleanup))
	copy(listeners, t.onCleanup)
	t.mu.Unlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.logger.Error("cleanup listener panicked",
						zap.Any("panic", r))
				}
			}()
			fn()
		}()
	}
}

func (t *Tracker) sweep() {
	defer close(t.done)
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if evicted := t.EvictIdle(); len(evicted) > 0 {
				t.logger.Debug("evicted idle sessions",
					zap.Strings("session_ids", evicted))
			}
			t.notifyCleanup()
		case <-t.stopCh:
			return
		}
	}
}

// Destroy stops the sweep and releases state. Idempotent.
func (t *Tracker) Destroy() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
	<-t.done

	t.mu.Lock()
	t.sessions = make(map[string]*sessionState)
	t.mu.Unlock()
}
