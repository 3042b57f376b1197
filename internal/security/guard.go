// Package security gates thought submissions: content sanitization,
// blocked-pattern matching, session-id validation, and per-session rate
// limiting.
package security

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/thinkd/internal/thought"
)

// MaxSessionIDLength is the upper bound for caller-supplied session ids.
const MaxSessionIDLength = 100

// denylist holds the fixed sanitization patterns. It is not
// user-extensible; blocked-content patterns are configured separately.
var denylist = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)\bFunction\s*\(`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
}

// Config bounds the guard.
type Config struct {
	// MaxThoughtsPerMinute is the per-session rate limit.
	MaxThoughtsPerMinute int

	// BlockedPatterns are regular expressions rejected as security
	// violations. Malformed patterns are logged and skipped, not fatal.
	BlockedPatterns []string
}

// DefaultConfig returns the documented limits.
func DefaultConfig() Config {
	return Config{MaxThoughtsPerMinute: 60}
}

// Status reports guard health.
type Status struct {
	Healthy         bool `json:"healthy"`
	ActivePatterns  int  `json:"active_patterns"`
	SkippedPatterns int  `json:"skipped_patterns"`
}

// Guard is the content-security gate in front of the thought store.
type Guard struct {
	cfg     Config
	logger  *zap.Logger
	blocked []*regexp.Regexp
	skipped int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New compiles the configured blocked patterns and returns a guard.
// Malformed patterns are skipped with a warning so one bad entry never
// disables the gate.
func New(cfg Config, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxThoughtsPerMinute <= 0 {
		cfg.MaxThoughtsPerMinute = DefaultConfig().MaxThoughtsPerMinute
	}

	g := &Guard{
		cfg:      cfg,
		logger:   logger.Named("security"),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, p := range cfg.BlockedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			g.skipped++
			g.logger.Warn("skipping malformed blocked pattern",
				zap.String("pattern", p),
				zap.Error(err))
			continue
		}
		g.blocked = append(g.blocked, re)
	}
	return g
}

// SanitizeContent strips the fixed denylist from content: script tags,
// javascript: URIs, eval( and Function( calls, and inline event-handler
// attributes. Content that matches nothing passes through unchanged.
func (g *Guard) SanitizeContent(content string) string {
	for _, re := range denylist {
		content = re.ReplaceAllString(content, "")
	}
	return content
}

// ValidateSession reports whether a caller-supplied session id is usable.
func (g *Guard) ValidateSession(id string) bool {
	return len(id) > 0 && len(id) <= MaxSessionIDLength
}

// GenerateSessionID returns a fresh random session id.
func (g *Guard) GenerateSessionID() string {
	return uuid.NewString()
}

// ValidateThought checks content and the session's rate budget.
//
// Both failure modes wrap thought.ErrSecurity. The rate check is skipped
// entirely when sessionID is empty (anonymous submissions are limited by
// history bounds instead). Blocked patterns are matched fresh on every
// call, so identical content fails identically across repeated calls.
func (g *Guard) ValidateThought(content, sessionID string) error {
	if sessionID != "" && !g.allow(sessionID) {
		return fmt.Errorf("%w: rate limit exceeded for session %q (max %d thoughts/minute)",
			thought.ErrSecurity, sessionID, g.cfg.MaxThoughtsPerMinute)
	}
	for _, re := range g.blocked {
		if re.MatchString(content) {
			return fmt.Errorf("%w: content matches blocked pattern %q",
				thought.ErrSecurity, re.String())
		}
	}
	return nil
}

// allow consumes one token from the session's limiter.
func (g *Guard) allow(sessionID string) bool {
	g.mu.Lock()
	lim, ok := g.limiters[sessionID]
	if !ok {
		perMinute := float64(g.cfg.MaxThoughtsPerMinute)
		lim = rate.NewLimiter(rate.Limit(perMinute/60.0), g.cfg.MaxThoughtsPerMinute)
		g.limiters[sessionID] = lim
	}
	g.mu.Unlock()
	return lim.Allow()
}

// ForgetSession drops the session's rate limiter. Wired to session
// eviction so limiter state cannot outlive the session.
func (g *Guard) ForgetSession(sessionID string) {
	g.mu.Lock()
	delete(g.limiters, sessionID)
	g.mu.Unlock()
}

// Status returns guard health and the active blocked-pattern count.
func (g *Guard) Status() Status {
	return Status{
		Healthy:         true,
		ActivePatterns:  len(g.blocked),
		SkippedPatterns: g.skipped,
	}
}
