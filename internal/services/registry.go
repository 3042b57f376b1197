package services

import (
	"github.com/fyrsmithlabs/thinkd/internal/history"
	"github.com/fyrsmithlabs/thinkd/internal/metrics"
	"github.com/fyrsmithlabs/thinkd/internal/security"
	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/thinking"
)

// Registry provides access to all thinkd services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	History() *history.Store
	Sessions() *session.Tracker
	Thinking() *thinking.Manager
	Guard() *security.Guard
	Metrics() *metrics.Collector
}

// Options configures the registry with service instances.
type Options struct {
	History  *history.Store
	Sessions *session.Tracker
	Thinking *thinking.Manager
	Guard    *security.Guard
	Metrics  *metrics.Collector
}

// registry is the concrete implementation of Registry.
type registry struct {
	history  *history.Store
	sessions *session.Tracker
	thinking *thinking.Manager
	guard    *security.Guard
	metrics  *metrics.Collector
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		history:  opts.History,
		sessions: opts.Sessions,
		thinking: opts.Thinking,
		guard:    opts.Guard,
		metrics:  opts.Metrics,
	}
}

func (r *registry) History() *history.Store     { return r.history }
func (r *registry) Sessions() *session.Tracker  { return r.sessions }
func (r *registry) Thinking() *thinking.Manager { return r.thinking }
func (r *registry) Guard() *security.Guard      { return r.guard }
func (r *registry) Metrics() *metrics.Collector { return r.metrics }
