package services

import (
	"testing"

	"github.com/fyrsmithlabs/thinkd/internal/history"
	"github.com/fyrsmithlabs/thinkd/internal/metrics"
	"github.com/fyrsmithlabs/thinkd/internal/security"
	"github.com/fyrsmithlabs/thinkd/internal/session"
	"github.com/fyrsmithlabs/thinkd/internal/thinking"
)

func TestNewRegistry(t *testing.T) {
	var _ Registry = (*registry)(nil)
}

func TestRegistryAccessors(t *testing.T) {
	// Nil services are fine, just testing the interface wiring.
	reg := NewRegistry(Options{})

	if reg.History() != nil {
		t.Error("expected nil history store")
	}
	if reg.Sessions() != nil {
		t.Error("expected nil session tracker")
	}
	if reg.Thinking() != nil {
		t.Error("expected nil thinking manager")
	}
	if reg.Guard() != nil {
		t.Error("expected nil guard")
	}
	if reg.Metrics() != nil {
		t.Error("expected nil metrics collector")
	}
}

func TestRegistryWithServices(t *testing.T) {
	var (
		store    *history.Store
		tracker  *session.Tracker
		manager  *thinking.Manager
		guard    *security.Guard
		collects *metrics.Collector
	)

	reg := NewRegistry(Options{
		History:  store,
		Sessions: tracker,
		Thinking: manager,
		Guard:    guard,
		Metrics:  collects,
	})

	if reg.History() != store {
		t.Error("history store mismatch")
	}
	if reg.Sessions() != tracker {
		t.Error("session tracker mismatch")
	}
	if reg.Thinking() != manager {
		t.Error("thinking manager mismatch")
	}
	if reg.Guard() != guard {
		t.Error("guard mismatch")
	}
	if reg.Metrics() != collects {
		t.Error("metrics collector mismatch")
	}
}
