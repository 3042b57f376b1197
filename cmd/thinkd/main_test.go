package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/thinkd/internal/config"
)

func TestBuildServices(t *testing.T) {
	cfg := config.Default()
	cfg.History.CleanupInterval = 0
	cfg.Session.SweepInterval = 0

	registry, destroy := buildServices(cfg, nil)
	defer destroy()

	require.NotNil(t, registry.History())
	require.NotNil(t, registry.Sessions())
	require.NotNil(t, registry.Guard())
	require.NotNil(t, registry.Metrics())
	assert.NotNil(t, registry.Thinking(), "tree mode enabled by default")
}

func TestBuildServicesTreeModeDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.History.CleanupInterval = 0
	cfg.Session.SweepInterval = 0
	cfg.Thinking.Enabled = false

	registry, destroy := buildServices(cfg, nil)
	defer destroy()

	assert.Nil(t, registry.Thinking())
}

func TestInitLogger(t *testing.T) {
	logger, err := initLogger(config.LoggingConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = initLogger(config.LoggingConfig{Level: "shouty"})
	require.Error(t, err)
}
