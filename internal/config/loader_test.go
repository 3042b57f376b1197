package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir so the loader's allowed-directory
// check operates on test-owned paths.
func setupTestHome(t *testing.T) string {
	t.Helper()
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	return tmpHome
}

func writeConfig(t *testing.T, home, content string) string {
	t.Helper()
	dir := filepath.Join(home, ".config", "thinkd")
	require.NoError(t, os.MkdirAll(dir, 0700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadWithFileDefaults(t *testing.T) {
	setupTestHome(t)

	// No file present: defaults apply.
	cfg, err := LoadWithFile("")
	require.NoError(t, err)

	assert.Equal(t, "thinkd", cfg.Server.Name)
	assert.Equal(t, 9190, cfg.Server.OpsPort)
	assert.Equal(t, 1000, cfg.History.MaxHistorySize)
	assert.Equal(t, 50000, cfg.History.MaxThoughtLength)
	assert.Equal(t, 30*time.Minute, cfg.History.MaxBranchAge)
	assert.Equal(t, 500, cfg.History.MaxThoughtsPerBranch)
	assert.Equal(t, 60, cfg.Security.MaxThoughtsPerMinute)
	assert.Equal(t, 1000, cfg.Thinking.TreeCapacity)
	assert.Equal(t, 100, cfg.Thinking.MaxConcurrentTrees)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithFileValidYAML(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `
server:
  ops_port: 9999
history:
  max_history_size: 200
  max_branch_age: 10m
security:
  max_thoughts_per_minute: 5
  blocked_patterns:
    - "(?i)drop table"
thinking:
  enabled: true
  tree_capacity: 50
logging:
  level: debug
`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.OpsPort)
	assert.Equal(t, 200, cfg.History.MaxHistorySize)
	assert.Equal(t, 10*time.Minute, cfg.History.MaxBranchAge)
	assert.Equal(t, 5, cfg.Security.MaxThoughtsPerMinute)
	assert.Equal(t, []string{"(?i)drop table"}, cfg.Security.BlockedPatterns)
	assert.True(t, cfg.Thinking.Enabled)
	assert.Equal(t, 50, cfg.Thinking.TreeCapacity)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset fields still get defaults.
	assert.Equal(t, 50000, cfg.History.MaxThoughtLength)
}

func TestLoadWithFileEnvOverride(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, "server:\n  ops_port: 9999\n")
	t.Setenv("THINKD_SERVER_OPS_PORT", "7777")
	t.Setenv("THINKD_HISTORY_MAX_HISTORY_SIZE", "42")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.OpsPort, "environment beats file")
	assert.Equal(t, 42, cfg.History.MaxHistorySize)
}

func TestLoadWithFileRejectsWeakPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}
	home := setupTestHome(t)
	path := writeConfig(t, home, "server:\n  ops_port: 9999\n")
	require.NoError(t, os.Chmod(path, 0644))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFileRejectsOutsidePath(t *testing.T) {
	setupTestHome(t)

	_, err := LoadWithFile("/tmp/evil.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file must be in")
}

func TestLoadWithFileRejectsInvalidValues(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, "history:\n  max_history_size: -5\n")

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_history_size")
}
