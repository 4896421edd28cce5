package di

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/splitrelay/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:          t.TempDir(),
		Port:             8001,
		SessionRetention: time.Hour,
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.NotNil(t, container.TaskRegistry)
	assert.NotNil(t, container.LotRepo)
	assert.NotNil(t, container.Coordinator)
	assert.NotNil(t, container.ReconciliationService)
	assert.NotNil(t, container.Metrics)
	require.NotNil(t, container.Scheduler)
	assert.Equal(t, 3, container.Scheduler.Entries())

	assert.NoError(t, jobs.CheckDatabases.Run())
	assert.NoError(t, jobs.CheckWALCheckpoints.Run())
	assert.NoError(t, jobs.PruneSessions.Run())
}

func TestInitializeDatabases(t *testing.T) {
	cfg := testConfig(t)

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	assert.FileExists(t, filepath.Join(cfg.DataDir, "registry.db"))
	assert.FileExists(t, filepath.Join(cfg.DataDir, "portfolio.db"))
}

func TestInitializeServices_RequiresDatabases(t *testing.T) {
	assert.Error(t, InitializeServices(&Container{}, nil, zerolog.Nop()))

	_, err := RegisterJobs(&Container{}, testConfig(t), zerolog.Nop())
	assert.Error(t, err)
}
