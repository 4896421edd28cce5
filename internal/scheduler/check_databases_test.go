package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDatabasesJob_Run(t *testing.T) {
	registry := openDB(t, "registry")
	job := NewCheckDatabasesJob(registry, nil, openDB(t, "portfolio"))
	assert.Equal(t, "check_databases", job.Name())
	assert.NoError(t, job.Run())

	require.NoError(t, registry.Close())
	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry")
}
