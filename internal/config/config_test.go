package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("COORD_DATA_DIR", dir)
	t.Setenv("COORD_PORT", "")
	t.Setenv("REGISTRY_DSN", "")
	t.Setenv("COORD_CORS_ORIGINS", "")
	t.Setenv("COORD_DEFAULT_OWNER", "")
	t.Setenv("COORD_SESSION_RETENTION", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.DirExists(t, dir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.DefaultOwner)
	assert.Equal(t, time.Hour, cfg.SessionRetention)
	assert.Equal(t, filepath.Join(dir, "registry.db"), cfg.RegistryPath())
	assert.Equal(t, filepath.Join(dir, "portfolio.db"), cfg.PortfolioPath())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("COORD_DATA_DIR", t.TempDir())
	t.Setenv("COORD_PORT", "9100")
	t.Setenv("COORD_DEFAULT_OWNER", " desk-1 ")
	t.Setenv("REGISTRY_DSN", "postgres://coord:secret@db:5432/registry?sslmode=disable")
	t.Setenv("COORD_CORS_ORIGINS", "http://localhost:3000, https://ops.example.com")
	t.Setenv("COORD_SESSION_RETENTION", "15m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "desk-1", cfg.DefaultOwner)
	assert.Equal(t, "postgres://coord:secret@db:5432/registry?sslmode=disable", cfg.RegistryPath())
	assert.Equal(t, []string{"http://localhost:3000", "https://ops.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 15*time.Minute, cfg.SessionRetention)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Port: 8001, SessionRetention: time.Hour}, false},
		{"port zero", Config{Port: 0, SessionRetention: time.Hour}, true},
		{"port too big", Config{Port: 70000, SessionRetention: time.Hour}, true},
		{"mysql dsn", Config{Port: 8001, RegistryDSN: "mysql://x", SessionRetention: time.Hour}, true},
		{"postgresql dsn", Config{Port: 8001, RegistryDSN: "postgresql://x/db", SessionRetention: time.Hour}, false},
		{"no retention", Config{Port: 8001}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
