package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

func writeConfig(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "vault.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"database": map[string]any{
			"backend": "embedded",
		},
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendEmbedded, cfg.Database.Backend)
	assert.Equal(t, "./spatial.db", cfg.Database.Embedded.Path)
}

func TestLoadPostgresConnection(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"database": map[string]any{
			"backend": "postgres",
			"postgres": map[string]any{
				"host":   "db.internal",
				"port":   5433,
				"user":   "vault",
				"dbname": "pebblevault",
			},
		},
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Database.Backend)
	assert.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, 5433, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
}

func TestLoadUnknownBackendIsConfigInvalid(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"database": map[string]any{
			"backend": "radius-store",
		},
	})

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, vaulterrors.ErrConfigInvalid)
}

func TestLoadMissingFileIsConfigInvalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, vaulterrors.ErrConfigInvalid)
}
