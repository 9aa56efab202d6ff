package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/txc/storage"
)

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 2000, cfg.ETL.BatchSize)
}

func TestLoadFile(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")
	dir := t.TempDir()

	path := writeFile(t, dir, "txc.yml", `
storage:
  backend: postgres
  database_url: postgres://localhost:5432/txc
  clear_db: true
etl:
  organisation_name: FirstBus
  batch_size: 500
  reject_expired: true
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost:5432/txc", cfg.Storage.DatabaseURL)
	assert.True(t, cfg.Storage.ClearDB)
	assert.Equal(t, "FirstBus", cfg.ETL.OrganisationName)
	assert.Equal(t, 500, cfg.ETL.BatchSize)
	assert.True(t, cfg.ETL.RejectExpired)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Unset values keep their defaults.
	assert.Equal(t, int64(500<<20), cfg.ETL.MaxFileSize)
	assert.Equal(t, int64(2<<30), cfg.ETL.MaxUncompressedSize)
}

func TestLoadEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "txc.yml", "storage:\n  backend: postgres\n  database_url: postgres://file/txc\n")
	env := writeFile(t, dir, ".env", DatabaseURLEnv+"=postgres://dotenv/txc\n")

	t.Run("env file", func(t *testing.T) {
		t.Setenv(DatabaseURLEnv, "")
		cfg, err := Load(path, filepath.Join(dir, "missing.env"), env)
		require.NoError(t, err)
		assert.Equal(t, "postgres://dotenv/txc", cfg.Storage.DatabaseURL)
	})

	t.Run("process env wins", func(t *testing.T) {
		t.Setenv(DatabaseURLEnv, "postgres://process/txc")
		cfg, err := Load(path, env)
		require.NoError(t, err)
		assert.Equal(t, "postgres://process/txc", cfg.Storage.DatabaseURL)
	})

	t.Run("missing env file", func(t *testing.T) {
		t.Setenv(DatabaseURLEnv, "")
		cfg, err := Load(path, filepath.Join(dir, "missing.env"))
		require.NoError(t, err)
		assert.Equal(t, "postgres://file/txc", cfg.Storage.DatabaseURL)
	})
}

func TestLoadErrors(t *testing.T) {
	t.Setenv(DatabaseURLEnv, "")
	dir := t.TempDir()

	for _, tc := range []struct {
		name       string
		content    string
		validation bool
	}{
		{"invalid_yaml", "storage: [[[", false},
		{"unknown_backend", "storage:\n  backend: mysql\n", true},
		{"postgres_without_url", "storage:\n  backend: postgres\n", true},
		{"zero_batch_size", "etl:\n  batch_size: 0\n", true},
		{"empty_organisation", "etl:\n  organisation_name: \"\"\n", true},
		{"bad_log_level", "log_level: loud\n", true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.name+".yml", tc.content)
			_, err := Load(path)
			require.Error(t, err)

			var verrs validator.ValidationErrors
			assert.Equal(t, tc.validation, errors.As(err, &verrs), "unexpected error: %v", err)
		})
	}

	_, err := Load(filepath.Join(dir, "nope.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStorageOpen(t *testing.T) {
	s, err := StorageConfig{Backend: BackendMemory}.Open()
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, s)
	require.NoError(t, s.Close())

	s, err = StorageConfig{Backend: BackendSQLite}.Open()
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLiteStorage{}, s)
	require.NoError(t, s.Close())

	s, err = StorageConfig{Backend: BackendSQLite, Directory: t.TempDir()}.Open()
	require.NoError(t, err)
	id, err := s.CreateRevision("draft", "FirstBus")
	require.NoError(t, err)
	assert.NotZero(t, id)
	require.NoError(t, s.Close())

	_, err = StorageConfig{Backend: "mysql"}.Open()
	assert.Error(t, err)
}
