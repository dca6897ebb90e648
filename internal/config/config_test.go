package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/geopulse-companion/internal/config"
)

// clearEnv blanks every variable Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEOPULSE_CONFIG", "PORT", "LOG_LEVEL", "CORS_ORIGINS", "GEOPULSE_API_URL",
		"STORAGE_DRIVER", "STORAGE_PATH", "DATABASE_URL", "CLIENT_ID", "MAX_BODY_BYTES",
	} {
		t.Setenv(key, "")
	}
}

// TestLoad_defaults verifies that optional values fall back to their defaults
// when only the required GEOPULSE_API_URL is provided.
func TestLoad_defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEOPULSE_API_URL", "http://localhost:8080/api")

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	require.Equal(t, config.DriverFile, cfg.StorageDriver)
	require.Equal(t, "store.json", filepath.Base(cfg.StoragePath))
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.NotEqual(t, uuid.Nil, cfg.ClientID)
}

// TestLoad_overrides verifies that all values can be overridden via env vars.
func TestLoad_overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEOPULSE_API_URL", "https://geopulse.example/api")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://user:pass@db:5432/geopulse")
	t.Setenv("CLIENT_ID", "5b0e2f0c-1d5a-4b44-9d1e-2d1c1f0a9e11")
	t.Setenv("MAX_BODY_BYTES", "4096")

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSOrigins)
	require.Equal(t, config.DriverPostgres, cfg.StorageDriver)
	require.Equal(t, "postgres://user:pass@db:5432/geopulse", cfg.DatabaseURL)
	require.Equal(t, "5b0e2f0c-1d5a-4b44-9d1e-2d1c1f0a9e11", cfg.ClientID.String())
	require.Equal(t, int64(4096), cfg.MaxBodyBytes)
}

// TestLoad_missingRequired verifies that every missing required variable is
// named in one error.
func TestLoad_missingRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_DRIVER", "postgres")

	_, err := config.Load()

	require.Error(t, err)
	require.ErrorContains(t, err, "GEOPULSE_API_URL")
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_unknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEOPULSE_API_URL", "http://localhost/api")
	t.Setenv("STORAGE_DRIVER", "redis")

	_, err := config.Load()

	require.ErrorContains(t, err, "STORAGE_DRIVER")
}

func TestLoad_badClientID(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEOPULSE_API_URL", "http://localhost/api")
	t.Setenv("CLIENT_ID", "not-a-uuid")

	_, err := config.Load()

	require.ErrorContains(t, err, "CLIENT_ID")
}

// TestLoad_file verifies the TOML overlay and that the environment wins.
func TestLoad_file(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "geopulse.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url = "https://from-file.example/api"
port = "7000"
cors_origins = ["https://a.example", "https://b.example"]

[storage]
driver = "sqlite"
path = "/var/lib/geopulse/store.db"
`), 0o600))
	t.Setenv("GEOPULSE_CONFIG", path)
	t.Setenv("PORT", "7001")

	cfg, err := config.Load()

	require.NoError(t, err)
	require.Equal(t, path, cfg.File)
	require.Equal(t, "https://from-file.example/api", cfg.APIURL)
	require.Equal(t, "7001", cfg.Port, "environment wins over the file")
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.Equal(t, config.DriverSQLite, cfg.StorageDriver)
	require.Equal(t, "/var/lib/geopulse/store.db", cfg.StoragePath)
}

func TestLoad_fileUnknownKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "geopulse.toml")
	require.NoError(t, os.WriteFile(path, []byte("api_url = \"http://x/api\"\nprot = \"1\"\n"), 0o600))
	t.Setenv("GEOPULSE_CONFIG", path)

	_, err := config.Load()

	require.ErrorContains(t, err, "prot")
}

func TestParse_flagsLayeredBeforeValidate(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Parse()
	require.NoError(t, err)
	require.Error(t, cfg.Validate())

	cfg.APIURL = "http://from-flag/api"
	require.NoError(t, cfg.Validate())
}
