// Package config loads and validates application configuration from
// environment variables, optionally layered over a TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration values for the API server and the CLI.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	CORSOrigins []string

	// APIURL is the GeoPulse API root, e.g. https://geopulse.example/api. Required.
	APIURL string

	// StorageDriver selects where the snapshot, theme and credentials live:
	// memory, file, sqlite or postgres. Defaults to "file".
	StorageDriver string

	// StoragePath is the file or SQLite database path. Defaults to a file
	// under the user's config directory.
	StoragePath string

	// DatabaseURL is the Postgres connection string. Required for postgres.
	DatabaseURL string

	// ClientID scopes Postgres storage rows to this installation. Defaults to
	// a UUID derived from the host name.
	ClientID uuid.UUID

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// File is the TOML file the values were layered over, if any.
	File string
}

// fileConfig is the TOML layout read from GEOPULSE_CONFIG.
type fileConfig struct {
	Port         string   `toml:"port"`
	LogLevel     string   `toml:"log_level"`
	CORSOrigins  []string `toml:"cors_origins"`
	APIURL       string   `toml:"api_url"`
	MaxBodyBytes int64    `toml:"max_body_bytes"`
	Storage      struct {
		Driver      string `toml:"driver"`
		Path        string `toml:"path"`
		DatabaseURL string `toml:"database_url"`
		ClientID    string `toml:"client_id"`
	} `toml:"storage"`
}

// Load reads configuration and validates it.
func Load() (Config, error) {
	cfg, err := Parse()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse reads the TOML file named by GEOPULSE_CONFIG (if set) and then the
// environment; environment variables win. It applies defaults but does not
// check required values, so callers can layer flags before Validate.
func Parse() (Config, error) {
	var fc fileConfig
	path := os.Getenv("GEOPULSE_CONFIG")
	if path != "" {
		md, err := toml.DecodeFile(path, &fc)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}

	cfg := Config{
		Port:          getEnv("PORT", first(fc.Port, "8080")),
		LogLevel:      getEnv("LOG_LEVEL", first(fc.LogLevel, "info")),
		CORSOrigins:   splitCSV(getEnv("CORS_ORIGINS", first(strings.Join(fc.CORSOrigins, ","), "http://localhost:5173"))),
		APIURL:        getEnv("GEOPULSE_API_URL", fc.APIURL),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", first(fc.Storage.Driver, DriverFile))),
		StoragePath:   getEnv("STORAGE_PATH", fc.Storage.Path),
		DatabaseURL:   getEnv("DATABASE_URL", fc.Storage.DatabaseURL),
		File:          path,
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = DefaultStoragePath(cfg.StorageDriver)
	}

	maxBody := getEnv("MAX_BODY_BYTES", "")
	switch {
	case maxBody != "":
		n, err := strconv.ParseInt(maxBody, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	case fc.MaxBodyBytes != 0:
		cfg.MaxBodyBytes = fc.MaxBodyBytes
	default:
		cfg.MaxBodyBytes = 1 << 20
	}

	if id := getEnv("CLIENT_ID", fc.Storage.ClientID); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return Config{}, fmt.Errorf("CLIENT_ID: %w", err)
		}
		cfg.ClientID = parsed
	} else {
		host, _ := os.Hostname()
		cfg.ClientID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("geopulse-companion:"+host))
	}
	return cfg, nil
}

// Validate reports missing or inconsistent values, listing every missing
// required variable at once.
func (c Config) Validate() error {
	var missing []string
	if c.APIURL == "" {
		missing = append(missing, "GEOPULSE_API_URL")
	}
	if c.StorageDriver == DriverPostgres && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	switch c.StorageDriver {
	case DriverMemory, DriverFile, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("STORAGE_DRIVER %q: must be one of memory, file, sqlite, postgres", c.StorageDriver)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	return nil
}

// DefaultStoragePath is where driver keeps its data when STORAGE_PATH is unset.
func DefaultStoragePath(driver string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	name := "store.json"
	if driver == DriverSQLite {
		name = "store.db"
	}
	return filepath.Join(dir, "geopulse", name)
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func first(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
