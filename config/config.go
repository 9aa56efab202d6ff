package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tidbyt.dev/txc/storage"
)

// Overrides storage.database_url. Read from the process environment
// first, then from the .env files given to Load.
const DatabaseURLEnv = "TXC_DATABASE_URL"

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type StorageConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory sqlite postgres"`

	// SQLite database directory. In memory if empty.
	Directory string `yaml:"directory"`

	DatabaseURL string `yaml:"database_url" validate:"required_if=Backend postgres,omitempty,url"`

	// Drop all tables on connect. Postgres only.
	ClearDB bool `yaml:"clear_db"`
}

type ETLConfig struct {
	OrganisationName    string `yaml:"organisation_name" validate:"required"`
	BatchSize           int    `yaml:"batch_size" validate:"gt=0"`
	MaxFileSize         int64  `yaml:"max_file_size" validate:"gt=0"`
	MaxUncompressedSize int64  `yaml:"max_uncompressed_size" validate:"gt=0"`
	RejectExpired       bool   `yaml:"reject_expired"`
}

type Config struct {
	Storage  StorageConfig `yaml:"storage"`
	ETL      ETLConfig     `yaml:"etl"`
	LogLevel string        `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
		},
		ETL: ETLConfig{
			OrganisationName:    "unknown",
			BatchSize:           2000,
			MaxFileSize:         500 << 20,
			MaxUncompressedSize: 2 << 30,
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file on top of the defaults, applies
// DatabaseURLEnv and validates the result. An empty path gives the
// defaults. Missing env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		err = yaml.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
	}

	err := cfg.applyEnv(envFiles)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(envFiles []string) error {
	url := os.Getenv(DatabaseURLEnv)
	for _, f := range envFiles {
		if url != "" {
			break
		}
		vars, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", f, err)
		}
		url = vars[DatabaseURLEnv]
	}

	if url != "" {
		c.Storage.DatabaseURL = url
	}
	return nil
}

func (c *Config) Validate() error {
	v := validator.New()
	err := v.Struct(c)
	if err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// Open connects to the configured storage backend.
func (c StorageConfig) Open() (storage.Storage, error) {
	switch c.Backend {
	case BackendMemory:
		return storage.NewMemoryStorage(), nil
	case BackendSQLite:
		if c.Directory == "" {
			return storage.NewSQLiteStorage()
		}
		return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: c.Directory})
	case BackendPostgres:
		return storage.NewPSQLStorage(c.DatabaseURL, c.ClearDB)
	}
	return nil, fmt.Errorf("unknown storage backend '%s'", c.Backend)
}
