package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StorageSQLite = "sqlite"
	StorageFile   = "file"
	StorageMemory = "memory"

	DescribeMock   = "mock"
	DescribeOllama = "ollama"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"dev"`
	Port          string `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	SessionSecret string `env:"SESSION_SECRET"`

	// Sessions idle longer than SessionIdleTTL are dropped from memory; their saved
	// histories stay in storage. MaxSessions caps the sessions held at once.
	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	MaxSessions    int           `env:"MAX_SESSIONS" envDefault:"1000"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	DBPath        string `env:"DB_PATH" envDefault:"./dev.db"`
	StatePath     string `env:"STATE_PATH" envDefault:"./quotecalc-state.json"`
	CatalogPath   string `env:"CATALOG_PATH"`

	DescribeMode string `env:"DESCRIBE_MODE" envDefault:"mock"`
	OllamaURL    string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OllamaModel  string `env:"OLLAMA_MODEL" envDefault:"llama2"`

	Company Company `envPrefix:"COMPANY_"`
}

// Company is the letterhead printed on quotes.
type Company struct {
	Name    string `env:"NAME" envDefault:"Error Computer Repair"`
	Address string `env:"ADDRESS" envDefault:"651 N Egret Bay Blvd, League City, TX 77573"`
	Phone   string `env:"PHONE" envDefault:"832.377.6727"`
	Email   string `env:"EMAIL" envDefault:"error@error-cr.com"`
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse()
}

func parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if !slices.Contains([]string{StorageSQLite, StorageFile, StorageMemory}, cfg.StorageDriver) {
		return Config{}, fmt.Errorf("STORAGE_DRIVER must be one of sqlite, file, memory (got %q)", cfg.StorageDriver)
	}
	if cfg.SessionIdleTTL <= 0 {
		return Config{}, fmt.Errorf("SESSION_IDLE_TTL must be positive (got %s)", cfg.SessionIdleTTL)
	}
	if cfg.MaxSessions < 1 {
		return Config{}, fmt.Errorf("MAX_SESSIONS must be at least 1 (got %d)", cfg.MaxSessions)
	}
	if !slices.Contains([]string{DescribeMock, DescribeOllama}, cfg.DescribeMode) {
		return Config{}, fmt.Errorf("DESCRIBE_MODE must be mock or ollama (got %q)", cfg.DescribeMode)
	}
	return cfg, nil
}

func (c Config) IsDev() bool { return c.AppEnv == "dev" }

// Warnings lists settings that are allowed but unsafe outside development.
func (c Config) Warnings() []string {
	var out []string
	if c.SessionSecret == "" {
		out = append(out, "SESSION_SECRET is not set")
	}
	return out
}
