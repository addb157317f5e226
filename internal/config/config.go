// Package config loads service settings from an optional YAML file, then
// the environment (and .env), in that order of precedence.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey struct{}

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the config stored by WithContext, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(ctxKey{}).(*Config)
	return cfg
}

type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StoreBadger   StoreBackend = "badger"
	StorePostgres StoreBackend = "postgres"
	StoreSQLite   StoreBackend = "sqlite"
)

func (b StoreBackend) Valid() bool {
	switch b {
	case StoreMemory, StoreBadger, StorePostgres, StoreSQLite:
		return true
	}
	return false
}

// Postgres fields resolve to POSTGRES_HOST, POSTGRES_PORT and so on.
type Postgres struct {
	Host     string `yaml:"host"     envconfig:"HOST"`
	Port     string `yaml:"port"     envconfig:"PORT"`
	User     string `yaml:"user"     envconfig:"USER"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       string `yaml:"db"       envconfig:"DB"`
}

type Config struct {
	HTTPAddr    string   `yaml:"httpAddr"    envconfig:"HTTP_ADDR"`
	LogLevel    string   `yaml:"logLevel"    envconfig:"LOG_LEVEL"`
	CORSOrigins []string `yaml:"corsOrigins" envconfig:"CORS_ORIGINS"`

	StoreBackend StoreBackend `yaml:"storeBackend" envconfig:"STORE_BACKEND"`
	BadgerDir    string       `yaml:"badgerDir"    envconfig:"BADGER_DIR"`
	SQLitePath   string       `yaml:"sqlitePath"   envconfig:"SQLITE_PATH"`
	Postgres     Postgres     `yaml:"postgres"`

	RedisURL string        `yaml:"redisUrl" envconfig:"REDIS_URL"`
	CacheTTL time.Duration `yaml:"cacheTtl" envconfig:"CACHE_TTL"`

	JWTSecret string `yaml:"jwtSecret" envconfig:"JWT_SECRET"`

	TreasuryAccount    string        `yaml:"treasuryAccount"    envconfig:"TREASURY_ACCOUNT"`
	PoolAccount        string        `yaml:"poolAccount"        envconfig:"POOL_ACCOUNT"`
	EnableSimpleVoting bool          `yaml:"enableSimpleVoting" envconfig:"ENABLE_SIMPLE_VOTING"`
	StatusClearDelay   time.Duration `yaml:"statusClearDelay"   envconfig:"STATUS_CLEAR_DELAY"`

	OracleKeyFile string        `yaml:"oracleKeyFile"  envconfig:"ORACLE_KEY_FILE"`
	OracleKeyBits int           `yaml:"oracleKeyBits"  envconfig:"ORACLE_KEY_BITS"`
	OracleDelay   time.Duration `yaml:"oracleDelay"    envconfig:"ORACLE_DELAY"`
}

func Default() *Config {
	return &Config{
		HTTPAddr:         "0.0.0.0:8080",
		LogLevel:         "info",
		CORSOrigins:      []string{"http://localhost:3000"},
		StoreBackend:     StoreMemory,
		SQLitePath:       "curation.db",
		Postgres:         Postgres{Host: "localhost", Port: "5432"},
		CacheTTL:         30 * time.Second,
		TreasuryAccount:  "treasury",
		PoolAccount:      "pool",
		StatusClearDelay: 5 * time.Second,
		OracleKeyFile:    "oracle-keys.json",
		OracleKeyBits:    2048,
	}
}

// Load reads .env when present, overlays configFile (YAML) onto the
// defaults, then applies environment variables. An empty configFile falls
// back to $CONFIG_FILE.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	cfg := Default()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if !c.StoreBackend.Valid() {
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.StoreBackend))
	}
	if c.PoolAccount == "" {
		errs = append(errs, errors.New("pool account must not be empty"))
	}
	if c.TreasuryAccount == "" {
		errs = append(errs, errors.New("treasury account must not be empty"))
	}
	if c.OracleKeyBits < 512 {
		errs = append(errs, fmt.Errorf("oracle key size %d is below 512 bits", c.OracleKeyBits))
	}
	if c.StoreBackend == StorePostgres && (c.Postgres.User == "" || c.Postgres.DB == "") {
		errs = append(errs, errors.New("POSTGRES_USER and POSTGRES_DB are required for the postgres backend"))
	}
	return errors.Join(errs...)
}

// RequireJWTSecret is checked by binaries that issue or verify sessions.
func (c *Config) RequireJWTSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}
