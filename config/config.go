package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all server configuration
type Config struct {
	// Listener
	Host            string        `env:"LEDGER_HOST" envDefault:""`
	Port            int           `env:"LEDGER_PORT" envDefault:"5432"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxLineBytes    int           `env:"MAX_LINE_BYTES" envDefault:"4096"`

	// Store
	StoreDriver  string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"` // replaces the database in DatabaseURL when set
	DBMaxConns   int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns   int32  `env:"DB_MIN_CONNS" envDefault:"1"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Ledger
	DefaultUserID   int64           `env:"DEFAULT_USER_ID" envDefault:"1"`
	StartingBalance decimal.Decimal `env:"STARTING_BALANCE" envDefault:"100.00"`
	StrictList      bool            `env:"STRICT_LIST" envDefault:"false"`

	// Seeded on first start
	DefaultFirstName string `env:"DEFAULT_USER_FIRST_NAME" envDefault:"Robby"`
	DefaultLastName  string `env:"DEFAULT_USER_LAST_NAME" envDefault:"Bobby"`
	DefaultUserName  string `env:"DEFAULT_USER_NAME" envDefault:"Rob_bob"`
	DefaultPassword  string `env:"DEFAULT_USER_PASSWORD" envDefault:"password123"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// ClientConfig holds the trader client configuration
type ClientConfig struct {
	Port int `env:"LEDGER_PORT" envDefault:"5432"`
}

var parsers = map[reflect.Type]env.ParserFunc{
	reflect.TypeOf(decimal.Decimal{}): func(v string) (interface{}, error) {
		return decimal.NewFromString(v)
	},
}

// Option overrides a loaded value before validation
type Option func(*Config)

// WithStoreDriver selects the store regardless of STORE_DRIVER
func WithStoreDriver(driver string) Option {
	return func(c *Config) {
		c.StoreDriver = driver
	}
}

// Load reads an optional .env file, then the environment, applies opts and validates the result
func Load(opts ...Option) (*Config, error) {
	loadDotEnv()

	cfg := &Config{}
	if err := env.ParseWithFuncs(cfg, parsers); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadClient reads the client configuration
func LoadClient() (*ClientConfig, error) {
	loadDotEnv()

	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := validatePort(cfg.Port); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}
}

// Validate checks that all values are usable
func (c *Config) Validate() error {
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be >= 0, got %s", c.ShutdownTimeout)
	}
	if c.MaxLineBytes < 64 {
		return fmt.Errorf("MAX_LINE_BYTES must be >= 64, got %d", c.MaxLineBytes)
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
		if c.DBMaxConns < 1 {
			return fmt.Errorf("DB_MAX_CONNS must be >= 1, got %d", c.DBMaxConns)
		}
		if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS, got %d", c.DBMinConns)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}

	if c.DefaultUserID < 1 {
		return fmt.Errorf("DEFAULT_USER_ID must be >= 1, got %d", c.DefaultUserID)
	}
	if !c.StartingBalance.IsPositive() {
		return fmt.Errorf("STARTING_BALANCE must be > 0, got %s", c.StartingBalance)
	}
	if c.DefaultUserName == "" {
		return errors.New("DEFAULT_USER_NAME is required")
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("LOG_FORMAT must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat)
	}

	return nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("LEDGER_PORT must be between 1 and 65535, got %d", port)
	}
	return nil
}
