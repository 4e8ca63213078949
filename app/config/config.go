// Package config loads tasktree configuration.
//
// Values are layered, later sources winning:
//   - built-in defaults (Default),
//   - an optional YAML file named by --config or TASKTREE_CONFIG,
//   - TASKTREE_* environment variables,
//   - command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "TASKTREE_"

// Backend names accepted in store.backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config is the complete tasktree configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Neo4j  Neo4jConfig  `yaml:"neo4j"`
	HTTP   HTTPConfig   `yaml:"http"`
	Log    LogConfig    `yaml:"log"`
}

// StoreConfig selects the backing store.
type StoreConfig struct {
	// Backend is one of memory, sqlite or neo4j.
	Backend string `yaml:"backend"`

	// Timeout bounds every backend call.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path     string `yaml:"path"`
	PoolSize int    `yaml:"pool_size"`
}

// Neo4jConfig configures the Neo4j backend.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Database is the target database. Empty means the server default.
	Database string `yaml:"database"`
}

// HTTPConfig configures the REST server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendSQLite,
			Timeout: 5 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "tasktree.db",
		},
		Neo4j: Neo4jConfig{
			URI:      "neo4j://localhost:7687",
			Username: "neo4j",
			Password: "password",
		},
		HTTP: HTTPConfig{
			Addr: "0.0.0.0:8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFile reads the YAML file at path over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from TASKTREE_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if value, ok := lookup(EnvPrefix + name); ok {
			*dst = value
		}
	}
	str("STORE_BACKEND", &c.Store.Backend)
	str("SQLITE_PATH", &c.SQLite.Path)
	str("NEO4J_URI", &c.Neo4j.URI)
	str("NEO4J_USERNAME", &c.Neo4j.Username)
	str("NEO4J_PASSWORD", &c.Neo4j.Password)
	str("NEO4J_DATABASE", &c.Neo4j.Database)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if value, ok := lookup(EnvPrefix + "STORE_TIMEOUT"); ok {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSTORE_TIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Store.Timeout = timeout
		}
	}
	if value, ok := lookup(EnvPrefix + "SQLITE_POOL_SIZE"); ok {
		size, err := strconv.Atoi(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSQLITE_POOL_SIZE: %w", EnvPrefix, err))
		} else {
			c.SQLite.PoolSize = size
		}
	}
	return errors.Join(errs...)
}

// AddFlags binds one flag per field, defaulting to the current values.
func (c *Config) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.Store.Backend, "store", c.Store.Backend, "backing store: memory, sqlite or neo4j")
	flagSet.DurationVar(&c.Store.Timeout, "store-timeout", c.Store.Timeout, "deadline for each backing store call")
	flagSet.StringVar(&c.SQLite.Path, "sqlite-path", c.SQLite.Path, "SQLite database file")
	flagSet.IntVar(&c.SQLite.PoolSize, "sqlite-pool-size", c.SQLite.PoolSize, "SQLite connection pool size (0 picks one from the CPU count)")
	flagSet.StringVar(&c.Neo4j.URI, "neo4j-uri", c.Neo4j.URI, "Neo4j bolt or neo4j URI")
	flagSet.StringVar(&c.Neo4j.Username, "neo4j-username", c.Neo4j.Username, "Neo4j user")
	flagSet.StringVar(&c.Neo4j.Password, "neo4j-password", c.Neo4j.Password, "Neo4j password")
	flagSet.StringVar(&c.Neo4j.Database, "neo4j-database", c.Neo4j.Database, "Neo4j database (empty for the server default)")
	flagSet.StringVar(&c.HTTP.Addr, "http-addr", c.HTTP.Addr, "REST listen address")
	flagSet.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: debug, info, warn or error")
	flagSet.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format: json or text")
}

// Load builds the configuration for a command named name from its
// arguments and environment. It returns pflag.ErrHelp when --help is
// given.
func Load(name string, args []string, lookup func(string) (string, bool)) (*Config, error) {
	path, err := configPath(name, args)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path, _ = lookup(EnvPrefix + "CONFIG")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.String("config", path, "YAML configuration file")
	cfg.AddFlags(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath pulls --config out of args without reacting to any other flag.
func configPath(name string, args []string) (string, error) {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.ParseErrorsWhitelist.UnknownFlags = true
	flagSet.SetOutput(io.Discard)
	flagSet.Usage = func() {}
	path := flagSet.String("config", "", "")
	flagSet.BoolP("help", "h", false, "")
	if err := flagSet.Parse(args); err != nil {
		return "", err
	}
	return *path, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			errs = append(errs, fmt.Errorf("sqlite.path is required for the sqlite backend"))
		}
		if c.SQLite.PoolSize < 0 {
			errs = append(errs, fmt.Errorf("sqlite.pool_size must not be negative"))
		}
	case BackendNeo4j:
		if c.Neo4j.URI == "" {
			errs = append(errs, fmt.Errorf("neo4j.uri is required for the neo4j backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q (want memory, sqlite or neo4j)", c.Store.Backend))
	}

	if c.Store.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("store.timeout must be positive, got %s", c.Store.Timeout))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format: want json or text, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
