package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/recman/recman/pkg/records"
	"github.com/recman/recman/pkg/telemetry"
)

// Backend names.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// DefaultPath is the config file used when none is given.
const DefaultPath = "recman.yaml"

// Config is the recman configuration file.
type Config struct {
	// Backend selects the store backend.
	Backend string `yaml:"backend" validate:"required,oneof=csv sqlite redis"`

	CSV    CSVConfig    `yaml:"csv"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`

	Telemetry telemetry.Config `yaml:"telemetry" validate:"-"`
}

// CSVConfig configures the CSV backend.
type CSVConfig struct {
	Input   string `yaml:"input" validate:"required"`
	Output  string `yaml:"output"`
	MaxRows int    `yaml:"max_rows" validate:"gte=-1"`
	Strict  bool   `yaml:"strict"`
	Layout  string `yaml:"layout" validate:"omitempty,oneof=department salary"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path        string        `yaml:"path" validate:"required"`
	BusyTimeout time.Duration `yaml:"busy_timeout" validate:"gte=0"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" validate:"required,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0,lte=15"`
	Prefix   string `yaml:"prefix"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend: BackendCSV,
		CSV: CSVConfig{
			Input:   "data.csv",
			Output:  "output.csv",
			MaxRows: 100,
			Layout:  string(records.LayoutDepartment),
		},
		SQLite: SQLiteConfig{
			Path:        "records.db",
			BusyTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "recman",
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads the config file at path on top of the defaults. A missing file
// is not an error when path is the default path.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML data on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the section of the selected backend and the telemetry
// settings. Sections of unused backends are not checked.
func (c *Config) Validate() error {
	v := validator.New()

	if err := v.Var(c.Backend, "required,oneof=csv sqlite redis"); err != nil {
		return fmt.Errorf("invalid backend %q: must be one of csv, sqlite, redis", c.Backend)
	}

	var section interface{}
	switch c.Backend {
	case BackendCSV:
		section = c.CSV
	case BackendSQLite:
		section = c.SQLite
	case BackendRedis:
		section = c.Redis
	}
	if err := v.Struct(section); err != nil {
		return fmt.Errorf("%s config validation failed: %w", c.Backend, err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry config validation failed: %w", err)
	}
	return nil
}

// Overrides are command line values that replace file values when set.
type Overrides struct {
	Backend string
	Input   string
	Output  string
	DBPath  string
}

// Apply replaces config values with the non-empty overrides and revalidates.
func (c *Config) Apply(o Overrides) error {
	if o.Backend != "" {
		c.Backend = o.Backend
	}
	if o.Input != "" {
		c.CSV.Input = o.Input
	}
	if o.Output != "" {
		c.CSV.Output = o.Output
	}
	if o.DBPath != "" {
		c.SQLite.Path = o.DBPath
	}
	return c.Validate()
}

// Write encodes the config as YAML to path.
func (c *Config) Write(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Marshal encodes the config as YAML with a short header.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# recman configuration\n\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}
