package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as a string such as "4s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StoreConfig selects and configures the repository backend.
type StoreConfig struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	PoolSize int    `toml:"pool_size"`
}

// SchedulerConfig holds the background loop intervals.
type SchedulerConfig struct {
	PrepareInterval Duration `toml:"prepare_interval"`
	AssignInterval  Duration `toml:"assign_interval"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefinitionsConfig points at a directory of YAML pipeline definitions.
type DefinitionsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// ClientConfig holds hawkctl settings.
type ClientConfig struct {
	Server          string   `toml:"server"`
	RefreshInterval Duration `toml:"refresh_interval"`
}

// Config holds all hawkd and hawkctl configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Store       StoreConfig       `toml:"store"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Log         LogConfig         `toml:"log"`
	Definitions DefinitionsConfig `toml:"definitions"`
	Client      ClientConfig      `toml:"client"`
}

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Default returns the configuration used for anything a file leaves unset.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Store:  StoreConfig{Driver: DriverSQLite, Path: "hawkcd.db"},
		Scheduler: SchedulerConfig{
			PrepareInterval: Duration{4 * time.Second},
			AssignInterval:  Duration{2 * time.Second},
		},
		Log:    LogConfig{Level: "INFO", Format: "json"},
		Client: ClientConfig{Server: "http://localhost:8080", RefreshInterval: Duration{5 * time.Second}},
	}
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s driver", DriverSQLite)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Scheduler.PrepareInterval.Duration <= 0 || c.Scheduler.AssignInterval.Duration <= 0 {
		return fmt.Errorf("scheduler intervals must be positive")
	}
	return nil
}

// LoadFrom reads configuration from the given TOML file path on top of
// Default. If the file does not exist, the defaults are returned without error.
// Environment variables always take precedence over file values:
//   - HAWKD_ADDR            overrides server.addr
//   - HAWKD_STORE_DRIVER    overrides store.driver
//   - HAWKD_STORE_PATH      overrides store.path
//   - HAWKD_LOG_LEVEL       overrides log.level
//   - HAWKD_DEFINITIONS_DIR overrides definitions.dir
//   - HAWKCTL_SERVER        overrides client.server
func LoadFrom(path string) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// DefaultConfigPath returns the default path for the hawkd config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return home + "/.config/hawkcd/hawkd.toml"
}

// DefaultClientConfigPath returns the default path for the hawkctl config file.
func DefaultClientConfigPath() string {
	home, _ := os.UserHomeDir()
	return home + "/.config/hawkcd/hawkctl.toml"
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HAWKD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("HAWKD_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("HAWKD_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HAWKD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HAWKD_DEFINITIONS_DIR"); v != "" {
		cfg.Definitions.Dir = v
	}
	if v := os.Getenv("HAWKCTL_SERVER"); v != "" {
		cfg.Client.Server = v
	}
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
