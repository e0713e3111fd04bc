// Package config loads the peer configuration.
//
// The configuration is a single YAML file named on the command line or by
// the BTIDE_CONFIG environment variable. Legacy files with no space after
// the colon ("port:8080") are accepted too.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Limits on peer settings.
const (
	MinMaxPeers = 1
	MaxMaxPeers = 2048
	MinPort     = 1024
	MaxPort     = 65535
)

var (
	ErrDirectoryRequired = errors.New("config: directory is required")
	ErrNotDirectory      = errors.New("config: path is not a directory")
	ErrInvalidMaxPeers   = errors.New("config: max_peers out of range")
	ErrInvalidPort       = errors.New("config: port out of range")
	ErrInvalidLogLevel   = errors.New("config: invalid log_level")
	ErrNoConfigPath      = errors.New("config: BTIDE_CONFIG not set")
)

// Config is the peer configuration.
type Config struct {
	// Directory holds package manifests and their target files.
	Directory string `yaml:"directory"`

	// MaxPeers bounds the number of outbound peer connections.
	MaxPeers int `yaml:"max_peers"`

	// Port is the TCP port the peer listens on.
	Port int `yaml:"port"`

	// Registry is the SQLite database of managed packages.
	// Default: <directory>/registry.db
	Registry string `yaml:"registry"`

	// AdminAddr is the listen address of the HTTP admin API. Empty disables it.
	AdminAddr string `yaml:"admin_addr"`

	// LogLevel is a logrus level name.
	// Default: info
	LogLevel string `yaml:"log_level"`
}

// Default returns a configuration with every optional field set.
func Default() *Config {
	return &Config{
		MaxPeers: 64,
		Port:     9000,
		LogLevel: "info",
	}
}

// Load loads the file named by BTIDE_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv("BTIDE_CONFIG")
	if path == "" {
		return nil, ErrNoConfigPath
	}
	return LoadFile(path)
}

// LoadFile loads and validates the configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(normalizeLegacy(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Directory = os.ExpandEnv(cfg.Directory)
	cfg.Registry = os.ExpandEnv(cfg.Registry)
	if cfg.Registry == "" && cfg.Directory != "" {
		cfg.Registry = filepath.Join(cfg.Directory, "registry.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Directory == "" {
		errs = append(errs, ErrDirectoryRequired)
	}
	if c.MaxPeers < MinMaxPeers || c.MaxPeers > MaxMaxPeers {
		errs = append(errs, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidMaxPeers, c.MaxPeers, MinMaxPeers, MaxMaxPeers))
	}
	if c.Port < MinPort || c.Port > MaxPort {
		errs = append(errs, fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidPort, c.Port, MinPort, MaxPort))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel))
	}
	return errors.Join(errs...)
}

// Level returns the configured logrus level.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// ListenAddr is the TCP address the peer server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// EnsureDirectory creates path with mode 0700 when missing. It fails when
// path exists and is not a directory.
func EnsureDirectory(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s", ErrNotDirectory, path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("config: create directory %s: %w", path, err)
	}
	return nil
}

var legacyLine = regexp.MustCompile(`(?m)^([A-Za-z_][A-Za-z0-9_]*):([^\s])`)

// normalizeLegacy turns "key:value" lines into "key: value".
func normalizeLegacy(data []byte) []byte {
	return legacyLine.ReplaceAll(data, []byte("$1: $2"))
}
