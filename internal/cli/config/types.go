// Package config provides configuration management for the uqtable CLI.
//
// This package extends the shared project configuration in internal/config
// with CLI-specific fields (verbosity, log level, output mode). The shared
// types are re-exported here via type aliases for convenience.
package config

import (
	"time"

	intconfig "github.com/leapstack-labs/uqtable/internal/config"
)

// StoreConfig is an alias for the shared store configuration.
type StoreConfig = intconfig.StoreConfig

// PartitionConfig is an alias for the shared partition configuration.
type PartitionConfig = intconfig.PartitionConfig

// Config holds all CLI configuration options.
type Config struct {
	Format       string           `koanf:"format"`
	OutputDir    string           `koanf:"output_dir"`
	Jobs         int              `koanf:"jobs"`
	AtomicWrite  bool             `koanf:"atomic_write"`
	Debounce     time.Duration    `koanf:"debounce"`
	Verbose      bool             `koanf:"verbose"`
	LogLevel     string           `koanf:"log_level"`
	OutputFormat string           `koanf:"output"`
	MetricsAddr  string           `koanf:"metrics_addr"`
	Partition    *PartitionConfig `koanf:"partition"`
	Store        *StoreConfig     `koanf:"store"`

	// ProjectRoot is the directory holding the config file, or the working
	// directory when none was found.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultFormat    = intconfig.DefaultFormat
	DefaultOutputDir = intconfig.DefaultOutputDir
	DefaultLogLevel  = LogLevelNone
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// Log levels accepted by log_level.
const (
	LogLevelNone  = "none"
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
)

// Default returns the configuration used when nothing was loaded.
func Default() *Config {
	p := &intconfig.ProjectConfig{}
	intconfig.ApplyDefaults(p)
	return &Config{
		Format:       p.Format,
		OutputDir:    p.OutputDir,
		Debounce:     p.Debounce,
		LogLevel:     DefaultLogLevel,
		OutputFormat: DefaultOutput,
		Partition:    p.Partition,
		Store:        p.Store,
	}
}

// Project returns the shared subset of c.
func (c *Config) Project() *intconfig.ProjectConfig {
	return &intconfig.ProjectConfig{
		Format:      c.Format,
		OutputDir:   c.OutputDir,
		Jobs:        c.Jobs,
		AtomicWrite: c.AtomicWrite,
		Debounce:    c.Debounce,
		Partition:   c.Partition,
		Store:       c.Store,
	}
}
