package config

import (
	"time"

	"github.com/leapstack-labs/uqtable/internal/convert"
	"github.com/leapstack-labs/uqtable/pkg/partition"
)

// Default configuration values.
const (
	DefaultFormat        = "table"
	DefaultOutputDir     = "."
	DefaultStoreType     = "sqlite"
	DefaultStoreDatabase = ".uqtable/archive.db"
	DefaultPostgresPort  = 5432
	DefaultSSLMode       = "disable"
	DefaultSentinel      = partition.DefaultSentinel
)

// DefaultDebounce is the quiet period watch waits for before converting a file.
const DefaultDebounce time.Duration = convert.DefaultDebounce

// ApplyDefaults fills unset project values.
func ApplyDefaults(c *ProjectConfig) {
	if c == nil {
		return
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Partition == nil {
		c.Partition = &PartitionConfig{}
	}
	ApplyPartitionDefaults(c.Partition)
	if c.Store == nil {
		c.Store = &StoreConfig{}
	}
	ApplyStoreDefaults(c.Store)
}

// ApplyPartitionDefaults fills an empty sentinel.
func ApplyPartitionDefaults(p *PartitionConfig) {
	if p == nil {
		return
	}
	if p.Sentinel == "" {
		p.Sentinel = DefaultSentinel
	}
}

// ApplyStoreDefaults applies default values based on the store type.
func ApplyStoreDefaults(s *StoreConfig) {
	if s == nil {
		return
	}
	if s.Type == "" {
		s.Type = DefaultStoreType
	}
	switch s.Type {
	case "sqlite":
		if s.Database == "" {
			s.Database = DefaultStoreDatabase
		}
	case "postgres":
		if s.Port == 0 {
			s.Port = DefaultPostgresPort
		}
		if s.SSLMode == "" {
			s.SSLMode = DefaultSSLMode
		}
	}
}
