// Package config provides shared configuration types for uqtable.
// It is decoupled from CLI concerns so library callers can load the same
// project file the CLI reads.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/uqtable/internal/store"
	"github.com/leapstack-labs/uqtable/pkg/codec"
)

// StoreConfig holds the dataset archive target.
type StoreConfig = store.Config

// PartitionConfig holds the failure-sentinel convention.
type PartitionConfig struct {
	// Sentinel is the literal marking a failed run.
	Sentinel string `koanf:"sentinel" yaml:"sentinel"`
	// Column is the zero-based index of the sentinel column.
	Column int `koanf:"column" yaml:"column"`
}

// ProjectConfig holds the settings shared by every uqtable tool.
type ProjectConfig struct {
	Format      string           `koanf:"format" yaml:"format"`
	OutputDir   string           `koanf:"output_dir" yaml:"output_dir"`
	Jobs        int              `koanf:"jobs" yaml:"jobs"`
	AtomicWrite bool             `koanf:"atomic_write" yaml:"atomic_write"`
	Debounce    time.Duration    `koanf:"debounce" yaml:"debounce"`
	Partition   *PartitionConfig `koanf:"partition" yaml:"partition"`
	Store       *StoreConfig     `koanf:"store" yaml:"store"`
}

// ValidateStore checks the store type against the registered backends.
func ValidateStore(s *StoreConfig) error {
	if s == nil {
		return nil
	}
	if s.Type == "" {
		return fmt.Errorf("store type is required")
	}
	if !store.IsRegistered(strings.ToLower(s.Type)) {
		return &store.UnknownStoreTypeError{
			Type:      s.Type,
			Available: store.ListTypes(),
		}
	}
	if strings.EqualFold(s.Type, "postgres") && s.Database == "" {
		return fmt.Errorf("store database is required for postgres")
	}
	return nil
}

// ValidateFormat checks a configured output format name.
func ValidateFormat(name string) error {
	_, err := codec.ParseFormat(name)
	return err
}

// ValidatePartition rejects negative sentinel columns.
func ValidatePartition(p *PartitionConfig) error {
	if p == nil {
		return nil
	}
	if p.Column < 0 {
		return fmt.Errorf("partition column must be >= 0, got %d", p.Column)
	}
	return nil
}
