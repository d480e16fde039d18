package config

import (
	"fmt"
	"net"
	"strings"

	intconfig "github.com/leapstack-labs/uqtable/internal/config"
)

var outputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := intconfig.ValidateFormat(c.Format); err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must be >= 0, got %d", c.Jobs)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must be >= 0, got %s", c.Debounce)
	}
	if err := validateOneOf("output", c.OutputFormat, outputModes); err != nil {
		return err
	}
	if err := validateOneOf("log_level", c.LogLevel, []string{LogLevelNone, LogLevelInfo, LogLevelDebug}); err != nil {
		return err
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return fmt.Errorf("invalid metrics_addr %q: %w", c.MetricsAddr, err)
		}
	}
	if err := intconfig.ValidatePartition(c.Partition); err != nil {
		return err
	}
	if err := intconfig.ValidateStore(c.Store); err != nil {
		return fmt.Errorf("invalid store configuration: %w", err)
	}
	return nil
}

func validateOneOf(key, value string, allowed []string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (expected %s)", key, value, strings.Join(allowed, "|"))
}
