package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/uqtable/internal/cli/config"
	"github.com/leapstack-labs/uqtable/internal/cli/output"
	"github.com/leapstack-labs/uqtable/internal/store"
	"github.com/leapstack-labs/uqtable/pkg/codec"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the loaded config, the context logger and a
// renderer writing to the command's streams.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}
}

// Format returns the configured dataset format.
func (c *CommandContext) Format() (codec.Format, error) {
	return codec.ParseFormat(c.Cfg.Format)
}

// CodecOptions returns the codec options implied by the config.
func (c *CommandContext) CodecOptions() []codec.Option {
	return []codec.Option{codec.WithAtomicWrite(c.Cfg.AtomicWrite)}
}

// OpenStore opens and migrates the configured archive.
func (c *CommandContext) OpenStore(ctx context.Context) (*store.Store, error) {
	if err := ensureParentDir(c.Cfg.Store); err != nil {
		return nil, err
	}
	s, err := store.Open(ctx, *c.Cfg.Store, c.Logger)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// ensureParentDir creates the directory of a file-backed sqlite archive.
func ensureParentDir(cfg *config.StoreConfig) error {
	if !strings.EqualFold(cfg.Type, "sqlite") || cfg.Database == "" || cfg.Database == ":memory:" {
		return nil
	}
	dir := filepath.Dir(cfg.Database)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

// getConfig returns the current configuration, or defaults when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}
