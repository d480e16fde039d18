package commands

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/uqtable/internal/cli/output"
	"github.com/leapstack-labs/uqtable/internal/convert"
	"github.com/leapstack-labs/uqtable/internal/metrics"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Convert result files as they appear in a directory",
		Long: `Watch a directory and convert every dataset file created or rewritten in it
to the format selected with --format, until interrupted.

Writes are debounced (config key debounce, default 100ms) so a file is converted
once its writer has finished. Files already in the target format, dotfiles and
files inside --output-dir are ignored.

With --metrics-addr (config key metrics_addr) conversion counters are served
in the Prometheus format at /metrics.`,
		Example: `  # Mirror every result table in runs/ as JSON
  uqtable watch runs/ -f json

  # Write CSV copies to a separate directory
  uqtable watch runs/ -f csv --output-dir csv/ --debounce 500ms

  # Expose conversion metrics
  uqtable watch runs/ -f json --metrics-addr :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir := ""
			if cmd.Flags().Changed("output-dir") {
				outDir = getConfig().OutputDir
			}
			return runWatch(cmd, args[0], outDir)
		},
	}

	cmd.Flags().StringP("output-dir", "d", "", "Directory for converted files (default: the watched directory)")
	cmd.Flags().Duration("debounce", 0, "Quiet period after the last write before converting")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (host:port)")

	return cmd
}

func runWatch(cmd *cobra.Command, dir, outDir string) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	to, err := cc.Format()
	if err != nil {
		return err
	}
	if info, err := os.Stat(dir); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	conv := &convert.Converter{
		Atomic:   cc.Cfg.AtomicWrite,
		Debounce: cc.Cfg.Debounce,
		Logger:   cc.Logger,
	}
	rec := metrics.New()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	if addr := cc.Cfg.MetricsAddr; addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		g.Go(func() error { return rec.Serve(ctx, ln, cc.Logger) })
	}

	g.Go(func() error {
		defer cancel()
		return conv.Watch(ctx, convert.WatchOptions{
			Dir:    dir,
			OutDir: outDir,
			To:     to,
			OnReady: func() {
				if r.EffectiveMode() != output.ModeJSON {
					r.Muted(fmt.Sprintf("Watching %s for dataset files (Ctrl+C to stop)", dir))
				}
			},
			OnResult: func(res convert.Result) {
				rec.Observe(res)
				if r.EffectiveMode() == output.ModeJSON {
					_ = r.JSON(convertResultJSON(res))
					return
				}
				name := res.Job.Input + " -> " + res.Job.Output
				if res.Err != nil {
					r.StatusLine(name, "failed", res.Err.Error())
					return
				}
				r.StatusLine(name, "success", fmt.Sprintf("%d rows", res.Rows))
			},
		})
	})

	return g.Wait()
}
