package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/uqtable/internal/selection"
	"github.com/leapstack-labs/uqtable/pkg/codec"
)

// NewSelectCommand creates the select command.
func NewSelectCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "select <file> <expression>",
		Short: "Keep the rows matching a Starlark expression",
		Long: `Evaluate a Starlark expression against every row and keep the rows where it is True.

Columns whose names are valid identifiers are bound as variables; any column
is reachable as col("name"), and row is the zero-based row index. Doubles are
floats, strings are strings and vectors are lists of floats.

The selected dataset is written to --out in the format of its extension, or
to standard output in the format chosen with --format.`,
		Example: `  # Print converged runs as CSV
  uqtable select outputs.dat 'residual < 1e-6' -f csv

  # Drop failed runs and keep every other row
  uqtable select outputs.dat 'y != 1.23456789 and row % 2 == 0' --out thinned.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd, args[0], args[1], out)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write the selection to this file instead of standard output")

	return cmd
}

func runSelect(cmd *cobra.Command, path, expr, out string) error {
	cc := NewCommandContext(cmd)

	filter, err := selection.Compile(expr)
	if err != nil {
		return err
	}
	ds, err := codec.ReadFile(path)
	if err != nil {
		return err
	}
	rows, err := filter.Apply(ds)
	if err != nil {
		return err
	}
	sub, err := ds.Subset(rows)
	if err != nil {
		return err
	}
	cc.Logger.Info("selected", "input", path, "expr", filter.String(), "kept", len(rows), "rows", ds.NumRows())

	if out != "" {
		if dir := filepath.Dir(out); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
		}
		if err := codec.WriteFile(out, sub, cc.CodecOptions()...); err != nil {
			return err
		}
		cc.Renderer.StatusLine(out, "success", fmt.Sprintf("%d of %d rows", len(rows), ds.NumRows()))
		return nil
	}

	format, err := cc.Format()
	if err != nil {
		return err
	}
	c, err := codec.For(format, codec.WithIndent(true))
	if err != nil {
		return err
	}
	return c.Encode(cmd.OutOrStdout(), sub)
}
