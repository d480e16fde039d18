package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/uqtable/internal/cli/output"
	"github.com/leapstack-labs/uqtable/internal/convert"
	"github.com/leapstack-labs/uqtable/internal/selection"
)

// ConvertResult is the JSON form of one conversion.
type ConvertResult struct {
	Input    string `json:"input"`
	Output   string `json:"output"`
	Rows     int    `json:"rows"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "convert <file|dir>...",
		Short: "Convert dataset files between table, CSV and JSON",
		Long: `Convert dataset files to the format selected with --format.

Directories contribute every file with a known extension (.dat, .txt, .csv,
.json). Files are converted concurrently, up to --jobs at a time. Outputs are
written next to their inputs unless --output-dir is given.`,
		Example: `  # Convert a result table to JSON
  uqtable convert aggregated_outputs.dat --format json

  # Convert a whole directory to CSV, four files at a time
  uqtable convert runs/ -f csv -j 4 --output-dir csv/

  # Keep only converged rows
  uqtable convert outputs.dat -f csv --where 'residual < 1e-6'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir := ""
			if cmd.Flags().Changed("output-dir") {
				outDir = getConfig().OutputDir
			}
			return runConvert(cmd, args, outDir, where)
		},
	}

	cmd.Flags().StringP("output-dir", "d", "", "Directory for converted files (default: next to each input)")
	cmd.Flags().StringVar(&where, "where", "", "Starlark expression selecting the rows to keep")

	return cmd
}

func runConvert(cmd *cobra.Command, inputs []string, outDir, where string) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	to, err := cc.Format()
	if err != nil {
		return err
	}

	conv := &convert.Converter{
		Jobs:   cc.Cfg.Jobs,
		Atomic: cc.Cfg.AtomicWrite,
		Logger: cc.Logger,
	}
	if where != "" {
		if conv.Filter, err = selection.Compile(where); err != nil {
			return err
		}
	}

	jobs, err := conv.Plan(inputs, outDir, to)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		r.Warning("no dataset files found")
		return nil
	}

	results, runErr := conv.Run(cmd.Context(), jobs)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		out := make([]ConvertResult, 0, len(results))
		for _, res := range results {
			out = append(out, convertResultJSON(res))
		}
		if err := r.JSON(out); err != nil {
			return err
		}
	default:
		r.Header(1, fmt.Sprintf("Convert to %s (%d files)", to, len(jobs)))
		for _, res := range results {
			name := res.Job.Input + " -> " + res.Job.Output
			switch {
			case errors.Is(res.Err, context.Canceled):
				r.StatusLine(name, "skipped", "")
			case res.Err != nil:
				r.StatusLine(name, "failed", res.Err.Error())
			default:
				r.StatusLine(name, "success", fmt.Sprintf("%d rows", res.Rows))
			}
		}
	}

	return runErr
}

func convertResultJSON(res convert.Result) ConvertResult {
	out := ConvertResult{
		Input:    res.Job.Input,
		Output:   res.Job.Output,
		Rows:     res.Rows,
		Duration: res.Duration.String(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}
