package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/uqtable/internal/cli/output"
	"github.com/leapstack-labs/uqtable/pkg/codec"
	"github.com/leapstack-labs/uqtable/pkg/partition"
)

type partitionOptions struct {
	expected int
	column   int
	sentinel string
	report   string
}

// NewPartitionCommand creates the partition command.
func NewPartitionCommand() *cobra.Command {
	var opts partitionOptions

	cmd := &cobra.Command{
		Use:   "partition <file>",
		Short: "Split aggregated outputs into succeeded and failed runs",
		Long: `Split a result dataset on the failure sentinel.

A run failed when its sentinel column (by default the first output, column 0)
holds the literal 1.234567890e+00. The succeeded rows are written to
aggregated_outputs.<ext> and the failed rows to aggregated_outputs_failed.<ext>
in the output directory, each only when non-empty.`,
		Example: `  # Split 50 expected runs and write JSON results
  uqtable partition aggregated_outputs.dat --expected 50 -f json

  # Write a YAML summary next to the outputs
  uqtable partition outputs.csv --report summary.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig()
			if !cmd.Flags().Changed("column") {
				opts.column = cfg.Partition.Column
			}
			if !cmd.Flags().Changed("sentinel") {
				opts.sentinel = cfg.Partition.Sentinel
			}
			return runPartition(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.expected, "expected", 0, "Number of runs launched (0 = number of rows)")
	cmd.Flags().IntVar(&opts.column, "column", 0, "Zero-based index of the sentinel column")
	cmd.Flags().StringVar(&opts.sentinel, "sentinel", partition.DefaultSentinel, "Literal marking a failed run")
	cmd.Flags().StringP("output-dir", "d", "", "Directory for the split datasets")
	cmd.Flags().StringVar(&opts.report, "report", "", "Write a YAML summary to this file")

	return cmd
}

func runPartition(cmd *cobra.Command, path string, opts partitionOptions) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	format, err := cc.Format()
	if err != nil {
		return err
	}
	ds, err := codec.ReadFile(path)
	if err != nil {
		return err
	}

	res, err := partition.Split(ds, partition.Options{
		Column:   opts.column,
		Sentinel: opts.sentinel,
		Expected: opts.expected,
	})
	if err != nil {
		return err
	}

	files, err := partition.Export(res, cc.Cfg.OutputDir, format, cc.CodecOptions()...)
	if err != nil {
		return err
	}
	cc.Logger.Info("partitioned", "input", path, "failed", res.FailureCount(), "expected", res.Expected)

	summary := res.Summary(files...)
	if opts.report != "" {
		if err := writeReport(opts.report, summary); err != nil {
			return err
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(summary)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Partition"))
		r.Println("")
		r.Println(res.Message())
		r.Println("")
	default:
		if res.AllSucceeded() {
			r.Success(res.Message())
		} else {
			r.Println(r.Styles().Error.Render(res.Message()))
		}
	}

	r.KeyValue("Expected", strconv.Itoa(summary.Expected))
	r.KeyValue("Rows", strconv.Itoa(summary.Total))
	r.KeyValue("Succeeded", strconv.Itoa(summary.Succeeded))
	r.KeyValue("Failed", strconv.Itoa(summary.Failed))
	if len(summary.FailedRows) > 0 {
		r.KeyValue("Failed rows", joinInts(summary.FailedRows))
	}
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}
	if opts.report != "" {
		r.StatusLine(opts.report, "success", "report")
	}
	return nil
}

func writeReport(path string, summary partition.Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
