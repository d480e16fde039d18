package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/uqtable/internal/cli/output"
	"github.com/leapstack-labs/uqtable/pkg/codec"
	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

// defaultPreviewRows is how many rows inspect shows without --rows.
const defaultPreviewRows = 10

// InspectColumn describes one column.
type InspectColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Unit string `json:"unit"`
}

// InspectOutput is the JSON form of inspect.
type InspectOutput struct {
	Path        string          `json:"path"`
	Format      string          `json:"format"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Rows        int             `json:"rows"`
	Columns     []InspectColumn `json:"columns"`
	Preview     [][]string      `json:"preview"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show a dataset's metadata, columns and first rows",
		Long: `Show a dataset's name, description, column headers and a preview of its rows.

The file format is chosen from the extension.

Output adapts to environment:
  - Terminal: Styled tables
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Inspect a result table
  uqtable inspect aggregated_outputs.dat

  # Show every row as JSON
  uqtable inspect outputs.csv --rows 0 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], rows)
		},
	}

	cmd.Flags().IntVarP(&rows, "rows", "n", defaultPreviewRows, "Rows to preview (0 = all)")

	return cmd
}

func runInspect(cmd *cobra.Command, path string, limit int) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	format, err := codec.FormatFromPath(path)
	if err != nil {
		return err
	}
	ds, err := codec.ReadFile(path)
	if err != nil {
		return err
	}
	cc.Logger.Debug("dataset read", "path", path, "rows", ds.NumRows(), "columns", ds.NumColumns())

	preview, err := previewRows(ds, limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := InspectOutput{
			Path:        path,
			Format:      string(format),
			Name:        ds.Name(),
			Description: ds.Description(),
			Rows:        ds.NumRows(),
			Columns:     make([]InspectColumn, 0, ds.NumColumns()),
			Preview:     preview,
		}
		for _, h := range ds.Headers() {
			out.Columns = append(out.Columns, InspectColumn{Name: h.Name, Type: h.Type.Code(), Unit: h.Unit})
		}
		return r.JSON(out)
	}

	title := ds.Name()
	if title == "" {
		title = filepath.Base(path)
	}
	r.Header(1, title)
	if ds.Description() != "" {
		r.KeyValue("Description", ds.Description())
	}
	r.KeyValue("File", path)
	r.KeyValue("Format", string(format))
	r.KeyValue("Rows", fmt.Sprintf("%d", ds.NumRows()))
	r.KeyValue("Columns", fmt.Sprintf("%d", ds.NumColumns()))
	r.Println("")

	if ds.NumColumns() == 0 {
		return nil
	}

	r.Header(2, "Columns")
	columns := make([][]string, 0, ds.NumColumns())
	for _, h := range ds.Headers() {
		columns = append(columns, []string{h.Name, h.Type.String(), h.Unit})
	}
	r.Table([]string{"name", "type", "unit"}, columns)
	r.Println("")

	if len(preview) == 0 {
		return nil
	}
	r.Header(2, "Rows")
	r.Table(ds.Names(), preview)
	if len(preview) < ds.NumRows() {
		r.Muted(fmt.Sprintf("... %d more rows", ds.NumRows()-len(preview)))
	}
	return nil
}

// previewRows formats up to limit rows as canonical text. A limit of 0 or less means all.
func previewRows(ds *dataset.Dataset, limit int) ([][]string, error) {
	n := ds.NumRows()
	if limit > 0 && limit < n {
		n = limit
	}
	types := ds.Types()
	out := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		row, err := ds.Row(i)
		if err != nil {
			return nil, err
		}
		cells := make([]string, len(row))
		for c, v := range row {
			if cells[c], err = dataset.FormatValue(v, types[c]); err != nil {
				return nil, err
			}
		}
		out = append(out, cells)
	}
	return out, nil
}
