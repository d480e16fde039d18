package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/uqtable/internal/cli/output"
	"github.com/leapstack-labs/uqtable/internal/store"
	"github.com/leapstack-labs/uqtable/pkg/codec"
)

// StoreSaveResult is the JSON form of one saved file.
type StoreSaveResult struct {
	Path string `json:"path"`
	ID   string `json:"id"`
	Rows int    `json:"rows"`
}

// NewStoreCommand creates the store command group.
func NewStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Archive datasets in SQLite or PostgreSQL",
		Long: `Save datasets to the archive configured under store: in uqtable.yaml,
list them, load them back in any format, and delete them.

The archive defaults to a SQLite file at .uqtable/archive.db in the project root.
The schema is created or upgraded automatically.`,
	}

	cmd.AddCommand(newStoreSaveCommand())
	cmd.AddCommand(newStoreLoadCommand())
	cmd.AddCommand(newStoreListCommand())
	cmd.AddCommand(newStoreDeleteCommand())

	return cmd
}

func newStoreSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <file>...",
		Short: "Save dataset files to the archive",
		Example: `  uqtable store save aggregated_outputs.dat
  uqtable store save runs/*.json -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)
			r := cc.Renderer

			s, err := cc.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			saved := make([]StoreSaveResult, 0, len(args))
			for _, path := range args {
				ds, err := codec.ReadFile(path)
				if err != nil {
					return err
				}
				id, err := s.Save(cmd.Context(), ds)
				if err != nil {
					return fmt.Errorf("save %s: %w", path, err)
				}
				saved = append(saved, StoreSaveResult{Path: path, ID: id, Rows: ds.NumRows()})
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(saved)
			}
			for _, sv := range saved {
				r.StatusLine(sv.Path, "success", fmt.Sprintf("%s (%d rows)", sv.ID, sv.Rows))
			}
			return nil
		},
	}
}

func newStoreLoadCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "load <id>",
		Short: "Load an archived dataset",
		Long: `Load an archived dataset and write it to --out, in the format of the file's
extension, or to standard output in the format chosen with --format.`,
		Example: `  uqtable store load 3f1c... --out restored.dat
  uqtable store load 3f1c... -f csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)

			s, err := cc.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			ds, err := s.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out != "" {
				if dir := filepath.Dir(out); dir != "." {
					if err := os.MkdirAll(dir, 0o750); err != nil {
						return fmt.Errorf("create output directory: %w", err)
					}
				}
				if err := codec.WriteFile(out, ds, cc.CodecOptions()...); err != nil {
					return err
				}
				cc.Renderer.StatusLine(out, "success", fmt.Sprintf("%d rows", ds.NumRows()))
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
			return c.Encode(cmd.OutOrStdout(), ds)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write the dataset to this file instead of standard output")

	return cmd
}

func newStoreListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived datasets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContext(cmd)
			r := cc.Renderer

			s, err := cc.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			infos, err := s.List(cmd.Context())
			if err != nil {
				return err
			}

			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(infos)
			}
			r.Header(1, fmt.Sprintf("Datasets (%d total)", len(infos)))
			if len(infos) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.ID,
					info.Name,
					strconv.Itoa(info.Rows),
					strconv.Itoa(info.Columns),
					info.CreatedAt.Local().Format(time.DateTime),
				})
			}
			r.Table([]string{"id", "name", "rows", "columns", "created"}, rows)
			return nil
		},
	}
}

func newStoreDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete archived datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContext(cmd)

			s, err := cc.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			var missing []string
			for _, id := range args {
				err := s.Delete(cmd.Context(), id)
				switch {
				case errors.Is(err, store.ErrNotFound):
					missing = append(missing, id)
					cc.Renderer.StatusLine(id, "skipped", "not found")
				case err != nil:
					return err
				default:
					cc.Renderer.StatusLine(id, "success", "deleted")
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("%d dataset(s) not found", len(missing))
			}
			return nil
		},
	}
}
