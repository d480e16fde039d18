package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/uqtable/internal/cli/output"
	intconfig "github.com/leapstack-labs/uqtable/internal/config"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new uqtable project",
		Long: `Initialize a uqtable project with a default uqtable.yaml and .gitignore.

Use --example to also add a sample result table (runs/aggregated_outputs.dat)
with two failed runs, ready for 'uqtable partition'.`,
		Example: `  # Initialize in current directory
  uqtable init

  # Initialize a new directory with a sample dataset
  uqtable init my-study --example

  # Force overwrite existing config
  uqtable init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, force, example)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Add a sample result dataset")

	return cmd
}

func runInit(r *output.Renderer, dir string, force, example bool) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, intconfig.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", intconfig.ConfigFileName)
	}

	project := &intconfig.ProjectConfig{}
	if example {
		project.OutputDir = "results"
	}
	intconfig.ApplyDefaults(project)
	if err := writeProjectConfig(configPath, project); err != nil {
		return err
	}

	template := "minimal"
	if example {
		template = "example"
	}
	files, err := copyTemplate(template, dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	r.StatusLine(intconfig.ConfigFileName, "success", "")
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}
	r.Println("")
	r.Success("uqtable project initialized!")
	r.Println("")
	r.Println("Next steps:")
	if example {
		r.Println("  uqtable inspect runs/aggregated_outputs.dat")
		r.Println("  uqtable partition runs/aggregated_outputs.dat")
		r.Println("  uqtable store save results/aggregated_outputs.dat")
	} else {
		r.Println("  uqtable inspect <file>      Show a result table")
		r.Println("  uqtable partition <file>    Split succeeded and failed runs")
		r.Println("  uqtable convert <dir> -f json")
	}
	return nil
}

func writeProjectConfig(path string, project *intconfig.ProjectConfig) error {
	data, err := yaml.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	header := []byte("# uqtable project configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
