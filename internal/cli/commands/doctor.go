package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/uqtable/internal/cli/config"
	"github.com/leapstack-labs/uqtable/internal/cli/output"
	intconfig "github.com/leapstack-labs/uqtable/internal/config"
	"github.com/leapstack-labs/uqtable/pkg/codec"
	"github.com/leapstack-labs/uqtable/pkg/partition"
)

// Health check identifiers.
const (
	checkConfigFile   = "CF01"
	checkOutputDir    = "CF02"
	checkStore        = "ST01"
	checkDatasetsRead = "DS01"
	checkFailedRuns   = "DS02"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor [dir]",
		Short: "Run a project health check",
		Long: `Check a uqtable project for problems and report a health score.

The doctor reads every dataset file under the project root (dot-directories
excluded) and reports:
- Project summary (datasets, rows, failed runs, archived datasets)
- Configuration checks (config file, output directory)
- Archive check (the configured store opens and its schema is current)
- Dataset checks (files that fail to parse, runs marked with the sentinel)
- Health score (0-100) and recommendations

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Check the current project
  uqtable doctor

  # Check another directory, as JSON
  uqtable doctor runs/ -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runDoctor(cmd, dir)
		},
	}

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         ProjectSummary `json:"summary"`
	HealthChecks    []HealthCheck  `json:"health_checks"`
	Score           int            `json:"score"`
	Recommendations []string       `json:"recommendations"`
	IssueCount      int            `json:"issue_count"`
}

// ProjectSummary contains project-level statistics.
type ProjectSummary struct {
	Root       string `json:"root"`
	Datasets   int    `json:"datasets"`
	Rows       int    `json:"rows"`
	FailedRuns int    `json:"failed_runs"`
	Archived   int    `json:"archived"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	RuleID     string   `json:"rule_id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func (h *HealthCheck) issue(status, detail string) {
	h.IssueCount++
	h.Details = append(h.Details, detail)
	if h.Status != statusError {
		h.Status = status
	}
}

func runDoctor(cmd *cobra.Command, dir string) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	if dir == "" {
		dir = cc.Cfg.ProjectRoot
	}
	if dir == "" {
		dir = "."
	}

	out := buildDoctorOutput(cmd.Context(), cc, dir)

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return renderDoctorMarkdown(r, out)
	default:
		return renderDoctorText(r, out)
	}
}

func buildDoctorOutput(ctx context.Context, cc *CommandContext, dir string) *DoctorOutput {
	summary := ProjectSummary{Root: dir}

	checks := []HealthCheck{
		checkConfig(dir),
		checkOutputDirectory(cc.Cfg.OutputDir),
		checkArchive(ctx, cc, &summary),
	}
	checks = append(checks, checkDatasets(cc, dir, &summary)...)

	sort.SliceStable(checks, func(i, j int) bool {
		if checks[i].Group != checks[j].Group {
			return checks[i].Group < checks[j].Group
		}
		return checks[i].RuleID < checks[j].RuleID
	})

	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}

	return &DoctorOutput{
		Summary:         summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, summary.Datasets),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

// checkConfig loads the config file in dir on its own, so a broken file in a
// directory other than the active project root is still reported.
func checkConfig(dir string) HealthCheck {
	c := HealthCheck{RuleID: checkConfigFile, Name: "Project configuration file", Group: "config", Status: statusPass}
	pc, err := intconfig.LoadFromDir(dir)
	switch {
	case err != nil:
		c.issue(statusError, fmt.Sprintf("%s: %v", intconfig.FindConfigFile(dir), err))
	case pc != nil:
		for _, verr := range []error{
			intconfig.ValidateFormat(pc.Format),
			intconfig.ValidatePartition(pc.Partition),
			intconfig.ValidateStore(pc.Store),
		} {
			if verr != nil {
				c.issue(statusError, fmt.Sprintf("%s: %v", intconfig.FindConfigFile(dir), verr))
			}
		}
	case config.GetConfigFileUsed() == "":
		c.issue(statusWarn, "no uqtable.yaml found, built-in defaults are in use")
	}
	return c
}

func checkOutputDirectory(dir string) HealthCheck {
	c := HealthCheck{RuleID: checkOutputDir, Name: "Output directory is writable", Group: "config", Status: statusPass}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		// Created on first export.
		return c
	case err != nil:
		c.issue(statusError, err.Error())
		return c
	case !info.IsDir():
		c.issue(statusError, fmt.Sprintf("%s is not a directory", dir))
		return c
	}

	f, err := os.CreateTemp(dir, ".uqtable-doctor-*")
	if err != nil {
		c.issue(statusError, fmt.Sprintf("cannot write to %s: %v", dir, err))
		return c
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return c
}

func checkArchive(ctx context.Context, cc *CommandContext, summary *ProjectSummary) HealthCheck {
	c := HealthCheck{RuleID: checkStore, Name: "Dataset archive is reachable", Group: "store", Status: statusPass}
	sc := cc.Cfg.Store
	if sc == nil {
		return c
	}
	// A sqlite archive that was never written is not a problem.
	if strings.EqualFold(sc.Type, "sqlite") && sc.Database != ":memory:" {
		if _, err := os.Stat(sc.Database); os.IsNotExist(err) {
			return c
		}
	}

	s, err := cc.OpenStore(ctx)
	if err != nil {
		c.issue(statusError, err.Error())
		return c
	}
	defer func() { _ = s.Close() }()

	infos, err := s.List(ctx)
	if err != nil {
		c.issue(statusError, err.Error())
		return c
	}
	summary.Archived = len(infos)
	return c
}

func checkDatasets(cc *CommandContext, root string, summary *ProjectSummary) []HealthCheck {
	read := HealthCheck{RuleID: checkDatasetsRead, Name: "Dataset files parse", Group: "datasets", Status: statusPass}
	failed := HealthCheck{RuleID: checkFailedRuns, Name: "No failed runs in datasets", Group: "datasets", Status: statusPass}

	opts := partition.Options{}
	if p := cc.Cfg.Partition; p != nil {
		opts.Column = p.Column
		opts.Sentinel = p.Sentinel
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			read.issue(statusError, err.Error())
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !codec.IsKnownExtension(path) {
			return nil
		}

		ds, err := codec.ReadFile(path)
		if err != nil {
			read.issue(statusError, err.Error())
			return nil
		}
		summary.Datasets++
		summary.Rows += ds.NumRows()

		// Datasets without a usable sentinel column are not run tables.
		res, err := partition.Split(ds, opts)
		if err != nil || res.AllSucceeded() {
			return nil
		}
		summary.FailedRuns += res.FailureCount()
		failed.issue(statusWarn, fmt.Sprintf("%s: %d of %d runs failed", path, res.FailureCount(), res.Total))
		return nil
	})
	if err != nil {
		read.issue(statusError, err.Error())
	}
	cc.Logger.Debug("doctor scanned datasets", "root", root, "datasets", summary.Datasets)

	return []HealthCheck{read, failed}
}

// calculateHealthScore computes a health score from 0-100. Errors weigh twice
// as much as warnings, and each issue weighs less in larger projects.
func calculateHealthScore(checks []HealthCheck, datasetCount int) int {
	if len(checks) == 0 {
		return 100
	}

	score := 100.0

	basePenalty := 5.0
	if datasetCount > 10 {
		basePenalty = 3.0
	}
	if datasetCount > 50 {
		basePenalty = 2.0
	}
	if datasetCount > 100 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	if score < 0 {
		score = 0
	}
	return int(score)
}

// generateRecommendations returns one recommendation per failing check.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		rec := getRecommendation(check.RuleID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}
	return recommendations
}

// getRecommendation returns a recommendation for a specific check.
func getRecommendation(ruleID string) string {
	switch ruleID {
	case checkConfigFile:
		return "Run 'uqtable init' to create a uqtable.yaml for this project, or fix the reported errors in the existing one"
	case checkOutputDir:
		return "Point output_dir at a writable directory"
	case checkStore:
		return "Fix the store: section of uqtable.yaml or check that the database is running"
	case checkDatasetsRead:
		return "Repair or remove dataset files that fail to parse"
	case checkFailedRuns:
		return "Run 'uqtable partition' on datasets with failed runs and relaunch the failures"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) error {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("uqtable Project Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	r.Println(styles.Header2.Render("Project Summary"))
	r.Printf("   Root: %s\n", out.Summary.Root)
	r.Printf("   Datasets: %d | Rows: %d | Failed runs: %d | Archived: %d\n",
		out.Summary.Datasets, out.Summary.Rows, out.Summary.FailedRuns, out.Summary.Archived)
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.StatusSuccess.String()
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.StatusFailed.String()
		}

		status := fmt.Sprintf("%s %s: %s", icon, check.RuleID, check.Name)
		if check.IssueCount > 0 {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) error {
	r.Println("# uqtable Project Health Report")
	r.Println("")

	r.Println("## Project Summary")
	r.Println("")
	r.Printf("- **Root**: %s\n", out.Summary.Root)
	r.Printf("- **Datasets**: %d\n", out.Summary.Datasets)
	r.Printf("- **Rows**: %d\n", out.Summary.Rows)
	r.Printf("- **Failed runs**: %d\n", out.Summary.FailedRuns)
	r.Printf("- **Archived**: %d\n", out.Summary.Archived)
	r.Println("")

	r.Println("## Health Checks")
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println("### " + titleCaser.String(currentGroup))
			r.Println("")
		}

		r.Printf("- **[%s]** %s: %s", strings.ToUpper(check.Status), check.RuleID, check.Name)
		if check.IssueCount > 0 {
			r.Printf(" (%d issues)", check.IssueCount)
		}
		r.Println("")

		for _, detail := range check.Details {
			r.Printf("  - %s\n", detail)
		}
	}
	r.Println("")

	r.Println("## Health Score")
	r.Println("")
	r.Printf("**%d/100**\n", out.Score)
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println("## Recommendations")
		r.Println("")
		for i, rec := range out.Recommendations {
			r.Printf("%d. %s\n", i+1, rec)
		}
		r.Println("")
	}

	return nil
}
