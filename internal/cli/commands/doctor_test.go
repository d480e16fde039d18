package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/uqtable/internal/cli/config"
	"github.com/leapstack-labs/uqtable/internal/cli/output"
	"github.com/leapstack-labs/uqtable/internal/cli/testutil"
	logtest "github.com/leapstack-labs/uqtable/internal/testutil"
)

func TestCalculateHealthScore(t *testing.T) {
	tests := []struct {
		name         string
		checks       []HealthCheck
		datasetCount int
		want         int
	}{
		{
			name:         "no checks returns 100",
			checks:       nil,
			datasetCount: 10,
			want:         100,
		},
		{
			name: "all passing returns 100",
			checks: []HealthCheck{
				{RuleID: checkConfigFile, Status: statusPass},
				{RuleID: checkStore, Status: statusPass},
			},
			datasetCount: 3,
			want:         100,
		},
		{
			name: "warnings reduce score",
			checks: []HealthCheck{
				{RuleID: checkFailedRuns, Status: statusWarn, IssueCount: 2},
			},
			datasetCount: 3,
			want:         90,
		},
		{
			name: "errors count double",
			checks: []HealthCheck{
				{RuleID: checkDatasetsRead, Status: statusError, IssueCount: 2},
			},
			datasetCount: 3,
			want:         80,
		},
		{
			name: "more datasets means less impact per issue",
			checks: []HealthCheck{
				{RuleID: checkFailedRuns, Status: statusWarn, IssueCount: 5},
			},
			datasetCount: 200,
			want:         95,
		},
		{
			name: "many issues clamp to 0",
			checks: []HealthCheck{
				{RuleID: checkDatasetsRead, Status: statusError, IssueCount: 20},
			},
			datasetCount: 1,
			want:         0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateHealthScore(tt.checks, tt.datasetCount))
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	checks := []HealthCheck{
		{RuleID: checkConfigFile, Status: statusWarn, IssueCount: 1},
		{RuleID: checkStore, Status: statusPass},
		{RuleID: checkFailedRuns, Status: statusWarn, IssueCount: 3},
		{RuleID: "XX99", Status: statusWarn, IssueCount: 1},
	}

	recs := generateRecommendations(checks)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0], "uqtable init")
	assert.Contains(t, recs[1], "uqtable partition")

	for _, id := range []string{checkConfigFile, checkOutputDir, checkStore, checkDatasetsRead, checkFailedRuns} {
		assert.NotEmpty(t, getRecommendation(id), "expected recommendation for %s", id)
	}
	assert.Empty(t, getRecommendation("UNKNOWN"))
}

func TestHealthCheckIssueKeepsWorstStatus(t *testing.T) {
	c := HealthCheck{Status: statusPass}
	c.issue(statusError, "broken.dat: bad header")
	c.issue(statusWarn, "later warning")

	assert.Equal(t, statusError, c.Status)
	assert.Equal(t, 2, c.IssueCount)
	assert.Len(t, c.Details, 2)
}

func TestCheckConfig(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantStatus string
		wantDetail string
	}{
		{name: "no config file", wantStatus: statusWarn, wantDetail: "built-in defaults"},
		{name: "valid config", content: "format: csv\npartition:\n  column: 1\n", wantStatus: statusPass},
		{name: "malformed yaml", content: "format: [csv\n", wantStatus: statusError, wantDetail: "uqtable.yaml"},
		{name: "unknown format", content: "format: xlsx\n", wantStatus: statusError, wantDetail: "xlsx"},
		{name: "negative column", content: "partition:\n  column: -2\n", wantStatus: statusError, wantDetail: "partition column"},
		{name: "unknown store", content: "store:\n  type: oracle\n", wantStatus: statusError, wantDetail: "oracle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config.ResetConfig()
			dir := t.TempDir()
			if tt.content != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "uqtable.yaml"), []byte(tt.content), 0o600))
			}

			c := checkConfig(dir)

			assert.Equal(t, tt.wantStatus, c.Status)
			if tt.wantDetail != "" {
				require.NotEmpty(t, c.Details)
				assert.Contains(t, c.Details[0], tt.wantDetail)
			}
		})
	}
}

func TestCheckOutputDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	assert.Equal(t, statusPass, checkOutputDirectory(dir).Status)
	assert.Equal(t, statusPass, checkOutputDirectory(filepath.Join(dir, "later")).Status)
	assert.Equal(t, statusError, checkOutputDirectory(file).Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "probe file should be removed")
}

func TestBuildDoctorOutput(t *testing.T) {
	dir := testutil.SetupTestProject(t, "format: table\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runs", "broken.dat"), []byte("#NAME: x\n"), 0o600))
	hidden := filepath.Join(dir, ".cache")
	require.NoError(t, os.MkdirAll(hidden, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(hidden, "skip.dat"), []byte("garbage"), 0o600))

	config.ResetConfig()
	cfg := config.Default()
	cfg.OutputDir = dir
	cfg.Store.Database = filepath.Join(dir, ".uqtable", "archive.db")

	cc := &CommandContext{
		Cfg:      cfg,
		Logger:   logtest.NewTestLogger(t),
		Renderer: testutil.NewTestRenderer(output.ModeJSON, false).Renderer,
	}

	out := buildDoctorOutput(t.Context(), cc, dir)

	assert.Equal(t, 2, out.Summary.Datasets)
	assert.Equal(t, 8, out.Summary.Rows)
	assert.Equal(t, 2, out.Summary.FailedRuns)
	assert.Equal(t, 0, out.Summary.Archived)

	byID := make(map[string]HealthCheck)
	for _, c := range out.HealthChecks {
		byID[c.RuleID] = c
	}
	assert.Equal(t, statusPass, byID[checkConfigFile].Status)
	assert.Equal(t, statusPass, byID[checkOutputDir].Status)
	assert.Equal(t, statusPass, byID[checkStore].Status)
	assert.Equal(t, statusError, byID[checkDatasetsRead].Status)
	assert.Equal(t, 1, byID[checkDatasetsRead].IssueCount)
	assert.Equal(t, statusWarn, byID[checkFailedRuns].Status)
	assert.Contains(t, byID[checkFailedRuns].Details[0], "2 of 6 runs failed")

	assert.Equal(t, 2, out.IssueCount)
	assert.Less(t, out.Score, 100)
	assert.NoDirExists(t, filepath.Join(dir, ".uqtable"), "doctor must not create the archive")
}

func TestRenderDoctor(t *testing.T) {
	out := &DoctorOutput{
		Summary: ProjectSummary{Root: "study", Datasets: 2, Rows: 8, FailedRuns: 2},
		HealthChecks: []HealthCheck{
			{RuleID: checkConfigFile, Name: "Project configuration file", Group: "config", Status: statusPass},
			{RuleID: checkFailedRuns, Name: "No failed runs in datasets", Group: "datasets", Status: statusWarn, IssueCount: 1,
				Details: []string{"runs/a.dat: 2 of 6 runs failed"}},
		},
		Score:           95,
		Recommendations: []string{getRecommendation(checkFailedRuns)},
		IssueCount:      1,
	}

	t.Run("markdown", func(t *testing.T) {
		tr := testutil.NewTestRenderer(output.ModeMarkdown, false)
		require.NoError(t, renderDoctorMarkdown(tr.Renderer, out))

		md := tr.Output()
		testutil.AssertValidMarkdown(t, md)
		assert.Contains(t, md, "### Datasets")
		assert.Contains(t, md, "- **[WARN]** DS02: No failed runs in datasets (1 issues)")
		assert.Contains(t, md, "**95/100**")
	})

	t.Run("text", func(t *testing.T) {
		tr := testutil.NewTestRenderer(output.ModeText, false)
		require.NoError(t, renderDoctorText(tr.Renderer, out))

		text := tr.Output()
		testutil.AssertNoANSI(t, text)
		assert.Contains(t, text, "Datasets: 2 | Rows: 8 | Failed runs: 2 | Archived: 0")
		assert.Contains(t, text, "! DS02: No failed runs in datasets (1 issues)")
		assert.Contains(t, text, "Health Score: 95/100")
	})
}
