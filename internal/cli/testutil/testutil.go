// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/uqtable/internal/cli/output"
)

// ResultsTable is a six-run result table in the annotated table format.
// Rows 1 and 4 carry the failure sentinel in their first column.
const ResultsTable = `#NAME: aggregated_outputs
#TITLE: six runs
#DATE: Fri Oct 28 10:41:44 2016
#COLUMN_NAMES: y|residual|solver|history
#COLUMN_TYPES: D|D|S|V
#COLUMN_TITLES: y|residual|solver|history
#COLUMN_UNITS: kg|-|-|s

3.75 2.1e-07 newton [0.5,0.25]
1.234567890e+00 1.234567890e+00 diverged []
4.125 8.4e-08 newton [0.5,0.3]
2.875 5e-07 picard [0.75,0.5,0.25]
1.234567890e+00 1.234567890e+00 timeout []
3.5 1.6e-07 newton [0.5]
`

// ResultsCSV is a two-run result table in CSV form.
const ResultsCSV = `NAME,inputs
TITLE,two samples
DATE,Fri Oct 28 10:41:44 2016
COLUMN_NAMES,x1,x2
COLUMN_TYPES,D,D
COLUMN_TITLES,x1,x2
COLUMN_UNITS,m,m
0,0.5,1.5
1,0.25,2
`

// SetupTestProject creates a temporary project holding a uqtable.yaml with
// the given content and a runs/ directory with result files. It returns the
// project root.
func SetupTestProject(t *testing.T, config string) string {
	t.Helper()

	tmpDir := t.TempDir()
	runs := filepath.Join(tmpDir, "runs")
	if err := os.MkdirAll(runs, 0o750); err != nil {
		t.Fatalf("failed to create directory %s: %v", runs, err)
	}

	files := map[string]string{
		filepath.Join(tmpDir, "uqtable.yaml"):         config,
		filepath.Join(runs, "aggregated_outputs.dat"): ResultsTable,
		filepath.Join(runs, "inputs.csv"):             ResultsCSV,
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to create %s: %v", path, err)
		}
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for unclosed code fences and empty headings.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
