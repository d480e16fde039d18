// Package partition splits a result dataset into succeeded and failed rows.
//
// A failed external run is recorded in-band: its designated output column holds
// the sentinel literal DefaultSentinel instead of a real value. Split counts
// those rows and derives one dataset per outcome. A nonzero failure count is a
// normal result, never an error.
package partition

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/uqtable/pkg/codec"
	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

// DefaultSentinel marks a failed run. External consumers depend on the exact literal.
const DefaultSentinel = "1.234567890e+00"

// Export file base names.
const (
	SucceededBase = "aggregated_outputs"
	FailedBase    = "aggregated_outputs_failed"
)

// Options configures Split.
type Options struct {
	// Column is the zero-based sentinel column, by convention the first output.
	Column int
	// Sentinel is the failure literal. Empty means DefaultSentinel.
	Sentinel string
	// Expected is the sample size. Zero means the dataset's row count.
	Expected int
}

// Result is the outcome of Split. Succeeded and Failed are nil when not emitted.
type Result struct {
	Expected      int
	Total         int
	FailedRows    []int
	SucceededRows []int
	Succeeded     *dataset.Dataset
	Failed        *dataset.Dataset
}

// FailureCount returns the number of sentinel rows.
func (r *Result) FailureCount() int { return len(r.FailedRows) }

// AllSucceeded reports whether no row carries the sentinel.
func (r *Result) AllSucceeded() bool { return len(r.FailedRows) == 0 }

// Split partitions ds on the sentinel column.
// The succeeded dataset is emitted when failures < expected, the failed one when failures > 0.
func Split(ds *dataset.Dataset, opts Options) (*Result, error) {
	if opts.Column < 0 || opts.Column >= ds.NumColumns() {
		return nil, &dataset.IndexError{Kind: "column", Index: opts.Column, Len: ds.NumColumns()}
	}
	sentinel := opts.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}

	match, err := matcher(ds.Headers()[opts.Column].Type, sentinel)
	if err != nil {
		return nil, err
	}

	res := &Result{Expected: opts.Expected, Total: ds.NumRows()}
	if res.Expected == 0 {
		res.Expected = res.Total
	}
	for r := 0; r < res.Total; r++ {
		v, err := ds.Value(r, opts.Column)
		if err != nil {
			return nil, err
		}
		if match(v) {
			res.FailedRows = append(res.FailedRows, r)
		} else {
			res.SucceededRows = append(res.SucceededRows, r)
		}
	}

	if res.FailureCount() < res.Expected {
		if res.Succeeded, err = ds.Subset(res.SucceededRows); err != nil {
			return nil, err
		}
	}
	if res.FailureCount() > 0 {
		if res.Failed, err = ds.Subset(res.FailedRows); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// matcher builds the sentinel test for a column type.
func matcher(t dataset.ColumnType, sentinel string) (func(any) bool, error) {
	switch t {
	case dataset.Double:
		v, err := dataset.ParseValue(sentinel, dataset.Double)
		if err != nil {
			return nil, fmt.Errorf("sentinel: %w", err)
		}
		want := v.(float64)
		return func(got any) bool {
			f := got.(float64)
			return f == want || (math.IsNaN(f) && math.IsNaN(want))
		}, nil
	case dataset.String:
		return func(got any) bool { return got.(string) == sentinel }, nil
	default:
		return func(any) bool { return false }, nil
	}
}

// Summary is the serialisable report of a split.
type Summary struct {
	Expected   int      `json:"expected" yaml:"expected"`
	Total      int      `json:"total" yaml:"total"`
	Failed     int      `json:"failed" yaml:"failed"`
	Succeeded  int      `json:"succeeded" yaml:"succeeded"`
	FailedRows []int    `json:"failed_rows" yaml:"failed_rows"`
	Files      []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// Summary reports counts and excluded rows. files lists exported paths, if any.
func (r *Result) Summary(files ...string) Summary {
	rows := r.FailedRows
	if rows == nil {
		rows = []int{}
	}
	return Summary{
		Expected:   r.Expected,
		Total:      r.Total,
		Failed:     len(r.FailedRows),
		Succeeded:  len(r.SucceededRows),
		FailedRows: rows,
		Files:      files,
	}
}

// Message is the one-line human outcome.
func (r *Result) Message() string {
	if r.AllSucceeded() {
		return fmt.Sprintf("All the %d calculation(s) have succeeded !", r.Expected)
	}
	return fmt.Sprintf("%d over %d calculation(s) failed !", r.FailureCount(), r.Expected)
}

// Export writes the emitted datasets into dir as aggregated_outputs<ext> and
// aggregated_outputs_failed<ext>, returning the written paths.
func Export(res *Result, dir string, format codec.Format, opts ...codec.Option) ([]string, error) {
	c, err := codec.For(format, opts...)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	for _, out := range []struct {
		base string
		ds   *dataset.Dataset
	}{
		{SucceededBase, res.Succeeded},
		{FailedBase, res.Failed},
	} {
		if out.ds == nil {
			continue
		}
		path := filepath.Join(dir, out.base+c.Extension())
		if err := codec.Write(c, path, out.ds, opts...); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
