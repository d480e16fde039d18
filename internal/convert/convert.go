// Package convert translates dataset files between formats, one file per job.
//
// Jobs share nothing: each decodes its input, optionally filters rows, and
// encodes the result to its own output path. Run executes jobs concurrently with
// a bounded worker count; Watch converts files as they appear in a directory.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/uqtable/internal/selection"
	"github.com/leapstack-labs/uqtable/pkg/codec"
	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

// Job converts one input file.
type Job struct {
	Input  string
	Output string
	To     codec.Format
}

// Result reports a finished job.
type Result struct {
	Job      Job
	Rows     int
	Duration time.Duration
	Err      error
}

// Converter runs conversion jobs.
type Converter struct {
	// Jobs bounds concurrent conversions. Zero means runtime.NumCPU().
	Jobs int
	// Atomic writes each output to a temp file and renames it into place.
	Atomic bool
	// Filter, when set, keeps only the rows it accepts.
	Filter *selection.Filter
	// Debounce is the quiet period Watch waits for after the last write to a file.
	Debounce time.Duration
	// Options are passed to every codec.
	Options []codec.Option
	Logger  *slog.Logger
}

func (c *Converter) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c *Converter) limit() int {
	if c.Jobs <= 0 {
		return runtime.NumCPU()
	}
	return c.Jobs
}

// Plan expands inputs into jobs. Directories contribute every regular file
// with a known extension (non-recursive). An empty outDir writes next to each input.
func (c *Converter) Plan(inputs []string, outDir string, to codec.Format) ([]Job, error) {
	target, err := codec.For(to)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in, err)
		}
		if !info.IsDir() {
			if _, err := codec.FormatFromPath(in); err != nil {
				return nil, err
			}
			files = append(files, in)
			continue
		}
		entries, err := os.ReadDir(in)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", in, err)
		}
		for _, e := range entries {
			p := filepath.Join(in, e.Name())
			if e.Type().IsRegular() && codec.IsKnownExtension(p) {
				files = append(files, p)
			}
		}
	}
	sort.Strings(files)

	jobs := make([]Job, 0, len(files))
	outputs := make(map[string]string, len(files))
	for _, in := range files {
		out := OutputPath(in, outDir, target.Extension())
		if filepath.Clean(out) == filepath.Clean(in) {
			return nil, fmt.Errorf("input %s is already %s", in, to)
		}
		if prev, dup := outputs[out]; dup {
			return nil, fmt.Errorf("inputs %s and %s both convert to %s", prev, in, out)
		}
		outputs[out] = in
		jobs = append(jobs, Job{Input: in, Output: out, To: target.Format()})
	}
	return jobs, nil
}

// OutputPath swaps the extension of input and moves it into outDir, if set.
func OutputPath(input, outDir, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ext
	if outDir == "" {
		return filepath.Join(filepath.Dir(input), base)
	}
	return filepath.Join(outDir, base)
}

// Run executes jobs with at most Jobs in flight. It returns every result in
// job order and the first error; remaining jobs are skipped after a failure.
func (c *Converter) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.limit())
	for i, job := range jobs {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				results[i] = Result{Job: job, Err: err}
				return err
			}
			results[i] = c.Convert(job)
			return results[i].Err
		})
	}
	err := eg.Wait()
	return results, err
}

// Convert runs a single job.
func (c *Converter) Convert(job Job) Result {
	start := time.Now()
	res := Result{Job: job}

	ds, err := c.convert(job)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("convert %s: %w", job.Input, err)
		c.logger().Error("conversion failed", "input", job.Input, "error", err)
		return res
	}
	res.Rows = ds.NumRows()
	c.logger().Info("converted", "input", job.Input, "output", job.Output,
		"rows", res.Rows, "duration", res.Duration)
	return res
}

func (c *Converter) convert(job Job) (*dataset.Dataset, error) {
	ds, err := codec.ReadFile(job.Input, c.Options...)
	if err != nil {
		return nil, err
	}
	if c.Filter != nil {
		rows, err := c.Filter.Apply(ds)
		if err != nil {
			return nil, err
		}
		if ds, err = ds.Subset(rows); err != nil {
			return nil, err
		}
	}

	target, err := codec.For(job.To, c.Options...)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(job.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	opts := append(append([]codec.Option(nil), c.Options...), codec.WithAtomicWrite(c.Atomic))
	if err := codec.Write(target, job.Output, ds, opts...); err != nil {
		return nil, err
	}
	return ds, nil
}
