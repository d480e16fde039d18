package convert

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/uqtable/pkg/codec"
)

// DefaultDebounce is the quiet period used when Converter.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	Dir    string
	OutDir string
	To     codec.Format
	// OnResult receives every conversion, including failures.
	OnResult func(Result)
	// OnReady is called once the directory is being watched.
	OnReady func()
}

// Watch converts files in opts.Dir whenever they are created or written,
// until ctx is cancelled. Files already in the target format and files inside
// OutDir are ignored. A failed conversion is reported and watching continues.
func (c *Converter) Watch(ctx context.Context, opts WatchOptions) error {
	target, err := codec.For(opts.To)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(opts.Dir); err != nil {
		return err
	}
	log := c.logger().With("dir", opts.Dir, "to", string(target.Format()))
	log.Info("watching for result files")
	if opts.OnReady != nil {
		opts.OnReady()
	}

	debounce := c.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	// Debounce timers hand settled paths back to this loop, so conversions
	// run one at a time and never outlive Watch.
	deb := newDebouncer(debounce)
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !shouldConvert(event.Name, opts.OutDir, target.Format()) {
				continue
			}
			deb.schedule(ctx, event.Name)

		case s := <-deb.ready:
			if !deb.settle(s) {
				// superseded by a later write
				continue
			}
			log.Debug("file settled, converting", "file", s.path)
			job := Job{Input: s.path, Output: OutputPath(s.path, opts.OutDir, target.Extension()), To: target.Format()}
			res := c.Convert(job)
			if opts.OnResult != nil {
				opts.OnResult(res)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)
		}
	}
}

// settled is a fired debounce timer. seq identifies the schedule call that
// armed it.
type settled struct {
	path string
	seq  uint64
}

type pendingTimer struct {
	timer *time.Timer
	seq   uint64
}

// debouncer holds one timer per path. It is owned by a single goroutine;
// only the timer callbacks touch ready.
type debouncer struct {
	delay   time.Duration
	ready   chan settled
	seq     uint64
	pending map[string]pendingTimer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		ready:   make(chan settled),
		pending: make(map[string]pendingTimer),
	}
}

// schedule (re)arms the timer for path. A timer that already fired and is
// blocked on ready cannot be stopped; settle discards it by sequence.
func (d *debouncer) schedule(ctx context.Context, path string) {
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
	}
	d.seq++
	s := settled{path: path, seq: d.seq}
	t := time.AfterFunc(d.delay, func() {
		select {
		case d.ready <- s:
		case <-ctx.Done():
		}
	})
	d.pending[path] = pendingTimer{timer: t, seq: s.seq}
}

// settle reports whether s is the latest timer for its path and forgets it.
func (d *debouncer) settle(s settled) bool {
	p, ok := d.pending[s.path]
	if !ok || p.seq != s.seq {
		return false
	}
	delete(d.pending, s.path)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
}

// shouldConvert reports whether a changed file should be converted.
func shouldConvert(path, outDir string, to codec.Format) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		// temp files from atomic writes
		return false
	}
	f, err := codec.FormatFromPath(path)
	if err != nil || f == to {
		return false
	}
	if outDir != "" {
		if within(outDir, path) {
			return false
		}
	}
	return true
}

func within(dir, path string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absPath)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
