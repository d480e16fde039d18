// Package codec converts datasets to and from their three text representations:
// the annotated table format, CSV and JSON.
//
// Every codec is fully invertible for the values its format can carry:
// Decode(Encode(d)) equals d. Decoders never coerce or truncate; a single bad
// row aborts the whole decode with a typed error from pkg/dataset.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

// Format names a serialized representation.
type Format string

// Supported formats.
const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// DateLayout is the informational #DATE/DATE/date stamp, e.g. "Fri Oct 28 10:41:44 2016".
const DateLayout = "Mon Jan 02 15:04:05 2006"

// Codec reads and writes one format.
type Codec interface {
	Format() Format
	// Extension is the preferred file extension, including the dot.
	Extension() string
	Decode(r io.Reader) (*dataset.Dataset, error)
	Encode(w io.Writer, ds *dataset.Dataset) error
}

// Option configures a codec.
type Option func(*options)

type options struct {
	now    func() time.Time
	indent bool
	atomic bool
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) date() string {
	return o.now().Format(DateLayout)
}

// WithClock sets the clock used for the informational date stamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIndent pretty-prints JSON output. Other formats ignore it.
func WithIndent(indent bool) Option {
	return func(o *options) { o.indent = indent }
}

// WithAtomicWrite makes WriteFile write to a temporary file and rename it into place.
func WithAtomicWrite(atomic bool) Option {
	return func(o *options) { o.atomic = atomic }
}

type factory struct {
	new        func(...Option) Codec
	extensions []string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[Format]factory)
)

// Register adds a codec factory. The first extension is the preferred one.
func Register(f Format, newCodec func(...Option) Codec, extensions ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[f] = factory{new: newCodec, extensions: extensions}
}

func init() {
	Register(FormatTable, func(opts ...Option) Codec { return NewTable(opts...) }, ".dat", ".txt")
	Register(FormatCSV, func(opts ...Option) Codec { return NewCSV(opts...) }, ".csv")
	Register(FormatJSON, func(opts ...Option) Codec { return NewJSON(opts...) }, ".json")
}

// For returns the codec registered for f.
func For(f Format, opts ...Option) (Codec, error) {
	registryMu.RLock()
	fac, ok := registry[Format(strings.ToLower(string(f)))]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownFormatError{Name: string(f), Available: ListFormats()}
	}
	return fac.new(opts...), nil
}

// ForPath picks the codec from the file extension.
func ForPath(path string, opts ...Option) (Codec, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return For(f, opts...)
}

// FormatFromPath maps a file extension to its format.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	registryMu.RLock()
	defer registryMu.RUnlock()
	for f, fac := range registry {
		for _, e := range fac.extensions {
			if e == ext {
				return f, nil
			}
		}
	}
	return "", &UnknownFormatError{Name: ext, Path: path, Available: listFormatsLocked()}
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	registryMu.RLock()
	defer registryMu.RUnlock()
	if _, ok := registry[f]; !ok {
		return "", &UnknownFormatError{Name: name, Available: listFormatsLocked()}
	}
	return f, nil
}

// ListFormats returns all registered format names (sorted).
func ListFormats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return listFormatsLocked()
}

func listFormatsLocked() []string {
	names := make([]string, 0, len(registry))
	for f := range registry {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// IsKnownExtension reports whether some codec handles the file's extension.
func IsKnownExtension(path string) bool {
	_, err := FormatFromPath(path)
	return err == nil
}

// UnknownFormatError is returned when no codec matches a name or extension.
type UnknownFormatError struct {
	Name      string
	Path      string
	Available []string
}

func (e *UnknownFormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("no format registered for extension %q of %s\nAvailable formats: %v", e.Name, e.Path, e.Available)
	}
	return fmt.Sprintf("unknown format %q\nAvailable formats: %v", e.Name, e.Available)
}
