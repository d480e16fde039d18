package codec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

// ReadFile decodes path with the codec matching its extension.
// Format errors carry the path.
func ReadFile(path string, opts ...Option) (*dataset.Dataset, error) {
	c, err := ForPath(path, opts...)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	ds, err := c.Decode(f)
	if err != nil {
		return nil, withPath(err, path)
	}
	return ds, nil
}

// WriteFile encodes ds to path with the codec matching its extension,
// replacing any existing file.
func WriteFile(path string, ds *dataset.Dataset, opts ...Option) error {
	c, err := ForPath(path, opts...)
	if err != nil {
		return err
	}
	return Write(c, path, ds, opts...)
}

// Write encodes ds to path with c, regardless of the path's extension.
func Write(c Codec, path string, ds *dataset.Dataset, opts ...Option) error {
	o := newOptions(opts)
	if o.atomic {
		return writeAtomic(c, path, ds)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := c.Encode(f, ds); err != nil {
		_ = f.Close()
		return withPath(err, path)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func writeAtomic(c Codec, path string, ds *dataset.Dataset) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := c.Encode(tmp, ds); err != nil {
		_ = tmp.Close()
		cleanup()
		return withPath(err, path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}

// withPath stamps a FormatError with the file it came from.
func withPath(err error, path string) error {
	var fe *dataset.FormatError
	if errors.As(err, &fe) && fe.Path == "" {
		cp := *fe
		cp.Path = path
		return &cp
	}
	return err
}

// withLocation stamps a FormatError with a line and column when they are unset.
func withLocation(err error, line int, column string) error {
	var fe *dataset.FormatError
	if !errors.As(err, &fe) {
		return err
	}
	cp := *fe
	if cp.Line == 0 {
		cp.Line = line
	}
	if cp.Column == "" {
		cp.Column = column
	}
	return &cp
}
