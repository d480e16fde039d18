package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every typed error below unwraps to one of these.
var (
	// ErrFormat is returned for malformed or truncated serialized input.
	ErrFormat = errors.New("format error")

	// ErrType is returned when a value does not match a column type.
	ErrType = errors.New("type error")

	// ErrValidation is returned when a row or a header list is rejected.
	ErrValidation = errors.New("validation error")

	// ErrIndex is returned for out-of-range row or column indices.
	ErrIndex = errors.New("index out of range")
)

// FormatError describes malformed serialized input.
// Path, Line and Column are optional and only printed when set.
type FormatError struct {
	Path   string
	Line   int
	Column string
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(ErrFormat.Error())
	switch {
	case e.Path != "" && e.Line > 0:
		fmt.Fprintf(&b, ": %s:%d", e.Path, e.Line)
	case e.Path != "":
		fmt.Fprintf(&b, ": %s", e.Path)
	case e.Line > 0:
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ": column '%s'", e.Column)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports ErrFormat so callers can match without errors.As.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

func (e *FormatError) Unwrap() error { return e.Err }

// Formatf builds a FormatError with a formatted message.
func Formatf(format string, args ...any) *FormatError {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}

// TypeError reports a value whose runtime kind does not match a column type.
// Element is the offending vector element, or -1 for scalar mismatches.
type TypeError struct {
	Expected ColumnType
	Found    string
	Element  int
}

func (e *TypeError) Error() string {
	if e.Element >= 0 {
		return fmt.Sprintf("element of vector is not correct: found %s, expected float64 at element %d",
			e.Found, e.Element)
	}
	return fmt.Sprintf("type is not correct: found %s, expected %s", e.Found, e.Expected)
}

func (e *TypeError) Unwrap() error { return ErrType }

// ValidationError is returned by New and AddRow.
// Row is -1 for header-level failures; Element is -1 unless a vector element failed.
type ValidationError struct {
	Column   string
	Row      int
	Found    string
	Expected ColumnType
	Element  int
	Reason   string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Reason != "" && e.Column != "":
		return fmt.Sprintf("%s: %s for '%s'", ErrValidation, e.Reason, e.Column)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	case e.Element >= 0:
		return fmt.Sprintf("%s: element of vector is not correct: found %s, expected float64 for '%s' at row %d, element %d",
			ErrValidation, e.Found, e.Column, e.Row, e.Element)
	default:
		return fmt.Sprintf("%s: type is not correct: found %s, expected %s for '%s' at row %d",
			ErrValidation, e.Found, e.Expected, e.Column, e.Row)
	}
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IndexError reports an out-of-range row or column index.
type IndexError struct {
	Kind  string // "row" or "column"
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s %d out of range [0, %d)", e.Kind, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndex }
