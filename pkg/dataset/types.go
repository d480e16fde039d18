package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnType is the closed set of value kinds a column can hold.
type ColumnType int

const (
	// String holds any text, stored and emitted verbatim.
	String ColumnType = iota
	// Double holds a float64.
	Double
	// Vector holds an ordered []float64.
	Vector
)

// Wire codes used by every codec.
const (
	codeString = "S"
	codeDouble = "D"
	codeVector = "V"
)

// String returns the type name.
func (t ColumnType) String() string {
	switch t {
	case String:
		return "String"
	case Double:
		return "Double"
	case Vector:
		return "Vector"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Code returns the one-letter wire code (S, D or V).
func (t ColumnType) Code() string {
	switch t {
	case String:
		return codeString
	case Double:
		return codeDouble
	case Vector:
		return codeVector
	default:
		return ""
	}
}

// Valid reports whether t is one of the declared column types.
func (t ColumnType) Valid() bool {
	return t == String || t == Double || t == Vector
}

// ParseColumnType maps a wire code to its ColumnType.
func ParseColumnType(code string) (ColumnType, error) {
	switch strings.TrimSpace(code) {
	case codeString:
		return String, nil
	case codeDouble:
		return Double, nil
	case codeVector:
		return Vector, nil
	default:
		return 0, Formatf("unknown column type %q (expected S, D or V)", code)
	}
}

// ParseValue converts a textual token to the in-memory representation of t:
// string, float64 or []float64.
func ParseValue(raw string, t ColumnType) (any, error) {
	switch t {
	case String:
		return raw, nil
	case Double:
		f, err := parseDouble(raw)
		if err != nil {
			return nil, &FormatError{Msg: fmt.Sprintf("invalid double %q", raw), Err: err}
		}
		return f, nil
	case Vector:
		return parseVector(raw)
	default:
		return nil, Formatf("unknown column type %d", int(t))
	}
}

func parseDouble(raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		// strip the strconv prefix, the caller adds its own context
		if ne, ok := err.(*strconv.NumError); ok {
			return 0, ne.Err
		}
		return 0, err
	}
	return f, nil
}

func parseVector(raw string) ([]float64, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "[")
	body = strings.TrimSuffix(body, "]")
	if strings.TrimSpace(body) == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := parseDouble(p)
		if err != nil {
			return nil, &FormatError{
				Msg: fmt.Sprintf("invalid vector %q: element %d (%q)", raw, i, strings.TrimSpace(p)),
				Err: err,
			}
		}
		out[i] = f
	}
	return out, nil
}

// FormatValue renders v in its canonical text form. Doubles use the shortest
// representation that parses back to the same float64; vectors render as
// [e0,e1,...] without spaces.
func FormatValue(v any, t ColumnType) (string, error) {
	norm, err := normalize(v, t)
	if err != nil {
		return "", err
	}
	switch t {
	case String:
		return norm.(string), nil
	case Double:
		return formatDouble(norm.(float64)), nil
	default:
		vec := norm.([]float64)
		parts := make([]string, len(vec))
		for i, f := range vec {
			parts[i] = formatDouble(f)
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	}
}

func formatDouble(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Validate confirms v's runtime kind matches t. Double accepts Go float and
// integer kinds; Vector accepts []float64 or []any holding only numbers.
func Validate(v any, t ColumnType) error {
	_, err := normalize(v, t)
	return err
}

// normalize validates v and converts it to the stored representation.
func normalize(v any, t ColumnType) (any, error) {
	switch t {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Double:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case Vector:
		switch vec := v.(type) {
		case []float64:
			return cloneVector(vec), nil
		case []any:
			out := make([]float64, len(vec))
			for i, e := range vec {
				f, ok := toFloat(e)
				if !ok {
					return nil, &TypeError{Expected: Vector, Found: kindOf(e), Element: i}
				}
				out[i] = f
			}
			return out, nil
		}
	}
	return nil, &TypeError{Expected: t, Found: kindOf(v), Element: -1}
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func kindOf(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
