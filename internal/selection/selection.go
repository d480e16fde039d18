// Package selection filters dataset rows with Starlark predicate expressions.
//
// Each row is evaluated with its columns bound as globals:
//
//	y > 0.5 and label != "skip"
//	col("max stress") < 1e6 and row % 2 == 0
//
// Doubles bind as float, strings as string and vectors as a frozen list of
// float. Columns whose names are not valid identifiers are reachable through
// col(name); row holds the zero-based row index.
package selection

import (
	"fmt"
	"regexp"

	"github.com/leapstack-labs/uqtable/pkg/dataset"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Reserved global names.
const (
	rowGlobal = "row"
	colGlobal = "col"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var keywords = map[string]bool{
	"and": true, "as": true, "assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true, "if": true,
	"import": true, "in": true, "is": true, "lambda": true, "load": true, "nonlocal": true,
	"not": true, "or": true, "pass": true, "raise": true, "return": true, "try": true,
	"while": true, "with": true, "yield": true,
}

// Bindable reports whether a column name can be used directly as a global.
func Bindable(name string) bool {
	return identRe.MatchString(name) && !keywords[name] && name != rowGlobal && name != colGlobal
}

// Filter is a compiled row predicate. It is safe for concurrent use.
type Filter struct {
	expr string
	pool *threadPool
}

// Compile parses expr. Syntax errors are reported here rather than per row.
func Compile(expr string) (*Filter, error) {
	if _, err := syntax.ParseExpr("selection", expr, 0); err != nil { //nolint:staticcheck // SA1019: will migrate to FileOptions later
		return nil, &EvalError{Expr: expr, Row: -1, Message: err.Error()}
	}
	return &Filter{expr: expr, pool: newThreadPool(0)}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Matches evaluates the predicate against one row.
func (f *Filter) Matches(ds *dataset.Dataset, row int) (bool, error) {
	values, err := ds.Row(row)
	if err != nil {
		return false, err
	}
	globals, err := rowGlobals(ds, values, row)
	if err != nil {
		return false, &EvalError{Expr: f.expr, Row: row, Message: err.Error()}
	}

	thread := f.pool.get(f.expr)
	defer f.pool.put(thread)

	result, err := starlark.Eval(thread, "selection", f.expr, globals) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		return false, &EvalError{Expr: f.expr, Row: row, Message: err.Error()}
	}
	b, ok := result.(starlark.Bool)
	if !ok {
		return false, &EvalError{Expr: f.expr, Row: row,
			Message: fmt.Sprintf("expression returned %s, want bool", result.Type())}
	}
	return bool(b), nil
}

// Apply returns the indices of the rows the predicate accepts, in order.
// The first evaluation error aborts the scan.
func (f *Filter) Apply(ds *dataset.Dataset) ([]int, error) {
	rows := []int{}
	for r := 0; r < ds.NumRows(); r++ {
		ok, err := f.Matches(ds, r)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// Select compiles expr and returns the subset of ds it accepts.
func Select(ds *dataset.Dataset, expr string) (*dataset.Dataset, error) {
	f, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	rows, err := f.Apply(ds)
	if err != nil {
		return nil, err
	}
	return ds.Subset(rows)
}

func rowGlobals(ds *dataset.Dataset, values []any, row int) (starlark.StringDict, error) {
	headers := ds.Headers()
	converted := make([]starlark.Value, len(headers))
	globals := make(starlark.StringDict, len(headers)+2)
	for i, h := range headers {
		v, err := toStarlark(values[i], h.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", h.Name, err)
		}
		converted[i] = v
		if Bindable(h.Name) {
			globals[h.Name] = v
		}
	}
	globals[rowGlobal] = starlark.MakeInt(row)
	globals[colGlobal] = starlark.NewBuiltin(colGlobal, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
			return nil, err
		}
		idx := ds.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("%s: no column %q", b.Name(), name)
		}
		return converted[idx], nil
	})
	return globals, nil
}

func toStarlark(v any, t dataset.ColumnType) (starlark.Value, error) {
	switch t {
	case dataset.String:
		return starlark.String(v.(string)), nil
	case dataset.Double:
		return starlark.Float(v.(float64)), nil
	case dataset.Vector:
		vec := v.([]float64)
		elems := make([]starlark.Value, len(vec))
		for i, f := range vec {
			elems[i] = starlark.Float(f)
		}
		list := starlark.NewList(elems)
		list.Freeze()
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", t)
	}
}

// EvalError reports a failed predicate. Row is -1 for compile errors.
type EvalError struct {
	Expr    string
	Row     int
	Message string
}

func (e *EvalError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("row %d: error evaluating %q: %s", e.Row, e.Expr, e.Message)
	}
	return fmt.Sprintf("error compiling %q: %s", e.Expr, e.Message)
}
