package dataset

import (
	"math"
	"strconv"
)

// Header describes one column.
type Header struct {
	Name string
	Type ColumnType
	Unit string
}

// column stores the values of a single header. Only the slice matching typ is used.
type column struct {
	typ     ColumnType
	strings []string
	doubles []float64
	vectors [][]float64
}

func (c *column) len() int {
	switch c.typ {
	case String:
		return len(c.strings)
	case Double:
		return len(c.doubles)
	default:
		return len(c.vectors)
	}
}

func (c *column) append(v any) {
	switch c.typ {
	case String:
		c.strings = append(c.strings, v.(string))
	case Double:
		c.doubles = append(c.doubles, v.(float64))
	default:
		c.vectors = append(c.vectors, v.([]float64))
	}
}

func (c *column) at(i int) any {
	switch c.typ {
	case String:
		return c.strings[i]
	case Double:
		return c.doubles[i]
	default:
		return cloneVector(c.vectors[i])
	}
}

// Dataset is an ordered list of typed columns with row-wise insertion.
// The header list is fixed at construction.
type Dataset struct {
	name        string
	description string
	headers     []Header
	columns     []*column
}

// New creates an empty dataset. Header names must be unique and every type valid.
func New(name, description string, headers []Header) (*Dataset, error) {
	seen := make(map[string]struct{}, len(headers))
	cols := make([]*column, len(headers))
	for i, h := range headers {
		if !h.Type.Valid() {
			return nil, &ValidationError{Column: h.Name, Row: -1, Element: -1,
				Reason: "unknown column type " + h.Type.String()}
		}
		if _, dup := seen[h.Name]; dup {
			return nil, &ValidationError{Column: h.Name, Row: -1, Element: -1,
				Reason: "duplicate column name"}
		}
		seen[h.Name] = struct{}{}
		cols[i] = &column{typ: h.Type}
	}
	return &Dataset{
		name:        name,
		description: description,
		headers:     append([]Header(nil), headers...),
		columns:     cols,
	}, nil
}

// MustNew is New for statically known headers; it panics on error.
func MustNew(name, description string, headers []Header) *Dataset {
	ds, err := New(name, description, headers)
	if err != nil {
		panic(err)
	}
	return ds
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Description returns the dataset description.
func (d *Dataset) Description() string { return d.description }

// Headers returns a copy of the header list.
func (d *Dataset) Headers() []Header { return append([]Header(nil), d.headers...) }

// Names returns the header names in column order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.headers))
	for i, h := range d.headers {
		out[i] = h.Name
	}
	return out
}

// Types returns the header types in column order.
func (d *Dataset) Types() []ColumnType {
	out := make([]ColumnType, len(d.headers))
	for i, h := range d.headers {
		out[i] = h.Type
	}
	return out
}

// Units returns the header units in column order.
func (d *Dataset) Units() []string {
	out := make([]string, len(d.headers))
	for i, h := range d.headers {
		out[i] = h.Unit
	}
	return out
}

// NumColumns returns the number of headers.
func (d *Dataset) NumColumns() int { return len(d.headers) }

// NumRows returns the number of stored rows; 0 for a dataset without headers.
func (d *Dataset) NumRows() int {
	if len(d.columns) == 0 {
		return 0
	}
	return d.columns[0].len()
}

// ColumnIndex returns the position of the named column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, h := range d.headers {
		if h.Name == name {
			return i
		}
	}
	return -1
}

// AddRow appends one value per column. Either every value validates and the
// row is appended to all columns, or nothing is mutated.
func (d *Dataset) AddRow(values ...any) error {
	if len(values) != len(d.headers) {
		return &ValidationError{Row: d.NumRows(), Element: -1,
			Reason: "row has " + strconv.Itoa(len(values)) + " values, expected " + strconv.Itoa(len(d.headers))}
	}

	row := d.NumRows()
	norm := make([]any, len(values))
	for i, v := range values {
		n, err := normalize(v, d.headers[i].Type)
		if err != nil {
			te := err.(*TypeError)
			return &ValidationError{
				Column:   d.headers[i].Name,
				Row:      row,
				Found:    te.Found,
				Expected: d.headers[i].Type,
				Element:  te.Element,
			}
		}
		norm[i] = n
	}

	for i, v := range norm {
		d.columns[i].append(v)
	}
	return nil
}

// Row returns the values of row index in column order.
func (d *Dataset) Row(index int) ([]any, error) {
	if index < 0 || index >= d.NumRows() {
		return nil, &IndexError{Kind: "row", Index: index, Len: d.NumRows()}
	}
	out := make([]any, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.at(index)
	}
	return out, nil
}

// Value returns a single cell.
func (d *Dataset) Value(row, col int) (any, error) {
	if col < 0 || col >= len(d.columns) {
		return nil, &IndexError{Kind: "column", Index: col, Len: len(d.columns)}
	}
	if row < 0 || row >= d.NumRows() {
		return nil, &IndexError{Kind: "row", Index: row, Len: d.NumRows()}
	}
	return d.columns[col].at(row), nil
}

// Subset returns a new dataset with the same metadata holding the given rows, in order.
func (d *Dataset) Subset(rows []int) (*Dataset, error) {
	out, err := New(d.name, d.description, d.headers)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		vals, err := d.Row(r)
		if err != nil {
			return nil, err
		}
		if err := out.AddRow(vals...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Equal reports whether both datasets have the same name, description,
// headers and row-major values. NaN equals NaN.
func (d *Dataset) Equal(o *Dataset) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.name != o.name || d.description != o.description || len(d.headers) != len(o.headers) {
		return false
	}
	for i := range d.headers {
		if d.headers[i] != o.headers[i] {
			return false
		}
	}
	if d.NumRows() != o.NumRows() {
		return false
	}
	for i, c := range d.columns {
		oc := o.columns[i]
		switch c.typ {
		case String:
			for r := range c.strings {
				if c.strings[r] != oc.strings[r] {
					return false
				}
			}
		case Double:
			for r := range c.doubles {
				if !sameFloat(c.doubles[r], oc.doubles[r]) {
					return false
				}
			}
		default:
			for r := range c.vectors {
				if len(c.vectors[r]) != len(oc.vectors[r]) {
					return false
				}
				for e := range c.vectors[r] {
					if !sameFloat(c.vectors[r][e], oc.vectors[r][e]) {
						return false
					}
				}
			}
		}
	}
	return true
}

func sameFloat(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}
