package codec

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

// CSV preamble tags, one per leading record.
const (
	csvName         = "NAME"
	csvTitle        = "TITLE"
	csvDate         = "DATE"
	csvColumnNames  = "COLUMN_NAMES"
	csvColumnTypes  = "COLUMN_TYPES"
	csvColumnTitles = "COLUMN_TITLES"
	csvColumnUnits  = "COLUMN_UNITS"
)

var csvPreamble = []string{csvName, csvTitle, csvDate, csvColumnNames, csvColumnTypes, csvColumnTitles, csvColumnUnits}

// CSV is the comma-separated codec. Seven tagged preamble records precede the
// data; each data record is the row index followed by one cell per column.
type CSV struct {
	opts options
}

// NewCSV creates a CSV codec.
func NewCSV(opts ...Option) *CSV {
	return &CSV{opts: newOptions(opts)}
}

// Format implements Codec.
func (*CSV) Format() Format { return FormatCSV }

// Extension implements Codec.
func (*CSV) Extension() string { return ".csv" }

// Encode writes ds. Vector cells use the bracketed canonical form. Text
// holding a carriage return is rejected since the reader folds "\r\n" to "\n".
func (c *CSV) Encode(w io.Writer, ds *dataset.Dataset) error {
	if err := checkCSVText(ds); err != nil {
		return err
	}
	cw := csv.NewWriter(w)

	types := make([]string, ds.NumColumns())
	for i, ct := range ds.Types() {
		types[i] = ct.Code()
	}
	preamble := [][]string{
		{csvName, ds.Name()},
		{csvTitle, ds.Description()},
		{csvDate, c.opts.date()},
		append([]string{csvColumnNames}, ds.Names()...),
		append([]string{csvColumnTypes}, types...),
		append([]string{csvColumnTitles}, ds.Names()...),
		append([]string{csvColumnUnits}, ds.Units()...),
	}
	if err := cw.WriteAll(preamble); err != nil {
		return err
	}

	headers := ds.Headers()
	record := make([]string, len(headers)+1)
	for r := 0; r < ds.NumRows(); r++ {
		row, err := ds.Row(r)
		if err != nil {
			return err
		}
		record[0] = strconv.Itoa(r)
		for i, v := range row {
			cell, err := dataset.FormatValue(v, headers[i].Type)
			if err != nil {
				return err
			}
			record[i+1] = cell
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Decode reads a CSV document written by Encode. The leading index cell of
// each data record is ignored.
func (c *CSV) Decode(r io.Reader) (*dataset.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	pre := make([][]string, 0, len(csvPreamble))
	for _, tag := range csvPreamble {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, dataset.Formatf("truncated preamble: missing %s record", tag)
		}
		if err != nil {
			return nil, csvReadError(err)
		}
		if rec[0] != tag {
			line, _ := cr.FieldPos(0)
			return nil, &dataset.FormatError{Line: line, Msg: fmt.Sprintf("expected %s record, found %q", tag, rec[0])}
		}
		pre = append(pre, rec[1:])
	}

	names, types, units := pre[3], pre[4], pre[6]
	n := len(names)
	if len(types) != n || len(units) != n {
		return nil, dataset.Formatf("preamble lists %d names, %d types and %d units", n, len(types), len(units))
	}

	headers := make([]dataset.Header, n)
	for i := range headers {
		ct, err := dataset.ParseColumnType(types[i])
		if err != nil {
			return nil, withLocation(err, 5, names[i])
		}
		headers[i] = dataset.Header{Name: names[i], Type: ct, Unit: units[i]}
	}

	ds, err := dataset.New(firstCell(pre[0]), firstCell(pre[1]), headers)
	if err != nil {
		return nil, err
	}

	values := make([]any, n)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvReadError(err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != n+1 {
			return nil, &dataset.FormatError{Line: line,
				Msg: fmt.Sprintf("record has %d cells, expected %d", len(rec), n+1)}
		}
		for i, cell := range rec[1:] {
			v, err := dataset.ParseValue(cell, headers[i].Type)
			if err != nil {
				return nil, withLocation(err, line, headers[i].Name)
			}
			values[i] = v
		}
		if err := ds.AddRow(values...); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func checkCSVText(ds *dataset.Dataset) error {
	if strings.Contains(ds.Name(), "\r") {
		return dataset.Formatf("dataset name contains a carriage return")
	}
	if strings.Contains(ds.Description(), "\r") {
		return dataset.Formatf("dataset description contains a carriage return")
	}
	headers := ds.Headers()
	for _, h := range headers {
		if strings.Contains(h.Name, "\r") || strings.Contains(h.Unit, "\r") {
			return &dataset.FormatError{Column: h.Name, Msg: "column name or unit contains a carriage return"}
		}
	}
	for r := 0; r < ds.NumRows(); r++ {
		for c, h := range headers {
			if h.Type != dataset.String {
				continue
			}
			v, err := ds.Value(r, c)
			if err != nil {
				return err
			}
			if s, _ := v.(string); strings.Contains(s, "\r") {
				return &dataset.FormatError{Column: h.Name, Msg: fmt.Sprintf("row %d: value contains a carriage return", r)}
			}
		}
	}
	return nil
}

func firstCell(cells []string) string {
	if len(cells) == 0 {
		return ""
	}
	return cells[0]
}

func csvReadError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &dataset.FormatError{Line: pe.Line, Msg: "malformed csv", Err: pe.Err}
	}
	return &dataset.FormatError{Msg: "read failed", Err: err}
}
