package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

// Tag line prefixes of the annotated table format, in write order.
const (
	tagName         = "#NAME:"
	tagTitle        = "#TITLE:"
	tagDate         = "#DATE:"
	tagColumnNames  = "#COLUMN_NAMES:"
	tagColumnTypes  = "#COLUMN_TYPES:"
	tagColumnTitles = "#COLUMN_TITLES:"
	tagColumnUnits  = "#COLUMN_UNITS:"
)

var tableTags = []string{tagName, tagTitle, tagDate, tagColumnNames, tagColumnTypes, tagColumnTitles, tagColumnUnits}

// listSeparator joins per-column metadata on a tag line.
const listSeparator = "|"

// maxLineSize bounds a single table line.
const maxLineSize = 64 << 20

// Table is the annotated plain-text table codec: seven #TAG lines, a blank
// line, then one whitespace-separated row per record.
type Table struct {
	opts options
}

// NewTable creates a table codec.
func NewTable(opts ...Option) *Table {
	return &Table{opts: newOptions(opts)}
}

// Format implements Codec.
func (*Table) Format() Format { return FormatTable }

// Extension implements Codec.
func (*Table) Extension() string { return ".dat" }

// Encode writes ds. Values that cannot be a single whitespace-free token and
// metadata containing the list separator or a newline are rejected.
func (t *Table) Encode(w io.Writer, ds *dataset.Dataset) error {
	if err := checkTableMetadata(ds); err != nil {
		return err
	}

	names := ds.Names()
	types := make([]string, ds.NumColumns())
	for i, ct := range ds.Types() {
		types[i] = ct.Code()
	}

	bw := bufio.NewWriter(w)
	writeTag := func(tag, value string) {
		_, _ = fmt.Fprintf(bw, "%s %s\n", tag, value)
	}
	writeTag(tagName, ds.Name())
	writeTag(tagTitle, ds.Description())
	writeTag(tagDate, t.opts.date())
	writeTag(tagColumnNames, strings.Join(names, listSeparator))
	writeTag(tagColumnTypes, strings.Join(types, listSeparator))
	writeTag(tagColumnTitles, strings.Join(names, listSeparator))
	writeTag(tagColumnUnits, strings.Join(ds.Units(), listSeparator))
	_, _ = bw.WriteString("\n")

	headers := ds.Headers()
	tokens := make([]string, len(headers))
	for r := 0; r < ds.NumRows(); r++ {
		row, err := ds.Row(r)
		if err != nil {
			return err
		}
		for c, v := range row {
			tok, err := dataset.FormatValue(v, headers[c].Type)
			if err != nil {
				return err
			}
			if err := checkToken(tok, c == 0); err != nil {
				return &dataset.FormatError{Column: headers[c].Name, Msg: fmt.Sprintf("row %d: %s", r, err)}
			}
			tokens[c] = tok
		}
		_, _ = bw.WriteString(strings.Join(tokens, " "))
		_, _ = bw.WriteString("\n")
	}
	return bw.Flush()
}

func checkTableMetadata(ds *dataset.Dataset) error {
	for _, f := range []struct{ what, value string }{
		{"name", ds.Name()},
		{"description", ds.Description()},
	} {
		if strings.ContainsAny(f.value, "\r\n") {
			return dataset.Formatf("dataset %s contains a newline", f.what)
		}
		if strings.TrimSpace(f.value) != f.value {
			return dataset.Formatf("dataset %s %q has surrounding whitespace", f.what, f.value)
		}
	}
	for _, h := range ds.Headers() {
		if h.Name == "" {
			return dataset.Formatf("empty column name is not representable in table format")
		}
		for _, f := range []struct{ what, value string }{
			{"name", h.Name},
			{"unit", h.Unit},
		} {
			if strings.ContainsAny(f.value, listSeparator+"\r\n") {
				return &dataset.FormatError{Column: h.Name, Msg: fmt.Sprintf("column %s %q contains '|' or a newline", f.what, f.value)}
			}
			if strings.TrimSpace(f.value) != f.value {
				return &dataset.FormatError{Column: h.Name, Msg: fmt.Sprintf("column %s %q has surrounding whitespace", f.what, f.value)}
			}
		}
	}
	return nil
}

func checkToken(tok string, first bool) error {
	if tok == "" {
		return fmt.Errorf("empty value is not representable in table format")
	}
	if strings.IndexFunc(tok, unicode.IsSpace) >= 0 {
		return fmt.Errorf("value %q contains whitespace", tok)
	}
	if first && isTagLine(tok) {
		return fmt.Errorf("value %q would be read back as a tag line", tok)
	}
	return nil
}

func isTagLine(line string) bool {
	for _, tag := range tableTags {
		if strings.HasPrefix(line, tag) {
			return true
		}
	}
	return false
}

type rawRow struct {
	line   int
	tokens []string
}

// Decode reads a table. Missing COLUMN_NAMES/TYPES/UNITS lines fall back to
// index names, Double types and empty units.
func (t *Table) Decode(r io.Reader) (*dataset.Dataset, error) {
	var (
		name, description   string
		names, types, units []string
		rows                []rawRow
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, tagName):
			name = tagValue(line, tagName)
		case strings.HasPrefix(line, tagTitle):
			description = tagValue(line, tagTitle)
		case strings.HasPrefix(line, tagDate), strings.HasPrefix(line, tagColumnTitles):
			// informational only
		case strings.HasPrefix(line, tagColumnNames):
			names = splitList(tagValue(line, tagColumnNames))
		case strings.HasPrefix(line, tagColumnTypes):
			types = splitList(tagValue(line, tagColumnTypes))
		case strings.HasPrefix(line, tagColumnUnits):
			units = splitList(tagValue(line, tagColumnUnits))
		default:
			rows = append(rows, rawRow{line: lineNo, tokens: strings.Fields(line)})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &dataset.FormatError{Line: lineNo + 1, Msg: "read failed", Err: err}
	}

	headers, err := tableHeaders(names, types, units, rows)
	if err != nil {
		return nil, err
	}

	ds, err := dataset.New(name, description, headers)
	if err != nil {
		return nil, err
	}

	values := make([]any, len(headers))
	for _, row := range rows {
		if len(row.tokens) != len(headers) {
			return nil, &dataset.FormatError{Line: row.line,
				Msg: fmt.Sprintf("row has %d values, expected %d", len(row.tokens), len(headers))}
		}
		for c, tok := range row.tokens {
			v, err := dataset.ParseValue(tok, headers[c].Type)
			if err != nil {
				return nil, withLocation(err, row.line, headers[c].Name)
			}
			values[c] = v
		}
		if err := ds.AddRow(values...); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// tableHeaders reconciles the metadata lists. The column count comes from the
// first non-empty list, or from the first data row when no metadata is present.
func tableHeaders(names, types, units []string, rows []rawRow) ([]dataset.Header, error) {
	n := -1
	for _, l := range [][]string{names, types, units} {
		if len(l) > 0 {
			n = len(l)
			break
		}
	}
	if n < 0 {
		n = 0
		if len(rows) > 0 {
			n = len(rows[0].tokens)
		}
	}

	check := func(tag string, l []string) error {
		if len(l) > 0 && len(l) != n {
			return dataset.Formatf("%s lists %d columns, expected %d", strings.TrimSuffix(tag, ":"), len(l), n)
		}
		return nil
	}
	for _, c := range []struct {
		tag string
		l   []string
	}{{tagColumnNames, names}, {tagColumnTypes, types}, {tagColumnUnits, units}} {
		if err := check(c.tag, c.l); err != nil {
			return nil, err
		}
	}

	headers := make([]dataset.Header, n)
	for i := range headers {
		h := dataset.Header{Name: strconv.Itoa(i), Type: dataset.Double}
		if len(names) > 0 {
			h.Name = names[i]
		}
		if len(types) > 0 {
			ct, err := dataset.ParseColumnType(types[i])
			if err != nil {
				return nil, withLocation(err, 0, h.Name)
			}
			h.Type = ct
		}
		if len(units) > 0 {
			h.Unit = units[i]
		}
		headers[i] = h
	}
	return headers, nil
}

func tagValue(line, tag string) string {
	return strings.TrimSpace(strings.TrimPrefix(line, tag))
}

// splitList splits a tag value on '|'. An empty value is an empty list.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, listSeparator)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
