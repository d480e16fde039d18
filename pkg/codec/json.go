package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

// jsonComment is the fixed _metadata._comment value.
const jsonComment = ""

// JSON is the object codec: a _metadata block plus an items array holding one
// object per row, keyed by column name in header order.
type JSON struct {
	opts options
}

// NewJSON creates a JSON codec.
func NewJSON(opts ...Option) *JSON {
	return &JSON{opts: newOptions(opts)}
}

// Format implements Codec.
func (*JSON) Format() Format { return FormatJSON }

// Extension implements Codec.
func (*JSON) Extension() string { return ".json" }

type jsonMetadata struct {
	Comment          string   `json:"_comment"`
	Date             string   `json:"date"`
	ShortNames       []string `json:"short_names"`
	TableDescription string   `json:"table_description"`
	TableName        string   `json:"table_name"`
	Types            []string `json:"types"`
	Units            []string `json:"units"`
}

type jsonDocument struct {
	Metadata *jsonMetadata `json:"_metadata"`
	Items    *[]jsonItem   `json:"items"`
}

// jsonItem is one row. It marshals its keys in column order.
type jsonItem struct {
	names  []string
	values []any
}

func (it jsonItem) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range it.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(it.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (it *jsonItem) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	it.names = it.names[:0]
	it.values = it.values[:0]
	for k, raw := range m {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		it.names = append(it.names, k)
		it.values = append(it.values, v)
	}
	return nil
}

func (it jsonItem) lookup(name string) (any, bool) {
	for i, n := range it.names {
		if n == name {
			return it.values[i], true
		}
	}
	return nil, false
}

// Encode writes ds. Non-finite doubles and invalid UTF-8 text have no JSON
// representation and are rejected.
func (j *JSON) Encode(w io.Writer, ds *dataset.Dataset) error {
	if err := checkJSONText(ds); err != nil {
		return err
	}
	headers := ds.Headers()
	types := make([]string, len(headers))
	for i, h := range headers {
		types[i] = h.Type.Code()
	}

	items := make([]jsonItem, 0, ds.NumRows())
	names := ds.Names()
	for r := 0; r < ds.NumRows(); r++ {
		row, err := ds.Row(r)
		if err != nil {
			return err
		}
		for c, v := range row {
			if err := checkFinite(v); err != nil {
				return &dataset.FormatError{Column: headers[c].Name, Msg: fmt.Sprintf("row %d: %s", r, err)}
			}
			if s, ok := v.(string); ok && !utf8.ValidString(s) {
				return &dataset.FormatError{Column: headers[c].Name, Msg: fmt.Sprintf("row %d: value is not valid UTF-8", r)}
			}
		}
		items = append(items, jsonItem{names: names, values: row})
	}

	doc := jsonDocument{
		Metadata: &jsonMetadata{
			Comment:          jsonComment,
			Date:             j.opts.date(),
			ShortNames:       names,
			TableDescription: ds.Description(),
			TableName:        ds.Name(),
			Types:            types,
			Units:            ds.Units(),
		},
		Items: &items,
	}

	enc := json.NewEncoder(w)
	if j.opts.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(doc)
}

func checkFinite(v any) error {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("non-finite value %v is not representable in JSON", x)
		}
	case []float64:
		for i, f := range x {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("non-finite vector element %d (%v) is not representable in JSON", i, f)
			}
		}
	}
	return nil
}

func checkJSONText(ds *dataset.Dataset) error {
	if !utf8.ValidString(ds.Name()) {
		return dataset.Formatf("dataset name is not valid UTF-8")
	}
	if !utf8.ValidString(ds.Description()) {
		return dataset.Formatf("dataset description is not valid UTF-8")
	}
	for _, h := range ds.Headers() {
		if !utf8.ValidString(h.Name) || !utf8.ValidString(h.Unit) {
			return &dataset.FormatError{Column: h.Name, Msg: "column name or unit is not valid UTF-8"}
		}
	}
	return nil
}

// Decode reads a document written by Encode. Every item must carry exactly
// the declared columns; values are validated through AddRow.
func (j *JSON) Decode(r io.Reader) (*dataset.Dataset, error) {
	var doc jsonDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &dataset.FormatError{Msg: "malformed json", Err: err}
	}
	if doc.Metadata == nil {
		return nil, dataset.Formatf("missing _metadata object")
	}
	if doc.Items == nil {
		return nil, dataset.Formatf("missing items array")
	}

	md := doc.Metadata
	n := len(md.ShortNames)
	if len(md.Types) != n || len(md.Units) != n {
		return nil, dataset.Formatf("_metadata lists %d short_names, %d types and %d units",
			n, len(md.Types), len(md.Units))
	}

	headers := make([]dataset.Header, n)
	for i, name := range md.ShortNames {
		ct, err := dataset.ParseColumnType(md.Types[i])
		if err != nil {
			return nil, withLocation(err, 0, name)
		}
		headers[i] = dataset.Header{Name: name, Type: ct, Unit: md.Units[i]}
	}

	ds, err := dataset.New(md.TableName, md.TableDescription, headers)
	if err != nil {
		return nil, err
	}

	values := make([]any, n)
	for i, item := range *doc.Items {
		if len(item.names) != n {
			return nil, dataset.Formatf("item %d has %d keys, expected %d", i, len(item.names), n)
		}
		for c, h := range headers {
			v, ok := item.lookup(h.Name)
			if !ok {
				return nil, &dataset.FormatError{Column: h.Name, Msg: fmt.Sprintf("item %d: missing key", i)}
			}
			values[c] = v
		}
		if err := ds.AddRow(values...); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
