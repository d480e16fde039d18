package codec

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

var fixedClock = WithClock(func() time.Time {
	return time.Date(2016, time.October, 28, 10, 41, 44, 0, time.UTC)
})

func sampleDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New("test_data", "test", []dataset.Header{
		{Name: "x", Type: dataset.Double, Unit: "u_x"},
		{Name: "y", Type: dataset.String, Unit: "u_y"},
		{Name: "z", Type: dataset.Vector, Unit: "u_z"},
	})
	require.NoError(t, err)
	require.NoError(t, ds.AddRow(1.0, "toto", []float64{1, 2}))
	return ds
}

func allCodecs() []Codec {
	return []Codec{NewTable(fixedClock), NewCSV(fixedClock), NewJSON(fixedClock)}
}

func TestTable_EncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTable(fixedClock).Encode(&buf, sampleDataset(t)))

	want := strings.Join([]string{
		"#NAME: test_data",
		"#TITLE: test",
		"#DATE: Fri Oct 28 10:41:44 2016",
		"#COLUMN_NAMES: x|y|z",
		"#COLUMN_TYPES: D|S|V",
		"#COLUMN_TITLES: x|y|z",
		"#COLUMN_UNITS: u_x|u_y|u_z",
		"",
		"1 toto [1,2]",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestCSV_EncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSV(fixedClock).Encode(&buf, sampleDataset(t)))

	want := strings.Join([]string{
		"NAME,test_data",
		"TITLE,test",
		"DATE,Fri Oct 28 10:41:44 2016",
		"COLUMN_NAMES,x,y,z",
		"COLUMN_TYPES,D,S,V",
		"COLUMN_TITLES,x,y,z",
		"COLUMN_UNITS,u_x,u_y,u_z",
		`0,1,toto,"[1,2]"`,
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestJSON_EncodeLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSON(fixedClock).Encode(&buf, sampleDataset(t)))

	assert.JSONEq(t, `{
		"_metadata": {
			"_comment": "",
			"date": "Fri Oct 28 10:41:44 2016",
			"short_names": ["x", "y", "z"],
			"table_description": "test",
			"table_name": "test_data",
			"types": ["D", "S", "V"],
			"units": ["u_x", "u_y", "u_z"]
		},
		"items": [{"x": 1, "y": "toto", "z": [1, 2]}]
	}`, buf.String())

	// item keys follow header order
	out := buf.String()
	assert.Less(t, strings.Index(out, `"x":1`), strings.Index(out, `"y":"toto"`))
	assert.Less(t, strings.Index(out, `"y":"toto"`), strings.Index(out, `"z":[1,2]`))
}

func TestJSON_Indent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSON(fixedClock, WithIndent(true)).Encode(&buf, sampleDataset(t)))
	assert.Contains(t, buf.String(), "\n  \"_metadata\": {")
}

func TestRoundTrip(t *testing.T) {
	wide := dataset.MustNew("runs", "monte carlo runs", []dataset.Header{
		{Name: "id", Type: dataset.String, Unit: "-"},
		{Name: "mass", Type: dataset.Double, Unit: "kg"},
		{Name: "curve", Type: dataset.Vector, Unit: "m"},
	})
	require.NoError(t, wide.AddRow("run_0", 0.1, []float64{1e-12, -3.5, math.MaxFloat64}))
	require.NoError(t, wide.AddRow("run_1", 1.234567890e+00, []float64{}))
	require.NoError(t, wide.AddRow("run_2", -0.0, []float64{math.Pi}))

	empty := dataset.MustNew("empty", "no rows", []dataset.Header{
		{Name: "a", Type: dataset.Double},
		{Name: "b", Type: dataset.String},
	})

	tests := []struct {
		name string
		ds   *dataset.Dataset
	}{
		{name: "simple", ds: sampleDataset(t)},
		{name: "wide", ds: wide},
		{name: "no rows", ds: empty},
		{name: "no columns", ds: dataset.MustNew("void", "", nil)},
	}

	for _, tt := range tests {
		for _, c := range allCodecs() {
			t.Run(tt.name+"/"+string(c.Format()), func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, c.Encode(&buf, tt.ds))

				back, err := c.Decode(&buf)
				require.NoError(t, err)
				assert.True(t, tt.ds.Equal(back), "decoded dataset differs:\n%s", buf.String())
			})
		}
	}
}

func TestRoundTrip_DelimitedStrings(t *testing.T) {
	ds := dataset.MustNew("quotes", `say "hi", twice`, []dataset.Header{
		{Name: "s", Type: dataset.String, Unit: "a,b"},
	})
	require.NoError(t, ds.AddRow(`he said "x, y"`))
	require.NoError(t, ds.AddRow(""))
	require.NoError(t, ds.AddRow("multi\nline"))

	for _, c := range []Codec{NewCSV(fixedClock), NewJSON(fixedClock)} {
		t.Run(string(c.Format()), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, c.Encode(&buf, ds))
			back, err := c.Decode(&buf)
			require.NoError(t, err)
			assert.True(t, ds.Equal(back))
		})
	}
}

func TestTable_EncodeRejectsUnrepresentable(t *testing.T) {
	tests := []struct {
		name    string
		ds      func() *dataset.Dataset
		wantMsg string
	}{
		{
			name: "string with space",
			ds: func() *dataset.Dataset {
				ds := dataset.MustNew("d", "", []dataset.Header{{Name: "s", Type: dataset.String}})
				_ = ds.AddRow("a b")
				return ds
			},
			wantMsg: "contains whitespace",
		},
		{
			name: "empty string",
			ds: func() *dataset.Dataset {
				ds := dataset.MustNew("d", "", []dataset.Header{{Name: "s", Type: dataset.String}})
				_ = ds.AddRow("")
				return ds
			},
			wantMsg: "empty value",
		},
		{
			name: "tag-like first token",
			ds: func() *dataset.Dataset {
				ds := dataset.MustNew("d", "", []dataset.Header{{Name: "s", Type: dataset.String}})
				_ = ds.AddRow("#NAME:x")
				return ds
			},
			wantMsg: "tag line",
		},
		{
			name: "separator in name",
			ds: func() *dataset.Dataset {
				return dataset.MustNew("d", "", []dataset.Header{{Name: "a|b", Type: dataset.Double}})
			},
			wantMsg: "contains '|'",
		},
		{
			name: "newline in description",
			ds: func() *dataset.Dataset {
				return dataset.MustNew("d", "two\nlines", nil)
			},
			wantMsg: "newline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTable().Encode(&bytes.Buffer{}, tt.ds())
			require.Error(t, err)
			assert.ErrorIs(t, err, dataset.ErrFormat)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestJSON_EncodeRejectsNonFinite(t *testing.T) {
	ds := dataset.MustNew("d", "", []dataset.Header{{Name: "v", Type: dataset.Vector}})
	require.NoError(t, ds.AddRow([]float64{1, math.Inf(1)}))

	err := NewJSON().Encode(&bytes.Buffer{}, ds)
	assert.ErrorIs(t, err, dataset.ErrFormat)
}

func TestJSON_EncodeRejectsInvalidUTF8(t *testing.T) {
	tests := []struct {
		name    string
		ds      func() *dataset.Dataset
		wantMsg string
	}{
		{
			name: "string value",
			ds: func() *dataset.Dataset {
				ds := dataset.MustNew("d", "", []dataset.Header{{Name: "s", Type: dataset.String}})
				_ = ds.AddRow("ok")
				_ = ds.AddRow("a\xffb")
				return ds
			},
			wantMsg: "row 1: value is not valid UTF-8",
		},
		{
			name:    "description",
			ds:      func() *dataset.Dataset { return dataset.MustNew("d", "bad\xfe", nil) },
			wantMsg: "description",
		},
		{
			name: "unit",
			ds: func() *dataset.Dataset {
				return dataset.MustNew("d", "", []dataset.Header{{Name: "x", Type: dataset.Double, Unit: "\xc3"}})
			},
			wantMsg: "name or unit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewJSON().Encode(&bytes.Buffer{}, tt.ds())
			require.Error(t, err)
			assert.ErrorIs(t, err, dataset.ErrFormat)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCSV_EncodeRejectsCarriageReturn(t *testing.T) {
	tests := []struct {
		name    string
		ds      func() *dataset.Dataset
		wantMsg string
	}{
		{
			name: "crlf in value",
			ds: func() *dataset.Dataset {
				ds := dataset.MustNew("d", "", []dataset.Header{{Name: "s", Type: dataset.String}})
				_ = ds.AddRow("a\r\nb")
				return ds
			},
			wantMsg: "row 0: value contains a carriage return",
		},
		{
			name:    "description",
			ds:      func() *dataset.Dataset { return dataset.MustNew("d", "two\r\nlines", nil) },
			wantMsg: "description",
		},
		{
			name: "unit",
			ds: func() *dataset.Dataset {
				return dataset.MustNew("d", "", []dataset.Header{{Name: "x", Type: dataset.Double, Unit: "m\r"}})
			},
			wantMsg: "name or unit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCSV().Encode(&bytes.Buffer{}, tt.ds())
			require.Error(t, err)
			assert.ErrorIs(t, err, dataset.ErrFormat)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestTable_DecodeFallbackMetadata(t *testing.T) {
	ds, err := NewTable().Decode(strings.NewReader("1.0 2.0 3.0\n4 5 6\n"))
	require.NoError(t, err)

	assert.Equal(t, []dataset.Header{
		{Name: "0", Type: dataset.Double},
		{Name: "1", Type: dataset.Double},
		{Name: "2", Type: dataset.Double},
	}, ds.Headers())
	assert.Equal(t, 2, ds.NumRows())
	row, err := ds.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []any{4.0, 5.0, 6.0}, row)
}

func TestTable_DecodePartialMetadata(t *testing.T) {
	in := "#COLUMN_TYPES: S|V\n#COLUMN_UNITS: |cm\nabc [1,2]\n"
	ds, err := NewTable().Decode(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []dataset.Header{
		{Name: "0", Type: dataset.String},
		{Name: "1", Type: dataset.Vector, Unit: "cm"},
	}, ds.Headers())
	v, err := ds.Value(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, v)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		codec    Codec
		input    string
		wantIs   error
		wantMsg  string
		wantLine int
	}{
		{
			name:     "table bad double",
			codec:    NewTable(),
			input:    "#COLUMN_NAMES: a|b\n#COLUMN_TYPES: D|D\n\n1 2\n3 abc\n",
			wantIs:   dataset.ErrFormat,
			wantMsg:  "column 'b'",
			wantLine: 5,
		},
		{
			name:     "table short row",
			codec:    NewTable(),
			input:    "#COLUMN_NAMES: a|b\n1\n",
			wantIs:   dataset.ErrFormat,
			wantMsg:  "row has 1 values, expected 2",
			wantLine: 2,
		},
		{
			name:    "table unknown type code",
			codec:   NewTable(),
			input:   "#COLUMN_TYPES: D|X\n",
			wantIs:  dataset.ErrFormat,
			wantMsg: "unknown column type",
		},
		{
			name:    "table list length mismatch",
			codec:   NewTable(),
			input:   "#COLUMN_NAMES: a|b\n#COLUMN_TYPES: D\n",
			wantIs:  dataset.ErrFormat,
			wantMsg: "#COLUMN_TYPES lists 1 columns, expected 2",
		},
		{
			name:    "csv truncated preamble",
			codec:   NewCSV(),
			input:   "NAME,x\nTITLE,y\n",
			wantIs:  dataset.ErrFormat,
			wantMsg: "missing DATE record",
		},
		{
			name:     "csv wrong tag",
			codec:    NewCSV(),
			input:    "NAME,x\nDATE,y\n",
			wantIs:   dataset.ErrFormat,
			wantMsg:  "expected TITLE record",
			wantLine: 2,
		},
		{
			name:     "csv bad vector",
			codec:    NewCSV(),
			input:    "NAME,n\nTITLE,t\nDATE,d\nCOLUMN_NAMES,v\nCOLUMN_TYPES,V\nCOLUMN_TITLES,v\nCOLUMN_UNITS,\n0,\"[1,q]\"\n",
			wantIs:   dataset.ErrFormat,
			wantMsg:  "element 1",
			wantLine: 8,
		},
		{
			name:     "csv short record",
			codec:    NewCSV(),
			input:    "NAME,n\nTITLE,t\nDATE,d\nCOLUMN_NAMES,a,b\nCOLUMN_TYPES,D,D\nCOLUMN_TITLES,a,b\nCOLUMN_UNITS,,\n0,1\n",
			wantIs:   dataset.ErrFormat,
			wantMsg:  "record has 2 cells, expected 3",
			wantLine: 8,
		},
		{
			name:    "json missing metadata",
			codec:   NewJSON(),
			input:   `{"items": []}`,
			wantIs:  dataset.ErrFormat,
			wantMsg: "missing _metadata",
		},
		{
			name:    "json missing key",
			codec:   NewJSON(),
			input:   `{"_metadata": {"short_names": ["a", "b"], "types": ["D", "D"], "units": ["", ""]}, "items": [{"a": 1, "c": 2}]}`,
			wantIs:  dataset.ErrFormat,
			wantMsg: "missing key",
		},
		{
			name:    "json wrong value type",
			codec:   NewJSON(),
			input:   `{"_metadata": {"short_names": ["a"], "types": ["D"], "units": [""]}, "items": [{"a": 1}, {"a": "toto"}]}`,
			wantIs:  dataset.ErrValidation,
			wantMsg: "found string, expected Double for 'a' at row 1",
		},
		{
			name:    "json truncated",
			codec:   NewJSON(),
			input:   `{"_metadata": {`,
			wantIs:  dataset.ErrFormat,
			wantMsg: "malformed json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantIs), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			if tt.wantLine > 0 {
				var fe *dataset.FormatError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, tt.wantLine, fe.Line)
			}
		})
	}
}

func TestCrossCodecEquivalence(t *testing.T) {
	table := "#NAME: test_data\n#TITLE: test\n#DATE: Fri Oct 28 10:41:44 2016\n" +
		"#COLUMN_NAMES: x|y|z\n#COLUMN_TYPES: D|S|V\n#COLUMN_TITLES: x|y|z\n#COLUMN_UNITS: u_x|u_y|u_z\n\n" +
		"1.0 toto [1.0,2.0]\n"

	fromTable, err := NewTable().Decode(strings.NewReader(table))
	require.NoError(t, err)

	var jsonBuf bytes.Buffer
	require.NoError(t, NewJSON().Encode(&jsonBuf, fromTable))
	fromJSON, err := NewJSON().Decode(&jsonBuf)
	require.NoError(t, err)

	var csvBuf bytes.Buffer
	require.NoError(t, NewCSV().Encode(&csvBuf, fromJSON))
	fromCSV, err := NewCSV().Decode(&csvBuf)
	require.NoError(t, err)

	assert.True(t, sampleDataset(t).Equal(fromTable))
	assert.True(t, fromTable.Equal(fromJSON))
	assert.True(t, fromTable.Equal(fromCSV))
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"csv", "json", "table"}, ListFormats())

	tests := []struct {
		path string
		want Format
	}{
		{path: "out/aggregated_outputs.dat", want: FormatTable},
		{path: "notes.TXT", want: FormatTable},
		{path: "a.csv", want: FormatCSV},
		{path: "a.json", want: FormatJSON},
	}
	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.path)
		assert.True(t, IsKnownExtension(tt.path))
	}

	_, err := FormatFromPath("a.parquet")
	var ufe *UnknownFormatError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, ".parquet", ufe.Name)

	f, err := ParseFormat(" JSON ")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = For("xml")
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, []string{"csv", "json", "table"}, ufe.Available)
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	ds := sampleDataset(t)

	for _, atomic := range []bool{false, true} {
		for _, ext := range []string{".dat", ".csv", ".json"} {
			path := filepath.Join(dir, "out"+ext)
			require.NoError(t, WriteFile(path, ds, fixedClock, WithAtomicWrite(atomic)))

			back, err := ReadFile(path)
			require.NoError(t, err)
			assert.True(t, ds.Equal(back), path)
		}
	}

	// atomic writes leave no temp files behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestReadFile_ErrorCarriesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.dat")
	require.NoError(t, os.WriteFile(path, []byte("#COLUMN_NAMES: a\nx\n"), 0o600))

	_, err := ReadFile(path)
	var fe *dataset.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, path, fe.Path)
	assert.Equal(t, 2, fe.Line)
	assert.Contains(t, err.Error(), path+":2")
}
