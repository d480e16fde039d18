package dataset

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleHeaders() []Header {
	return []Header{
		{Name: "x", Type: Double, Unit: "u_x"},
		{Name: "y", Type: String, Unit: "u_y"},
		{Name: "z", Type: Vector, Unit: "u_z"},
	}
}

func newSimple(t *testing.T) *Dataset {
	t.Helper()
	ds, err := New("test_data", "test", simpleHeaders())
	require.NoError(t, err)
	require.NoError(t, ds.AddRow(1.0, "toto", []float64{1, 2}))
	return ds
}

func TestDataset_Accessors(t *testing.T) {
	ds := newSimple(t)

	assert.Equal(t, "test_data", ds.Name())
	assert.Equal(t, "test", ds.Description())
	assert.Equal(t, simpleHeaders(), ds.Headers())
	assert.Equal(t, []string{"x", "y", "z"}, ds.Names())
	assert.Equal(t, []ColumnType{Double, String, Vector}, ds.Types())
	assert.Equal(t, []string{"u_x", "u_y", "u_z"}, ds.Units())
	assert.Equal(t, 1, ds.NumRows())
	assert.Equal(t, 3, ds.NumColumns())
	assert.Equal(t, 2, ds.ColumnIndex("z"))
	assert.Equal(t, -1, ds.ColumnIndex("nope"))

	row, err := ds.Row(0)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, "toto", []float64{1, 2}}, row)
}

func TestDataset_AddRowRejectsMismatch(t *testing.T) {
	tests := []struct {
		name        string
		values      []any
		wantColumn  string
		wantElement int
		wantMsg     string
	}{
		{
			name:        "string in double column",
			values:      []any{"toto", 1.0, []float64{1, 2}},
			wantColumn:  "x",
			wantElement: -1,
			wantMsg:     "type is not correct: found string",
		},
		{
			name:        "string element in vector",
			values:      []any{1.0, "toto", []any{1.0, "2.0"}},
			wantColumn:  "z",
			wantElement: 1,
			wantMsg:     "element of vector is not correct: found string",
		},
		{
			name:        "wrong arity",
			values:      []any{1.0},
			wantElement: -1,
			wantMsg:     "row has 1 values, expected 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := newSimple(t)
			err := ds.AddRow(tt.values...)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.True(t, errors.Is(err, ErrValidation))
			assert.Equal(t, tt.wantColumn, ve.Column)
			assert.Equal(t, 1, ve.Row)
			assert.Equal(t, tt.wantElement, ve.Element)
			assert.Contains(t, err.Error(), tt.wantMsg)

			// the failed row left every column untouched
			assert.Equal(t, 1, ds.NumRows())
			for _, c := range ds.columns {
				assert.Equal(t, 1, c.len())
			}
		})
	}
}

func TestDataset_AddRowCopiesVectors(t *testing.T) {
	ds, err := New("v", "", []Header{{Name: "v", Type: Vector}})
	require.NoError(t, err)

	vec := []float64{1, 2}
	require.NoError(t, ds.AddRow(vec))
	vec[0] = 99

	got, err := ds.Value(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)

	got.([]float64)[1] = 42
	again, err := ds.Value(0, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, again)
}

func TestNew_RejectsBadHeaders(t *testing.T) {
	_, err := New("d", "", []Header{{Name: "a", Type: Double}, {Name: "a", Type: String}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "a", ve.Column)
	assert.Contains(t, err.Error(), "duplicate column name")

	_, err = New("d", "", []Header{{Name: "a", Type: ColumnType(7)}})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "unknown column type")
}

func TestDataset_Empty(t *testing.T) {
	ds, err := New("empty", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, ds.NumRows())
	assert.Equal(t, 0, ds.NumColumns())
	require.NoError(t, ds.AddRow())
	assert.Equal(t, 0, ds.NumRows())

	withHeaders, err := New("h", "", simpleHeaders())
	require.NoError(t, err)
	assert.Equal(t, 0, withHeaders.NumRows())
}

func TestDataset_IndexErrors(t *testing.T) {
	ds := newSimple(t)

	_, err := ds.Row(1)
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "row", ie.Kind)
	assert.True(t, errors.Is(err, ErrIndex))

	_, err = ds.Row(-1)
	assert.ErrorIs(t, err, ErrIndex)

	_, err = ds.Value(0, 3)
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "column", ie.Kind)
}

func TestDataset_SubsetAndEqual(t *testing.T) {
	ds, err := New("d", "desc", []Header{{Name: "a", Type: Double}, {Name: "b", Type: String}})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, ds.AddRow(float64(i), "r"))
	}

	sub, err := ds.Subset([]int{4, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.NumRows())
	first, _ := sub.Row(0)
	assert.Equal(t, []any{4.0, "r"}, first)
	assert.Equal(t, ds.Headers(), sub.Headers())

	_, err = ds.Subset([]int{5})
	assert.ErrorIs(t, err, ErrIndex)

	same, err := ds.Subset([]int{0, 1, 2, 3, 4})
	require.NoError(t, err)
	assert.True(t, ds.Equal(same))
	assert.False(t, ds.Equal(sub))

	nan1 := MustNew("n", "", []Header{{Name: "a", Type: Double}})
	nan2 := MustNew("n", "", []Header{{Name: "a", Type: Double}})
	require.NoError(t, nan1.AddRow(math.NaN()))
	require.NoError(t, nan2.AddRow(math.NaN()))
	assert.True(t, nan1.Equal(nan2))
}
