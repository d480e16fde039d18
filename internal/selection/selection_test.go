package selection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/uqtable/pkg/dataset"
)

func outputs(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New("outputs", "", []dataset.Header{
		{Name: "y", Type: dataset.Double},
		{Name: "label", Type: dataset.String},
		{Name: "curve", Type: dataset.Vector},
		{Name: "max stress", Type: dataset.Double},
	})
	require.NoError(t, err)
	require.NoError(t, ds.AddRow(0.1, "a", []float64{1, 2}, 10.0))
	require.NoError(t, ds.AddRow(0.7, "b", []float64{}, 20.0))
	require.NoError(t, ds.AddRow(0.9, "skip", []float64{5}, 30.0))
	require.NoError(t, ds.AddRow(1.5, "c", []float64{1, 1, 1}, 40.0))
	return ds
}

func TestFilter_Apply(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []int
	}{
		{name: "double comparison", expr: "y > 0.5", want: []int{1, 2, 3}},
		{name: "string and double", expr: `y > 0.5 and label != "skip"`, want: []int{1, 3}},
		{name: "vector length", expr: "len(curve) >= 2", want: []int{0, 3}},
		{name: "undefined function is an error", expr: "total(curve) > 1", want: nil},
		{name: "col builtin", expr: `col("max stress") < 25`, want: []int{0, 1}},
		{name: "row index", expr: "row % 2 == 0", want: []int{0, 2}},
		{name: "nothing", expr: "False", want: []int{}},
	}

	ds := outputs(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)

			got, err := f.Apply(ds)
			if tt.want == nil {
				var ee *EvalError
				require.ErrorAs(t, err, &ee)
				assert.Equal(t, 0, ee.Row)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_SyntaxError(t *testing.T) {
	_, err := Compile("y >")
	var ee *EvalError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, -1, ee.Row)
	assert.Contains(t, err.Error(), "error compiling")
}

func TestFilter_Errors(t *testing.T) {
	ds := outputs(t)

	tests := []struct {
		name    string
		expr    string
		wantMsg string
	}{
		{name: "non bool result", expr: "y + 1", wantMsg: "expression returned float, want bool"},
		{name: "unknown column", expr: `col("nope") > 0`, wantMsg: `no column "nope"`},
		{name: "unbound identifier", expr: "max_stress > 0", wantMsg: "undefined: max_stress"},
		{name: "frozen vector", expr: "curve.append(1) == None", wantMsg: "frozen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			_, err = f.Apply(ds)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSelect(t *testing.T) {
	ds := outputs(t)
	sub, err := Select(ds, `label in ("a", "c")`)
	require.NoError(t, err)

	assert.Equal(t, ds.Headers(), sub.Headers())
	assert.Equal(t, 2, sub.NumRows())
	last, err := sub.Row(1)
	require.NoError(t, err)
	assert.Equal(t, []any{1.5, "c", []float64{1, 1, 1}, 40.0}, last)
}

func TestBindable(t *testing.T) {
	assert.True(t, Bindable("y"))
	assert.True(t, Bindable("_x1"))
	assert.False(t, Bindable("max stress"))
	assert.False(t, Bindable("0"))
	assert.False(t, Bindable("lambda"))
	assert.False(t, Bindable("row"))
	assert.False(t, Bindable("col"))
}

func TestFilter_Concurrent(t *testing.T) {
	ds := outputs(t)
	f, err := Compile("y > 0.5")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.Apply(ds)
			assert.NoError(t, err)
			assert.Equal(t, []int{1, 2, 3}, got)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, f.pool.size(), 8)
}

func TestThreadPool_Reuse(t *testing.T) {
	pool := newThreadPool(1)
	th := pool.get("a")
	pool.put(th)
	assert.Equal(t, 1, pool.size())

	again := pool.get("b")
	assert.Same(t, th, again)
	assert.Equal(t, "b", again.Name)

	pool.put(again)
	pool.put(pool.get("c"))
	pool.put(newThreadPool(1).get("d"))
	assert.Equal(t, 1, pool.size())
}
