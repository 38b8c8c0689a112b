package dataset

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	nan := math.NaN()
	table, err := NewTable(
		StringColumn("IID", []string{"ID_1", "ID_2", "ID_3", "ID_4"}),
		FloatColumn("PGS", []float64{0.1, nan, -1.2, 0.7}),
		FloatColumn("DEL", []float64{0, 1, 1, nan}),
		FloatColumn("ID_binary", []float64{0, 1, 0, 1}),
	)
	require.NoError(t, err)
	return table
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(FloatColumn("a", []float64{1, 2}), FloatColumn("b", []float64{1}))
	assert.Error(t, err)

	_, err = NewTable(FloatColumn("a", []float64{1}), FloatColumn("a", []float64{2}))
	assert.Error(t, err)

	_, err = NewTable(FloatColumn("", []float64{1}))
	assert.Error(t, err)
}

func TestNewTable_CopiesInput(t *testing.T) {
	values := []float64{1, 2, 3}
	table, err := NewTable(FloatColumn("x", values))
	require.NoError(t, err)

	values[0] = 99
	got, err := table.Floats("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	got[1] = 42
	again, _ := table.Floats("x")
	assert.Equal(t, 2.0, again[1], "accessors must return copies")
}

func TestEligibleRows(t *testing.T) {
	table := sampleTable(t)

	rows, err := table.EligibleRows([]string{"PGS"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3}, rows)

	rows, err = table.EligibleRows([]string{"PGS", "DEL"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, rows)

	_, err = table.EligibleRows([]string{"missing"})
	assert.Error(t, err)

	_, err = table.EligibleRows([]string{"IID"})
	assert.Error(t, err, "string columns cannot be features")
}

func TestMatrix(t *testing.T) {
	table := sampleTable(t)

	m, err := table.Matrix([]int{2, 0}, []string{"PGS", "DEL"})
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, -1.2, m.At(0, 0))
	assert.Equal(t, 0.0, m.At(1, 1))

	empty, err := table.Matrix(nil, []string{"PGS"})
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = table.Matrix([]int{9}, []string{"PGS"})
	assert.Error(t, err)
}

func TestWithColumns_DoesNotMutateReceiver(t *testing.T) {
	table := sampleTable(t)

	next, err := table.WithColumns(
		StringColumn("fold", []string{"0", "1", "0", "1"}),
		FloatColumn("PGS", []float64{1, 2, 3, 4}),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"IID", "PGS", "DEL", "ID_binary"}, table.Names())
	assert.Equal(t, []string{"IID", "PGS", "DEL", "ID_binary", "fold"}, next.Names())

	orig, _ := table.Floats("PGS")
	assert.True(t, math.IsNaN(orig[1]))
	replaced, _ := next.Floats("PGS")
	assert.Equal(t, []float64{1, 2, 3, 4}, replaced)

	_, err = table.WithColumns(FloatColumn("short", []float64{1}))
	assert.Error(t, err)
}

func TestConcat(t *testing.T) {
	a, err := NewTable(
		StringColumn("IID", []string{"ID_1", "ID_2"}),
		FloatColumn("PGS", []float64{0.5, 0.6}),
	)
	require.NoError(t, err)
	b, err := NewTable(
		StringColumn("IID", []string{"ID_3"}),
		FloatColumn("sex", []float64{1}),
	)
	require.NoError(t, err)

	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())

	want := []Column{
		StringColumn("IID", []string{"ID_1", "ID_2", "ID_3"}),
		FloatColumn("PGS", []float64{0.5, 0.6, math.NaN()}),
		FloatColumn("sex", []float64{math.NaN(), math.NaN(), 1}),
	}
	if diff := cmp.Diff(want, out.Columns(), cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("Concat mismatch (-want +got):\n%s", diff)
	}
}

func TestConcat_KindMismatch(t *testing.T) {
	a, _ := NewTable(FloatColumn("fold", []float64{0}))
	b, _ := NewTable(StringColumn("fold", []string{"validation"}))
	_, err := Concat(a, b)
	assert.Error(t, err)
}

func TestSelectAndFilter(t *testing.T) {
	table := sampleTable(t)

	picked, err := table.Select([]int{3, 0})
	require.NoError(t, err)
	iid, _ := picked.Strings("IID")
	assert.Equal(t, []string{"ID_4", "ID_1"}, iid)
	pgs, _ := picked.Floats("PGS")
	assert.Equal(t, []float64{0.7, 0.1}, pgs)

	_, err = table.Select([]int{4})
	assert.Error(t, err)

	odd, err := table.Filter("IID", func(v string) bool { return v == "ID_1" || v == "ID_3" })
	require.NoError(t, err)
	assert.Equal(t, 2, odd.Len())
	assert.Equal(t, table.Names(), odd.Names())

	none, err := table.Filter("IID", func(string) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 0, none.Len())

	_, err = table.Filter("PGS", func(string) bool { return true })
	assert.Error(t, err)
}
