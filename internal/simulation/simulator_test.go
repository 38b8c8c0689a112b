package simulation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
)

func TestSimulate_TwoCohorts(t *testing.T) {
	sim := New(DefaultConfig())

	table, err := sim.Simulate([]string{"A", "B"}, []int{5, 3})
	require.NoError(t, err)
	require.Equal(t, 8, table.Len())

	assert.Equal(t,
		[]string{ColIID, ColCohort, ColSex, ColPGS, ColDEL, ColDUP, ColLOF, ColMIS, ColOutcome},
		table.Names())

	cohorts, err := table.Strings(ColCohort)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A", "A", "A", "A", "B", "B", "B"}, cohorts)

	iids, err := table.Strings(ColIID)
	require.NoError(t, err)
	for i, id := range iids {
		assert.Equal(t, fmt.Sprintf("ID_%d", i+1), id)
	}
}

func TestSimulate_RowCountAndRunOrder(t *testing.T) {
	sim := New(DefaultConfig())
	labels := []string{"UKB", "SPARK", "SSC", "UKB"}
	sizes := []int{4, 0, 2, 3}

	table, err := sim.Simulate(labels, sizes)
	require.NoError(t, err)
	assert.Equal(t, 9, table.Len())

	cohorts, err := table.Strings(ColCohort)
	require.NoError(t, err)
	var runs []string
	for i, c := range cohorts {
		if i == 0 || cohorts[i-1] != c {
			runs = append(runs, c)
		}
	}
	// empty SPARK contributes no rows; a repeated label opens a new run
	assert.Equal(t, []string{"UKB", "SSC", "UKB"}, runs)
	assert.Equal(t, []string{"UKB", "UKB", "UKB", "UKB", "SSC", "SSC", "UKB", "UKB", "UKB"}, cohorts)
}

func TestSimulate_BinaryColumns(t *testing.T) {
	sim := New(DefaultConfig())
	table, err := sim.Simulate([]string{"A"}, []int{2000})
	require.NoError(t, err)

	for _, name := range []string{ColSex, ColDEL, ColDUP, ColLOF, ColMIS, ColOutcome} {
		values, err := table.Floats(name)
		require.NoError(t, err)
		for i, v := range values {
			if v != 0 && v != 1 {
				t.Fatalf("column %s row %d = %v, want 0 or 1", name, i, v)
			}
		}
	}
}

func TestSimulate_Frequencies(t *testing.T) {
	sim := New(DefaultConfig())
	table, err := sim.Simulate([]string{"A"}, []int{20000})
	require.NoError(t, err)

	mean := func(name string) float64 {
		values, _ := table.Floats(name)
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	}

	assert.InDelta(t, 0.5, mean(ColSex), 0.02)
	assert.InDelta(t, 0.0, mean(ColPGS), 0.03)
	assert.InDelta(t, 0.5, mean(ColOutcome), 0.02)
	assert.InDelta(t, 0.10, mean(ColDEL), 0.01)
	assert.InDelta(t, 0.05, mean(ColLOF), 0.01)
	assert.InDelta(t, 0.15, mean(ColMIS), 0.01)
}

func TestSimulate_OutcomeTracksPGS(t *testing.T) {
	sim := New(DefaultConfig())
	individuals, err := sim.Individuals([]string{"A"}, []int{20000})
	require.NoError(t, err)

	var highCases, highN, lowCases, lowN float64
	for _, ind := range individuals {
		if ind.PGS > 1 {
			highN++
			highCases += float64(ind.Outcome)
		} else if ind.PGS < -1 {
			lowN++
			lowCases += float64(ind.Outcome)
		}
	}
	assert.Greater(t, highCases/highN, lowCases/lowN)
}

func TestSimulate_SeedReproducible(t *testing.T) {
	a, err := New(DefaultConfig()).Simulate([]string{"A"}, []int{50})
	require.NoError(t, err)
	b, err := New(DefaultConfig()).Simulate([]string{"A"}, []int{50})
	require.NoError(t, err)
	assert.Equal(t, a.Columns(), b.Columns())

	cfg := DefaultConfig()
	cfg.Seed = 99
	c, err := New(cfg).Simulate([]string{"A"}, []int{50})
	require.NoError(t, err)
	pgsA, _ := a.Floats(ColPGS)
	pgsC, _ := c.Floats(ColPGS)
	assert.NotEqual(t, pgsA, pgsC)
}

func TestSimulate_InvalidArguments(t *testing.T) {
	sim := New(DefaultConfig())

	_, err := sim.Simulate([]string{"A", "B"}, []int{5})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.GetCode(err))

	_, err = sim.Simulate([]string{"A"}, []int{-1})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.GetCode(err))
}

func TestSimulate_Empty(t *testing.T) {
	table, err := New(DefaultConfig()).Simulate(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}
