package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrbourque/prediction-metrics/adapters/tabular"
	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{"PM_SEED", "PM_SPLITS", "PM_SHUFFLE", "PM_OUTCOME", "PM_PLAN_FILE", "LOG_DEVELOPMENT"} {
		t.Setenv(key, "")
	}
	t.Setenv("PM_OUTPUT_DIR", dir)
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestParseCohorts(t *testing.T) {
	names, sizes, err := parseCohorts([]string{"A:500", "UK:B:3", "C:0"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "UK:B", "C"}, names)
	assert.Equal(t, []int{500, 3, 0}, sizes)

	for _, bad := range []string{"A", ":5", "A:x", "A:-2"} {
		_, _, err := parseCohorts([]string{bad})
		require.Error(t, err, bad)
		assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.GetCode(err), bad)
	}

	_, _, err = parseCohorts([]string{"A:1e3"})
	var numErr *strconv.NumError
	assert.ErrorAs(t, err, &numErr)
}

func TestParseFeatureSets(t *testing.T) {
	sets, err := parseFeatureSets([]string{"PGS", "PGS, DEL ,DUP"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"PGS"}, {"PGS", "DEL", "DUP"}}, sets)

	_, err = parseFeatureSets([]string{" , "})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.GetCode(err))

	assert.Equal(t, []string{"PGS", "DEL", "DUP"}, featureColumns(sets))
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "a.csv"), outputPath("out", "a.csv"))
	assert.Equal(t, "/abs/a.csv", outputPath("out", "/abs/a.csv"))
	assert.Equal(t, "", outputPath("out", ""))
}

func TestSimulateThenEvaluate(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("PM_SPLITS", "5")

	execute(t, "simulate", "--cohort", "A:150", "--cohort", "B:100", "--out", "train.csv")
	execute(t, "simulate", "--cohort", "C:60", "--seed", "9", "--out", "valid.xlsx")

	out := execute(t, "evaluate",
		"--train", filepath.Join(dir, "train.csv"),
		"--validation", filepath.Join(dir, "valid.xlsx"),
		"--features", "PGS",
		"--features", "PGS,DEL,DUP,LOF,MIS",
		"--report", "report.md")
	assert.Contains(t, out, "mod_PGS+DEL+DUP+LOF+MIS")
	assert.Contains(t, out, "Report written to")

	table, err := tabular.NewFileStore(nil).ReadTable(filepath.Join(dir, "predictions.csv"))
	require.NoError(t, err)
	assert.Equal(t, 310, table.Len())
	assert.True(t, table.Has("fold"))
	assert.True(t, table.Has("mod_PGS"))

	_, err = os.Stat(filepath.Join(dir, "report.md"))
	assert.NoError(t, err)
}

func TestRunWithPlan(t *testing.T) {
	dir := setupEnv(t)
	plan := filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(plan, []byte(`title: Pilot run
cohorts:
  - {name: A, size: 120, role: training}
  - {name: V, size: 40, role: validation}
  - {name: B, size: 80, role: training}
feature_sets:
  - [PGS]
splits: 4
outputs:
  table: out/pilot.xlsx
  report: out/pilot.html
`), 0o644))

	out := execute(t, "run", "--plan", plan)
	assert.Contains(t, out, "mod_PGS")

	table, err := tabular.NewFileStore(nil).ReadTable(filepath.Join(dir, "out", "pilot.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, 240, table.Len())

	folds, err := table.Strings("fold")
	require.NoError(t, err)
	validation := 0
	for _, f := range folds {
		if f == "validation" {
			validation++
		}
	}
	assert.Equal(t, 40, validation)

	page, err := os.ReadFile(filepath.Join(dir, "out", "pilot.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Pilot run</title>")
}

func TestRunRejectsBadConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("PM_SPLITS", "1")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run"})
	assert.Error(t, cmd.Execute())
}
