package evaluation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/vrbourque/prediction-metrics/domain/core"
	"github.com/vrbourque/prediction-metrics/domain/dataset"
)

const (
	// FoldColumn holds each row's fold label in the merged table.
	FoldColumn = "fold"
	// PredictionPrefix tags prediction columns.
	PredictionPrefix = "mod_"
	// FeatureSeparator joins feature names inside a prediction column name.
	FeatureSeparator = "+"
	// ValidationLabel is the fold label of rows scored by the refit model.
	ValidationLabel = "validation"
)

// FoldLabel is a row's fold assignment. Non-negative values are training
// folds; ValidationFold marks a held-out validation row.
type FoldLabel int

const (
	ValidationFold FoldLabel = -1
	unassigned     FoldLabel = -2
)

// Unassigned is the zero state before a splitter places a row.
func Unassigned() FoldLabel { return unassigned }

// IsValidation reports whether the label is the validation sentinel.
func (f FoldLabel) IsValidation() bool { return f == ValidationFold }

// IsTraining reports whether the label is a training fold index.
func (f FoldLabel) IsTraining() bool { return f >= 0 }

func (f FoldLabel) String() string {
	switch {
	case f == ValidationFold:
		return ValidationLabel
	case f < 0:
		return ""
	default:
		return strconv.Itoa(int(f))
	}
}

// ParseFoldLabel is the inverse of FoldLabel.String.
func ParseFoldLabel(s string) (FoldLabel, bool) {
	if s == ValidationLabel {
		return ValidationFold, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return unassigned, false
	}
	return FoldLabel(n), true
}

// Split is one train/test partition of row positions.
type Split struct {
	Train []int
	Test  []int
}

// PredictionColumnName returns "mod_" followed by the feature names joined
// with "+", in the order given.
func PredictionColumnName(features []string) string {
	return PredictionPrefix + strings.Join(features, FeatureSeparator)
}

// PredictionColumn is a prediction series labelled with its column name.
type PredictionColumn struct {
	Name     string
	Features []string
	Values   []float64
}

// Fingerprint hashes the column for reproducibility checks.
func (p PredictionColumn) Fingerprint() core.Hash {
	return core.FingerprintColumn(p.Name, p.Values)
}

// FoldSummary records how many rows each fold touched.
type FoldSummary struct {
	Fold       FoldLabel
	TestRows   int
	FitRows    int
	ScoredRows int
}

// Result is the output of one k-fold evaluation.
type Result struct {
	// Table holds all training rows then all validation rows, with the fold
	// and prediction columns layered on.
	Table          *dataset.Table
	Prediction     PredictionColumn
	Folds          []FoldLabel
	TrainRows      int
	ValidationRows int
	FoldSummaries  []FoldSummary
	// ValidationScored counts validation rows that received a prediction.
	ValidationScored int
}

// TrainingFolds returns the fold labels of the training rows.
func (r *Result) TrainingFolds() []FoldLabel {
	return r.Folds[:r.TrainRows]
}

// Comparison collects the results of several feature sets evaluated on the
// same training and validation tables.
type Comparison struct {
	RunID   core.RunID
	Results []*Result
	// Table merges every prediction column onto one copy of the rows.
	Table *dataset.Table
}

// PredictionNames returns the prediction column names, sorted.
func (c *Comparison) PredictionNames() []string {
	names := make([]string, 0, len(c.Results))
	for _, r := range c.Results {
		names = append(names, r.Prediction.Name)
	}
	sort.Strings(names)
	return names
}
