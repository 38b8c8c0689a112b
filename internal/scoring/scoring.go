package scoring

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/vrbourque/prediction-metrics/domain/core"
	"github.com/vrbourque/prediction-metrics/domain/evaluation"
	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
)

// AUC returns the area under the ROC curve of scores against 0/1 labels.
// Tied scores share one cutoff, which gives them their average rank. Pairs
// where either value is missing are skipped. The result is NaN when fewer
// than one positive and one negative remain.
func AUC(labels, scores []float64) float64 {
	y := make([]float64, 0, len(labels))
	positive := make([]bool, 0, len(labels))
	var nPos, nNeg int
	for i := range labels {
		if i >= len(scores) || math.IsNaN(labels[i]) || math.IsNaN(scores[i]) {
			continue
		}
		y = append(y, scores[i])
		positive = append(positive, labels[i] == 1)
		if labels[i] == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return math.NaN()
	}

	stat.SortWeightedLabeled(y, positive, nil)
	tpr, fpr, _ := stat.ROC(nil, y, positive, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// Brier returns the mean squared difference between scores and labels over
// rows where both are present, or NaN if there are none.
func Brier(labels, scores []float64) float64 {
	sum, n := 0.0, 0
	for i := range labels {
		if i >= len(scores) || math.IsNaN(labels[i]) || math.IsNaN(scores[i]) {
			continue
		}
		d := scores[i] - labels[i]
		sum += d * d
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// FoldScore is the AUC of one training fold's out-of-fold predictions.
type FoldScore struct {
	Fold evaluation.FoldLabel
	AUC  float64
	N    int
}

// Summary scores one prediction column.
type Summary struct {
	Prediction      string
	FoldScores      []FoldScore
	OutOfFoldAUC    float64
	OutOfFoldBrier  float64
	ValidationAUC   float64
	ValidationBrier float64
	// FoldAUCMean and FoldAUCStdDev summarise the defined fold AUCs; the
	// standard deviation is the sample one and NaN below two folds.
	FoldAUCMean   float64
	FoldAUCStdDev float64
	Fingerprint   core.Hash
}

// Summarize scores a k-fold result against the outcome column of its
// merged table. Validation rows without an outcome leave the validation
// scores NaN.
func Summarize(result *evaluation.Result, outcome string) (*Summary, error) {
	if result == nil || result.Table == nil {
		return nil, apperrors.InvalidArgument("no evaluation result to score")
	}
	labels, err := result.Table.Floats(outcome)
	if err != nil {
		return nil, apperrors.InvalidArgument(err.Error())
	}
	preds := result.Prediction.Values
	if len(preds) != len(labels) || len(result.Folds) != len(labels) {
		return nil, apperrors.InvalidArgumentf("result has %d predictions and %d folds for %d rows",
			len(preds), len(result.Folds), len(labels))
	}

	train := result.TrainRows
	summary := &Summary{
		Prediction:      result.Prediction.Name,
		OutOfFoldAUC:    AUC(labels[:train], preds[:train]),
		OutOfFoldBrier:  Brier(labels[:train], preds[:train]),
		ValidationAUC:   AUC(labels[train:], preds[train:]),
		ValidationBrier: Brier(labels[train:], preds[train:]),
		FoldAUCMean:     math.NaN(),
		FoldAUCStdDev:   math.NaN(),
		Fingerprint:     result.Prediction.Fingerprint(),
	}

	byFold := make(map[evaluation.FoldLabel][]int)
	var order []evaluation.FoldLabel
	for i, f := range result.Folds[:train] {
		if _, ok := byFold[f]; !ok {
			order = append(order, f)
		}
		byFold[f] = append(byFold[f], i)
	}
	sort.Slice(order, func(a, b int) bool { return order[a] < order[b] })

	var defined []float64
	for _, f := range order {
		rows := byFold[f]
		y := make([]float64, len(rows))
		p := make([]float64, len(rows))
		for j, r := range rows {
			y[j] = labels[r]
			p[j] = preds[r]
		}
		auc := AUC(y, p)
		summary.FoldScores = append(summary.FoldScores, FoldScore{Fold: f, AUC: auc, N: len(rows)})
		if !math.IsNaN(auc) {
			defined = append(defined, auc)
		}
	}

	if len(defined) > 0 {
		if summary.FoldAUCMean, err = stats.Mean(defined); err != nil {
			return nil, apperrors.Wrap(err, "fold AUC mean")
		}
	}
	if len(defined) > 1 {
		if summary.FoldAUCStdDev, err = stats.StandardDeviationSample(defined); err != nil {
			return nil, apperrors.Wrap(err, "fold AUC standard deviation")
		}
	}
	return summary, nil
}

// SummarizeComparison scores every result of a comparison in order.
func SummarizeComparison(comparison *evaluation.Comparison, outcome string) ([]*Summary, error) {
	if comparison == nil {
		return nil, apperrors.InvalidArgument("no comparison to score")
	}
	out := make([]*Summary, 0, len(comparison.Results))
	for _, r := range comparison.Results {
		s, err := Summarize(r, outcome)
		if err != nil {
			return nil, apperrors.Wrapf(err, "scoring %s", r.Prediction.Name)
		}
		out = append(out, s)
	}
	return out, nil
}

// ColumnStats describes the present values of a numeric column.
type ColumnStats struct {
	N       int
	Missing int
	Mean    float64
	StdDev  float64
	Median  float64
}

// Describe summarises a numeric column, skipping missing values.
func Describe(values []float64) ColumnStats {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			present = append(present, v)
		}
	}
	out := ColumnStats{
		N:       len(present),
		Missing: len(values) - len(present),
		Mean:    math.NaN(),
		StdDev:  math.NaN(),
		Median:  math.NaN(),
	}
	if len(present) == 0 {
		return out
	}
	out.Mean, _ = stats.Mean(present)
	out.Median, _ = stats.Median(present)
	if len(present) > 1 {
		out.StdDev, _ = stats.StandardDeviationSample(present)
	}
	return out
}
