package app

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/vrbourque/prediction-metrics/domain/core"
	"github.com/vrbourque/prediction-metrics/domain/dataset"
	"github.com/vrbourque/prediction-metrics/domain/evaluation"
	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
	"github.com/vrbourque/prediction-metrics/ports"
)

// DefaultOutcomeColumn is the binary outcome the folds are stratified on.
const DefaultOutcomeColumn = "ID_binary"

// FoldEvaluator produces out-of-fold predictions for a training table and
// refit predictions for a validation table.
type FoldEvaluator struct {
	splitter ports.FoldSplitter
	outcome  string
	logger   *zap.Logger
}

// EvaluatorOption customises a FoldEvaluator.
type EvaluatorOption func(*FoldEvaluator)

// WithOutcomeColumn sets the outcome column (default ID_binary).
func WithOutcomeColumn(name string) EvaluatorOption {
	return func(e *FoldEvaluator) { e.outcome = name }
}

// WithEvaluatorLogger sets the evaluator's logger.
func WithEvaluatorLogger(logger *zap.Logger) EvaluatorOption {
	return func(e *FoldEvaluator) { e.logger = logger }
}

// NewFoldEvaluator creates a fold evaluator around a splitter
func NewFoldEvaluator(splitter ports.FoldSplitter, opts ...EvaluatorOption) *FoldEvaluator {
	e := &FoldEvaluator{
		splitter: splitter,
		outcome:  DefaultOutcomeColumn,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome returns the outcome column the evaluator stratifies and fits on.
func (e *FoldEvaluator) Outcome() string { return e.outcome }

// TrainKFoldEval runs k-fold cross-validation of clf on train using the
// given features, refits on every eligible training row and scores the
// validation table. Neither input table is modified; the result holds new
// tables with the fold and prediction columns layered on.
//
// Rows with a missing feature are never fitted on and keep a NaN
// prediction. A training row that is ineligible in its test fold is not
// revisited by later folds.
func (e *FoldEvaluator) TrainKFoldEval(train, validation *dataset.Table, clf ports.Classifier, features []string) (*evaluation.Result, error) {
	if train == nil || validation == nil {
		return nil, apperrors.InvalidArgument("training and validation tables are required")
	}
	if clf == nil {
		return nil, apperrors.InvalidArgument("classifier is required")
	}
	if len(features) == 0 {
		return nil, apperrors.InvalidArgument("at least one feature is required")
	}
	name := evaluation.PredictionColumnName(features)

	eligible, err := train.EligibleRows(features)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidArgument(err.Error()), "training table")
	}
	labels, err := train.Floats(e.outcome)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidArgument(err.Error()), "training table")
	}

	splits, err := e.splitter.Split(labels)
	if err != nil {
		return nil, apperrors.Wrap(err, "building stratified folds")
	}

	n := train.Len()
	isEligible := make([]bool, n)
	for _, r := range eligible {
		isEligible[r] = true
	}

	folds := make([]evaluation.FoldLabel, n)
	for i := range folds {
		folds[i] = evaluation.Unassigned()
	}
	predictions := dataset.NaNs(n)
	summaries := make([]evaluation.FoldSummary, 0, len(splits))

	for i, split := range splits {
		fold := evaluation.FoldLabel(i)
		for _, r := range split.Test {
			folds[r] = fold
		}

		trainRows := restrict(split.Train, isEligible)
		testRows := restrict(split.Test, isEligible)

		if err := fitRows(clf, train, trainRows, features, labels); err != nil {
			return nil, apperrors.Wrapf(err, "fold %d", i)
		}
		if len(testRows) > 0 {
			probs, err := predictRows(clf, train, testRows, features)
			if err != nil {
				return nil, apperrors.Wrapf(err, "fold %d", i)
			}
			for j, r := range testRows {
				predictions[r] = probs[j]
			}
		}

		summaries = append(summaries, evaluation.FoldSummary{
			Fold:       fold,
			TestRows:   len(split.Test),
			FitRows:    len(trainRows),
			ScoredRows: len(testRows),
		})
		e.logger.Debug("fold evaluated",
			zap.String("prediction", name),
			zap.Int("fold", i),
			zap.Int("fit_rows", len(trainRows)),
			zap.Int("scored_rows", len(testRows)),
			zap.Int("skipped_rows", len(split.Test)-len(testRows)))
	}

	for r, f := range folds {
		if !f.IsTraining() {
			return nil, apperrors.New(apperrors.CodeInternalError,
				fmt.Sprintf("splitter left training row %d without a fold", r))
		}
	}

	if err := fitRows(clf, train, eligible, features, labels); err != nil {
		return nil, apperrors.Wrap(err, "refit on full training set")
	}

	validEligible, err := validation.EligibleRows(features)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidArgument(err.Error()), "validation table")
	}
	validPredictions := dataset.NaNs(validation.Len())
	if len(validEligible) > 0 {
		probs, err := predictRows(clf, validation, validEligible, features)
		if err != nil {
			return nil, apperrors.Wrap(err, "scoring validation table")
		}
		for j, r := range validEligible {
			validPredictions[r] = probs[j]
		}
	} else {
		e.logger.Warn("no eligible validation rows; validation predictions left empty",
			zap.String("prediction", name),
			zap.Int("validation_rows", validation.Len()))
	}

	trainOut, err := train.WithColumns(
		dataset.StringColumn(evaluation.FoldColumn, foldStrings(folds)),
		dataset.FloatColumn(name, predictions),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "annotating training table")
	}

	validFolds := make([]evaluation.FoldLabel, validation.Len())
	for i := range validFolds {
		validFolds[i] = evaluation.ValidationFold
	}
	validOut, err := validation.WithColumns(
		dataset.StringColumn(evaluation.FoldColumn, foldStrings(validFolds)),
		dataset.FloatColumn(name, validPredictions),
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "annotating validation table")
	}

	merged, err := dataset.Concat(trainOut, validOut)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidArgument(err.Error()), "merging training and validation tables")
	}

	allPredictions := append(append([]float64(nil), predictions...), validPredictions...)
	allFolds := append(append([]evaluation.FoldLabel(nil), folds...), validFolds...)

	e.logger.Info("k-fold evaluation complete",
		zap.String("prediction", name),
		zap.Int("folds", len(splits)),
		zap.Int("train_rows", n),
		zap.Int("eligible_train_rows", len(eligible)),
		zap.Int("validation_rows", validation.Len()),
		zap.Int("validation_scored", len(validEligible)))

	return &evaluation.Result{
		Table: merged,
		Prediction: evaluation.PredictionColumn{
			Name:     name,
			Features: append([]string(nil), features...),
			Values:   allPredictions,
		},
		Folds:            allFolds,
		TrainRows:        n,
		ValidationRows:   validation.Len(),
		FoldSummaries:    summaries,
		ValidationScored: len(validEligible),
	}, nil
}

// EvaluateFeatureSets evaluates each feature set in turn with the same
// classifier and merges every prediction column into one table. Fold
// labels depend only on the outcome and the splitter seed, so they agree
// across feature sets.
func (e *FoldEvaluator) EvaluateFeatureSets(train, validation *dataset.Table, clf ports.Classifier, sets [][]string) (*evaluation.Comparison, error) {
	if len(sets) == 0 {
		return nil, apperrors.InvalidArgument("at least one feature set is required")
	}

	seen := make(map[string]bool, len(sets))
	results := make([]*evaluation.Result, 0, len(sets))
	var merged *dataset.Table
	for _, features := range sets {
		name := evaluation.PredictionColumnName(features)
		if seen[name] {
			return nil, apperrors.InvalidArgumentf("feature set %q listed twice", name)
		}
		seen[name] = true

		result, err := e.TrainKFoldEval(train, validation, clf, features)
		if err != nil {
			return nil, apperrors.Wrapf(err, "evaluating %s", name)
		}
		results = append(results, result)

		if merged == nil {
			merged = result.Table
			continue
		}
		if !sameFolds(results[0].Folds, result.Folds) {
			return nil, apperrors.New(apperrors.CodeInternalError,
				fmt.Sprintf("fold assignment for %s differs from %s", name, results[0].Prediction.Name))
		}
		merged, err = merged.WithColumns(dataset.FloatColumn(name, result.Prediction.Values))
		if err != nil {
			return nil, apperrors.Wrapf(err, "merging %s", name)
		}
	}

	return &evaluation.Comparison{
		RunID:   core.NewRunID(),
		Results: results,
		Table:   merged,
	}, nil
}

// restrict keeps the rows of idx that are eligible, preserving order.
func restrict(idx []int, eligible []bool) []int {
	out := make([]int, 0, len(idx))
	for _, r := range idx {
		if eligible[r] {
			out = append(out, r)
		}
	}
	return out
}

func fitRows(clf ports.Classifier, table *dataset.Table, rows []int, features []string, labels []float64) error {
	if len(rows) == 0 {
		return apperrors.FitFailure("no eligible training rows")
	}
	X, err := table.Matrix(rows, features)
	if err != nil {
		return apperrors.InvalidArgument(err.Error())
	}
	y := make([]float64, len(rows))
	for i, r := range rows {
		y[i] = labels[r]
	}
	if err := clf.Fit(X, y); err != nil {
		if apperrors.GetCode(err) == apperrors.CodeFitFailure {
			return err
		}
		return apperrors.FitFailureCause("classifier rejected training data", err)
	}
	return nil
}

// predictRows returns P(class 1) for each row.
func predictRows(clf ports.Classifier, table *dataset.Table, rows []int, features []string) ([]float64, error) {
	X, err := table.Matrix(rows, features)
	if err != nil {
		return nil, apperrors.InvalidArgument(err.Error())
	}
	probs, err := clf.PredictProba(X)
	if err != nil {
		return nil, apperrors.FitFailureCause("classifier failed to predict", err)
	}
	return positiveClass(probs, len(rows))
}

func positiveClass(probs *mat.Dense, want int) ([]float64, error) {
	if probs == nil {
		return nil, apperrors.FitFailure("classifier returned no probabilities")
	}
	r, c := probs.Dims()
	if r != want || c < 2 {
		return nil, apperrors.FitFailure(fmt.Sprintf("classifier returned %dx%d probabilities for %d rows", r, c, want))
	}
	return mat.Col(nil, 1, probs), nil
}

func foldStrings(folds []evaluation.FoldLabel) []string {
	out := make([]string, len(folds))
	for i, f := range folds {
		out[i] = f.String()
	}
	return out
}

func sameFolds(a, b []evaluation.FoldLabel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
