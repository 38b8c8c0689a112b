package app

import (
	"go.uber.org/zap"

	"github.com/vrbourque/prediction-metrics/domain/dataset"
	"github.com/vrbourque/prediction-metrics/domain/evaluation"
	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
	"github.com/vrbourque/prediction-metrics/internal/scoring"
	"github.com/vrbourque/prediction-metrics/internal/simulation"
	"github.com/vrbourque/prediction-metrics/ports"
)

// PipelineService simulates cohorts, evaluates feature sets on them and
// scores the predictions.
type PipelineService struct {
	simulator  *simulation.Simulator
	evaluator  *FoldEvaluator
	classifier ports.Classifier
	logger     *zap.Logger
}

// NewPipelineService creates a pipeline service
func NewPipelineService(simulator *simulation.Simulator, evaluator *FoldEvaluator, clf ports.Classifier, logger *zap.Logger) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{
		simulator:  simulator,
		evaluator:  evaluator,
		classifier: clf,
		logger:     logger,
	}
}

// SimulationRequest describes the cohorts of a run. Cohorts for which
// Validation returns true form the validation table; the rest train.
type SimulationRequest struct {
	Cohorts     []string
	SampleSizes []int
	Validation  func(cohort string) bool
	FeatureSets [][]string
}

// PipelineResult holds everything a run produced.
type PipelineResult struct {
	Training   *dataset.Table
	Validation *dataset.Table
	Comparison *evaluation.Comparison
	Summaries  []*scoring.Summary
}

// Run simulates the requested cohorts in one draw, splits them into training
// and validation tables by cohort and evaluates every feature set.
func (s *PipelineService) Run(req SimulationRequest) (*PipelineResult, error) {
	if s.simulator == nil {
		return nil, apperrors.InvalidArgument("pipeline has no simulator")
	}
	if req.Validation == nil {
		return nil, apperrors.InvalidArgument("validation cohort selector is required")
	}

	population, err := s.simulator.Simulate(req.Cohorts, req.SampleSizes)
	if err != nil {
		return nil, apperrors.Wrap(err, "simulating cohorts")
	}
	train, err := population.Filter(simulation.ColCohort, func(c string) bool { return !req.Validation(c) })
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidArgument(err.Error()), "selecting training cohorts")
	}
	validation, err := population.Filter(simulation.ColCohort, req.Validation)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidArgument(err.Error()), "selecting validation cohorts")
	}
	s.logger.Info("cohorts simulated",
		zap.Int("individuals", population.Len()),
		zap.Int("training", train.Len()),
		zap.Int("validation", validation.Len()))

	return s.Evaluate(train, validation, req.FeatureSets)
}

// Evaluate compares feature sets on existing training and validation tables.
func (s *PipelineService) Evaluate(train, validation *dataset.Table, sets [][]string) (*PipelineResult, error) {
	comparison, err := s.evaluator.EvaluateFeatureSets(train, validation, s.classifier, sets)
	if err != nil {
		return nil, err
	}
	summaries, err := scoring.SummarizeComparison(comparison, s.evaluator.Outcome())
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		s.logger.Info("feature set scored",
			zap.String("run_id", comparison.RunID.String()),
			zap.String("prediction", summary.Prediction),
			zap.Float64("oof_auc", summary.OutOfFoldAUC),
			zap.Float64("validation_auc", summary.ValidationAUC),
			zap.String("fingerprint", summary.Fingerprint.String()))
	}
	return &PipelineResult{
		Training:   train,
		Validation: validation,
		Comparison: comparison,
		Summaries:  summaries,
	}, nil
}
