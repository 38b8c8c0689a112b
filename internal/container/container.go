package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vrbourque/prediction-metrics/adapters/classifier"
	"github.com/vrbourque/prediction-metrics/adapters/folds"
	"github.com/vrbourque/prediction-metrics/adapters/report"
	"github.com/vrbourque/prediction-metrics/adapters/rng"
	"github.com/vrbourque/prediction-metrics/adapters/tabular"
	"github.com/vrbourque/prediction-metrics/app"
	"github.com/vrbourque/prediction-metrics/internal/config"
	"github.com/vrbourque/prediction-metrics/internal/simulation"
	"github.com/vrbourque/prediction-metrics/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	RNG     ports.RNGPort
	Tables  *tabular.FileStore
	Reports *report.Writer

	// Modelling components
	Splitter   ports.FoldSplitter
	Classifier ports.Classifier
	Evaluator  *app.FoldEvaluator
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Container{
		Config: cfg,
		Logger: logger,
	}

	c.initInfrastructure()
	if err := c.initModelling(cfg.Evaluation.Splits); err != nil {
		return nil, fmt.Errorf("failed to initialize modelling components: %w", err)
	}

	logger.Debug("container initialized",
		zap.Uint64("seed", cfg.Evaluation.Seed),
		zap.Int("splits", cfg.Evaluation.Splits),
		zap.String("outcome", cfg.Evaluation.Outcome))
	return c, nil
}

// initInfrastructure initializes file and randomness adapters
func (c *Container) initInfrastructure() {
	c.RNG = rng.NewSeededAdapter()
	c.Tables = tabular.NewFileStore(c.Logger)
	c.Reports = report.NewWriter(c.Logger)
}

// initModelling initializes the splitter, classifier and evaluator
func (c *Container) initModelling(splits int) error {
	eval := c.Config.Evaluation
	splitter, err := folds.NewStratifiedKFold(folds.StratifiedConfig{
		NSplits: splits,
		Shuffle: eval.Shuffle,
		Seed:    eval.Seed,
	}, folds.WithLogger(c.Logger), folds.WithRNG(c.RNG))
	if err != nil {
		return err
	}

	c.Splitter = splitter
	c.Classifier = classifier.NewLogisticRegression(classifier.DefaultLogisticConfig(), c.Logger)
	c.Evaluator = app.NewFoldEvaluator(splitter,
		app.WithOutcomeColumn(eval.Outcome),
		app.WithEvaluatorLogger(c.Logger))
	return nil
}

// UseSplits rebuilds the modelling components with a different fold count.
// Zero keeps the configured count.
func (c *Container) UseSplits(splits int) error {
	if splits == 0 || splits == c.Splitter.NSplits() {
		return nil
	}
	return c.initModelling(splits)
}

// Simulator returns a cohort simulator sharing the container's RNG.
func (c *Container) Simulator(cfg simulation.Config) *simulation.Simulator {
	return simulation.New(cfg, simulation.WithLogger(c.Logger), simulation.WithRNG(c.RNG))
}

// Pipeline returns a pipeline service over the container's evaluator and
// classifier. sim may be nil when only existing tables are evaluated.
func (c *Container) Pipeline(sim *simulation.Simulator) *app.PipelineService {
	return app.NewPipelineService(sim, c.Evaluator, c.Classifier, c.Logger)
}

// Shutdown flushes buffered log entries
func (c *Container) Shutdown() error {
	return c.Logger.Sync()
}
