package folds

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/vrbourque/prediction-metrics/adapters/rng"
	"github.com/vrbourque/prediction-metrics/domain/evaluation"
	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
	"github.com/vrbourque/prediction-metrics/ports"
)

const streamName = "stratified_kfold"

// StratifiedConfig configures the stratified k-fold splitter
type StratifiedConfig struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// DefaultStratifiedConfig returns ten shuffled folds seeded with 123.
func DefaultStratifiedConfig() StratifiedConfig {
	return StratifiedConfig{
		NSplits: 10,
		Shuffle: true,
		Seed:    123,
	}
}

// StratifiedKFold assigns rows to folds so that every class is spread as
// evenly as possible across the folds.
type StratifiedKFold struct {
	config StratifiedConfig
	rng    ports.RNGPort
	logger *zap.Logger
}

var _ ports.FoldSplitter = (*StratifiedKFold)(nil)

// Option customises a StratifiedKFold.
type Option func(*StratifiedKFold)

// WithLogger sets the logger used for class-balance warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(s *StratifiedKFold) { s.logger = logger }
}

// WithRNG replaces the seeded stream provider.
func WithRNG(port ports.RNGPort) Option {
	return func(s *StratifiedKFold) { s.rng = port }
}

// NewStratifiedKFold creates a stratified splitter
func NewStratifiedKFold(config StratifiedConfig, opts ...Option) (*StratifiedKFold, error) {
	if config.NSplits < 2 {
		return nil, apperrors.InvalidArgumentf("n_splits must be at least 2, got %d", config.NSplits)
	}
	s := &StratifiedKFold{
		config: config,
		rng:    rng.NewSeededAdapter(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NSplits returns the configured fold count.
func (s *StratifiedKFold) NSplits() int { return s.config.NSplits }

// Split returns NSplits train/test partitions over positions 0..len(labels)-1.
// Test partitions are disjoint and together cover every row once. Both
// partitions list rows in ascending order.
func (s *StratifiedKFold) Split(labels []float64) ([]evaluation.Split, error) {
	testFolds, err := s.testFolds(labels)
	if err != nil {
		return nil, err
	}

	k := s.config.NSplits
	splits := make([]evaluation.Split, k)
	for row, fold := range testFolds {
		for i := range splits {
			if i == fold {
				splits[i].Test = append(splits[i].Test, row)
			} else {
				splits[i].Train = append(splits[i].Train, row)
			}
		}
	}
	return splits, nil
}

// testFolds assigns a fold index to every row. Classes are numbered by
// order of first appearance; the sorted class sequence is dealt round-robin
// across folds to fix how many members of each class a fold receives, and
// each class's fold vector is then shuffled independently.
func (s *StratifiedKFold) testFolds(labels []float64) ([]int, error) {
	n := len(labels)
	k := s.config.NSplits
	if k > n {
		return nil, apperrors.InsufficientClassSupport(
			fmt.Sprintf("cannot have n_splits=%d greater than the number of samples %d", k, n))
	}

	classOf := make(map[float64]int)
	encoded := make([]int, n)
	var counts []int
	for i, y := range labels {
		if math.IsNaN(y) {
			return nil, apperrors.InvalidArgumentf("outcome missing at row %d", i)
		}
		c, ok := classOf[y]
		if !ok {
			c = len(counts)
			classOf[y] = c
			counts = append(counts, 0)
		}
		encoded[i] = c
		counts[c]++
	}

	minCount, maxCount := n, 0
	for _, c := range counts {
		minCount = min(minCount, c)
		maxCount = max(maxCount, c)
	}
	if minCount < 2 {
		return nil, apperrors.InsufficientClassSupport(
			fmt.Sprintf("the least populated class has only %d member; at least 2 are required", minCount))
	}
	if k > maxCount {
		return nil, apperrors.InsufficientClassSupport(
			fmt.Sprintf("n_splits=%d cannot be greater than the number of members in each class", k))
	}
	if k > minCount {
		s.logger.Warn("least populated class has fewer members than n_splits",
			zap.Int("members", minCount),
			zap.Int("n_splits", k))
	}

	// allocation[i][c] = members of class c placed in fold i
	nClasses := len(counts)
	allocation := make([][]int, k)
	for i := range allocation {
		allocation[i] = make([]int, nClasses)
	}
	pos := 0
	for c := 0; c < nClasses; c++ {
		for j := 0; j < counts[c]; j++ {
			allocation[pos%k][c]++
			pos++
		}
	}

	var stream interface{ Shuffle(int, func(int, int)) }
	if s.config.Shuffle {
		stream = s.rng.Stream(streamName, s.config.Seed)
	}

	testFolds := make([]int, n)
	for c := 0; c < nClasses; c++ {
		foldsForClass := make([]int, 0, counts[c])
		for i := 0; i < k; i++ {
			for j := 0; j < allocation[i][c]; j++ {
				foldsForClass = append(foldsForClass, i)
			}
		}
		if stream != nil {
			stream.Shuffle(len(foldsForClass), func(a, b int) {
				foldsForClass[a], foldsForClass[b] = foldsForClass[b], foldsForClass[a]
			})
		}
		next := 0
		for row, enc := range encoded {
			if enc == c {
				testFolds[row] = foldsForClass[next]
				next++
			}
		}
	}
	return testFolds, nil
}
