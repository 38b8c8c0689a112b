package ports

import (
	"github.com/vrbourque/prediction-metrics/domain/evaluation"
)

// FoldSplitter partitions row positions into folds. Every row appears in
// exactly one Test partition across the returned splits.
type FoldSplitter interface {
	Split(labels []float64) ([]evaluation.Split, error)

	// NSplits is the number of splits Split returns.
	NSplits() int
}
