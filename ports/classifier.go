package ports

import (
	"gonum.org/v1/gonum/mat"
)

// Classifier is a binary probabilistic classifier. Implementations are
// refit many times on different subsets; each Fit replaces the previous
// model.
type Classifier interface {
	// Fit trains on rows of X with 0/1 labels y.
	Fit(X mat.Matrix, y []float64) error

	// PredictProba returns one row per row of X and one column per class,
	// ordered [P(y=0), P(y=1)].
	PredictProba(X mat.Matrix) (*mat.Dense, error)
}
