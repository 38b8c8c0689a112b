package classifier

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
	"github.com/vrbourque/prediction-metrics/ports"
)

// LogisticConfig holds the regularisation and solver settings.
type LogisticConfig struct {
	// C is the inverse L2 penalty strength; the intercept is not penalised.
	C                 float64
	MaxIterations     int
	GradientThreshold float64
}

// DefaultLogisticConfig mirrors the usual library defaults: C=1, 100
// iterations, gradient tolerance 1e-4.
func DefaultLogisticConfig() LogisticConfig {
	return LogisticConfig{
		C:                 1.0,
		MaxIterations:     100,
		GradientThreshold: 1e-4,
	}
}

// LogisticRegression is a binary L2-penalised logistic regression fitted
// with L-BFGS.
type LogisticRegression struct {
	config    LogisticConfig
	logger    *zap.Logger
	weights   []float64
	intercept float64
	fitted    bool
}

var _ ports.Classifier = (*LogisticRegression)(nil)

// NewLogisticRegression creates an unfitted model
func NewLogisticRegression(config LogisticConfig, logger *zap.Logger) *LogisticRegression {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.C <= 0 {
		config.C = 1.0
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = 100
	}
	if config.GradientThreshold <= 0 {
		config.GradientThreshold = 1e-4
	}
	return &LogisticRegression{config: config, logger: logger}
}

// Coefficients returns a copy of the fitted weights and the intercept.
func (m *LogisticRegression) Coefficients() ([]float64, float64) {
	return append([]float64(nil), m.weights...), m.intercept
}

// Fit trains the model, replacing any previous fit.
func (m *LogisticRegression) Fit(X mat.Matrix, y []float64) error {
	if X == nil {
		return apperrors.FitFailure("no training rows")
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return apperrors.FitFailure("no training rows")
	}
	if len(y) != rows {
		return apperrors.FitFailure(fmt.Sprintf("label count %d does not match %d training rows", len(y), rows))
	}
	var positives int
	for i, v := range y {
		switch v {
		case 0:
		case 1:
			positives++
		default:
			return apperrors.FitFailure(fmt.Sprintf("label %v at row %d is not 0 or 1", v, i))
		}
	}
	if positives == 0 || positives == rows {
		return apperrors.FitFailure(fmt.Sprintf("training data holds a single class (%d rows)", rows))
	}

	// Objective: mean log-loss + ||w||²/(2·C·n), the same optimum as
	// 0.5·||w||² + C·Σloss on a size-independent gradient scale.
	n := float64(rows)
	l2 := 1 / (m.config.C * n)
	labels := mat.NewVecDense(rows, append([]float64(nil), y...))
	z := mat.NewVecDense(rows, nil)
	resid := mat.NewVecDense(rows, nil)
	grad := mat.NewVecDense(cols, nil)

	// params = [w_0 .. w_{cols-1}, b]
	margins := func(params []float64) *mat.VecDense {
		w := mat.NewVecDense(cols, params[:cols])
		z.MulVec(X, w)
		b := params[cols]
		for i := 0; i < rows; i++ {
			z.SetVec(i, z.AtVec(i)+b)
		}
		return z
	}

	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			zs := margins(params)
			loss := 0.0
			for i := 0; i < rows; i++ {
				zi := zs.AtVec(i)
				loss += softplus(zi) - labels.AtVec(i)*zi
			}
			penalty := 0.0
			for _, w := range params[:cols] {
				penalty += w * w
			}
			return loss/n + 0.5*l2*penalty
		},
		Grad: func(g, params []float64) {
			zs := margins(params)
			sum := 0.0
			for i := 0; i < rows; i++ {
				r := sigmoid(zs.AtVec(i)) - labels.AtVec(i)
				resid.SetVec(i, r)
				sum += r
			}
			grad.MulVec(X.T(), resid)
			for j := 0; j < cols; j++ {
				g[j] = grad.AtVec(j)/n + l2*params[j]
			}
			g[cols] = sum / n
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: m.config.GradientThreshold,
		MajorIterations:   m.config.MaxIterations,
	}
	result, err := optimize.Minimize(problem, make([]float64, cols+1), settings, &optimize.LBFGS{})
	switch {
	case result == nil:
		return apperrors.FitFailureCause("logistic regression did not converge", err)
	case limitReached(result.Status):
		m.logger.Warn("logistic regression hit its iteration limit",
			zap.String("status", result.Status.String()),
			zap.Int("rows", rows))
	case err != nil:
		// stalled line search: keep the fit only near the optimum
		gnorm := gradientNorm(problem, result.X)
		if gnorm > m.config.GradientThreshold*stalledGradientFactor {
			return apperrors.FitFailureCause("logistic regression did not converge", err)
		}
		m.logger.Warn("logistic regression stopped before its gradient tolerance",
			zap.Error(err),
			zap.Float64("gradient_norm", gnorm),
			zap.Int("rows", rows))
	}

	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return apperrors.FitFailure("logistic regression produced non-finite coefficients")
		}
	}
	m.weights = append(m.weights[:0], result.X[:cols]...)
	m.intercept = result.X[cols]
	m.fitted = true
	return nil
}

// PredictProba returns [P(y=0), P(y=1)] per row.
func (m *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if !m.fitted {
		return nil, apperrors.FitFailure("model has not been fitted")
	}
	if X == nil {
		return nil, apperrors.InvalidArgument("no rows to predict")
	}
	rows, cols := X.Dims()
	if cols != len(m.weights) {
		return nil, apperrors.InvalidArgumentf("model has %d features, got %d", len(m.weights), cols)
	}

	var z mat.VecDense
	z.MulVec(X, mat.NewVecDense(cols, append([]float64(nil), m.weights...)))

	out := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		p := sigmoid(z.AtVec(i) + m.intercept)
		out.Set(i, 0, 1-p)
		out.Set(i, 1, p)
	}
	return out, nil
}

// stalledGradientFactor bounds how far above GradientThreshold a stalled
// line search may stop and still be kept.
const stalledGradientFactor = 100

func gradientNorm(problem optimize.Problem, x []float64) float64 {
	g := make([]float64, len(x))
	problem.Grad(g, x)
	return floats.Norm(g, math.Inf(1))
}

func limitReached(status optimize.Status) bool {
	switch status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit:
		return true
	default:
		return false
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes log(1+exp(z)) without overflow.
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}
