package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vrbourque/prediction-metrics/adapters/rng"
	"github.com/vrbourque/prediction-metrics/domain/dataset"
	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
	"github.com/vrbourque/prediction-metrics/ports"
)

// Column names of a simulated cohort table, in table order.
const (
	ColIID     = "IID"
	ColCohort  = "Cohort"
	ColSex     = "sex"
	ColPGS     = "PGS"
	ColDEL     = "DEL"
	ColDUP     = "DUP"
	ColLOF     = "LOF"
	ColMIS     = "MIS"
	ColOutcome = "ID_binary"
)

const streamName = "simulate"

// VariantSpec describes one rare-variant indicator.
type VariantSpec struct {
	Name            string  `json:"name" yaml:"name"`
	BaseProbability float64 `json:"base_probability" yaml:"base_probability"`
}

// Config configures the cohort simulator
type Config struct {
	Seed uint64 `json:"seed" yaml:"seed"`
	// PGSEffect is the log-odds of the outcome per unit of PGS.
	PGSEffect float64 `json:"pgs_effect" yaml:"pgs_effect"`
	// NudgeStrength shifts each variant probability by
	// NudgeStrength*(outcome-0.5).
	NudgeStrength float64       `json:"nudge_strength" yaml:"nudge_strength"`
	Variants      []VariantSpec `json:"variants" yaml:"variants"`
}

// DefaultConfig returns the reference simulation parameters
func DefaultConfig() Config {
	return Config{
		Seed:          123,
		PGSEffect:     0.3,
		NudgeStrength: 0.05,
		Variants: []VariantSpec{
			{Name: ColDEL, BaseProbability: 0.10},
			{Name: ColDUP, BaseProbability: 0.10},
			{Name: ColLOF, BaseProbability: 0.05},
			{Name: ColMIS, BaseProbability: 0.15},
		},
	}
}

// Individual is one simulated person.
type Individual struct {
	IID      string
	Cohort   string
	Sex      int
	PGS      float64
	Variants []int // aligned with Config.Variants
	Outcome  int
}

// Simulator generates synthetic cohort tables
type Simulator struct {
	config Config
	rng    ports.RNGPort
	logger *zap.Logger
}

// Option customises a Simulator.
type Option func(*Simulator)

// WithLogger sets the simulator's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

// WithRNG replaces the seeded stream provider.
func WithRNG(port ports.RNGPort) Option {
	return func(s *Simulator) { s.rng = port }
}

// New creates a new simulator
func New(config Config, opts ...Option) *Simulator {
	s := &Simulator{
		config: config,
		rng:    rng.NewSeededAdapter(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simulate draws sum(sampleSizes) individuals; the first sampleSizes[0]
// belong to cohorts[0], and so on in input order.
func (s *Simulator) Simulate(cohorts []string, sampleSizes []int) (*dataset.Table, error) {
	individuals, err := s.Individuals(cohorts, sampleSizes)
	if err != nil {
		return nil, err
	}
	return ToTable(individuals, s.config.Variants)
}

// Individuals draws the typed records behind Simulate.
func (s *Simulator) Individuals(cohorts []string, sampleSizes []int) ([]Individual, error) {
	if len(cohorts) != len(sampleSizes) {
		return nil, apperrors.InvalidArgumentf("got %d cohort labels but %d sample sizes", len(cohorts), len(sampleSizes))
	}
	total := 0
	for i, n := range sampleSizes {
		if n < 0 {
			return nil, apperrors.InvalidArgumentf("sample size for cohort %q is negative (%d)", cohorts[i], n)
		}
		total += n
	}
	for _, v := range s.config.Variants {
		if v.Name == "" {
			return nil, apperrors.InvalidArgument("variant with empty name")
		}
	}

	stream := s.rng.Stream(streamName, s.config.Seed)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: stream}

	individuals := make([]Individual, 0, total)
	for c, label := range cohorts {
		for j := 0; j < sampleSizes[c]; j++ {
			individuals = append(individuals, Individual{
				IID:    fmt.Sprintf("ID_%d", len(individuals)+1),
				Cohort: label,
			})
		}
	}

	// Each attribute is drawn for the whole cohort before the next, so adding
	// a variant never changes the draws of the ones before it.
	for i := range individuals {
		individuals[i].Sex = stream.IntN(2)
	}
	for i := range individuals {
		individuals[i].PGS = normal.Rand()
	}
	for i := range individuals {
		p := sigmoid(s.config.PGSEffect * individuals[i].PGS)
		individuals[i].Outcome = bernoulli(p, stream)
	}
	for i := range individuals {
		individuals[i].Variants = make([]int, len(s.config.Variants))
	}
	for v, spec := range s.config.Variants {
		for i := range individuals {
			p := clip(spec.BaseProbability+s.config.NudgeStrength*(float64(individuals[i].Outcome)-0.5), 0, 1)
			individuals[i].Variants[v] = bernoulli(p, stream)
		}
	}

	s.logger.Debug("simulated cohorts",
		zap.Strings("cohorts", cohorts),
		zap.Ints("sample_sizes", sampleSizes),
		zap.Int("individuals", total))
	return individuals, nil
}

// ToTable lays individuals out as IID, Cohort, sex, PGS, the variant
// columns, then ID_binary.
func ToTable(individuals []Individual, variants []VariantSpec) (*dataset.Table, error) {
	n := len(individuals)
	iid := make([]string, n)
	cohort := make([]string, n)
	sex := make([]float64, n)
	pgs := make([]float64, n)
	outcome := make([]float64, n)
	variantCols := make([][]float64, len(variants))
	for v := range variantCols {
		variantCols[v] = make([]float64, n)
	}

	for i, ind := range individuals {
		iid[i] = ind.IID
		cohort[i] = ind.Cohort
		sex[i] = float64(ind.Sex)
		pgs[i] = ind.PGS
		outcome[i] = float64(ind.Outcome)
		if len(ind.Variants) != len(variants) {
			return nil, apperrors.InvalidArgumentf("individual %s has %d variants, expected %d", ind.IID, len(ind.Variants), len(variants))
		}
		for v, x := range ind.Variants {
			variantCols[v][i] = float64(x)
		}
	}

	columns := []dataset.Column{
		dataset.StringColumn(ColIID, iid),
		dataset.StringColumn(ColCohort, cohort),
		dataset.FloatColumn(ColSex, sex),
		dataset.FloatColumn(ColPGS, pgs),
	}
	for v, spec := range variants {
		columns = append(columns, dataset.FloatColumn(spec.Name, variantCols[v]))
	}
	columns = append(columns, dataset.FloatColumn(ColOutcome, outcome))
	return dataset.NewTable(columns...)
}

func bernoulli(p float64, src rand.Source) int {
	return int(distuv.Bernoulli{P: p, Src: src}.Rand())
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
