package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vrbourque/prediction-metrics/internal/errors"
	"github.com/vrbourque/prediction-metrics/internal/simulation"
)

// Cohort roles in a run plan.
const (
	RoleTraining   = "training"
	RoleValidation = "validation"
)

// CohortPlan is one simulated cohort.
type CohortPlan struct {
	Name string `json:"name" yaml:"name"`
	Size int    `json:"size" yaml:"size"`
	Role string `json:"role" yaml:"role"`
}

// OutputPlan names the files a run writes, relative to the output directory.
type OutputPlan struct {
	Table  string `json:"table" yaml:"table"`
	Report string `json:"report" yaml:"report"`
}

// Plan describes a full simulate-and-evaluate run.
type Plan struct {
	Title       string            `json:"title" yaml:"title"`
	Simulation  simulation.Config `json:"simulation" yaml:"simulation"`
	Cohorts     []CohortPlan      `json:"cohorts" yaml:"cohorts"`
	FeatureSets [][]string        `json:"feature_sets" yaml:"feature_sets"`
	// Splits overrides PM_SPLITS when set.
	Splits  int        `json:"splits,omitempty" yaml:"splits,omitempty"`
	Outputs OutputPlan `json:"outputs" yaml:"outputs"`
}

// DefaultPlan returns the reference run: two training cohorts, one
// validation cohort and the PGS-only versus PGS-plus-variants comparison.
func DefaultPlan() *Plan {
	return &Plan{
		Title:      "Prediction metrics",
		Simulation: simulation.DefaultConfig(),
		Cohorts: []CohortPlan{
			{Name: "A", Size: 500, Role: RoleTraining},
			{Name: "B", Size: 300, Role: RoleTraining},
			{Name: "C", Size: 200, Role: RoleValidation},
		},
		FeatureSets: [][]string{
			{simulation.ColPGS},
			{simulation.ColPGS, simulation.ColDEL, simulation.ColDUP, simulation.ColLOF, simulation.ColMIS},
		},
		Outputs: OutputPlan{
			Table:  "predictions.csv",
			Report: "report.html",
		},
	}
}

// LoadPlan reads a YAML plan on top of DefaultPlan. An empty path returns
// the default plan.
func LoadPlan(path string) (*Plan, error) {
	plan := DefaultPlan()
	if path == "" {
		return plan, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.IOError(fmt.Sprintf("reading plan %s", path), err)
	}
	if err := yaml.Unmarshal(data, plan); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "parsing plan "+path)
	}
	if err := plan.Validate(); err != nil {
		return nil, errors.Wrap(err, "plan "+path)
	}
	return plan, nil
}

// Validate checks that the plan can be run.
func (p *Plan) Validate() error {
	if len(p.Cohorts) == 0 {
		return errors.ConfigInvalid("plan has no cohorts")
	}
	seen := make(map[string]string, len(p.Cohorts))
	var training, validation int
	for i, c := range p.Cohorts {
		if strings.TrimSpace(c.Name) == "" {
			return errors.ConfigInvalid(fmt.Sprintf("cohort %d has no name", i))
		}
		if c.Size < 0 {
			return errors.ConfigInvalid(fmt.Sprintf("cohort %s has negative size %d", c.Name, c.Size))
		}
		if role, ok := seen[c.Name]; ok && role != c.Role {
			return errors.ConfigInvalid(fmt.Sprintf("cohort %s is both %s and %s", c.Name, role, c.Role))
		}
		seen[c.Name] = c.Role
		switch c.Role {
		case RoleTraining:
			training += c.Size
		case RoleValidation:
			validation += c.Size
		default:
			return errors.ConfigInvalid(fmt.Sprintf("cohort %s has role %q (want %s or %s)", c.Name, c.Role, RoleTraining, RoleValidation))
		}
	}
	if training == 0 {
		return errors.ConfigInvalid("plan has no training individuals")
	}
	if len(p.FeatureSets) == 0 {
		return errors.ConfigInvalid("plan has no feature sets")
	}
	for i, set := range p.FeatureSets {
		if len(set) == 0 {
			return errors.ConfigInvalid(fmt.Sprintf("feature set %d is empty", i))
		}
	}
	if p.Splits != 0 && p.Splits < 2 {
		return errors.ConfigInvalid("splits must be at least 2")
	}
	if p.Outputs.Table == "" {
		return errors.ConfigInvalid("outputs.table is required")
	}
	return nil
}

// CohortNames returns the cohort labels and sizes in plan order, ready for
// the simulator.
func (p *Plan) CohortNames() ([]string, []int) {
	names := make([]string, len(p.Cohorts))
	sizes := make([]int, len(p.Cohorts))
	for i, c := range p.Cohorts {
		names[i] = c.Name
		sizes[i] = c.Size
	}
	return names, sizes
}

// IsValidationCohort reports whether the named cohort is held out for
// validation.
func (p *Plan) IsValidationCohort(name string) bool {
	for _, c := range p.Cohorts {
		if c.Name == name {
			return c.Role == RoleValidation
		}
	}
	return false
}
