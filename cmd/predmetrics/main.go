package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vrbourque/prediction-metrics/adapters/report"
	"github.com/vrbourque/prediction-metrics/app"
	"github.com/vrbourque/prediction-metrics/internal/config"
	"github.com/vrbourque/prediction-metrics/internal/container"
	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
	"github.com/vrbourque/prediction-metrics/internal/logging"
	"github.com/vrbourque/prediction-metrics/internal/scoring"
	"github.com/vrbourque/prediction-metrics/internal/simulation"
)

// cliState is filled in by the root command before any subcommand runs.
type cliState struct {
	cfg       *config.Config
	container *container.Container
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "predmetrics",
		Short: "Simulate genetic cohorts and evaluate risk models with stratified k-fold cross-validation",
		Long: `predmetrics simulates cohorts (PGS, rare variants, binary outcome) and compares
feature sets with out-of-fold and held-out validation predictions.

Configuration is read from the environment (and a .env file if present):
- PM_SEED (default: 123)
- PM_SPLITS (default: 10)
- PM_OUTCOME (default: ID_binary)
- PM_OUTPUT_DIR (default: .)
- PM_PLAN_FILE (optional YAML run plan)
- LOG_LEVEL=debug|info|warn|error (default: info)`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
			if err != nil {
				return err
			}
			c, err := container.New(cfg, logger)
			if err != nil {
				return err
			}
			state.cfg = cfg
			state.container = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state.container != nil {
				_ = state.container.Shutdown()
			}
		},
	}

	rootCmd.AddCommand(
		newSimulateCmd(state),
		newEvaluateCmd(state),
		newRunCmd(state),
	)
	return rootCmd
}

func newSimulateCmd(state *cliState) *cobra.Command {
	var cohorts []string
	var seed uint64
	var out string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate one table of cohorts",
		Long: `Simulate individuals for each cohort, in the order given.

Example: predmetrics simulate --cohort A:500 --cohort B:300 --seed 123 --out sim.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, sizes, err := parseCohorts(cohorts)
			if err != nil {
				return err
			}
			simConfig := simulation.DefaultConfig()
			simConfig.Seed = state.cfg.Evaluation.Seed
			if cmd.Flags().Changed("seed") {
				simConfig.Seed = seed
			}

			table, err := state.container.Simulator(simConfig).Simulate(names, sizes)
			if err != nil {
				return err
			}

			path := outputPath(state.cfg.Paths.OutputDir, out)
			if err := state.container.Tables.WriteTable(path, table); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Simulated %d individuals into %s\n", table.Len(), path)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&cohorts, "cohort", nil, "Cohort as NAME:SIZE (repeatable)")
	cmd.Flags().Uint64Var(&seed, "seed", 123, "Random seed (default: PM_SEED)")
	cmd.Flags().StringVar(&out, "out", "simulated.csv", "Output table (.csv or .xlsx)")
	_ = cmd.MarkFlagRequired("cohort")
	return cmd
}

func newEvaluateCmd(state *cliState) *cobra.Command {
	var trainPath, validationPath, out, reportPath string
	var features []string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run k-fold evaluation of feature sets on existing tables",
		Long: `Fit a logistic regression per feature set with stratified k-fold
cross-validation on the training table, refit on all eligible training rows
and score the validation table.

Example: predmetrics evaluate --train t.csv --validation v.csv --features PGS --features PGS,DEL --out eval.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := parseFeatureSets(features)
			if err != nil {
				return err
			}
			store := state.container.Tables
			train, err := store.ReadTable(trainPath)
			if err != nil {
				return err
			}
			validation, err := store.ReadTable(validationPath)
			if err != nil {
				return err
			}

			result, err := state.container.Pipeline(nil).Evaluate(train, validation, sets)
			if err != nil {
				return err
			}
			return writeOutputs(cmd.OutOrStdout(), state, result, "Prediction metrics", out, reportPath, featureColumns(sets))
		},
	}

	cmd.Flags().StringVar(&trainPath, "train", "", "Training table (.csv or .xlsx)")
	cmd.Flags().StringVar(&validationPath, "validation", "", "Validation table (.csv or .xlsx)")
	cmd.Flags().StringArrayVar(&features, "features", nil, "Comma-separated feature set (repeatable)")
	cmd.Flags().StringVar(&out, "out", "predictions.csv", "Output table (.csv or .xlsx)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Optional report (.html or .md)")
	_ = cmd.MarkFlagRequired("train")
	_ = cmd.MarkFlagRequired("validation")
	_ = cmd.MarkFlagRequired("features")
	return cmd
}

func newRunCmd(state *cliState) *cobra.Command {
	var planPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate training and validation cohorts from a plan and evaluate them",
		Long: `Run a full plan: simulate every cohort in one draw, hold out the validation
cohorts, evaluate every feature set and write the prediction table and report.

Without --plan (or PM_PLAN_FILE) the built-in plan is used: training cohorts
A (500) and B (300), validation cohort C (200), PGS versus PGS+DEL+DUP+LOF+MIS.

Example: predmetrics run --plan plan.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("plan") {
				planPath = state.cfg.Paths.PlanFile
			}
			plan, err := config.LoadPlan(planPath)
			if err != nil {
				return err
			}

			if err := state.container.UseSplits(plan.Splits); err != nil {
				return err
			}
			pipeline := state.container.Pipeline(state.container.Simulator(plan.Simulation))
			names, sizes := plan.CohortNames()
			result, err := pipeline.Run(app.SimulationRequest{
				Cohorts:     names,
				SampleSizes: sizes,
				Validation:  plan.IsValidationCohort,
				FeatureSets: plan.FeatureSets,
			})
			if err != nil {
				return err
			}
			return writeOutputs(cmd.OutOrStdout(), state, result, plan.Title, plan.Outputs.Table, plan.Outputs.Report, featureColumns(plan.FeatureSets))
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "YAML run plan (default: PM_PLAN_FILE or the built-in plan)")
	return cmd
}

func writeOutputs(w io.Writer, state *cliState, result *app.PipelineResult, title, tablePath, reportPath string, overview []string) error {
	tablePath = outputPath(state.cfg.Paths.OutputDir, tablePath)
	if err := state.container.Tables.WriteTable(tablePath, result.Comparison.Table); err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s: %d rows written to %s\n", result.Comparison.RunID, result.Comparison.Table.Len(), tablePath)
	printSummaries(w, result.Summaries)

	if reportPath == "" {
		return nil
	}
	r, err := report.New(title, state.cfg.Evaluation.Outcome, result.Comparison, result.Summaries, overview)
	if err != nil {
		return err
	}
	reportPath = outputPath(state.cfg.Paths.OutputDir, reportPath)
	if err := state.container.Reports.Write(reportPath, r); err != nil {
		return err
	}
	fmt.Fprintf(w, "Report written to %s\n", reportPath)
	return nil
}

func printSummaries(w io.Writer, summaries []*scoring.Summary) {
	fmt.Fprintf(w, "%-32s %9s %17s %14s\n", "prediction", "oof_auc", "fold_auc", "validation_auc")
	for _, s := range summaries {
		fmt.Fprintf(w, "%-32s %9.3f %8.3f ± %6.3f %14.3f\n",
			s.Prediction, s.OutOfFoldAUC, s.FoldAUCMean, s.FoldAUCStdDev, s.ValidationAUC)
	}
}

// parseCohorts reads NAME:SIZE pairs.
func parseCohorts(specs []string) ([]string, []int, error) {
	names := make([]string, 0, len(specs))
	sizes := make([]int, 0, len(specs))
	for _, spec := range specs {
		i := strings.LastIndex(spec, ":")
		if i <= 0 {
			return nil, nil, apperrors.InvalidArgumentf("invalid cohort %q (use NAME:SIZE)", spec)
		}
		size, err := strconv.Atoi(spec[i+1:])
		if err != nil {
			return nil, nil, apperrors.WithCode(apperrors.CodeInvalidArgument,
				fmt.Errorf("invalid cohort size in %q: %w", spec, err))
		}
		if size < 0 {
			return nil, nil, apperrors.InvalidArgumentf("negative cohort size in %q", spec)
		}
		names = append(names, spec[:i])
		sizes = append(sizes, size)
	}
	return names, sizes, nil
}

// parseFeatureSets splits each comma-separated feature list.
func parseFeatureSets(specs []string) ([][]string, error) {
	sets := make([][]string, 0, len(specs))
	for _, spec := range specs {
		var set []string
		for _, f := range strings.Split(spec, ",") {
			if f = strings.TrimSpace(f); f != "" {
				set = append(set, f)
			}
		}
		if len(set) == 0 {
			return nil, apperrors.InvalidArgumentf("empty feature set %q", spec)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// featureColumns lists every feature once, in first-seen order.
func featureColumns(sets [][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, f := range set {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func outputPath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
