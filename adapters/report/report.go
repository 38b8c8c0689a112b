package report

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"go.uber.org/zap"

	"github.com/vrbourque/prediction-metrics/domain/core"
	"github.com/vrbourque/prediction-metrics/domain/dataset"
	"github.com/vrbourque/prediction-metrics/domain/evaluation"
	apperrors "github.com/vrbourque/prediction-metrics/internal/errors"
	"github.com/vrbourque/prediction-metrics/internal/scoring"
)

// ColumnOverview describes one numeric input column of the evaluated table.
type ColumnOverview struct {
	Name  string
	Stats scoring.ColumnStats
}

// Report summarises a feature-set comparison.
type Report struct {
	Title          string
	RunID          core.RunID
	GeneratedAt    time.Time
	Outcome        string
	TrainRows      int
	ValidationRows int
	Summaries      []*scoring.Summary
	Folds          []evaluation.FoldSummary
	Overview       []ColumnOverview
}

// New builds a report for a scored comparison. Overview columns that are
// absent or non-numeric in the comparison table are skipped.
func New(title, outcome string, comparison *evaluation.Comparison, summaries []*scoring.Summary, overview []string) (*Report, error) {
	if comparison == nil || comparison.Table == nil || len(comparison.Results) == 0 {
		return nil, apperrors.InvalidArgument("report needs an evaluated comparison")
	}
	if len(summaries) != len(comparison.Results) {
		return nil, apperrors.InvalidArgumentf("%d summaries for %d results", len(summaries), len(comparison.Results))
	}

	first := comparison.Results[0]
	r := &Report{
		Title:          title,
		RunID:          comparison.RunID,
		GeneratedAt:    time.Now().UTC(),
		Outcome:        outcome,
		TrainRows:      first.TrainRows,
		ValidationRows: first.ValidationRows,
		Summaries:      summaries,
		Folds:          first.FoldSummaries,
	}
	for _, name := range overview {
		col, ok := comparison.Table.Column(name)
		if !ok || col.Kind != dataset.KindFloat {
			continue
		}
		r.Overview = append(r.Overview, ColumnOverview{Name: name, Stats: scoring.Describe(col.Floats)})
	}
	return r, nil
}

// Markdown renders the report as markdown.
func (r *Report) Markdown() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# %s\n\n", r.Title)
	fmt.Fprintf(&b, "- Run: `%s`\n", r.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Outcome: `%s`\n", r.Outcome)
	fmt.Fprintf(&b, "- Training rows: %d, validation rows: %d\n\n", r.TrainRows, r.ValidationRows)

	b.WriteString("## Feature sets\n\n")
	b.WriteString("| Prediction | OOF AUC | Fold AUC (mean ± sd) | OOF Brier | Validation AUC | Validation Brier | Fingerprint |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, s := range r.Summaries {
		fmt.Fprintf(&b, "| %s | %s | %s ± %s | %s | %s | %s | `%s` |\n",
			s.Prediction,
			number(s.OutOfFoldAUC),
			number(s.FoldAUCMean), number(s.FoldAUCStdDev),
			number(s.OutOfFoldBrier),
			number(s.ValidationAUC),
			number(s.ValidationBrier),
			shortHash(s.Fingerprint))
	}

	if len(r.Summaries) > 0 && len(r.Summaries[0].FoldScores) > 0 {
		b.WriteString("\n## Folds\n\n")
		b.WriteString("| Fold | Test rows | Fit rows | Scored rows |")
		for _, s := range r.Summaries {
			fmt.Fprintf(&b, " AUC %s |", s.Prediction)
		}
		b.WriteString("\n|---|---|---|---|")
		for range r.Summaries {
			b.WriteString("---|")
		}
		b.WriteString("\n")
		for i, f := range r.Folds {
			fmt.Fprintf(&b, "| %s | %d | %d | %d |", f.Fold, f.TestRows, f.FitRows, f.ScoredRows)
			for _, s := range r.Summaries {
				auc := math.NaN()
				if i < len(s.FoldScores) {
					auc = s.FoldScores[i].AUC
				}
				fmt.Fprintf(&b, " %s |", number(auc))
			}
			b.WriteString("\n")
		}
	}

	if len(r.Overview) > 0 {
		b.WriteString("\n## Inputs\n\n")
		b.WriteString("| Column | N | Missing | Mean | SD | Median |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, c := range r.Overview {
			fmt.Fprintf(&b, "| %s | %d | %d | %s | %s | %s |\n",
				c.Name, c.Stats.N, c.Stats.Missing,
				number(c.Stats.Mean), number(c.Stats.StdDev), number(c.Stats.Median))
		}
	}
	return b.Bytes()
}

// HTML renders the report as a complete HTML page.
func (r *Report) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: r.Title,
	})
	return markdown.ToHTML(r.Markdown(), p, renderer)
}

// Writer stores rendered reports on disk.
type Writer struct {
	logger *zap.Logger
}

// NewWriter creates a report writer
func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger}
}

// Write stores the report as HTML, or as markdown when path ends in .md.
func (w *Writer) Write(path string, r *Report) error {
	body := r.HTML()
	if filepath.Ext(path) == ".md" {
		body = r.Markdown()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.IOError("creating report directory", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return apperrors.IOError("writing report", err)
	}
	w.logger.Info("report written",
		zap.String("path", path),
		zap.String("run_id", r.RunID.String()),
		zap.Int("feature_sets", len(r.Summaries)))
	return nil
}

func number(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", v)
}

func shortHash(h core.Hash) string {
	s := h.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
