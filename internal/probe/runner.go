package probe

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gorm-multistatement/internal/sqlexec"
)

// Target is what the runner needs from the database harness.
type Target interface {
	Prepare(ctx context.Context) error
	Executor() *sqlexec.Executor
}

// Outcome records how one scenario went.
type Outcome struct {
	Name       string              `json:"name"`
	Pathway    Pathway             `json:"pathway"`
	Mode       sqlexec.Mode        `json:"mode,omitempty"`
	Passed     bool                `json:"passed"`
	Error      string              `json:"error,omitempty"`
	Elapsed    time.Duration       `json:"elapsed"`
	Result     *sqlexec.Result     `json:"result,omitempty"`
	ResultSets []sqlexec.ResultSet `json:"result_sets,omitempty"`
}

// Report is the outcome of a full run.
type Report struct {
	Outcomes []Outcome     `json:"outcomes"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Elapsed  time.Duration `json:"elapsed"`
}

// OK reports whether every scenario passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Runner runs scenarios against a prepared database.
type Runner struct {
	target    Target
	scenarios []Scenario
	log       *zap.Logger
}

// NewRunner creates a Runner for the default scenarios.
func NewRunner(target Target, log *zap.Logger) *Runner {
	return NewRunnerWithScenarios(target, Scenarios(), log)
}

// NewRunnerWithScenarios creates a Runner for a custom scenario list.
func NewRunnerWithScenarios(target Target, scenarios []Scenario, log *zap.Logger) *Runner {
	return &Runner{target: target, scenarios: scenarios, log: log}
}

// Run prepares the database, then runs every scenario in order. A failing
// scenario is recorded in the report and does not stop the others; only a
// failed preparation returns an error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	if err := r.target.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare database: %w", err)
	}

	report := &Report{Outcomes: make([]Outcome, 0, len(r.scenarios))}
	for _, sc := range r.scenarios {
		out := r.runScenario(ctx, sc)
		if out.Passed {
			report.Passed++
			r.log.Info("scenario passed",
				zap.String("scenario", out.Name),
				zap.String("pathway", string(out.Pathway)),
				zap.Duration("elapsed", out.Elapsed),
			)
		} else {
			report.Failed++
			r.log.Warn("scenario failed",
				zap.String("scenario", out.Name),
				zap.String("pathway", string(out.Pathway)),
				zap.String("error", out.Error),
			)
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

func (r *Runner) runScenario(ctx context.Context, sc Scenario) (out Outcome) {
	out = Outcome{Name: sc.Name, Pathway: sc.Pathway, Mode: sc.Mode}
	start := time.Now()
	defer func() {
		out.Elapsed = time.Since(start)
	}()

	exec := r.target.Executor()
	var err error
	switch sc.Pathway {
	case PathwayExecute:
		out.Result, err = exec.Execute(ctx, sc.SQL, nil, sc.Mode)
		if err == nil && out.Result == nil {
			err = fmt.Errorf("mode %s returned no result", sc.Mode)
		}
	case PathwayRaw:
		out.ResultSets, err = exec.Raw(ctx, sc.SQL)
		if err == nil && sc.WantResultSets > 0 && len(out.ResultSets) != sc.WantResultSets {
			err = fmt.Errorf("expected %d result sets, got %d", sc.WantResultSets, len(out.ResultSets))
		}
	default:
		err = fmt.Errorf("unknown pathway %q", sc.Pathway)
	}

	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Passed = true
	return out
}
