// Package orchestrator sequences a pipeline run: load the store, seal
// it, dispatch the analyses concurrently, and hand each result to the
// sink. A failure in one analysis never aborts its siblings; only a load
// failure aborts the run.
package orchestrator

import (
	"context"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/logmill/logmill/internal/analysis"
	"github.com/logmill/logmill/internal/config"
	"github.com/logmill/logmill/internal/errors"
	"github.com/logmill/logmill/internal/ingest"
	"github.com/logmill/logmill/internal/logging"
	"github.com/logmill/logmill/internal/sink"
	"github.com/logmill/logmill/internal/store"
	"github.com/logmill/logmill/pkg/types"
)

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Outcome is the terminal status of one analysis: a result or an error,
// never both.
type Outcome struct {
	Name     string
	Result   types.Result
	Err      error
	Duration time.Duration
}

// Report is the structured summary of a run. The run always completes
// with a report; only source unavailability produces a bare error.
type Report struct {
	RunID    string
	State    State
	Stats    types.ParseStats
	Outcomes []Outcome
}

// FailedAnalyses returns the names of analyses that failed.
func (r *Report) FailedAnalyses() []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.Err != nil {
			names = append(names, o.Name)
		}
	}
	return names
}

// Orchestrator drives the Idle -> Loading -> Ready -> Running ->
// Done|Failed state machine for one run.
type Orchestrator struct {
	cfg   *config.Config
	sink  sink.Sink
	state State
}

// New creates an orchestrator writing to the given sink.
func New(cfg *config.Config, snk sink.Sink) *Orchestrator {
	return &Orchestrator{cfg: cfg, sink: snk, state: StateIdle}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes one full pipeline run over the source. A non-nil error
// means loading failed and no analyses ran; per-analysis failures are
// reported in the outcomes instead.
func (o *Orchestrator) Run(ctx context.Context, src ingest.Source) (*Report, error) {
	log := logging.Component("orchestrator")

	report := &Report{
		RunID: uuid.New().String(),
		State: StateIdle,
	}
	log.Info("run starting", "run_id", report.RunID, "source", src.Name())

	// Loading: strictly sequential, completes before any analysis starts.
	o.state = StateLoading
	st := store.New()
	parser := ingest.NewParser(o.cfg.Ingest.Delimiter)
	ingestor := ingest.NewIngestor(parser, ingest.Options{
		HasHeader: o.cfg.Ingest.HasHeader,
		Strict:    o.cfg.Ingest.Strict,
	})

	stats, err := ingestor.Ingest(ctx, src, st)
	report.Stats = stats
	if err != nil {
		o.state = StateFailed
		report.State = StateFailed
		return report, err
	}

	// Seal makes the store read-only; from here no task can mutate it.
	view := st.Seal()
	o.state = StateReady

	o.state = StateRunning
	engine := analysis.NewEngine(view, o.cfg.Analysis)

	tasks := []struct {
		name string
		run  func(context.Context) (types.Result, error)
	}{
		{analysis.NameTotalCount, engine.TotalCount},
		{analysis.NameStatusDistribution, engine.StatusDistribution},
		{analysis.NameTopPaths, engine.TopPaths},
		{analysis.NameTopUserAgents, engine.TopUserAgents},
		{analysis.NameSuspiciousIPs, engine.SuspiciousIPs},
		{analysis.NameTrafficTrend, engine.TrafficTrend},
		{analysis.NamePartitionExport, o.exportPartitions(view)},
	}

	workers := o.cfg.Analysis.Workers
	if workers <= 0 || workers > len(tasks) {
		workers = len(tasks)
	}

	outcomes := make([]Outcome, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			outcomes[i] = o.runOne(gctx, task.name, task.run)
			// Analysis failures are isolated; never fail the group.
			return nil
		})
	}
	_ = g.Wait() // group members never return errors; outcomes carry them

	report.Outcomes = outcomes
	o.state = StateDone
	report.State = StateDone

	if failed := report.FailedAnalyses(); len(failed) > 0 {
		log.Warn("run finished with failures", "run_id", report.RunID, "failed", failed)
	} else {
		log.Info("run finished", "run_id", report.RunID, "analyses", len(outcomes))
	}
	return report, nil
}

// runOne executes a single analysis under its own deadline and writes
// its result to the sink.
func (o *Orchestrator) runOne(ctx context.Context, name string, run func(context.Context) (types.Result, error)) Outcome {
	start := time.Now()

	actx := ctx
	if o.cfg.Analysis.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.cfg.Analysis.Timeout)
		defer cancel()
	}

	res, err := run(actx)
	if err == nil {
		err = o.sink.WriteResult(actx, res)
	}
	if err != nil {
		return Outcome{
			Name:     name,
			Err:      classify(name, err),
			Duration: time.Since(start),
		}
	}
	return Outcome{Name: name, Result: res, Duration: time.Since(start)}
}

// exportPartitions builds the partition-export task: each partition is
// re-materialized through ScanByStatus into a named sink stream. The
// task's result lists exported partitions with their row counts.
func (o *Orchestrator) exportPartitions(view *store.View) func(context.Context) (types.Result, error) {
	return func(ctx context.Context) (types.Result, error) {
		counts := view.StatusCounts()
		statuses := view.Statuses()

		for _, status := range statuses {
			scan := func(ctx context.Context, fn func(types.LogRecord) error) error {
				return view.ScanPartition(ctx, status, fn)
			}
			if err := o.sink.WritePartition(ctx, status, scan); err != nil {
				return types.Result{}, err
			}
		}

		// Statuses() is already ascending, which fixes the export order.
		pairs := make([]types.Pair, len(statuses))
		for i, status := range statuses {
			pairs[i] = types.Pair{Key: strconv.Itoa(status), Count: counts[status]}
		}
		return types.PairsResult(analysis.NamePartitionExport, pairs), nil
	}
}

// classify maps raw analysis errors onto the analysis error taxonomy.
func classify(name string, err error) error {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewAnalysisError(errors.CodeAnalysisTimeout, name+" exceeded deadline", err)
	case stderrors.Is(err, context.Canceled):
		return errors.NewAnalysisError(errors.CodeAnalysisCancelled, name+" cancelled", err)
	case errors.GetCategory(err) != "":
		return err
	default:
		return errors.NewInternalError(name+" failed", err)
	}
}
