package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/metrics"
	"github.com/andresuchdata/procurement-engine/internal/pipeline/procurement"
	"github.com/andresuchdata/procurement-engine/internal/repository"
	"github.com/andresuchdata/procurement-engine/pkg/logger"
)

// ResultCache is invalidated whenever a date's results are republished.
type ResultCache interface {
	InvalidateDate(ctx context.Context, businessDate time.Time) error
}

// Runner executes the procurement stages for one business date.
type Runner interface {
	Run(ctx context.Context, businessDate time.Time) (*procurement.Result, error)
}

// Worker runs the engine for a business date, tracks the run and publishes
// its output. Output is only published for succeeded runs.
type Worker struct {
	config    PipelineConfig
	engine    Runner
	runs      RunTracker
	artifacts *ArtifactWriter
	results   repository.ResultRepository
	cache     ResultCache
	metrics   *metrics.Metrics
	log       zerolog.Logger
	now       func() time.Time
}

// WorkerDeps groups the optional collaborators of a Worker.
type WorkerDeps struct {
	Artifacts *ArtifactWriter
	Results   repository.ResultRepository
	Cache     ResultCache
	Metrics   *metrics.Metrics
}

// NewWorker creates a new pipeline worker
func NewWorker(config PipelineConfig, engine Runner, runs RunTracker, deps WorkerDeps) *Worker {
	return &Worker{
		config:    config,
		engine:    engine,
		runs:      runs,
		artifacts: deps.Artifacts,
		results:   deps.Results,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		log:       logger.Log.With().Str("pipeline", config.Name).Logger(),
		now:       time.Now,
	}
}

// WithClock overrides the time source used for run bookkeeping.
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// ProcessDate runs the pipeline for one business date. Rerunning a date
// replaces its stage log, artifacts and stored results.
func (w *Worker) ProcessDate(ctx context.Context, businessDate time.Time) (*procurement.Result, error) {
	date := domain.TruncateDate(businessDate)
	log := w.log.With().Str("business_date", date.Format(domain.DateLayout)).Logger()
	log.Info().Msg("starting procurement run")

	run, err := w.getOrCreatePipelineRun(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline run: %w", err)
	}

	run.Status = StatusProcessing
	run.Attempts++
	run.StartedAt = w.now()
	run.CompletedAt = nil
	run.ErrorMessage = ""
	if err := w.runs.UpdatePipelineRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to update pipeline run: %w", err)
	}

	res, runErr := w.engine.Run(ctx, date)
	if res == nil {
		res = &procurement.Result{}
	}
	w.recordStages(ctx, run, res)
	if res.Summary.RunID != "" {
		run.RunUUID = res.Summary.RunID
	}

	if runErr != nil {
		w.metrics.ObserveRun(res.Summary)
		w.finishRun(run, PipelineStatus(res.Summary.Status), runErr.Error())
		log.Error().Err(runErr).Str("status", string(run.Status)).Msg("procurement run did not succeed")
		return res, runErr
	}

	if err := w.publish(ctx, date, res); err != nil {
		res.Summary.Status = domain.RunFailed
		res.Summary.FailureReason = err.Error()
		w.publishFailedSummary(date, res)
		w.metrics.ObserveRun(res.Summary)
		w.finishRun(run, StatusFailed, err.Error())
		log.Error().Err(err).Msg("failed to publish run output")
		return res, err
	}

	w.metrics.ObserveRun(res.Summary)
	w.finishRun(run, StatusSucceeded, "")
	log.Info().
		Str("run_id", res.Summary.RunID).
		Int("supplier_orders", len(res.SupplierOrders)).
		Int("exceptions", len(res.Exceptions)).
		Msg("procurement run published")
	return res, nil
}

// publish stores results before writing artifacts. ArtifactWriter.Write
// uploads run_summary.json last, so a succeeded summary only appears once
// every other artifact of the run is in place.
func (w *Worker) publish(ctx context.Context, date time.Time, res *procurement.Result) error {
	if w.results != nil {
		if err := w.results.SaveResults(ctx, w.resultSet(date, res.Summary, res)); err != nil {
			return fmt.Errorf("save results: %w", err)
		}
	}
	if w.cache != nil {
		if err := w.cache.InvalidateDate(ctx, date); err != nil {
			w.log.Warn().Err(err).Msg("failed to invalidate result cache")
		}
	}
	if w.artifacts != nil {
		if _, err := w.artifacts.Write(ctx, date, res); err != nil {
			return fmt.Errorf("write artifacts: %w", err)
		}
	}
	return nil
}

// publishFailedSummary overwrites run_summary.json with the failed summary so
// output left by an earlier run of the date is not reported as succeeded.
// Results this run stored before the failure are saved again under the
// failed summary.
func (w *Worker) publishFailedSummary(date time.Time, res *procurement.Result) {
	summary := res.Summary
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if w.artifacts != nil {
		if err := w.artifacts.WriteSummary(ctx, date, summary); err != nil {
			w.log.Warn().Err(err).Msg("failed to publish failed run summary")
		}
	}
	if w.results == nil {
		return
	}
	stored, err := w.results.GetRunSummary(ctx, date)
	if err != nil || stored == nil || stored.RunID != summary.RunID {
		return
	}
	if err := w.results.SaveResults(ctx, w.resultSet(date, summary, res)); err != nil {
		w.log.Warn().Err(err).Msg("failed to store failed run summary")
	}
}

func (w *Worker) resultSet(date time.Time, summary domain.RunSummary, res *procurement.Result) *repository.ResultSet {
	return &repository.ResultSet{
		BusinessDate:   date,
		Summary:        summary,
		Aggregated:     res.Aggregated,
		NetDemand:      res.NetDemand,
		SupplierOrders: res.SupplierOrders,
		Exceptions:     res.Exceptions,
	}
}

// recordStages stores the stage log and feeds stage durations to metrics.
// Tracking failures are logged and never fail the run.
func (w *Worker) recordStages(ctx context.Context, run *PipelineRun, res *procurement.Result) {
	jobs := make([]*StageJob, 0, len(res.Stages))
	completed, rows := 0, 0
	for _, st := range res.Stages {
		finished := st.FinishedAt
		job := &StageJob{
			Stage:       st.Stage,
			Status:      StageStatusCompleted,
			Rows:        st.Rows,
			StartedAt:   st.StartedAt,
			ProcessedAt: &finished,
		}
		if st.Err != "" {
			job.Status = StageStatusFailed
			job.ErrorMessage = st.Err
		} else {
			completed++
		}
		rows += st.Rows
		jobs = append(jobs, job)
		w.metrics.ObserveStage(st.Stage, st.FinishedAt.Sub(st.StartedAt).Seconds())
	}

	run.TotalStages = len(jobs)
	run.CompletedStages = completed
	run.TotalRows = rows
	if err := w.runs.ReplaceStageJobs(ctx, run.ID, jobs); err != nil {
		w.log.Warn().Err(err).Int64("run", run.ID).Msg("failed to record stage jobs")
	}
}

// finishRun persists the final state with a fresh context so cancelled runs
// are still recorded as incomplete.
func (w *Worker) finishRun(run *PipelineRun, status PipelineStatus, errMsg string) {
	if status == "" {
		status = StatusFailed
	}
	now := w.now()
	run.Status = status
	run.ErrorMessage = errMsg
	run.CompletedAt = &now

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.runs.UpdatePipelineRun(ctx, run); err != nil {
		w.log.Error().Err(err).Int64("run", run.ID).Msg("failed to update pipeline run")
	}
}

// getOrCreatePipelineRun gets or creates a pipeline run for the date
func (w *Worker) getOrCreatePipelineRun(ctx context.Context, date time.Time) (*PipelineRun, error) {
	run, err := w.runs.GetPipelineRunByDate(ctx, w.config.Name, date)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	run = &PipelineRun{
		RunUUID:      uuid.NewString(),
		PipelineName: w.config.Name,
		BusinessDate: date,
		Status:       StatusPending,
		StartedAt:    w.now(),
	}
	if err := w.runs.CreatePipelineRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// RetryFailed reruns every failed or incomplete date that still has attempts
// left. Dates are retried in order and a failing date does not stop the rest.
func (w *Worker) RetryFailed(ctx context.Context) (int, error) {
	runs, err := w.runs.GetRetryableRuns(ctx, w.config.Name, w.config.RetryAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to get retryable runs: %w", err)
	}
	if len(runs) == 0 {
		w.log.Info().Msg("no failed runs to retry")
		return 0, nil
	}

	w.log.Info().Int("runs", len(runs)).Msg("retrying failed runs")
	retried := 0
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return retried, err
		}
		retried++
		if _, err := w.ProcessDate(ctx, run.BusinessDate); err != nil {
			w.log.Warn().Err(err).Str("business_date", run.BusinessDate.Format(domain.DateLayout)).Msg("retry did not succeed")
		}
	}
	return retried, nil
}
