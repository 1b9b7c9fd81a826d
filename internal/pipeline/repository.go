package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RunTracker persists pipeline runs and their stage log.
type RunTracker interface {
	CreatePipelineRun(ctx context.Context, run *PipelineRun) error
	UpdatePipelineRun(ctx context.Context, run *PipelineRun) error
	GetPipelineRunByDate(ctx context.Context, pipelineName string, date time.Time) (*PipelineRun, error)
	GetRecentRuns(ctx context.Context, pipelineName string, limit int) ([]*PipelineRun, error)
	GetRetryableRuns(ctx context.Context, pipelineName string, maxAttempts int) ([]*PipelineRun, error)
	ReplaceStageJobs(ctx context.Context, runID int64, jobs []*StageJob) error
	GetStageJobsByRunID(ctx context.Context, runID int64) ([]*StageJob, error)
}

// Repository handles database operations for pipeline tracking
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new pipeline repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ RunTracker = (*Repository)(nil)

const runColumns = `id, run_uuid, pipeline_name, business_date, status, total_stages,
		       completed_stages, total_rows, attempts, started_at, completed_at, error_message`

func scanRun(row interface{ Scan(...any) error }) (*PipelineRun, error) {
	run := &PipelineRun{}
	err := row.Scan(
		&run.ID, &run.RunUUID, &run.PipelineName, &run.BusinessDate, &run.Status,
		&run.TotalStages, &run.CompletedStages, &run.TotalRows, &run.Attempts,
		&run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CreatePipelineRun creates a new pipeline run record
func (r *Repository) CreatePipelineRun(ctx context.Context, run *PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (
			run_uuid, pipeline_name, business_date, status, total_stages,
			completed_stages, total_rows, attempts, started_at, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	return r.db.QueryRowContext(
		ctx, query,
		run.RunUUID, run.PipelineName, run.BusinessDate, run.Status, run.TotalStages,
		run.CompletedStages, run.TotalRows, run.Attempts, run.StartedAt, run.ErrorMessage,
	).Scan(&run.ID)
}

// UpdatePipelineRun updates an existing pipeline run
func (r *Repository) UpdatePipelineRun(ctx context.Context, run *PipelineRun) error {
	query := `
		UPDATE pipeline_runs
		SET run_uuid = $1, status = $2, total_stages = $3, completed_stages = $4,
		    total_rows = $5, attempts = $6, started_at = $7, completed_at = $8,
		    error_message = $9
		WHERE id = $10
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.RunUUID, run.Status, run.TotalStages, run.CompletedStages,
		run.TotalRows, run.Attempts, run.StartedAt, run.CompletedAt,
		run.ErrorMessage, run.ID,
	)

	return err
}

// GetPipelineRunByDate retrieves the run for a business date, or nil if none exists
func (r *Repository) GetPipelineRunByDate(ctx context.Context, pipelineName string, date time.Time) (*PipelineRun, error) {
	query := `SELECT ` + runColumns + `
		FROM pipeline_runs
		WHERE pipeline_name = $1 AND business_date = $2
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, pipelineName, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// GetRecentRuns lists the latest runs ordered by business date
func (r *Repository) GetRecentRuns(ctx context.Context, pipelineName string, limit int) ([]*PipelineRun, error) {
	query := `SELECT ` + runColumns + `
		FROM pipeline_runs
		WHERE pipeline_name = $1
		ORDER BY business_date DESC
		LIMIT $2
	`
	return r.queryRuns(ctx, query, pipelineName, limit)
}

// GetRetryableRuns returns failed or incomplete runs that have attempts left
func (r *Repository) GetRetryableRuns(ctx context.Context, pipelineName string, maxAttempts int) ([]*PipelineRun, error) {
	query := `SELECT ` + runColumns + `
		FROM pipeline_runs
		WHERE pipeline_name = $1
		  AND status IN ($2, $3)
		  AND attempts < $4
		ORDER BY business_date
	`
	return r.queryRuns(ctx, query, pipelineName, StatusFailed, StatusIncomplete, maxAttempts)
}

func (r *Repository) queryRuns(ctx context.Context, query string, args ...any) ([]*PipelineRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ReplaceStageJobs swaps the stage log of a run in one transaction
func (r *Repository) ReplaceStageJobs(ctx context.Context, runID int64, jobs []*StageJob) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pipeline_stage_jobs WHERE pipeline_run_id = $1`, runID); err != nil {
		return err
	}

	query := `
		INSERT INTO pipeline_stage_jobs (
			pipeline_run_id, stage, status, row_count, error_message, started_at, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	for _, job := range jobs {
		job.PipelineRunID = runID
		if err := tx.QueryRowContext(
			ctx, query,
			job.PipelineRunID, job.Stage, job.Status, job.Rows,
			job.ErrorMessage, job.StartedAt, job.ProcessedAt,
		).Scan(&job.ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetStageJobsByRunID retrieves the stage log for a pipeline run
func (r *Repository) GetStageJobsByRunID(ctx context.Context, runID int64) ([]*StageJob, error) {
	query := `
		SELECT id, pipeline_run_id, stage, status, row_count,
		       error_message, started_at, processed_at
		FROM pipeline_stage_jobs
		WHERE pipeline_run_id = $1
		ORDER BY started_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*StageJob
	for rows.Next() {
		job := &StageJob{}
		err := rows.Scan(
			&job.ID, &job.PipelineRunID, &job.Stage, &job.Status, &job.Rows,
			&job.ErrorMessage, &job.StartedAt, &job.ProcessedAt,
		)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// GetPipelineStats retrieves statistics for a pipeline
func (r *Repository) GetPipelineStats(ctx context.Context, pipelineName string, since time.Time) (*PipelineMetrics, error) {
	query := `
		SELECT
			COUNT(*) AS runs_processed,
			COALESCE(SUM(total_rows), 0) AS rows_processed,
			COUNT(CASE WHEN status = $2 THEN 1 END) AS error_count,
			MAX(completed_at) AS last_processed_at
		FROM pipeline_runs
		WHERE pipeline_name = $1
		  AND started_at >= $3
	`

	metrics := &PipelineMetrics{}
	err := r.db.QueryRowContext(ctx, query, pipelineName, StatusFailed, since).Scan(
		&metrics.RunsProcessed,
		&metrics.RowsProcessed,
		&metrics.ErrorCount,
		&metrics.LastProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &PipelineMetrics{}, nil
	}

	return metrics, err
}
