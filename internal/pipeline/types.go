package pipeline

import (
	"time"
)

// PipelineConfig holds configuration for a pipeline instance
type PipelineConfig struct {
	Name               string
	WorkerCount        int           // Concurrent supplier selection workers
	DemandWindowDays   int           // Days of order history counted as demand
	MaxSnapshotAgeDays int           // Snapshots older than this are flagged, 0 disables
	OutputPrefix       string        // Object storage prefix for artifacts
	RetryAttempts      int           // Attempts per source call on transient failure
	RetryBackoff       time.Duration // Backoff before the first retry, doubled each time
}

// DefaultPipelineConfig returns sensible defaults
func DefaultPipelineConfig(name string) PipelineConfig {
	return PipelineConfig{
		Name:             name,
		WorkerCount:      4,
		DemandWindowDays: 1,
		OutputPrefix:     "output/" + name,
		RetryAttempts:    3,
		RetryBackoff:     2 * time.Second,
	}
}

// PipelineStatus represents the current state of a pipeline run
type PipelineStatus string

const (
	StatusPending    PipelineStatus = "pending"
	StatusProcessing PipelineStatus = "processing"
	StatusSucceeded  PipelineStatus = "succeeded"
	StatusFailed     PipelineStatus = "failed"
	StatusIncomplete PipelineStatus = "incomplete"
)

// StageJobStatus represents the state of a single stage execution
type StageJobStatus string

const (
	StageStatusCompleted StageJobStatus = "completed"
	StageStatusFailed    StageJobStatus = "failed"
)

// PipelineRun tracks a single execution of a pipeline for a business date
type PipelineRun struct {
	ID              int64          `json:"id"`
	RunUUID         string         `json:"run_id"`
	PipelineName    string         `json:"pipeline_name"`
	BusinessDate    time.Time      `json:"business_date"`
	Status          PipelineStatus `json:"status"`
	TotalStages     int            `json:"total_stages"`
	CompletedStages int            `json:"completed_stages"`
	TotalRows       int            `json:"total_rows"`
	Attempts        int            `json:"attempts"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
}

// StageJob is the execution log entry of one engine stage within a run
type StageJob struct {
	ID            int64          `json:"id"`
	PipelineRunID int64          `json:"pipeline_run_id"`
	Stage         string         `json:"stage"`
	Status        StageJobStatus `json:"status"`
	Rows          int            `json:"rows"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
}

// PipelineMetrics holds metrics for monitoring
type PipelineMetrics struct {
	RunsProcessed   int64
	RowsProcessed   int64
	ErrorCount      int64
	LastProcessedAt *time.Time
}
