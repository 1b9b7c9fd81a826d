package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

// MemoryTracker is a RunTracker for local runs without a database.
type MemoryTracker struct {
	mu     sync.Mutex
	nextID int64
	runs   map[int64]*PipelineRun
	jobs   map[int64][]*StageJob
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		runs: make(map[int64]*PipelineRun),
		jobs: make(map[int64][]*StageJob),
	}
}

var _ RunTracker = (*MemoryTracker)(nil)

func (m *MemoryTracker) CreatePipelineRun(ctx context.Context, run *PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	run.ID = m.nextID
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MemoryTracker) UpdatePipelineRun(ctx context.Context, run *PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MemoryTracker) GetPipelineRunByDate(ctx context.Context, pipelineName string, date time.Time) (*PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, run := range m.runs {
		if run.PipelineName == pipelineName && domain.TruncateDate(run.BusinessDate).Equal(domain.TruncateDate(date)) {
			cp := *run
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryTracker) sortedRuns(pipelineName string, keep func(*PipelineRun) bool) []*PipelineRun {
	var out []*PipelineRun
	for _, run := range m.runs {
		if run.PipelineName == pipelineName && keep(run) {
			cp := *run
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusinessDate.Before(out[j].BusinessDate) })
	return out
}

func (m *MemoryTracker) GetRecentRuns(ctx context.Context, pipelineName string, limit int) ([]*PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runs := m.sortedRuns(pipelineName, func(*PipelineRun) bool { return true })
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MemoryTracker) GetRetryableRuns(ctx context.Context, pipelineName string, maxAttempts int) ([]*PipelineRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedRuns(pipelineName, func(run *PipelineRun) bool {
		return (run.Status == StatusFailed || run.Status == StatusIncomplete) && run.Attempts < maxAttempts
	}), nil
}

func (m *MemoryTracker) ReplaceStageJobs(ctx context.Context, runID int64, jobs []*StageJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]*StageJob, len(jobs))
	for i, job := range jobs {
		job.PipelineRunID = runID
		m.nextID++
		job.ID = m.nextID
		cp := *job
		stored[i] = &cp
	}
	m.jobs[runID] = stored
	return nil
}

func (m *MemoryTracker) GetStageJobsByRunID(ctx context.Context, runID int64) ([]*StageJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*StageJob, 0, len(m.jobs[runID]))
	for _, job := range m.jobs[runID] {
		cp := *job
		out = append(out, &cp)
	}
	return out, nil
}
