// internal/service/po_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/procurement-engine/internal/cache"
	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/pipeline"
	"github.com/andresuchdata/procurement-engine/internal/pipeline/procurement"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

// ErrRunInProgress is returned when a run for the same date is already executing.
var ErrRunInProgress = errors.New("run already in progress for date")

// DateProcessor runs the pipeline for one business date.
type DateProcessor interface {
	ProcessDate(ctx context.Context, businessDate time.Time) (*procurement.Result, error)
}

// POService serves published purchase-order results and triggers runs.
type POService struct {
	results      repository.ResultRepository
	cache        cache.ResultsCache
	runs         pipeline.RunTracker
	processor    DateProcessor
	pipelineName string

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewPOService(results repository.ResultRepository, cacheImpl cache.ResultsCache, runs pipeline.RunTracker, processor DateProcessor, pipelineName string) *POService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopResultsCache()
	}
	return &POService{
		results:      results,
		cache:        cacheImpl,
		runs:         runs,
		processor:    processor,
		pipelineName: pipelineName,
		inflight:     make(map[string]struct{}),
	}
}

func (s *POService) GetSummary(ctx context.Context, businessDate time.Time) (*domain.RunSummary, error) {
	date := domain.TruncateDate(businessDate)
	if summary, ok, err := s.cache.GetSummary(ctx, date); err == nil && ok {
		return summary, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("po: cache get summary failed")
	}

	summary, err := s.results.GetRunSummary(ctx, date)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetSummary(ctx, date, summary); err != nil {
		log.Warn().Err(err).Msg("po: cache set summary failed")
	}
	return summary, nil
}

func (s *POService) GetSupplierOrders(ctx context.Context, businessDate time.Time, filter repository.OrderFilter) (*domain.SupplierOrderPage, error) {
	date := domain.TruncateDate(businessDate)
	filter = filter.Normalize()
	if page, ok, err := s.cache.GetSupplierOrders(ctx, date, filter); err == nil && ok {
		return page, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("po: cache get supplier orders failed")
	}

	items, total, err := s.results.GetSupplierOrders(ctx, date, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.SupplierOrderLine{}
	}
	page := &domain.SupplierOrderPage{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}

	if err := s.cache.SetSupplierOrders(ctx, date, filter, page); err != nil {
		log.Warn().Err(err).Msg("po: cache set supplier orders failed")
	}
	return page, nil
}

func (s *POService) GetNetDemand(ctx context.Context, businessDate time.Time, warehouseCode string) ([]domain.NetDemand, error) {
	return s.results.GetNetDemand(ctx, domain.TruncateDate(businessDate), warehouseCode)
}

func (s *POService) GetExceptions(ctx context.Context, businessDate time.Time, stage string) ([]domain.Exception, error) {
	return s.results.GetExceptions(ctx, domain.TruncateDate(businessDate), stage)
}

func (s *POService) GetAvailableDates(ctx context.Context, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 90
	}
	return s.results.GetAvailableDates(ctx, limit)
}

// GetRecentRuns lists the latest runs. A non-empty status keeps only the runs
// among them that ended in that state.
func (s *POService) GetRecentRuns(ctx context.Context, limit int, status domain.RunStatus) ([]*pipeline.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.runs.GetRecentRuns(ctx, s.pipelineName, limit)
	if err != nil || status == "" {
		return runs, err
	}

	filtered := make([]*pipeline.PipelineRun, 0, len(runs))
	for _, run := range runs {
		if run.Status == pipeline.PipelineStatus(status) {
			filtered = append(filtered, run)
		}
	}
	return filtered, nil
}

// GetRun returns the tracked run of a date with its stage log.
func (s *POService) GetRun(ctx context.Context, businessDate time.Time) (*pipeline.PipelineRun, []*pipeline.StageJob, error) {
	run, err := s.runs.GetPipelineRunByDate(ctx, s.pipelineName, domain.TruncateDate(businessDate))
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, repository.ErrNotFound
	}
	jobs, err := s.runs.GetStageJobsByRunID(ctx, run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, jobs, nil
}

// RunDate executes the pipeline for a date. Only one run per date may execute
// at a time.
func (s *POService) RunDate(ctx context.Context, businessDate time.Time) (*domain.RunSummary, error) {
	date := domain.TruncateDate(businessDate)
	if date.IsZero() {
		return nil, fmt.Errorf("business date is required")
	}
	key := date.Format(domain.DateLayout)

	s.mu.Lock()
	if _, busy := s.inflight[key]; busy {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.inflight[key] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}()

	res, err := s.processor.ProcessDate(ctx, date)
	if res == nil {
		return nil, err
	}
	summary := res.Summary
	return &summary, err
}
