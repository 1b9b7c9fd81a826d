// Package procurement nets order demand against inventory and safety stock
// and turns the remaining requirement into supplier purchase-order lines.
package procurement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/masterdata"
	"github.com/andresuchdata/procurement-engine/internal/repository"
	"github.com/andresuchdata/procurement-engine/pkg/logger"
)

// Sources are the read-only collaborators of a run. Stock is optional.
type Sources struct {
	MasterData repository.MasterDataRepository
	Orders     repository.OrderRepository
	Snapshots  repository.SnapshotRepository
	Stock      repository.StockRepository
}

type Options struct {
	DemandWindowDays   int
	MaxSnapshotAgeDays int
	Workers            int
}

func DefaultOptions() Options {
	return Options{
		DemandWindowDays: 1,
		Workers:          4,
	}
}

// StageTiming records one executed stage.
type StageTiming struct {
	Stage      string
	StartedAt  time.Time
	FinishedAt time.Time
	Rows       int
	Err        string
}

// Result carries every dataset produced by a run plus its summary.
type Result struct {
	Summary        domain.RunSummary
	Aggregated     []domain.AggregatedOrderLine
	NetDemand      []domain.NetDemand
	SupplierOrders []domain.SupplierOrderLine
	Exceptions     []domain.Exception
	Stages         []StageTiming
}

type Engine struct {
	sources Sources
	opts    Options
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
}

func NewEngine(sources Sources, opts Options) *Engine {
	if opts.DemandWindowDays < 1 {
		opts.DemandWindowDays = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{
		sources: sources,
		opts:    opts,
		log:     logger.Log.With().Str("component", "procurement").Logger(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// WithClock overrides the time source used for run timestamps.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

type stageRecorder struct {
	mu     sync.Mutex
	now    func() time.Time
	stages []StageTiming
}

func (r *stageRecorder) run(stage string, fn func() (int, error)) error {
	start := r.now()
	rows, err := fn()
	st := StageTiming{Stage: stage, StartedAt: start, FinishedAt: r.now(), Rows: rows}
	if err != nil {
		st.Err = err.Error()
	}
	r.mu.Lock()
	r.stages = append(r.stages, st)
	r.mu.Unlock()
	return err
}

// Run executes all stages for one business date. A structural failure returns
// a *StructuralError, cancellation returns the context error; in both cases the
// returned Result still carries a summary describing the outcome.
func (e *Engine) Run(ctx context.Context, businessDate time.Time) (*Result, error) {
	in := SummaryInput{
		RunID:        e.newID(),
		BusinessDate: businessDate,
		StartedAt:    e.now(),
	}
	rec := &stageRecorder{now: e.now}
	log := e.log.With().Str("run_id", in.RunID).Logger()

	finish := func(res *Result, err error) (*Result, error) {
		in.FinishedAt = e.now()
		in.Err = err
		in.Cancelled = err != nil && ctx.Err() != nil && !IsStructural(err)
		res.Summary = BuildSummary(in)
		res.Exceptions = res.Summary.Exceptions
		res.Stages = rec.stages

		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Str("business_date", res.Summary.BusinessDate.Format(domain.DateLayout)).
			Str("status", string(res.Summary.Status)).
			Int("raw_lines", res.Summary.RawOrderLines).
			Int("net_demand_rows", res.Summary.NetDemandRows).
			Int("supplier_orders", res.Summary.SupplierOrderLines).
			Int("exceptions", len(res.Summary.Exceptions)).
			Dur("took", res.Summary.Duration()).
			Msg("procurement run finished")
		return res, err
	}
	res := &Result{}

	if businessDate.IsZero() {
		return finish(res, structural("input", ErrMissingBusinessDate))
	}
	date := domain.TruncateDate(businessDate)
	log = log.With().Str("business_date", date.Format(domain.DateLayout)).Logger()

	var md *masterdata.Snapshot
	err := rec.run(domain.StageMasterData, func() (int, error) {
		records, err := e.sources.MasterData.LoadMasterData(ctx)
		if err != nil {
			return 0, structural(domain.StageMasterData, fmt.Errorf("load master data: %w", err))
		}
		if records.Empty() {
			return 0, structural(domain.StageMasterData, ErrEmptyMasterData)
		}
		var exceptions []domain.Exception
		md, exceptions = masterdata.Build(records)
		in.Exceptions = append(in.Exceptions, exceptions...)
		stats := md.Stats()
		log.Debug().
			Int("products", stats.Products).
			Int("warehouses", stats.Warehouses).
			Int("suppliers", stats.Suppliers).
			Int("terms", stats.Terms).
			Msg("master data loaded")
		return stats.Products, nil
	})
	if err != nil {
		return finish(res, err)
	}
	if err := ctx.Err(); err != nil {
		return finish(res, err)
	}

	var inv *InventoryIndex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rec.run(domain.StageAggregation, func() (int, error) {
			lines, err := e.sources.Orders.ListOrderLines(gctx, date)
			if err != nil {
				if gctx.Err() != nil {
					return 0, gctx.Err()
				}
				return 0, structural(domain.StageAggregation, fmt.Errorf("list order lines: %w", err))
			}
			in.Aggregation = AggregateOrders(md, lines, NewWindow(date, e.opts.DemandWindowDays))
			return len(in.Aggregation.Lines), nil
		})
	})
	g.Go(func() error {
		return rec.run(domain.StageInventory, func() (int, error) {
			snapshots, err := e.sources.Snapshots.ListSnapshots(gctx, date)
			if err != nil && !errors.Is(err, repository.ErrInputNotFound) {
				if gctx.Err() != nil {
					return 0, gctx.Err()
				}
				return 0, structural(domain.StageInventory, fmt.Errorf("list snapshots: %w", err))
			}
			var stock []domain.StockLevel
			if e.sources.Stock != nil {
				stock, err = e.sources.Stock.ListStockLevels(gctx, date)
				if err != nil && !errors.Is(err, repository.ErrInputNotFound) {
					if gctx.Err() != nil {
						return 0, gctx.Err()
					}
					return 0, structural(domain.StageInventory, fmt.Errorf("list stock levels: %w", err))
				}
			}
			inv = ResolveInventory(md, snapshots, stock, date, e.opts.MaxSnapshotAgeDays)
			return inv.Len(), nil
		})
	})
	if err := g.Wait(); err != nil {
		return finish(res, err)
	}
	in.Exceptions = append(in.Exceptions, in.Aggregation.Exceptions...)
	in.Exceptions = append(in.Exceptions, inv.Exceptions...)
	res.Aggregated = in.Aggregation.Lines

	if err := ctx.Err(); err != nil {
		return finish(res, err)
	}
	_ = rec.run(domain.StageNetDemand, func() (int, error) {
		in.NetDemand = CalculateNetDemand(md, in.Aggregation, inv, date)
		return len(in.NetDemand.Rows), nil
	})
	in.Exceptions = append(in.Exceptions, in.NetDemand.Exceptions...)
	res.NetDemand = in.NetDemand.Rows

	if err := ctx.Err(); err != nil {
		return finish(res, err)
	}
	err = rec.run(domain.StageSupplierOrders, func() (int, error) {
		orders, err := GenerateSupplierOrders(ctx, md, in.NetDemand.Rows, date, e.opts.Workers)
		if err != nil {
			return 0, err
		}
		in.SupplierOrders = orders
		return len(orders.Lines), nil
	})
	if err != nil {
		return finish(res, err)
	}
	in.Exceptions = append(in.Exceptions, in.SupplierOrders.Exceptions...)
	res.SupplierOrders = in.SupplierOrders.Lines

	return finish(res, nil)
}
