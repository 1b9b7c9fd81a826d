package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/pipeline/procurement"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

// RetryPolicy retries transient source failures with exponential backoff.
// Missing input and cancellation are returned immediately.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
	timer    backoff.Timer
}

func NewRetryPolicy(attempts int, interval time.Duration) RetryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return RetryPolicy{Attempts: attempts, Backoff: interval}
}

func retryable(err error) bool {
	return !errors.Is(err, repository.ErrInputNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// schedule doubles the wait after every failed attempt, without jitter so
// reruns wait the same way.
func (p RetryPolicy) schedule(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Backoff
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = time.Hour
	exp.MaxElapsedTime = 0

	retries := 0
	if p.Attempts > 1 {
		retries = p.Attempts - 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

func (p RetryPolicy) do(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("backoff", wait).Msg("source call failed, retrying")
	}
	return backoff.RetryNotifyWithTimer(operation, p.schedule(ctx), notify, p.timer)
}

// WithRetry wraps every source with the policy.
func WithRetry(src procurement.Sources, policy RetryPolicy) procurement.Sources {
	out := procurement.Sources{
		MasterData: retryingMasterData{src.MasterData, policy},
		Orders:     retryingOrders{src.Orders, policy},
		Snapshots:  retryingSnapshots{src.Snapshots, policy},
	}
	if src.Stock != nil {
		out.Stock = retryingStock{src.Stock, policy}
	}
	return out
}

type retryingMasterData struct {
	next   repository.MasterDataRepository
	policy RetryPolicy
}

func (r retryingMasterData) LoadMasterData(ctx context.Context) (out domain.MasterDataRecords, err error) {
	err = r.policy.do(ctx, "load_master_data", func() error {
		out, err = r.next.LoadMasterData(ctx)
		return err
	})
	return out, err
}

type retryingOrders struct {
	next   repository.OrderRepository
	policy RetryPolicy
}

func (r retryingOrders) ListOrderLines(ctx context.Context, businessDate time.Time) (out []domain.RawOrderLine, err error) {
	err = r.policy.do(ctx, "list_order_lines", func() error {
		out, err = r.next.ListOrderLines(ctx, businessDate)
		return err
	})
	return out, err
}

type retryingSnapshots struct {
	next   repository.SnapshotRepository
	policy RetryPolicy
}

func (r retryingSnapshots) ListSnapshots(ctx context.Context, businessDate time.Time) (out []domain.InventorySnapshot, err error) {
	err = r.policy.do(ctx, "list_snapshots", func() error {
		out, err = r.next.ListSnapshots(ctx, businessDate)
		return err
	})
	return out, err
}

type retryingStock struct {
	next   repository.StockRepository
	policy RetryPolicy
}

func (r retryingStock) ListStockLevels(ctx context.Context, businessDate time.Time) (out []domain.StockLevel, err error) {
	err = r.policy.do(ctx, "list_stock_levels", func() error {
		out, err = r.next.ListStockLevels(ctx, businessDate)
		return err
	})
	return out, err
}
