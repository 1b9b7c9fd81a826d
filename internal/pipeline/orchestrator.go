package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

// Orchestrator coordinates running the pipeline over a set of business dates.
type Orchestrator struct {
	worker *Worker
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(worker *Worker) *Orchestrator {
	return &Orchestrator{worker: worker}
}

// DateOutcome is the result of one date in a batch.
type DateOutcome struct {
	BusinessDate time.Time
	Status       domain.RunStatus
	Err          error
}

// Run processes the given dates oldest first, each at most once. A failing
// date is recorded and the batch moves on; the joined errors are returned.
func (o *Orchestrator) Run(ctx context.Context, dates []time.Time) ([]DateOutcome, error) {
	dates = uniqueDates(dates)
	outcomes := make([]DateOutcome, 0, len(dates))
	var errs []error

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := o.worker.ProcessDate(ctx, date)
		outcome := DateOutcome{BusinessDate: date, Err: err}
		if res != nil {
			outcome.Status = res.Summary.Status
		}
		if err != nil {
			if outcome.Status == "" {
				outcome.Status = domain.RunFailed
			}
			errs = append(errs, fmt.Errorf("%s: %w", date.Format(domain.DateLayout), err))
		}
		outcomes = append(outcomes, outcome)
	}

	log.Info().
		Int("dates", len(dates)).
		Int("processed", len(outcomes)).
		Int("failed", len(errs)).
		Msg("batch finished")
	return outcomes, errors.Join(errs...)
}

// RunRange processes every date from..to inclusive.
func (o *Orchestrator) RunRange(ctx context.Context, from, to time.Time) ([]DateOutcome, error) {
	from, to = domain.TruncateDate(from), domain.TruncateDate(to)
	if to.Before(from) {
		return nil, fmt.Errorf("invalid range: %s is before %s", to.Format(domain.DateLayout), from.Format(domain.DateLayout))
	}
	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return o.Run(ctx, dates)
}

func uniqueDates(dates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = domain.TruncateDate(d)
		if d.IsZero() {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
