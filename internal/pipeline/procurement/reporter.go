package procurement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

// SummaryInput gathers stage outputs for the reporter. Any stage that did not
// run is left zero.
type SummaryInput struct {
	RunID          string
	BusinessDate   time.Time
	StartedAt      time.Time
	FinishedAt     time.Time
	Aggregation    AggregationResult
	NetDemand      NetDemandResult
	SupplierOrders SupplierOrderResult
	Exceptions     []domain.Exception
	Err            error
	Cancelled      bool
}

// BuildSummary produces the run summary. It has no side effects.
func BuildSummary(in SummaryInput) domain.RunSummary {
	exceptions := make([]domain.Exception, len(in.Exceptions))
	copy(exceptions, in.Exceptions)
	domain.SortExceptions(exceptions)

	totals := in.SupplierOrders.TotalCostByCurrency()
	if totals == nil {
		totals = map[string]decimal.Decimal{}
	}

	summary := domain.RunSummary{
		RunID:               in.RunID,
		BusinessDate:        domain.TruncateDate(in.BusinessDate),
		Status:              domain.RunSucceeded,
		StartedAt:           in.StartedAt,
		FinishedAt:          in.FinishedAt,
		RawOrderLines:       in.Aggregation.RawCount,
		AggregatedLines:     len(in.Aggregation.Lines),
		EvaluatedKeys:       in.NetDemand.EvaluatedKeys,
		NetDemandRows:       len(in.NetDemand.Rows),
		TotalNetRequirement: in.NetDemand.TotalRequirement(),
		SupplierOrderLines:  len(in.SupplierOrders.Lines),
		TotalCostByCurrency: totals,
		ExceptionCounts:     CountExceptions(exceptions),
		Exceptions:          exceptions,
	}

	switch {
	case in.Cancelled:
		summary.Status = domain.RunIncomplete
		if in.Err != nil {
			summary.FailureReason = in.Err.Error()
		}
	case in.Err != nil:
		summary.Status = domain.RunFailed
		summary.FailureReason = in.Err.Error()
	}

	return summary
}

// CountExceptions groups exceptions by stage and reason.
func CountExceptions(exceptions []domain.Exception) []domain.ExceptionCount {
	type bucket struct{ stage, reason string }
	counts := make(map[bucket]int)
	for _, ex := range exceptions {
		counts[bucket{ex.Stage, ex.Reason}]++
	}

	out := make([]domain.ExceptionCount, 0, len(counts))
	for b, n := range counts {
		out = append(out, domain.ExceptionCount{Stage: b.stage, Reason: b.reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stage != out[j].Stage {
			return out[i].Stage < out[j].Stage
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}
