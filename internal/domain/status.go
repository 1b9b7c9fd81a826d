package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus is the terminal state of an engine run.
type RunStatus string

const (
	RunSucceeded  RunStatus = "succeeded"
	RunFailed     RunStatus = "failed"
	RunIncomplete RunStatus = "incomplete"
)

// POStatusPending is the status every freshly generated purchase order line gets.
const POStatusPending = "PENDING"

// ParseRunStatus returns the run status for a given label (case-insensitive).
func ParseRunStatus(label string) (RunStatus, bool) {
	switch RunStatus(strings.ToLower(label)) {
	case RunSucceeded:
		return RunSucceeded, true
	case RunFailed:
		return RunFailed, true
	case RunIncomplete:
		return RunIncomplete, true
	}
	return "", false
}

// ExceptionCount is the number of exceptions per (stage, reason).
type ExceptionCount struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// RunSummary describes the outcome of one engine run for a business date.
type RunSummary struct {
	RunID               string                     `json:"run_id"`
	BusinessDate        time.Time                  `json:"business_date"`
	Status              RunStatus                  `json:"status"`
	StartedAt           time.Time                  `json:"started_at"`
	FinishedAt          time.Time                  `json:"finished_at"`
	RawOrderLines       int                        `json:"raw_order_lines"`
	AggregatedLines     int                        `json:"aggregated_lines"`
	EvaluatedKeys       int                        `json:"evaluated_keys"`
	NetDemandRows       int                        `json:"net_demand_rows"`
	TotalNetRequirement int64                      `json:"total_net_requirement"`
	SupplierOrderLines  int                        `json:"supplier_order_lines"`
	TotalCostByCurrency map[string]decimal.Decimal `json:"total_cost_by_currency"`
	ExceptionCounts     []ExceptionCount           `json:"exception_counts"`
	Exceptions          []Exception                `json:"exceptions"`
	FailureReason       string                     `json:"failure_reason,omitempty"`
}

// Duration returns how long the run took.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
