// internal/repository/po_repository.go
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

// ResultSet is everything a run produced for one business date.
type ResultSet struct {
	BusinessDate   time.Time
	Summary        domain.RunSummary
	Aggregated     []domain.AggregatedOrderLine
	NetDemand      []domain.NetDemand
	SupplierOrders []domain.SupplierOrderLine
	Exceptions     []domain.Exception
}

// ResultRepository persists run output. SaveResults replaces any rows already
// stored for the same business date.
type ResultRepository interface {
	SaveResults(ctx context.Context, results *ResultSet) error
	GetSupplierOrders(ctx context.Context, businessDate time.Time, filter OrderFilter) ([]domain.SupplierOrderLine, int, error)
	GetNetDemand(ctx context.Context, businessDate time.Time, warehouseCode string) ([]domain.NetDemand, error)
	GetExceptions(ctx context.Context, businessDate time.Time, stage string) ([]domain.Exception, error)
	GetRunSummary(ctx context.Context, businessDate time.Time) (*domain.RunSummary, error)
	GetAvailableDates(ctx context.Context, limit int) ([]time.Time, error)
}

// OrderFilter narrows the supplier order listing.
type OrderFilter struct {
	WarehouseCode string
	SupplierCode  string
	Page          int
	PageSize      int
}

// Normalize applies default paging.
func (f OrderFilter) Normalize() OrderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 500 {
		f.PageSize = 50
	}
	return f
}

// Offset returns the row offset of the current page.
func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
