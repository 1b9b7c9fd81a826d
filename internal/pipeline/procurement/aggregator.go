package procurement

import (
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/masterdata"
)

// Window is the inclusive range of order dates counted as demand for a run.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window of days ending on the business date. Values
// below one are treated as a single day.
func NewWindow(businessDate time.Time, days int) Window {
	if days < 1 {
		days = 1
	}
	end := domain.TruncateDate(businessDate)
	return Window{Start: end.AddDate(0, 0, -(days - 1)), End: end}
}

func (w Window) Contains(t time.Time) bool {
	d := domain.TruncateDate(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// AggregationResult is the output of the order aggregation stage.
type AggregationResult struct {
	Lines      []domain.AggregatedOrderLine
	RawCount   int
	Accepted   int
	Exceptions []domain.Exception
}

// Requested sums aggregated quantity per (warehouse, SKU) across the window.
func (r AggregationResult) Requested() map[domain.StockKey]int64 {
	out := make(map[domain.StockKey]int64, len(r.Lines))
	for _, l := range r.Lines {
		out[l.Key()] += l.TotalQuantity
	}
	return out
}

type aggKey struct {
	key  domain.StockKey
	date time.Time
}

type lineIdentity struct {
	orderID string
	key     domain.StockKey
}

// AggregateOrders validates raw order lines against master data and sums the
// accepted ones per (warehouse, SKU, order date). Rejected lines become
// exceptions; nothing here aborts the run.
func AggregateOrders(md *masterdata.Snapshot, lines []domain.RawOrderLine, window Window) AggregationResult {
	result := AggregationResult{RawCount: len(lines)}
	groups := make(map[aggKey]*domain.AggregatedOrderLine)
	seen := make(map[lineIdentity]struct{}, len(lines))

	for _, line := range lines {
		key := domain.StockKey{WarehouseCode: line.WarehouseCode, SKUCode: line.SKUCode}
		reject := func(reason, detail string) {
			result.Exceptions = append(result.Exceptions, domain.Exception{
				Stage:         domain.StageAggregation,
				WarehouseCode: line.WarehouseCode,
				SKUCode:       line.SKUCode,
				Reference:     line.OrderID,
				Reason:        reason,
				Detail:        detail,
			})
		}

		product, ok := md.Product(line.SKUCode)
		if !ok {
			reject(domain.ReasonUnknownSKU, "sku not in product master")
			continue
		}
		warehouse, ok := md.Warehouse(line.WarehouseCode)
		if !ok {
			reject(domain.ReasonUnknownWarehouse, "warehouse not in warehouse master")
			continue
		}
		if !product.Active {
			reject(domain.ReasonInactiveSKU, "product is inactive")
			continue
		}
		if !warehouse.Active {
			reject(domain.ReasonInactiveWarehouse, "warehouse is inactive")
			continue
		}
		if line.Quantity <= 0 {
			reject(domain.ReasonInvalidQuantity, fmt.Sprintf("quantity must be positive, got %d", line.Quantity))
			continue
		}
		if line.OrderDate.IsZero() {
			reject(domain.ReasonMissingOrderDate, "order date is missing")
			continue
		}
		if !window.Contains(line.OrderDate) {
			reject(domain.ReasonOutsideWindow, fmt.Sprintf("order date %s outside %s..%s",
				line.OrderDate.Format(domain.DateLayout), window.Start.Format(domain.DateLayout), window.End.Format(domain.DateLayout)))
			continue
		}
		if line.OrderID != "" {
			id := lineIdentity{orderID: line.OrderID, key: key}
			if _, dup := seen[id]; dup {
				reject(domain.ReasonDuplicateOrder, "order line already counted")
				continue
			}
			seen[id] = struct{}{}
		}

		date := domain.TruncateDate(line.OrderDate)
		g := groups[aggKey{key: key, date: date}]
		if g == nil {
			g = &domain.AggregatedOrderLine{
				WarehouseCode: key.WarehouseCode,
				SKUCode:       key.SKUCode,
				OrderDate:     date,
				ProductName:   product.Name,
				Category:      product.Category,
				UOM:           product.UOM,
				WarehouseName: warehouse.Name,
				City:          warehouse.City,
			}
			groups[aggKey{key: key, date: date}] = g
		}
		g.TotalQuantity += line.Quantity
		g.OrderCount++
		result.Accepted++
	}

	result.Lines = make([]domain.AggregatedOrderLine, 0, len(groups))
	for _, g := range groups {
		result.Lines = append(result.Lines, *g)
	}
	sort.Slice(result.Lines, func(i, j int) bool {
		a, b := result.Lines[i], result.Lines[j]
		if a.Key() != b.Key() {
			return a.Key().Less(b.Key())
		}
		return a.OrderDate.Before(b.OrderDate)
	})
	domain.SortExceptions(result.Exceptions)

	return result
}
