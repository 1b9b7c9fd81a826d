package procurement

import (
	"fmt"
	"sort"
	"time"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/masterdata"
)

// NetDemandResult holds the positive requirements for a business date.
type NetDemandResult struct {
	Rows          []domain.NetDemand
	EvaluatedKeys int
	Exceptions    []domain.Exception
}

// TotalRequirement sums net requirement across all rows.
func (r NetDemandResult) TotalRequirement() int64 {
	var total int64
	for _, row := range r.Rows {
		total += row.NetRequirement
	}
	return total
}

// NetRequirement is max(0, requested + safety - available).
func NetRequirement(requested, safetyStock, available int64) int64 {
	net := requested + safetyStock - available
	if net < 0 {
		return 0
	}
	return net
}

// CalculateNetDemand evaluates every key with demand in the window or a
// safety-stock target. Keys netting to zero are counted but not returned.
func CalculateNetDemand(md *masterdata.Snapshot, agg AggregationResult, inv *InventoryIndex, businessDate time.Time) NetDemandResult {
	date := domain.TruncateDate(businessDate)
	requested := agg.Requested()

	keys := make(map[domain.StockKey]struct{}, len(requested))
	for k := range requested {
		keys[k] = struct{}{}
	}
	for _, k := range md.SafetyStockKeys() {
		keys[k] = struct{}{}
	}

	ordered := make([]domain.StockKey, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	result := NetDemandResult{EvaluatedKeys: len(ordered)}
	for _, key := range ordered {
		req := requested[key]
		safety := md.EffectiveSafetyStock(key.WarehouseCode, key.SKUCode)
		state := inv.Lookup(key)

		if !state.Found && req+safety > 0 {
			result.Exceptions = append(result.Exceptions, domain.Exception{
				Stage:         domain.StageInventory,
				WarehouseCode: key.WarehouseCode,
				SKUCode:       key.SKUCode,
				Reason:        domain.ReasonMissingSnapshot,
				Detail:        fmt.Sprintf("no snapshot at or before %s, treating available as 0", date.Format(domain.DateLayout)),
			})
		}

		net := NetRequirement(req, safety, state.Available)
		if net == 0 {
			continue
		}

		row := domain.NetDemand{
			WarehouseCode:  key.WarehouseCode,
			SKUCode:        key.SKUCode,
			BusinessDate:   date,
			RequestedQty:   req,
			SafetyStock:    safety,
			OnHand:         state.OnHand,
			Reserved:       state.Reserved,
			AvailableQty:   state.Available,
			NetRequirement: net,
		}
		if p, ok := md.Product(key.SKUCode); ok {
			row.ProductName, row.Category, row.UOM = p.Name, p.Category, p.UOM
		}
		if w, ok := md.Warehouse(key.WarehouseCode); ok {
			row.WarehouseName, row.City = w.Name, w.City
		}
		result.Rows = append(result.Rows, row)
	}

	return result
}
