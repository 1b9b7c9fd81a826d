package domain

import "sort"

// Stage names used on exception records.
const (
	StageMasterData     = "masterdata"
	StageAggregation    = "aggregation"
	StageInventory      = "inventory"
	StageNetDemand      = "net_demand"
	StageSupplierOrders = "supplier_orders"
)

// Exception reasons
const (
	ReasonUnknownSKU            = "unknown_sku"
	ReasonUnknownWarehouse      = "unknown_warehouse"
	ReasonUnknownSupplier       = "unknown_supplier"
	ReasonInactiveSKU           = "inactive_sku"
	ReasonInactiveWarehouse     = "inactive_warehouse"
	ReasonInvalidQuantity       = "invalid_quantity"
	ReasonMissingOrderDate      = "missing_order_date"
	ReasonOutsideWindow         = "outside_demand_window"
	ReasonDuplicateOrder        = "duplicate_order_id"
	ReasonMissingSnapshot       = "missing_snapshot"
	ReasonStaleSnapshot         = "stale_snapshot"
	ReasonReservedExceedsOnHand = "reserved_exceeds_on_hand"
	ReasonInvalidTerm           = "invalid_term"
	ReasonInvalidSafetyStock    = "invalid_safety_stock"
	ReasonUnfulfillableDemand   = "unfulfillable_demand"
)

// Exception is a data-quality or fulfilment problem recorded during a run.
// Exceptions never abort the run.
type Exception struct {
	Stage         string `json:"stage" db:"stage"`
	WarehouseCode string `json:"warehouse_code,omitempty" db:"warehouse_code"`
	SKUCode       string `json:"sku_code,omitempty" db:"sku_code"`
	Reference     string `json:"reference,omitempty" db:"reference"`
	Reason        string `json:"reason" db:"reason"`
	Detail        string `json:"detail,omitempty" db:"detail"`
}

// SortExceptions orders exceptions by stage, warehouse, SKU, reason and reference.
func SortExceptions(items []Exception) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Stage != b.Stage {
			return stageRank(a.Stage) < stageRank(b.Stage)
		}
		if a.WarehouseCode != b.WarehouseCode {
			return a.WarehouseCode < b.WarehouseCode
		}
		if a.SKUCode != b.SKUCode {
			return a.SKUCode < b.SKUCode
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return a.Reference < b.Reference
	})
}

func stageRank(stage string) int {
	switch stage {
	case StageMasterData:
		return 0
	case StageAggregation:
		return 1
	case StageInventory:
		return 2
	case StageNetDemand:
		return 3
	case StageSupplierOrders:
		return 4
	default:
		return 5
	}
}
