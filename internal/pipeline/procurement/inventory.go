package procurement

import (
	"fmt"
	"time"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/masterdata"
)

// InventoryIndex holds the resolved stock position per (warehouse, SKU).
type InventoryIndex struct {
	states     map[domain.StockKey]domain.InventoryState
	Exceptions []domain.Exception
}

// Lookup returns the state for a key. A key without a usable snapshot comes
// back with Found=false and zero availability.
func (idx *InventoryIndex) Lookup(key domain.StockKey) domain.InventoryState {
	if st, ok := idx.states[key]; ok {
		return st
	}
	return domain.InventoryState{Key: key}
}

func (idx *InventoryIndex) Len() int {
	return len(idx.states)
}

// ResolveInventory picks the latest snapshot at or before the business date
// for each key and derives available stock. Current stock levels, when given,
// replace the snapshot's on-hand figure. maxAgeDays <= 0 disables the
// staleness check.
func ResolveInventory(md *masterdata.Snapshot, snapshots []domain.InventorySnapshot, stock []domain.StockLevel, businessDate time.Time, maxAgeDays int) *InventoryIndex {
	date := domain.TruncateDate(businessDate)
	idx := &InventoryIndex{states: make(map[domain.StockKey]domain.InventoryState)}

	latest := make(map[domain.StockKey]domain.InventorySnapshot)
	unknown := make(map[domain.StockKey]string)
	for _, snap := range snapshots {
		key := domain.StockKey{WarehouseCode: snap.WarehouseCode, SKUCode: snap.SKUCode}
		snapDate := domain.TruncateDate(snap.SnapshotDate)
		if snapDate.IsZero() || snapDate.After(date) {
			continue
		}
		if _, ok := md.Warehouse(key.WarehouseCode); !ok {
			unknown[key] = domain.ReasonUnknownWarehouse
			continue
		}
		if _, ok := md.Product(key.SKUCode); !ok {
			unknown[key] = domain.ReasonUnknownSKU
			continue
		}
		cur, ok := latest[key]
		if !ok || newerSnapshot(snap, cur) {
			latest[key] = snap
		}
	}

	current := latestStockLevels(stock, date)

	for key, snap := range latest {
		st := domain.InventoryState{
			Key:          key,
			SnapshotDate: domain.TruncateDate(snap.SnapshotDate),
			OnHand:       snap.OnHand,
			Reserved:     snap.Reserved,
			Found:        true,
		}
		if lvl, ok := current[key]; ok {
			st.OnHand = lvl.OnHand
		}

		st.Available = st.OnHand - st.Reserved
		if st.Available < 0 {
			st.Available = 0
		}
		if st.Reserved > st.OnHand {
			idx.Exceptions = append(idx.Exceptions, inventoryException(key, domain.ReasonReservedExceedsOnHand,
				fmt.Sprintf("reserved %d exceeds on hand %d", st.Reserved, st.OnHand)))
		}

		if maxAgeDays > 0 {
			age := int(date.Sub(st.SnapshotDate).Hours() / 24)
			if age > maxAgeDays {
				st.Stale = true
				idx.Exceptions = append(idx.Exceptions, inventoryException(key, domain.ReasonStaleSnapshot,
					fmt.Sprintf("snapshot from %s is %d days old", st.SnapshotDate.Format(domain.DateLayout), age)))
			}
		}

		idx.states[key] = st
	}

	for key, reason := range unknown {
		idx.Exceptions = append(idx.Exceptions, inventoryException(key, reason, "snapshot references unknown master data"))
	}
	domain.SortExceptions(idx.Exceptions)

	return idx
}

// newerSnapshot prefers the later date; same-day duplicates keep the lower
// availability.
func newerSnapshot(candidate, current domain.InventorySnapshot) bool {
	cd, kd := domain.TruncateDate(candidate.SnapshotDate), domain.TruncateDate(current.SnapshotDate)
	if !cd.Equal(kd) {
		return cd.After(kd)
	}
	return candidate.OnHand-candidate.Reserved < current.OnHand-current.Reserved
}

func latestStockLevels(levels []domain.StockLevel, date time.Time) map[domain.StockKey]domain.StockLevel {
	out := make(map[domain.StockKey]domain.StockLevel, len(levels))
	for _, lvl := range levels {
		if !lvl.AsOf.IsZero() && domain.TruncateDate(lvl.AsOf).After(date) {
			continue
		}
		key := domain.StockKey{WarehouseCode: lvl.WarehouseCode, SKUCode: lvl.SKUCode}
		if cur, ok := out[key]; !ok || lvl.AsOf.After(cur.AsOf) {
			out[key] = lvl
		}
	}
	return out
}

func inventoryException(key domain.StockKey, reason, detail string) domain.Exception {
	return domain.Exception{
		Stage:         domain.StageInventory,
		WarehouseCode: key.WarehouseCode,
		SKUCode:       key.SKUCode,
		Reason:        reason,
		Detail:        detail,
	}
}
