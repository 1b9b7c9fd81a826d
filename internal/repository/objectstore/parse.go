package objectstore

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

// ParseOrderLines reads an order file. Malformed quantities and dates are
// passed on as zero values so the aggregator reports them as data-quality
// exceptions.
func ParseOrderLines(key string, data []byte) ([]domain.RawOrderLine, error) {
	t, err := parseTable(key, data)
	if err != nil {
		return nil, err
	}
	if err := t.require("order_id", "warehouse_code", "sku_code", "quantity"); err != nil {
		return nil, err
	}

	lines := make([]domain.RawOrderLine, 0, len(t.rows))
	for _, rec := range t.rows {
		line := domain.RawOrderLine{
			OrderID:       t.get(rec, "order_id"),
			WarehouseCode: t.get(rec, "warehouse_code"),
			SKUCode:       t.get(rec, "sku_code"),
		}
		if qty, err := t.int(rec, "quantity"); err == nil {
			line.Quantity = qty
		} else {
			log.Warn().Err(err).Str("order_id", line.OrderID).Msg("unreadable order quantity")
		}
		if d, err := t.date(rec, "order_date"); err == nil {
			line.OrderDate = d
		} else {
			log.Warn().Err(err).Str("order_id", line.OrderID).Msg("unreadable order date")
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// ParseStockLevels reads a stock count file. Rows without as_of take the
// given date.
func ParseStockLevels(key string, data []byte, asOf time.Time) ([]domain.StockLevel, error) {
	t, err := parseTable(key, data)
	if err != nil {
		return nil, err
	}
	if err := t.require("warehouse_code", "sku_code", "on_hand"); err != nil {
		return nil, err
	}

	levels := make([]domain.StockLevel, 0, len(t.rows))
	for _, rec := range t.rows {
		onHand, err := t.int(rec, "on_hand")
		if err != nil {
			return nil, err
		}
		d, err := t.date(rec, "as_of")
		if err != nil {
			return nil, err
		}
		if d.IsZero() {
			d = domain.TruncateDate(asOf)
		}
		levels = append(levels, domain.StockLevel{
			WarehouseCode: t.get(rec, "warehouse_code"),
			SKUCode:       t.get(rec, "sku_code"),
			OnHand:        onHand,
			AsOf:          d,
		})
	}
	return levels, nil
}

// ParseSnapshots reads a snapshot file. Rows without snapshot_date take the
// given date.
func ParseSnapshots(key string, data []byte, snapshotDate time.Time) ([]domain.InventorySnapshot, error) {
	t, err := parseTable(key, data)
	if err != nil {
		return nil, err
	}
	if err := t.require("warehouse_code", "sku_code", "on_hand"); err != nil {
		return nil, err
	}

	snapshots := make([]domain.InventorySnapshot, 0, len(t.rows))
	for _, rec := range t.rows {
		onHand, err := t.int(rec, "on_hand")
		if err != nil {
			return nil, err
		}
		reserved, err := t.int(rec, "reserved")
		if err != nil {
			return nil, err
		}
		d, err := t.date(rec, "snapshot_date")
		if err != nil {
			return nil, err
		}
		if d.IsZero() {
			d = domain.TruncateDate(snapshotDate)
		}
		snapshots = append(snapshots, domain.InventorySnapshot{
			WarehouseCode: t.get(rec, "warehouse_code"),
			SKUCode:       t.get(rec, "sku_code"),
			SnapshotDate:  d,
			OnHand:        onHand,
			Reserved:      reserved,
		})
	}
	return snapshots, nil
}
