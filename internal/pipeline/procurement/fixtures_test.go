package procurement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/masterdata"
)

var businessDay = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func fixtureRecords() domain.MasterDataRecords {
	return domain.MasterDataRecords{
		Products: []domain.Product{
			{ID: 1, SKUCode: "S1", Name: "Copy Paper A4", Category: "office", UOM: "ream", Active: true},
			{ID: 2, SKUCode: "S2", Name: "Stapler", Category: "office", UOM: "pcs", Active: true},
			{ID: 3, SKUCode: "S3", Name: "Fax Toner", Category: "office", UOM: "pcs", Active: false},
		},
		Warehouses: []domain.Warehouse{
			{ID: 1, Code: "W1", Name: "Central DC", City: "Jakarta", Active: true},
			{ID: 2, Code: "W2", Name: "East DC", City: "Surabaya", Active: true},
			{ID: 3, Code: "W3", Name: "Old DC", City: "Bogor", Active: false},
		},
		Suppliers: []domain.Supplier{
			{ID: 1, Code: "SUP-A", Name: "Alpha Supplies", Active: true},
			{ID: 2, Code: "SUP-B", Name: "Beta Trading", Active: true},
		},
		Terms: []domain.SupplierProductTerm{
			fixtureTerm("SUP-A", "S1", "45.00", 10, 5, 2),
			fixtureTerm("SUP-B", "S1", "40.00", 8, 4, 3),
		},
		SafetyStocks: []domain.SafetyStockTarget{
			{WarehouseCode: "W1", SKUCode: "S1", Quantity: 50},
		},
	}
}

func fixtureTerm(supplier, sku, price string, pack, moq int64, lead int) domain.SupplierProductTerm {
	return domain.SupplierProductTerm{
		SupplierCode: supplier,
		SKUCode:      sku,
		PackSize:     pack,
		MinOrderQty:  moq,
		LeadTimeDays: lead,
		UnitPrice:    decimal.RequireFromString(price),
		Currency:     "IDR",
		Active:       true,
		UpdatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func fixtureSnapshot(t *testing.T) *masterdata.Snapshot {
	t.Helper()
	md, exceptions := masterdata.Build(fixtureRecords())
	require.Empty(t, exceptions)
	return md
}

func order(id, warehouse, sku string, qty int64, date time.Time) domain.RawOrderLine {
	return domain.RawOrderLine{OrderID: id, WarehouseCode: warehouse, SKUCode: sku, Quantity: qty, OrderDate: date}
}

func snapshot(warehouse, sku string, onHand, reserved int64, date time.Time) domain.InventorySnapshot {
	return domain.InventorySnapshot{WarehouseCode: warehouse, SKUCode: sku, OnHand: onHand, Reserved: reserved, SnapshotDate: date}
}

func reasons(exceptions []domain.Exception) []string {
	out := make([]string, 0, len(exceptions))
	for _, ex := range exceptions {
		out = append(out, ex.Reason)
	}
	return out
}
