package masterdata

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

func baseRecords() domain.MasterDataRecords {
	return domain.MasterDataRecords{
		Products: []domain.Product{
			{ID: 1, SKUCode: "S1", Name: "Widget", Category: "parts", UOM: "pcs", Active: true},
			{ID: 2, SKUCode: "S2", Name: "Gadget", Category: "parts", UOM: "pcs", Active: true},
			{ID: 3, SKUCode: "S3", Name: "Retired", Category: "parts", UOM: "pcs", Active: false},
		},
		Warehouses: []domain.Warehouse{
			{ID: 1, Code: "W2", Name: "North", City: "Medan", Active: true},
			{ID: 2, Code: "W1", Name: "Central", City: "Jakarta", Active: true},
			{ID: 3, Code: "W9", Name: "Closed", City: "Bandung", Active: false},
		},
		Suppliers: []domain.Supplier{
			{ID: 1, Code: "SUP-A", Name: "Alpha", Active: true},
			{ID: 2, Code: "SUP-B", Name: "Beta", Active: true},
			{ID: 3, Code: "SUP-X", Name: "Dormant", Active: false},
		},
	}
}

func term(supplier, sku, price string, pack, moq int64, lead int) domain.SupplierProductTerm {
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

func TestBuildIndexesByNaturalKey(t *testing.T) {
	snap, exceptions := Build(baseRecords())
	require.Empty(t, exceptions)

	p, ok := snap.Product("S1")
	require.True(t, ok)
	assert.Equal(t, "Widget", p.Name)

	w, ok := snap.Warehouse("W1")
	require.True(t, ok)
	assert.Equal(t, "Jakarta", w.City)

	_, ok = snap.Supplier("SUP-Z")
	assert.False(t, ok)

	active := snap.ActiveWarehouses()
	require.Len(t, active, 2)
	assert.Equal(t, "W1", active[0].Code)
	assert.Equal(t, "W2", active[1].Code)

	assert.Equal(t, Stats{Products: 3, Warehouses: 3, Suppliers: 3, Terms: 0}, snap.Stats())
}

func TestBuildExcludesInvalidTerms(t *testing.T) {
	records := baseRecords()
	records.Terms = []domain.SupplierProductTerm{
		term("SUP-A", "S1", "45.00", 10, 5, 2),
		term("SUP-B", "S1", "40.00", 0, 4, 3),
		term("SUP-B", "S2", "-1", 1, 0, 1),
		term("SUP-Q", "S1", "10", 1, 0, 1),
		term("SUP-A", "S404", "10", 1, 0, 1),
	}

	snap, exceptions := Build(records)

	terms := snap.ActiveTerms("S1")
	require.Len(t, terms, 1)
	assert.Equal(t, "SUP-A", terms[0].SupplierCode)
	assert.Empty(t, snap.ActiveTerms("S2"))

	require.Len(t, exceptions, 4)
	reasons := map[string]int{}
	for _, ex := range exceptions {
		assert.Equal(t, domain.StageMasterData, ex.Stage)
		reasons[ex.Reason]++
	}
	assert.Equal(t, 2, reasons[domain.ReasonInvalidTerm])
	assert.Equal(t, 1, reasons[domain.ReasonUnknownSupplier])
	assert.Equal(t, 1, reasons[domain.ReasonUnknownSKU])
}

func TestBuildSkipsInactiveTermsAndSuppliers(t *testing.T) {
	records := baseRecords()
	inactive := term("SUP-B", "S1", "1.00", 1, 0, 1)
	inactive.Active = false
	records.Terms = []domain.SupplierProductTerm{
		term("SUP-A", "S1", "45.00", 10, 5, 2),
		inactive,
		term("SUP-X", "S1", "2.00", 1, 0, 1),
	}

	snap, exceptions := Build(records)
	require.Empty(t, exceptions)

	terms := snap.ActiveTerms("S1")
	require.Len(t, terms, 1)
	assert.Equal(t, "SUP-A", terms[0].SupplierCode)
}

func TestBuildResolvesConflictingTerms(t *testing.T) {
	records := baseRecords()
	older := term("SUP-A", "S1", "30.00", 10, 5, 2)
	newer := term("SUP-A", "S1", "45.00", 10, 5, 2)
	newer.UpdatedAt = older.UpdatedAt.Add(time.Hour)

	sameTimeCheap := term("SUP-B", "S2", "9.00", 1, 0, 7)
	sameTimeDear := term("SUP-B", "S2", "10.00", 1, 0, 1)
	sameTimeFast := term("SUP-B", "S2", "9.00", 1, 0, 3)

	withdrawnOld := term("SUP-B", "S1", "20.00", 10, 5, 2)
	withdrawn := term("SUP-B", "S1", "20.00", 10, 5, 2)
	withdrawn.Active = false
	withdrawn.UpdatedAt = withdrawnOld.UpdatedAt.AddDate(0, 1, 0)

	records.Terms = []domain.SupplierProductTerm{newer, older, withdrawnOld, withdrawn, sameTimeDear, sameTimeCheap, sameTimeFast}

	snap, _ := Build(records)

	s1 := snap.ActiveTerms("S1")
	require.Len(t, s1, 1)
	assert.Equal(t, "SUP-A", s1[0].SupplierCode)
	assert.True(t, s1[0].UnitPrice.Equal(decimal.RequireFromString("45.00")))

	s2 := snap.ActiveTerms("S2")
	require.Len(t, s2, 1)
	assert.True(t, s2[0].UnitPrice.Equal(decimal.RequireFromString("9.00")))
	assert.Equal(t, 3, s2[0].LeadTimeDays)
}

func TestBuildReactivatedTermIsActive(t *testing.T) {
	records := baseRecords()
	paused := term("SUP-A", "S2", "12.00", 1, 0, 2)
	paused.Active = false
	resumed := term("SUP-A", "S2", "11.00", 1, 0, 2)
	resumed.UpdatedAt = paused.UpdatedAt.AddDate(0, 0, 7)
	records.Terms = []domain.SupplierProductTerm{resumed, paused}

	snap, exceptions := Build(records)
	require.Empty(t, exceptions)

	terms := snap.ActiveTerms("S2")
	require.Len(t, terms, 1)
	assert.True(t, terms[0].UnitPrice.Equal(decimal.RequireFromString("11.00")))
	assert.Empty(t, snap.ActiveTerms("S1"))
}

func TestEffectiveSafetyStockPrefersWarehouseTarget(t *testing.T) {
	records := baseRecords()
	records.SafetyStocks = []domain.SafetyStockTarget{
		{SKUCode: "S1", Quantity: 20},
		{WarehouseCode: "W1", SKUCode: "S1", Quantity: 50},
	}

	snap, exceptions := Build(records)
	require.Empty(t, exceptions)

	assert.EqualValues(t, 50, snap.EffectiveSafetyStock("W1", "S1"))
	assert.EqualValues(t, 20, snap.EffectiveSafetyStock("W2", "S1"))
	assert.EqualValues(t, 0, snap.EffectiveSafetyStock("W1", "S2"))
}

func TestSafetyStockKeysExpandGlobalTargets(t *testing.T) {
	records := baseRecords()
	records.SafetyStocks = []domain.SafetyStockTarget{
		{SKUCode: "S1", Quantity: 20},
		{WarehouseCode: "W2", SKUCode: "S2", Quantity: 5},
		{WarehouseCode: "W9", SKUCode: "S2", Quantity: 5},
		{SKUCode: "S3", Quantity: 5},
		{WarehouseCode: "W1", SKUCode: "S1", Quantity: -3},
		{WarehouseCode: "W7", SKUCode: "S1", Quantity: 3},
	}

	snap, exceptions := Build(records)
	require.Len(t, exceptions, 2)
	assert.Equal(t, domain.ReasonInvalidSafetyStock, exceptions[0].Reason)
	assert.Equal(t, domain.ReasonUnknownWarehouse, exceptions[1].Reason)

	keys := snap.SafetyStockKeys()
	assert.Equal(t, []domain.StockKey{
		{WarehouseCode: "W1", SKUCode: "S1"},
		{WarehouseCode: "W2", SKUCode: "S1"},
		{WarehouseCode: "W2", SKUCode: "S2"},
	}, keys)
}
