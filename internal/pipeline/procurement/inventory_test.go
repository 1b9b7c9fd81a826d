package procurement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

var keyW1S1 = domain.StockKey{WarehouseCode: "W1", SKUCode: "S1"}

func TestResolveInventoryPicksLatestSnapshotAtOrBeforeDate(t *testing.T) {
	md := fixtureSnapshot(t)
	snaps := []domain.InventorySnapshot{
		snapshot("W1", "S1", 100, 10, businessDay.AddDate(0, 0, -3)),
		snapshot("W1", "S1", 60, 20, businessDay.AddDate(0, 0, -1)),
		snapshot("W1", "S1", 500, 0, businessDay.AddDate(0, 0, 1)),
	}

	idx := ResolveInventory(md, snaps, nil, businessDay, 0)

	require.Empty(t, idx.Exceptions)
	st := idx.Lookup(keyW1S1)
	assert.True(t, st.Found)
	assert.EqualValues(t, 60, st.OnHand)
	assert.EqualValues(t, 20, st.Reserved)
	assert.EqualValues(t, 40, st.Available)
	assert.True(t, st.SnapshotDate.Equal(businessDay.AddDate(0, 0, -1)))
}

func TestResolveInventoryClampsOverReservation(t *testing.T) {
	md := fixtureSnapshot(t)
	idx := ResolveInventory(md, []domain.InventorySnapshot{snapshot("W1", "S1", 10, 25, businessDay)}, nil, businessDay, 0)

	st := idx.Lookup(keyW1S1)
	assert.EqualValues(t, 0, st.Available)
	require.Len(t, idx.Exceptions, 1)
	assert.Equal(t, domain.ReasonReservedExceedsOnHand, idx.Exceptions[0].Reason)
	assert.Equal(t, domain.StageInventory, idx.Exceptions[0].Stage)
}

func TestResolveInventoryFlagsStaleSnapshots(t *testing.T) {
	md := fixtureSnapshot(t)
	snaps := []domain.InventorySnapshot{snapshot("W1", "S1", 40, 0, businessDay.AddDate(0, 0, -10))}

	idx := ResolveInventory(md, snaps, nil, businessDay, 7)

	st := idx.Lookup(keyW1S1)
	assert.True(t, st.Stale)
	assert.EqualValues(t, 40, st.Available)
	assert.Equal(t, []string{domain.ReasonStaleSnapshot}, reasons(idx.Exceptions))

	fresh := ResolveInventory(md, snaps, nil, businessDay, 0)
	assert.Empty(t, fresh.Exceptions)
}

func TestResolveInventoryAppliesCurrentStockLevels(t *testing.T) {
	md := fixtureSnapshot(t)
	snaps := []domain.InventorySnapshot{snapshot("W1", "S1", 100, 30, businessDay.AddDate(0, 0, -1))}
	stock := []domain.StockLevel{
		{WarehouseCode: "W1", SKUCode: "S1", OnHand: 70, AsOf: businessDay},
		{WarehouseCode: "W1", SKUCode: "S1", OnHand: 999, AsOf: businessDay.AddDate(0, 0, 1)},
		{WarehouseCode: "W2", SKUCode: "S1", OnHand: 15, AsOf: businessDay},
	}

	idx := ResolveInventory(md, snaps, stock, businessDay, 0)

	st := idx.Lookup(keyW1S1)
	assert.EqualValues(t, 70, st.OnHand)
	assert.EqualValues(t, 30, st.Reserved)
	assert.EqualValues(t, 40, st.Available)

	other := idx.Lookup(domain.StockKey{WarehouseCode: "W2", SKUCode: "S1"})
	assert.False(t, other.Found)
}

func TestResolveInventoryIgnoresUnknownKeys(t *testing.T) {
	md := fixtureSnapshot(t)
	snaps := []domain.InventorySnapshot{
		snapshot("W404", "S1", 10, 0, businessDay),
		snapshot("W1", "S404", 10, 0, businessDay),
	}

	idx := ResolveInventory(md, snaps, nil, businessDay, 0)

	assert.Zero(t, idx.Len())
	assert.ElementsMatch(t, []string{domain.ReasonUnknownWarehouse, domain.ReasonUnknownSKU}, reasons(idx.Exceptions))
}

func TestResolveInventoryMissingKeyDefaultsToZero(t *testing.T) {
	md := fixtureSnapshot(t)
	idx := ResolveInventory(md, nil, nil, businessDay, 0)

	st := idx.Lookup(keyW1S1)
	assert.False(t, st.Found)
	assert.EqualValues(t, 0, st.Available)
}
