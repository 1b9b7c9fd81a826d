package procurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

func TestAggregateOrdersSumsPerKeyAndDate(t *testing.T) {
	md := fixtureSnapshot(t)
	lines := []domain.RawOrderLine{
		order("ORD-1", "W1", "S1", 30, businessDay),
		order("ORD-2", "W1", "S1", 50, businessDay.Add(5*time.Hour)),
		order("ORD-3", "W2", "S2", 7, businessDay),
	}

	res := AggregateOrders(md, lines, NewWindow(businessDay, 1))

	require.Empty(t, res.Exceptions)
	require.Len(t, res.Lines, 2)
	assert.Equal(t, 3, res.RawCount)
	assert.Equal(t, 3, res.Accepted)

	first := res.Lines[0]
	assert.Equal(t, "W1", first.WarehouseCode)
	assert.Equal(t, "S1", first.SKUCode)
	assert.EqualValues(t, 80, first.TotalQuantity)
	assert.Equal(t, 2, first.OrderCount)
	assert.Equal(t, "Copy Paper A4", first.ProductName)
	assert.Equal(t, "office", first.Category)
	assert.Equal(t, "ream", first.UOM)
	assert.Equal(t, "Central DC", first.WarehouseName)
	assert.Equal(t, "Jakarta", first.City)
	assert.True(t, first.OrderDate.Equal(businessDay))

	assert.EqualValues(t, 80, res.Requested()[domain.StockKey{WarehouseCode: "W1", SKUCode: "S1"}])
}

func TestAggregateOrdersRejectsBadLines(t *testing.T) {
	md := fixtureSnapshot(t)
	lines := []domain.RawOrderLine{
		order("ORD-1", "W1", "S404", 5, businessDay),
		order("ORD-2", "W404", "S1", 5, businessDay),
		order("ORD-3", "W1", "S3", 5, businessDay),
		order("ORD-4", "W3", "S1", 5, businessDay),
		order("ORD-5", "W1", "S1", 0, businessDay),
		order("ORD-6", "W1", "S1", 1, time.Time{}),
		order("ORD-7", "W1", "S1", 5, businessDay.AddDate(0, 0, -1)),
		order("ORD-8", "W1", "S1", 5, businessDay),
		order("ORD-8", "W1", "S1", 5, businessDay),
	}

	res := AggregateOrders(md, lines, NewWindow(businessDay, 1))

	require.Len(t, res.Lines, 1)
	assert.EqualValues(t, 5, res.Lines[0].TotalQuantity)
	assert.Equal(t, 9, res.RawCount)
	assert.Equal(t, 1, res.Accepted)

	require.Len(t, res.Exceptions, 8)
	assert.ElementsMatch(t, []string{
		domain.ReasonUnknownSKU,
		domain.ReasonUnknownWarehouse,
		domain.ReasonInactiveSKU,
		domain.ReasonInactiveWarehouse,
		domain.ReasonInvalidQuantity,
		domain.ReasonMissingOrderDate,
		domain.ReasonOutsideWindow,
		domain.ReasonDuplicateOrder,
	}, reasons(res.Exceptions))
	for _, ex := range res.Exceptions {
		assert.Equal(t, domain.StageAggregation, ex.Stage)
	}
}

func TestAggregateOrdersHonoursDemandWindow(t *testing.T) {
	md := fixtureSnapshot(t)
	lines := []domain.RawOrderLine{
		order("ORD-1", "W1", "S1", 10, businessDay.AddDate(0, 0, -2)),
		order("ORD-2", "W1", "S1", 20, businessDay),
		order("ORD-3", "W1", "S1", 40, businessDay.AddDate(0, 0, -3)),
		order("ORD-4", "W1", "S1", 80, businessDay.AddDate(0, 0, 1)),
	}

	res := AggregateOrders(md, lines, NewWindow(businessDay, 3))

	require.Len(t, res.Lines, 2)
	assert.True(t, res.Lines[0].OrderDate.Before(res.Lines[1].OrderDate))
	assert.EqualValues(t, 30, res.Requested()[domain.StockKey{WarehouseCode: "W1", SKUCode: "S1"}])
	assert.Len(t, res.Exceptions, 2)
}

func TestAggregateOrdersDoesNotMutateMasterData(t *testing.T) {
	md := fixtureSnapshot(t)
	before := md.Stats()

	AggregateOrders(md, []domain.RawOrderLine{order("ORD-1", "W1", "S1", 10, businessDay)}, NewWindow(businessDay, 1))

	assert.Equal(t, before, md.Stats())
	p, ok := md.Product("S1")
	require.True(t, ok)
	assert.Equal(t, "Copy Paper A4", p.Name)
}
