package procurement

import (
	"context"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/masterdata"
)

func demandRow(warehouse, sku string, net int64) domain.NetDemand {
	return domain.NetDemand{WarehouseCode: warehouse, SKUCode: sku, BusinessDate: businessDay, NetRequirement: net}
}

// Scenario B: the cheaper supplier wins and the quantity rounds up to its pack.
func TestGenerateSupplierOrdersPicksCheapestTerm(t *testing.T) {
	md := fixtureSnapshot(t)

	res, err := GenerateSupplierOrders(context.Background(), md, []domain.NetDemand{demandRow("W1", "S1", 90)}, businessDay, 4)
	require.NoError(t, err)
	require.Empty(t, res.Exceptions)
	require.Len(t, res.Lines, 1)

	line := res.Lines[0]
	assert.Equal(t, "SUP-B", line.SupplierCode)
	assert.Equal(t, "Beta Trading", line.SupplierName)
	assert.EqualValues(t, 96, line.OrderedQty)
	assert.EqualValues(t, 8, line.PackSize)
	assert.EqualValues(t, 4, line.MinOrderQty)
	assert.True(t, line.TotalCost.Equal(decimal.RequireFromString("3840")))
	assert.True(t, line.ExpectedDeliveryDate.Equal(businessDay.AddDate(0, 0, 3)))
	assert.Equal(t, "PO-20240315-00001", line.POID)
	assert.Equal(t, domain.POStatusPending, line.Status)
}

// Scenario D: no active supplier term yields an exception and no line.
func TestGenerateSupplierOrdersReportsUnfulfillableDemand(t *testing.T) {
	md := fixtureSnapshot(t)

	res, err := GenerateSupplierOrders(context.Background(), md, []domain.NetDemand{demandRow("W2", "S2", 15)}, businessDay, 2)
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	require.Len(t, res.Exceptions, 1)
	assert.Equal(t, domain.StageSupplierOrders, res.Exceptions[0].Stage)
	assert.Equal(t, domain.ReasonUnfulfillableDemand, res.Exceptions[0].Reason)
	assert.Equal(t, "S2", res.Exceptions[0].SKUCode)
}

func TestSelectTermBreaksTies(t *testing.T) {
	terms := []domain.SupplierProductTerm{
		fixtureTerm("SUP-C", "S1", "10.00", 1, 0, 5),
		fixtureTerm("SUP-B", "S1", "10.00", 1, 0, 3),
		fixtureTerm("SUP-A", "S1", "10.00", 1, 0, 3),
		fixtureTerm("SUP-D", "S1", "10.01", 1, 0, 0),
	}

	got, ok := SelectTerm(terms)
	require.True(t, ok)
	assert.Equal(t, "SUP-A", got.SupplierCode)

	for i := 0; i < 10; i++ {
		shuffled := append([]domain.SupplierProductTerm(nil), terms...)
		rand.New(rand.NewSource(int64(i))).Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		again, _ := SelectTerm(shuffled)
		assert.Equal(t, "SUP-A", again.SupplierCode)
	}

	_, ok = SelectTerm(nil)
	assert.False(t, ok)
}

func TestOrderQuantityInvariants(t *testing.T) {
	assert.EqualValues(t, 96, OrderQuantity(90, 4, 8))
	assert.EqualValues(t, 90, OrderQuantity(90, 5, 10))
	assert.EqualValues(t, 50, OrderQuantity(3, 50, 10))
	assert.EqualValues(t, 12, OrderQuantity(3, 7, 6))
	assert.EqualValues(t, 0, OrderQuantity(0, 0, 6))

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		net := rng.Int63n(500) + 1
		moq := rng.Int63n(120)
		pack := rng.Int63n(48) + 1

		qty := OrderQuantity(net, moq, pack)
		require.Zero(t, qty%pack, "net=%d moq=%d pack=%d", net, moq, pack)
		require.GreaterOrEqual(t, qty, moq, "net=%d moq=%d pack=%d", net, moq, pack)
		require.GreaterOrEqual(t, qty, net, "net=%d moq=%d pack=%d", net, moq, pack)
		require.Less(t, qty-pack, maxInt64(net, moq), "net=%d moq=%d pack=%d", net, moq, pack)
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func TestGenerateSupplierOrdersSortsByCostAndNumbersLines(t *testing.T) {
	records := fixtureRecords()
	records.Terms = append(records.Terms, fixtureTerm("SUP-A", "S2", "100.00", 1, 0, 1))
	md, _ := masterdata.Build(records)

	demand := []domain.NetDemand{
		demandRow("W1", "S1", 8),
		demandRow("W1", "S2", 5),
		demandRow("W2", "S1", 8),
		demandRow("W2", "S2", 1),
	}

	res, err := GenerateSupplierOrders(context.Background(), md, demand, businessDay, 3)
	require.NoError(t, err)
	require.Len(t, res.Lines, 4)

	var order []string
	for _, l := range res.Lines {
		order = append(order, l.POID+" "+l.Key().String())
	}
	assert.Equal(t, []string{
		"PO-20240315-00001 W1/S2",
		"PO-20240315-00002 W1/S1",
		"PO-20240315-00003 W2/S1",
		"PO-20240315-00004 W2/S2",
	}, order)

	totals := res.TotalCostByCurrency()
	assert.True(t, totals["IDR"].Equal(decimal.RequireFromString("1240")))
}

func TestGenerateSupplierOrdersIsDeterministicAcrossWorkerCounts(t *testing.T) {
	md := fixtureSnapshot(t)
	var demand []domain.NetDemand
	for _, w := range []string{"W1", "W2"} {
		for _, n := range []int64{3, 17, 90, 250} {
			demand = append(demand, demandRow(w, "S1", n))
		}
	}

	serial, err := GenerateSupplierOrders(context.Background(), md, demand, businessDay, 1)
	require.NoError(t, err)
	for _, workers := range []int{2, 8, 32} {
		parallel, err := GenerateSupplierOrders(context.Background(), md, demand, businessDay, workers)
		require.NoError(t, err)
		assert.Equal(t, serial, parallel)
	}
}

func TestGenerateSupplierOrdersStopsOnCancelledContext(t *testing.T) {
	md := fixtureSnapshot(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := GenerateSupplierOrders(ctx, md, []domain.NetDemand{demandRow("W1", "S1", 10)}, businessDay, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
