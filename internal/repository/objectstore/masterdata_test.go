package objectstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/repository"
)

func TestLoadMasterData(t *testing.T) {
	feeds := seed(t, map[string]string{
		"input/masterdata/products.csv":   "sku_code,name,category,uom,active\nS1,Rice 5kg,Food,BAG,true\nS2,Old SKU,Food,BAG,no\n",
		"input/masterdata/warehouses.csv": "code,name,city\nW1,Main,Jakarta\n",
		"input/masterdata/suppliers.csv":  "code,name,contact_email,active\nSUP-A,Alpha,a@example.com,1\n",
		"input/masterdata/supplier_terms.csv": "supplier_code,sku_code,pack_size,min_order_qty,lead_time_days,unit_price,currency,updated_at\n" +
			"SUP-A,S1,12,24,3,10.50,IDR,2024-03-01T08:00:00Z\n",
		"input/masterdata/safety_stock.csv":     "warehouse_code,sku_code,quantity\n,S1,5\nW1,S1,8\n",
		"input/masterdata/archive/products.csv": "sku_code\nIGNORED\n",
		"input/orders/2024-03-15/products.csv":  "sku_code\nIGNORED\n",
	})

	records, err := feeds.LoadMasterData(context.Background())
	require.NoError(t, err)

	require.Len(t, records.Products, 2)
	assert.True(t, records.Products[0].Active)
	assert.False(t, records.Products[1].Active)

	require.Len(t, records.Warehouses, 1)
	assert.Equal(t, "Jakarta", records.Warehouses[0].City)
	assert.True(t, records.Warehouses[0].Active)

	require.Len(t, records.Suppliers, 1)
	assert.Equal(t, "a@example.com", records.Suppliers[0].ContactEmail)

	require.Len(t, records.Terms, 1)
	term := records.Terms[0]
	assert.EqualValues(t, 12, term.PackSize)
	assert.EqualValues(t, 24, term.MinOrderQty)
	assert.Equal(t, 3, term.LeadTimeDays)
	assert.True(t, decimal.RequireFromString("10.5").Equal(term.UnitPrice))
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), term.UpdatedAt)

	require.Len(t, records.SafetyStocks, 2)
	assert.True(t, records.SafetyStocks[0].IsGlobal())
	assert.EqualValues(t, 8, records.SafetyStocks[1].Quantity)
}

func TestLoadMasterDataFromRoot(t *testing.T) {
	feeds := seed(t, map[string]string{
		"products.csv":   "sku_code\nS1\n",
		"warehouses.csv": "code\nW1\n",
	})

	records, err := feeds.LoadMasterDataFrom(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, records.Products, 1)
	assert.Len(t, records.Warehouses, 1)
	assert.Empty(t, records.Terms)
}

func TestLoadMasterDataMissing(t *testing.T) {
	feeds := seed(t, nil)

	_, err := feeds.LoadMasterData(context.Background())
	assert.ErrorIs(t, err, repository.ErrInputNotFound)
}

func TestLoadMasterDataInvalidPrice(t *testing.T) {
	feeds := seed(t, map[string]string{
		"input/masterdata/supplier_terms.csv": "supplier_code,sku_code,pack_size,unit_price\nSUP-A,S1,12,ten\n",
	})

	_, err := feeds.LoadMasterData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid decimal")
}

func TestLoadMasterDataInvalidFlag(t *testing.T) {
	feeds := seed(t, map[string]string{
		"input/masterdata/products.csv": "sku_code,active\nS1,maybe\n",
	})

	_, err := feeds.LoadMasterData(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flag")
}
