package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/pipeline/procurement"
	"github.com/andresuchdata/procurement-engine/internal/storage"
)

func TestArtifactKey(t *testing.T) {
	assert.Equal(t,
		"output/procurement/net_demand/2024-03-15/net_demand.csv",
		ArtifactKey("output/procurement", DatasetNetDemand, day, "csv"))
	assert.Equal(t,
		"run_summary/2024-03-15/run_summary.json",
		ArtifactKey("", DatasetRunSummary, day, "json"))
}

func TestArtifactWriterEmptyResult(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	keys, err := NewArtifactWriter(store, "out").Write(ctx, day, &procurement.Result{
		Summary: domain.RunSummary{BusinessDate: day, Status: domain.RunSucceeded},
	})
	require.NoError(t, err)
	assert.Len(t, keys, 9)

	data, err := store.ReadObject(ctx, ArtifactKey("out", DatasetSupplierOrders, day, "csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "po_id,warehouse_code,sku_code"))

	data, err = store.ReadObject(ctx, ArtifactKey("out", DatasetExceptions, day, "json"))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestArtifactWriterFormatsRows(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	res := &procurement.Result{
		Summary: domain.RunSummary{RunID: "run-1", BusinessDate: day, Status: domain.RunSucceeded},
		Exceptions: []domain.Exception{{
			Stage:         domain.StageAggregation,
			WarehouseCode: "W9",
			SKUCode:       "S1",
			Reference:     "ORD-4",
			Reason:        domain.ReasonUnknownWarehouse,
			Detail:        "warehouse W9, not found",
		}},
		SupplierOrders: []domain.SupplierOrderLine{{
			POID:          "PO-20240315-00001",
			WarehouseCode: "W1",
			SKUCode:       "S1",
			UnitPrice:     decimal.RequireFromString("40"),
			TotalCost:     decimal.RequireFromString("3840"),
			Currency:      "IDR",
			Status:        domain.POStatusPending,
		}},
	}
	_, err := NewArtifactWriter(store, "out").Write(ctx, day, res)
	require.NoError(t, err)

	data, err := store.ReadObject(ctx, ArtifactKey("out", DatasetExceptions, day, "csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `aggregation,W9,S1,ORD-4,unknown_warehouse,"warehouse W9, not found"`)

	data, err = store.ReadObject(ctx, ArtifactKey("out", DatasetSupplierOrders, day, "csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "40,IDR,3840,")

	data, err = store.ReadObject(ctx, ArtifactKey("out", DatasetRunSummary, day, "json"))
	require.NoError(t, err)
	var summary domain.RunSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, "run-1", summary.RunID)
}

func TestArtifactWriterKeepsDecimalPrecision(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	res := &procurement.Result{
		Summary: domain.RunSummary{RunID: "run-1", BusinessDate: day, Status: domain.RunSucceeded},
		SupplierOrders: []domain.SupplierOrderLine{{
			POID:       "PO-20240315-00001",
			UnitPrice:  decimal.RequireFromString("0.125"),
			TotalCost:  decimal.RequireFromString("1.375"),
			Currency:   "IDR",
			OrderedQty: 11,
		}},
	}
	_, err := NewArtifactWriter(store, "out").Write(ctx, day, res)
	require.NoError(t, err)

	data, err := store.ReadObject(ctx, ArtifactKey("out", DatasetSupplierOrders, day, "csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ",0.125,IDR,1.375,")

	data, err = store.ReadObject(ctx, ArtifactKey("out", DatasetSupplierOrders, day, "json"))
	require.NoError(t, err)
	var lines []domain.SupplierOrderLine
	require.NoError(t, json.Unmarshal(data, &lines))
	require.Len(t, lines, 1)
	assert.Equal(t, "0.125", lines[0].UnitPrice.String())
	assert.Equal(t, "1.375", lines[0].TotalCost.String())
}

func TestArtifactWriterWriteSummary(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()

	err := NewArtifactWriter(store, "out").WriteSummary(ctx, day, domain.RunSummary{
		RunID:         "run-2",
		BusinessDate:  day,
		Status:        domain.RunFailed,
		FailureReason: "save results: db down",
	})
	require.NoError(t, err)

	data, err := store.ReadObject(ctx, ArtifactKey("out", DatasetRunSummary, day, "json"))
	require.NoError(t, err)
	var summary domain.RunSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, domain.RunFailed, summary.Status)
	assert.Equal(t, "save results: db down", summary.FailureReason)
}
