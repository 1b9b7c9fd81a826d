package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/pipeline/procurement"
	"github.com/andresuchdata/procurement-engine/internal/storage"
)

// Dataset names used in artifact keys.
const (
	DatasetAggregatedOrders = "aggregated_orders"
	DatasetNetDemand        = "net_demand"
	DatasetSupplierOrders   = "supplier_orders"
	DatasetExceptions       = "exceptions"
	DatasetRunSummary       = "run_summary"
)

// ArtifactWriter publishes run output to object storage. Keys are derived from
// the business date only, so a rerun overwrites the previous output.
type ArtifactWriter struct {
	store  storage.ObjectStorage
	prefix string
}

func NewArtifactWriter(store storage.ObjectStorage, prefix string) *ArtifactWriter {
	return &ArtifactWriter{store: store, prefix: prefix}
}

// ArtifactKey returns <prefix>/<dataset>/<YYYY-MM-DD>/<dataset>.<ext>.
func ArtifactKey(prefix, dataset string, businessDate time.Time, ext string) string {
	return path.Join(prefix, dataset, businessDate.Format(domain.DateLayout), dataset+"."+ext)
}

type column[T any] struct {
	name  string
	value func(T) string
}

func encodeCSV[T any](rows []T, cols []column[T]) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.name
	}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := make([]string, len(cols))
		for i, c := range cols {
			record[i] = c.value(row)
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

var aggregatedColumns = []column[domain.AggregatedOrderLine]{
	{"warehouse_code", func(r domain.AggregatedOrderLine) string { return r.WarehouseCode }},
	{"sku_code", func(r domain.AggregatedOrderLine) string { return r.SKUCode }},
	{"order_date", func(r domain.AggregatedOrderLine) string { return formatDate(r.OrderDate) }},
	{"total_quantity", func(r domain.AggregatedOrderLine) string { return itoa(r.TotalQuantity) }},
	{"order_count", func(r domain.AggregatedOrderLine) string { return strconv.Itoa(r.OrderCount) }},
	{"product_name", func(r domain.AggregatedOrderLine) string { return r.ProductName }},
	{"category", func(r domain.AggregatedOrderLine) string { return r.Category }},
	{"uom", func(r domain.AggregatedOrderLine) string { return r.UOM }},
	{"warehouse_name", func(r domain.AggregatedOrderLine) string { return r.WarehouseName }},
	{"city", func(r domain.AggregatedOrderLine) string { return r.City }},
}

var netDemandColumns = []column[domain.NetDemand]{
	{"warehouse_code", func(r domain.NetDemand) string { return r.WarehouseCode }},
	{"sku_code", func(r domain.NetDemand) string { return r.SKUCode }},
	{"business_date", func(r domain.NetDemand) string { return formatDate(r.BusinessDate) }},
	{"requested_qty", func(r domain.NetDemand) string { return itoa(r.RequestedQty) }},
	{"safety_stock", func(r domain.NetDemand) string { return itoa(r.SafetyStock) }},
	{"on_hand", func(r domain.NetDemand) string { return itoa(r.OnHand) }},
	{"reserved", func(r domain.NetDemand) string { return itoa(r.Reserved) }},
	{"available_qty", func(r domain.NetDemand) string { return itoa(r.AvailableQty) }},
	{"net_requirement", func(r domain.NetDemand) string { return itoa(r.NetRequirement) }},
	{"product_name", func(r domain.NetDemand) string { return r.ProductName }},
	{"category", func(r domain.NetDemand) string { return r.Category }},
	{"uom", func(r domain.NetDemand) string { return r.UOM }},
	{"warehouse_name", func(r domain.NetDemand) string { return r.WarehouseName }},
	{"city", func(r domain.NetDemand) string { return r.City }},
}

var supplierOrderColumns = []column[domain.SupplierOrderLine]{
	{"po_id", func(r domain.SupplierOrderLine) string { return r.POID }},
	{"warehouse_code", func(r domain.SupplierOrderLine) string { return r.WarehouseCode }},
	{"sku_code", func(r domain.SupplierOrderLine) string { return r.SKUCode }},
	{"business_date", func(r domain.SupplierOrderLine) string { return formatDate(r.BusinessDate) }},
	{"supplier_code", func(r domain.SupplierOrderLine) string { return r.SupplierCode }},
	{"supplier_name", func(r domain.SupplierOrderLine) string { return r.SupplierName }},
	{"product_name", func(r domain.SupplierOrderLine) string { return r.ProductName }},
	{"net_requirement", func(r domain.SupplierOrderLine) string { return itoa(r.NetRequirement) }},
	{"ordered_qty", func(r domain.SupplierOrderLine) string { return itoa(r.OrderedQty) }},
	{"pack_size", func(r domain.SupplierOrderLine) string { return itoa(r.PackSize) }},
	{"min_order_qty", func(r domain.SupplierOrderLine) string { return itoa(r.MinOrderQty) }},
	{"unit_price", func(r domain.SupplierOrderLine) string { return r.UnitPrice.String() }},
	{"currency", func(r domain.SupplierOrderLine) string { return r.Currency }},
	{"total_cost", func(r domain.SupplierOrderLine) string { return r.TotalCost.String() }},
	{"lead_time_days", func(r domain.SupplierOrderLine) string { return strconv.Itoa(r.LeadTimeDays) }},
	{"expected_delivery_date", func(r domain.SupplierOrderLine) string { return formatDate(r.ExpectedDeliveryDate) }},
	{"status", func(r domain.SupplierOrderLine) string { return r.Status }},
}

var exceptionColumns = []column[domain.Exception]{
	{"stage", func(r domain.Exception) string { return r.Stage }},
	{"warehouse_code", func(r domain.Exception) string { return r.WarehouseCode }},
	{"sku_code", func(r domain.Exception) string { return r.SKUCode }},
	{"reference", func(r domain.Exception) string { return r.Reference }},
	{"reason", func(r domain.Exception) string { return r.Reason }},
	{"detail", func(r domain.Exception) string { return r.Detail }},
}

type artifact struct {
	key  string
	data []byte
}

type encoder struct {
	dataset string
	ext     string
	encode  func() ([]byte, error)
}

// Write encodes every dataset and uploads it. Nothing is uploaded if any
// dataset fails to encode.
func (a *ArtifactWriter) Write(ctx context.Context, businessDate time.Time, res *procurement.Result) ([]string, error) {
	date := domain.TruncateDate(businessDate)

	encoders := []encoder{
		{DatasetAggregatedOrders, "csv", func() ([]byte, error) { return encodeCSV(res.Aggregated, aggregatedColumns) }},
		{DatasetAggregatedOrders, "json", func() ([]byte, error) { return encodeJSON(nonNil(res.Aggregated)) }},
		{DatasetNetDemand, "csv", func() ([]byte, error) { return encodeCSV(res.NetDemand, netDemandColumns) }},
		{DatasetNetDemand, "json", func() ([]byte, error) { return encodeJSON(nonNil(res.NetDemand)) }},
		{DatasetSupplierOrders, "csv", func() ([]byte, error) { return encodeCSV(res.SupplierOrders, supplierOrderColumns) }},
		{DatasetSupplierOrders, "json", func() ([]byte, error) { return encodeJSON(nonNil(res.SupplierOrders)) }},
		{DatasetExceptions, "csv", func() ([]byte, error) { return encodeCSV(res.Exceptions, exceptionColumns) }},
		{DatasetExceptions, "json", func() ([]byte, error) { return encodeJSON(nonNil(res.Exceptions)) }},
		{DatasetRunSummary, "json", func() ([]byte, error) { return encodeJSON(res.Summary) }},
	}

	pending := make([]artifact, 0, len(encoders))
	for _, enc := range encoders {
		data, err := enc.encode()
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", enc.dataset, enc.ext, err)
		}
		pending = append(pending, artifact{key: ArtifactKey(a.prefix, enc.dataset, date, enc.ext), data: data})
	}

	keys := make([]string, 0, len(pending))
	for _, art := range pending {
		if err := ctx.Err(); err != nil {
			return keys, err
		}
		if err := a.store.UploadObject(ctx, art.key, art.data); err != nil {
			return keys, fmt.Errorf("upload %s: %w", art.key, err)
		}
		keys = append(keys, art.key)
	}

	log.Info().
		Str("business_date", date.Format(domain.DateLayout)).
		Int("artifacts", len(keys)).
		Str("prefix", a.prefix).
		Msg("artifacts published")
	return keys, nil
}

// WriteSummary uploads only run_summary.json. A failed publish uses it to
// replace the summary of an earlier successful run of the same date.
func (a *ArtifactWriter) WriteSummary(ctx context.Context, businessDate time.Time, summary domain.RunSummary) error {
	data, err := encodeJSON(summary)
	if err != nil {
		return fmt.Errorf("encode %s json: %w", DatasetRunSummary, err)
	}
	key := ArtifactKey(a.prefix, DatasetRunSummary, domain.TruncateDate(businessDate), "json")
	if err := a.store.UploadObject(ctx, key, data); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
