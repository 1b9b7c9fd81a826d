package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical business date format used in keys, ids and paths.
const DateLayout = "2006-01-02"

// StockKey identifies a (warehouse, SKU) pair
type StockKey struct {
	WarehouseCode string `json:"warehouse_code" db:"warehouse_code"`
	SKUCode       string `json:"sku_code" db:"sku_code"`
}

func (k StockKey) String() string {
	return k.WarehouseCode + "/" + k.SKUCode
}

// Less orders keys by warehouse then SKU.
func (k StockKey) Less(o StockKey) bool {
	if k.WarehouseCode != o.WarehouseCode {
		return k.WarehouseCode < o.WarehouseCode
	}
	return k.SKUCode < o.SKUCode
}

// RawOrderLine is a single customer order line as delivered by the order feed.
type RawOrderLine struct {
	OrderID       string    `json:"order_id" db:"order_id"`
	WarehouseCode string    `json:"warehouse_code" db:"warehouse_code"`
	SKUCode       string    `json:"sku_code" db:"sku_code"`
	Quantity      int64     `json:"quantity" db:"quantity"`
	OrderDate     time.Time `json:"order_date" db:"order_date"`
}

// StockLevel is a point-in-time stock count for a (warehouse, SKU).
type StockLevel struct {
	WarehouseCode string    `json:"warehouse_code" db:"warehouse_code"`
	SKUCode       string    `json:"sku_code" db:"sku_code"`
	OnHand        int64     `json:"on_hand" db:"on_hand"`
	AsOf          time.Time `json:"as_of" db:"as_of"`
}

// InventorySnapshot carries on-hand and reserved quantities captured on a date.
type InventorySnapshot struct {
	WarehouseCode string    `json:"warehouse_code" db:"warehouse_code"`
	SKUCode       string    `json:"sku_code" db:"sku_code"`
	SnapshotDate  time.Time `json:"snapshot_date" db:"snapshot_date"`
	OnHand        int64     `json:"on_hand" db:"on_hand"`
	Reserved      int64     `json:"reserved" db:"reserved"`
}

// AggregatedOrderLine is demand summed per (warehouse, SKU, order date)
type AggregatedOrderLine struct {
	WarehouseCode string    `json:"warehouse_code" db:"warehouse_code"`
	SKUCode       string    `json:"sku_code" db:"sku_code"`
	OrderDate     time.Time `json:"order_date" db:"order_date"`
	TotalQuantity int64     `json:"total_quantity" db:"total_quantity"`
	OrderCount    int       `json:"order_count" db:"order_count"`
	ProductName   string    `json:"product_name" db:"product_name"`
	Category      string    `json:"category" db:"category"`
	UOM           string    `json:"uom" db:"uom"`
	WarehouseName string    `json:"warehouse_name" db:"warehouse_name"`
	City          string    `json:"city" db:"city"`
}

func (l AggregatedOrderLine) Key() StockKey {
	return StockKey{WarehouseCode: l.WarehouseCode, SKUCode: l.SKUCode}
}

// InventoryState is the resolved stock position for a (warehouse, SKU).
type InventoryState struct {
	Key          StockKey  `json:"key"`
	SnapshotDate time.Time `json:"snapshot_date" db:"snapshot_date"`
	OnHand       int64     `json:"on_hand" db:"on_hand"`
	Reserved     int64     `json:"reserved" db:"reserved"`
	Available    int64     `json:"available"`
	Found        bool      `json:"found"`
	Stale        bool      `json:"stale"`
}

// NetDemand is the replenishment requirement for a (warehouse, SKU) on a business date.
type NetDemand struct {
	WarehouseCode  string    `json:"warehouse_code" db:"warehouse_code"`
	SKUCode        string    `json:"sku_code" db:"sku_code"`
	BusinessDate   time.Time `json:"business_date" db:"business_date"`
	RequestedQty   int64     `json:"requested_qty" db:"requested_qty"`
	SafetyStock    int64     `json:"safety_stock" db:"safety_stock"`
	OnHand         int64     `json:"on_hand" db:"on_hand"`
	Reserved       int64     `json:"reserved" db:"reserved"`
	AvailableQty   int64     `json:"available_qty" db:"available_qty"`
	NetRequirement int64     `json:"net_requirement" db:"net_requirement"`
	ProductName    string    `json:"product_name" db:"product_name"`
	Category       string    `json:"category" db:"category"`
	UOM            string    `json:"uom" db:"uom"`
	WarehouseName  string    `json:"warehouse_name" db:"warehouse_name"`
	City           string    `json:"city" db:"city"`
}

func (d NetDemand) Key() StockKey {
	return StockKey{WarehouseCode: d.WarehouseCode, SKUCode: d.SKUCode}
}

// SupplierOrderLine is a purchase-order line issued to the selected supplier.
type SupplierOrderLine struct {
	POID                 string          `json:"po_id" db:"po_id"`
	WarehouseCode        string          `json:"warehouse_code" db:"warehouse_code"`
	SKUCode              string          `json:"sku_code" db:"sku_code"`
	BusinessDate         time.Time       `json:"business_date" db:"business_date"`
	SupplierCode         string          `json:"supplier_code" db:"supplier_code"`
	SupplierName         string          `json:"supplier_name" db:"supplier_name"`
	ProductName          string          `json:"product_name" db:"product_name"`
	NetRequirement       int64           `json:"net_requirement" db:"net_requirement"`
	OrderedQty           int64           `json:"ordered_qty" db:"ordered_qty"`
	PackSize             int64           `json:"pack_size" db:"pack_size"`
	MinOrderQty          int64           `json:"min_order_qty" db:"min_order_qty"`
	UnitPrice            decimal.Decimal `json:"unit_price" db:"unit_price"`
	Currency             string          `json:"currency" db:"currency"`
	TotalCost            decimal.Decimal `json:"total_cost" db:"total_cost"`
	LeadTimeDays         int             `json:"lead_time_days" db:"lead_time_days"`
	ExpectedDeliveryDate time.Time       `json:"expected_delivery_date" db:"expected_delivery_date"`
	Status               string          `json:"status" db:"status"`
}

func (o SupplierOrderLine) Key() StockKey {
	return StockKey{WarehouseCode: o.WarehouseCode, SKUCode: o.SKUCode}
}

// SupplierOrderPage is one page of supplier order lines for a business date.
type SupplierOrderPage struct {
	Items    []SupplierOrderLine `json:"items"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// TruncateDate drops the time of day, keeping the calendar date in UTC.
func TruncateDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD business date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
