// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item identified by its SKU code
type Product struct {
	ID       int64  `json:"id" db:"id"`
	SKUCode  string `json:"sku_code" db:"sku_code"`
	Name     string `json:"name" db:"name"`
	Category string `json:"category" db:"category"`
	UOM      string `json:"uom" db:"uom"`
	Active   bool   `json:"active" db:"active"`
}

// Warehouse is a stocking location
type Warehouse struct {
	ID     int64  `json:"id" db:"id"`
	Code   string `json:"code" db:"code"`
	Name   string `json:"name" db:"name"`
	City   string `json:"city" db:"city"`
	Active bool   `json:"active" db:"active"`
}

// Supplier represents a vendor that can fulfil purchase orders
type Supplier struct {
	ID           int64  `json:"id" db:"id"`
	Code         string `json:"code" db:"code"`
	Name         string `json:"name" db:"name"`
	ContactEmail string `json:"contact_email" db:"contact_email"`
	ContactPhone string `json:"contact_phone" db:"contact_phone"`
	Active       bool   `json:"active" db:"active"`
}

// SupplierProductTerm holds the commercial terms a supplier offers for one SKU.
type SupplierProductTerm struct {
	SupplierCode string          `json:"supplier_code" db:"supplier_code"`
	SKUCode      string          `json:"sku_code" db:"sku_code"`
	PackSize     int64           `json:"pack_size" db:"pack_size"`
	MinOrderQty  int64           `json:"min_order_qty" db:"min_order_qty"`
	LeadTimeDays int             `json:"lead_time_days" db:"lead_time_days"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
	Currency     string          `json:"currency" db:"currency"`
	Active       bool            `json:"active" db:"active"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// SafetyStockTarget is a minimum stock policy. An empty WarehouseCode marks a
// global target for the SKU.
type SafetyStockTarget struct {
	WarehouseCode string `json:"warehouse_code" db:"warehouse_code"`
	SKUCode       string `json:"sku_code" db:"sku_code"`
	Quantity      int64  `json:"quantity" db:"quantity"`
}

// IsGlobal reports whether the target applies to every warehouse.
func (t SafetyStockTarget) IsGlobal() bool {
	return t.WarehouseCode == ""
}

// MasterDataRecords is the raw master data as loaded from the relational store.
type MasterDataRecords struct {
	Products     []Product
	Warehouses   []Warehouse
	Suppliers    []Supplier
	Terms        []SupplierProductTerm
	SafetyStocks []SafetyStockTarget
}

// Empty reports whether nothing usable was loaded.
func (r MasterDataRecords) Empty() bool {
	return len(r.Products) == 0 || len(r.Warehouses) == 0
}
