package objectstore

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

// Master data file names, without extension.
const (
	productsFile     = "products"
	warehousesFile   = "warehouses"
	suppliersFile    = "suppliers"
	termsFile        = "supplier_terms"
	safetyStocksFile = "safety_stock"
)

// LoadMasterDataFrom reads products, warehouses, suppliers, supplier terms and
// safety stock files from dir. Each file may be CSV or XLSX; absent files
// contribute no rows.
func (f *Feeds) LoadMasterDataFrom(ctx context.Context, dir string) (domain.MasterDataRecords, error) {
	var records domain.MasterDataRecords

	folder := path.Clean(dir)
	prefix := ""
	if folder != "." {
		prefix = folder + "/"
	}
	infos, err := f.store.ListObjects(ctx, prefix)
	if err != nil {
		return records, err
	}

	byName := make(map[string]string)
	for _, info := range infos {
		if !supported(info.Key) || path.Dir(info.Key) != folder {
			continue
		}
		base := path.Base(info.Key)
		byName[strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))] = info.Key
	}
	if len(byName) == 0 {
		return records, fmt.Errorf("master data under %q: %w", dir, repository.ErrInputNotFound)
	}

	load := func(name string, parse func(*table) error) error {
		key, ok := byName[name]
		if !ok {
			return nil
		}
		data, err := f.store.ReadObject(ctx, key)
		if err != nil {
			return err
		}
		t, err := parseTable(key, data)
		if err != nil {
			return err
		}
		return parse(t)
	}

	steps := []struct {
		name  string
		parse func(*table) error
	}{
		{productsFile, func(t *table) (err error) { records.Products, err = parseProducts(t); return }},
		{warehousesFile, func(t *table) (err error) { records.Warehouses, err = parseWarehouses(t); return }},
		{suppliersFile, func(t *table) (err error) { records.Suppliers, err = parseSuppliers(t); return }},
		{termsFile, func(t *table) (err error) { records.Terms, err = parseTerms(t); return }},
		{safetyStocksFile, func(t *table) (err error) { records.SafetyStocks, err = parseSafetyStocks(t); return }},
	}
	for _, step := range steps {
		if err := load(step.name, step.parse); err != nil {
			return records, err
		}
	}
	return records, nil
}

func parseProducts(t *table) ([]domain.Product, error) {
	if err := t.require("sku_code"); err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(t.rows))
	for _, rec := range t.rows {
		active, err := t.bool(rec, "active")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Product{
			SKUCode:  t.get(rec, "sku_code"),
			Name:     t.get(rec, "name"),
			Category: t.get(rec, "category"),
			UOM:      t.get(rec, "uom"),
			Active:   active,
		})
	}
	return out, nil
}

func parseWarehouses(t *table) ([]domain.Warehouse, error) {
	if err := t.require("code"); err != nil {
		return nil, err
	}
	out := make([]domain.Warehouse, 0, len(t.rows))
	for _, rec := range t.rows {
		active, err := t.bool(rec, "active")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Warehouse{
			Code:   t.get(rec, "code"),
			Name:   t.get(rec, "name"),
			City:   t.get(rec, "city"),
			Active: active,
		})
	}
	return out, nil
}

func parseSuppliers(t *table) ([]domain.Supplier, error) {
	if err := t.require("code"); err != nil {
		return nil, err
	}
	out := make([]domain.Supplier, 0, len(t.rows))
	for _, rec := range t.rows {
		active, err := t.bool(rec, "active")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Supplier{
			Code:         t.get(rec, "code"),
			Name:         t.get(rec, "name"),
			ContactEmail: t.get(rec, "contact_email"),
			ContactPhone: t.get(rec, "contact_phone"),
			Active:       active,
		})
	}
	return out, nil
}

func parseTerms(t *table) ([]domain.SupplierProductTerm, error) {
	if err := t.require("supplier_code", "sku_code", "pack_size", "unit_price"); err != nil {
		return nil, err
	}
	out := make([]domain.SupplierProductTerm, 0, len(t.rows))
	for _, rec := range t.rows {
		term := domain.SupplierProductTerm{
			SupplierCode: t.get(rec, "supplier_code"),
			SKUCode:      t.get(rec, "sku_code"),
			Currency:     t.get(rec, "currency"),
		}
		var err error
		if term.PackSize, err = t.int(rec, "pack_size"); err != nil {
			return nil, err
		}
		if term.MinOrderQty, err = t.int(rec, "min_order_qty"); err != nil {
			return nil, err
		}
		lead, err := t.int(rec, "lead_time_days")
		if err != nil {
			return nil, err
		}
		term.LeadTimeDays = int(lead)
		if term.UnitPrice, err = t.decimal(rec, "unit_price"); err != nil {
			return nil, err
		}
		if term.Active, err = t.bool(rec, "active"); err != nil {
			return nil, err
		}
		if term.UpdatedAt, err = t.timestamp(rec, "updated_at"); err != nil {
			return nil, err
		}
		out = append(out, term)
	}
	return out, nil
}

func parseSafetyStocks(t *table) ([]domain.SafetyStockTarget, error) {
	if err := t.require("sku_code", "quantity"); err != nil {
		return nil, err
	}
	out := make([]domain.SafetyStockTarget, 0, len(t.rows))
	for _, rec := range t.rows {
		qty, err := t.int(rec, "quantity")
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SafetyStockTarget{
			WarehouseCode: t.get(rec, "warehouse_code"),
			SKUCode:       t.get(rec, "sku_code"),
			Quantity:      qty,
		})
	}
	return out, nil
}

// bool reads a flag column; blank cells count as true.
func (t *table) bool(rec []string, col string) (bool, error) {
	raw := strings.ToLower(t.get(rec, col))
	switch raw {
	case "", "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: column %s: invalid flag %q", t.key, col, raw)
	}
	return v, nil
}

func (t *table) decimal(rec []string, col string) (decimal.Decimal, error) {
	raw := t.get(rec, col)
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: column %s: invalid decimal %q", t.key, col, raw)
	}
	return v, nil
}

// timestamp accepts RFC 3339 or a plain date.
func (t *table) timestamp(rec []string, col string) (time.Time, error) {
	raw := t.get(rec, col)
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	return t.date(rec, col)
}
