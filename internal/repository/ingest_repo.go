package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

// IngestRepository upserts master data rows loaded by the seed command.
type IngestRepository struct {
	db *sql.DB
}

func NewIngestRepository(db *sql.DB) *IngestRepository {
	return &IngestRepository{db: db}
}

// IngestStats counts the rows written per table.
type IngestStats struct {
	Products     int
	Warehouses   int
	Suppliers    int
	Terms        int
	SafetyStocks int
}

// UpsertMasterData writes all records in one transaction, keyed by their codes.
func (r *IngestRepository) UpsertMasterData(ctx context.Context, records domain.MasterDataRecords) (IngestStats, error) {
	var stats IngestStats
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range records.Products {
		if _, err := r.upsertProduct(ctx, tx, &records.Products[i]); err != nil {
			return stats, err
		}
		stats.Products++
	}
	for i := range records.Warehouses {
		if _, err := r.upsertWarehouse(ctx, tx, &records.Warehouses[i]); err != nil {
			return stats, err
		}
		stats.Warehouses++
	}
	for i := range records.Suppliers {
		if _, err := r.upsertSupplier(ctx, tx, &records.Suppliers[i]); err != nil {
			return stats, err
		}
		stats.Suppliers++
	}
	for i := range records.Terms {
		if err := r.upsertTerm(ctx, tx, &records.Terms[i]); err != nil {
			return stats, err
		}
		stats.Terms++
	}
	for i := range records.SafetyStocks {
		if err := r.upsertSafetyStock(ctx, tx, &records.SafetyStocks[i]); err != nil {
			return stats, err
		}
		stats.SafetyStocks++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("failed to commit master data: %w", err)
	}
	return stats, nil
}

func (r *IngestRepository) upsertProduct(ctx context.Context, tx *sql.Tx, product *domain.Product) (int64, error) {
	query := `
		INSERT INTO products (sku_code, name, category, uom, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (sku_code)
		DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			uom = EXCLUDED.uom,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING id
	`
	var id int64
	err := tx.QueryRowContext(ctx, query,
		product.SKUCode,
		product.Name,
		product.Category,
		product.UOM,
		product.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert product %s: %w", product.SKUCode, err)
	}
	product.ID = id
	return id, nil
}

func (r *IngestRepository) upsertWarehouse(ctx context.Context, tx *sql.Tx, warehouse *domain.Warehouse) (int64, error) {
	query := `
		INSERT INTO warehouses (code, name, city, active, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (code)
		DO UPDATE SET name = EXCLUDED.name, city = EXCLUDED.city, active = EXCLUDED.active, updated_at = NOW()
		RETURNING id
	`
	var id int64
	err := tx.QueryRowContext(ctx, query, warehouse.Code, warehouse.Name, warehouse.City, warehouse.Active).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert warehouse %s: %w", warehouse.Code, err)
	}
	warehouse.ID = id
	return id, nil
}

func (r *IngestRepository) upsertSupplier(ctx context.Context, tx *sql.Tx, supplier *domain.Supplier) (int64, error) {
	query := `
		INSERT INTO suppliers (code, name, contact_email, contact_phone, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (code)
		DO UPDATE SET
			name = EXCLUDED.name,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING id
	`
	var id int64
	err := tx.QueryRowContext(ctx, query,
		supplier.Code,
		supplier.Name,
		supplier.ContactEmail,
		supplier.ContactPhone,
		supplier.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert supplier %s: %w", supplier.Code, err)
	}
	supplier.ID = id
	return id, nil
}

// upsertTermQuery never lets an older row overwrite a newer one for the same
// (supplier, SKU), so loading files out of order keeps the latest term.
const upsertTermQuery = `
	INSERT INTO supplier_product_terms (
		supplier_code, sku_code, pack_size, min_order_qty, lead_time_days,
		unit_price, currency, active, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
	ON CONFLICT (supplier_code, sku_code)
	DO UPDATE SET
		pack_size = EXCLUDED.pack_size,
		min_order_qty = EXCLUDED.min_order_qty,
		lead_time_days = EXCLUDED.lead_time_days,
		unit_price = EXCLUDED.unit_price,
		currency = EXCLUDED.currency,
		active = EXCLUDED.active,
		updated_at = EXCLUDED.updated_at
	WHERE supplier_product_terms.updated_at <= EXCLUDED.updated_at
`

func (r *IngestRepository) upsertTerm(ctx context.Context, tx *sql.Tx, term *domain.SupplierProductTerm) error {
	var updatedAt sql.NullTime
	if !term.UpdatedAt.IsZero() {
		updatedAt = sql.NullTime{Time: term.UpdatedAt, Valid: true}
	}
	_, err := tx.ExecContext(ctx, upsertTermQuery,
		term.SupplierCode,
		term.SKUCode,
		term.PackSize,
		term.MinOrderQty,
		term.LeadTimeDays,
		term.UnitPrice,
		term.Currency,
		term.Active,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert term %s/%s: %w", term.SupplierCode, term.SKUCode, err)
	}
	return nil
}

func (r *IngestRepository) upsertSafetyStock(ctx context.Context, tx *sql.Tx, target *domain.SafetyStockTarget) error {
	query := `
		INSERT INTO safety_stock_targets (warehouse_code, sku_code, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (warehouse_code, sku_code)
		DO UPDATE SET quantity = EXCLUDED.quantity
	`
	if _, err := tx.ExecContext(ctx, query, target.WarehouseCode, target.SKUCode, target.Quantity); err != nil {
		return fmt.Errorf("failed to upsert safety stock %s/%s: %w", target.WarehouseCode, target.SKUCode, err)
	}
	return nil
}
