package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

type masterDataRepository struct {
	db *DB
}

func NewMasterDataRepository(db *DB) *masterDataRepository {
	return &masterDataRepository{db: db}
}

var _ repository.MasterDataRepository = (*masterDataRepository)(nil)

// LoadMasterData reads every master data table concurrently. Inactive rows
// are returned too; filtering is the snapshot's job.
func (r *masterDataRepository) LoadMasterData(ctx context.Context) (domain.MasterDataRecords, error) {
	var records domain.MasterDataRecords
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		query := `
			SELECT id, sku_code, name, category, uom, active
			FROM products
			ORDER BY sku_code
		`
		if err := sqlx.SelectContext(gctx, r.db, &records.Products, query); err != nil {
			return fmt.Errorf("failed to load products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		query := `
			SELECT id, code, name, city, active
			FROM warehouses
			ORDER BY code
		`
		if err := sqlx.SelectContext(gctx, r.db, &records.Warehouses, query); err != nil {
			return fmt.Errorf("failed to load warehouses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		query := `
			SELECT id, code, name, contact_email, contact_phone, active
			FROM suppliers
			ORDER BY code
		`
		if err := sqlx.SelectContext(gctx, r.db, &records.Suppliers, query); err != nil {
			return fmt.Errorf("failed to load suppliers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		query := `
			SELECT supplier_code, sku_code, pack_size, min_order_qty, lead_time_days,
			       unit_price, currency, active, updated_at
			FROM supplier_product_terms
			ORDER BY sku_code, supplier_code
		`
		if err := sqlx.SelectContext(gctx, r.db, &records.Terms, query); err != nil {
			return fmt.Errorf("failed to load supplier terms: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		query := `
			SELECT warehouse_code, sku_code, quantity
			FROM safety_stock_targets
			ORDER BY sku_code, warehouse_code
		`
		if err := sqlx.SelectContext(gctx, r.db, &records.SafetyStocks, query); err != nil {
			return fmt.Errorf("failed to load safety stock targets: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.MasterDataRecords{}, err
	}
	return records, nil
}
