// internal/repository/postgres/po_repository.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

type resultRepository struct {
	db *DB
}

func NewResultRepository(db *DB) *resultRepository {
	return &resultRepository{db: db}
}

var _ repository.ResultRepository = (*resultRepository)(nil)

var resultTables = []string{"aggregated_orders", "net_demand", "supplier_orders", "run_exceptions", "run_summaries"}

// SaveResults replaces everything stored for the business date in one transaction.
func (r *resultRepository) SaveResults(ctx context.Context, results *repository.ResultSet) error {
	date := domain.TruncateDate(results.BusinessDate)
	payload, err := json.Marshal(results.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, table := range resultTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE business_date = $1", date); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		if err := insertEach(ctx, tx, `
			INSERT INTO aggregated_orders (
				business_date, warehouse_code, sku_code, order_date, total_quantity,
				order_count, product_name, category, uom, warehouse_name, city
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, results.Aggregated, func(l domain.AggregatedOrderLine) []any {
			return []any{date, l.WarehouseCode, l.SKUCode, l.OrderDate, l.TotalQuantity,
				l.OrderCount, l.ProductName, l.Category, l.UOM, l.WarehouseName, l.City}
		}); err != nil {
			return fmt.Errorf("failed to insert aggregated orders: %w", err)
		}

		if err := insertEach(ctx, tx, `
			INSERT INTO net_demand (
				business_date, warehouse_code, sku_code, requested_qty, safety_stock,
				on_hand, reserved, available_qty, net_requirement,
				product_name, category, uom, warehouse_name, city
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, results.NetDemand, func(d domain.NetDemand) []any {
			return []any{date, d.WarehouseCode, d.SKUCode, d.RequestedQty, d.SafetyStock,
				d.OnHand, d.Reserved, d.AvailableQty, d.NetRequirement,
				d.ProductName, d.Category, d.UOM, d.WarehouseName, d.City}
		}); err != nil {
			return fmt.Errorf("failed to insert net demand: %w", err)
		}

		if err := insertEach(ctx, tx, `
			INSERT INTO supplier_orders (
				po_id, business_date, warehouse_code, sku_code, supplier_code, supplier_name,
				product_name, net_requirement, ordered_qty, pack_size, min_order_qty,
				unit_price, currency, total_cost, lead_time_days, expected_delivery_date, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`, results.SupplierOrders, func(o domain.SupplierOrderLine) []any {
			return []any{o.POID, date, o.WarehouseCode, o.SKUCode, o.SupplierCode, o.SupplierName,
				o.ProductName, o.NetRequirement, o.OrderedQty, o.PackSize, o.MinOrderQty,
				o.UnitPrice, o.Currency, o.TotalCost, o.LeadTimeDays, o.ExpectedDeliveryDate, o.Status}
		}); err != nil {
			return fmt.Errorf("failed to insert supplier orders: %w", err)
		}

		seq := 0
		if err := insertEach(ctx, tx, `
			INSERT INTO run_exceptions (
				business_date, seq, stage, warehouse_code, sku_code, reference, reason, detail
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, results.Exceptions, func(e domain.Exception) []any {
			seq++
			return []any{date, seq, e.Stage, e.WarehouseCode, e.SKUCode, e.Reference, e.Reason, e.Detail}
		}); err != nil {
			return fmt.Errorf("failed to insert exceptions: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_summaries (business_date, run_id, status, payload, finished_at)
			VALUES ($1, $2, $3, $4, $5)
		`, date, results.Summary.RunID, string(results.Summary.Status), payload, results.Summary.FinishedAt)
		if err != nil {
			return fmt.Errorf("failed to insert run summary: %w", err)
		}
		return nil
	})
}

func insertEach[T any](ctx context.Context, tx *sqlx.Tx, query string, rows []T, args func(T) []any) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, args(row)...); err != nil {
			return err
		}
	}
	return nil
}

func (r *resultRepository) GetSupplierOrders(ctx context.Context, businessDate time.Time, filter repository.OrderFilter) ([]domain.SupplierOrderLine, int, error) {
	filter = filter.Normalize()
	date := domain.TruncateDate(businessDate)
	where := `
		WHERE business_date = $1
		  AND ($2 = '' OR warehouse_code = $2)
		  AND ($3 = '' OR supplier_code = $3)
	`

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total,
		`SELECT COUNT(*) FROM supplier_orders`+where,
		date, filter.WarehouseCode, filter.SupplierCode,
	); err != nil {
		return nil, 0, fmt.Errorf("failed to count supplier orders: %w", err)
	}

	query := `
		SELECT po_id, business_date, warehouse_code, sku_code, supplier_code, supplier_name,
		       product_name, net_requirement, ordered_qty, pack_size, min_order_qty,
		       unit_price, currency, total_cost, lead_time_days, expected_delivery_date, status
		FROM supplier_orders` + where + `
		ORDER BY po_id
		LIMIT $4 OFFSET $5
	`
	orders := []domain.SupplierOrderLine{}
	if err := sqlx.SelectContext(ctx, r.db, &orders, query,
		date, filter.WarehouseCode, filter.SupplierCode, filter.PageSize, filter.Offset(),
	); err != nil {
		return nil, 0, fmt.Errorf("failed to list supplier orders: %w", err)
	}

	return orders, total, nil
}

func (r *resultRepository) GetNetDemand(ctx context.Context, businessDate time.Time, warehouseCode string) ([]domain.NetDemand, error) {
	query := `
		SELECT business_date, warehouse_code, sku_code, requested_qty, safety_stock,
		       on_hand, reserved, available_qty, net_requirement,
		       product_name, category, uom, warehouse_name, city
		FROM net_demand
		WHERE business_date = $1
		  AND ($2 = '' OR warehouse_code = $2)
		ORDER BY warehouse_code, sku_code
	`
	rows := []domain.NetDemand{}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, domain.TruncateDate(businessDate), warehouseCode); err != nil {
		return nil, fmt.Errorf("failed to list net demand: %w", err)
	}
	return rows, nil
}

func (r *resultRepository) GetExceptions(ctx context.Context, businessDate time.Time, stage string) ([]domain.Exception, error) {
	query := `
		SELECT stage, warehouse_code, sku_code, reference, reason, detail
		FROM run_exceptions
		WHERE business_date = $1
		  AND ($2 = '' OR stage = $2)
		ORDER BY seq
	`
	rows := []domain.Exception{}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, domain.TruncateDate(businessDate), stage); err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	return rows, nil
}

func (r *resultRepository) GetRunSummary(ctx context.Context, businessDate time.Time) (*domain.RunSummary, error) {
	var payload []byte
	err := sqlx.GetContext(ctx, r.db, &payload,
		`SELECT payload FROM run_summaries WHERE business_date = $1`,
		domain.TruncateDate(businessDate),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run summary: %w", err)
	}

	var summary domain.RunSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode run summary: %w", err)
	}
	return &summary, nil
}

func (r *resultRepository) GetAvailableDates(ctx context.Context, limit int) ([]time.Time, error) {
	if limit <= 0 {
		limit = 90
	}
	dates := []time.Time{}
	if err := sqlx.SelectContext(ctx, r.db, &dates,
		`SELECT business_date FROM run_summaries ORDER BY business_date DESC LIMIT $1`, limit,
	); err != nil {
		return nil, fmt.Errorf("failed to list available dates: %w", err)
	}
	for i := range dates {
		dates[i] = domain.TruncateDate(dates[i])
	}
	return dates, nil
}
