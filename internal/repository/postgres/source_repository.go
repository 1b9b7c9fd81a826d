package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

type orderRepository struct {
	db *DB
}

func NewOrderRepository(db *DB) *orderRepository {
	return &orderRepository{db: db}
}

var _ repository.OrderRepository = (*orderRepository)(nil)

type orderLineRow struct {
	OrderID       string       `db:"order_id"`
	WarehouseCode string       `db:"warehouse_code"`
	SKUCode       string       `db:"sku_code"`
	Quantity      int64        `db:"quantity"`
	OrderDate     sql.NullTime `db:"order_date"`
}

// ListOrderLines returns the order feed loaded for the business date. A date
// without a registered feed is reported as ErrInputNotFound.
func (r *orderRepository) ListOrderLines(ctx context.Context, businessDate time.Time) ([]domain.RawOrderLine, error) {
	date := domain.TruncateDate(businessDate)

	var feeds int
	if err := sqlx.GetContext(ctx, r.db, &feeds,
		`SELECT COUNT(*) FROM order_feeds WHERE business_date = $1`, date,
	); err != nil {
		return nil, fmt.Errorf("failed to check order feed: %w", err)
	}
	if feeds == 0 {
		return nil, fmt.Errorf("orders for %s: %w", date.Format(domain.DateLayout), repository.ErrInputNotFound)
	}

	query := `
		SELECT order_id, warehouse_code, sku_code, quantity, order_date
		FROM order_lines
		WHERE business_date = $1
	`
	var rows []orderLineRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, date); err != nil {
		return nil, fmt.Errorf("failed to list order lines: %w", err)
	}

	lines := make([]domain.RawOrderLine, len(rows))
	for i, row := range rows {
		lines[i] = domain.RawOrderLine{
			OrderID:       row.OrderID,
			WarehouseCode: row.WarehouseCode,
			SKUCode:       row.SKUCode,
			Quantity:      row.Quantity,
		}
		if row.OrderDate.Valid {
			lines[i].OrderDate = domain.TruncateDate(row.OrderDate.Time)
		}
	}
	return lines, nil
}

// SaveOrderLines replaces the order feed of a business date.
func (r *orderRepository) SaveOrderLines(ctx context.Context, businessDate time.Time, lines []domain.RawOrderLine) error {
	date := domain.TruncateDate(businessDate)
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_lines WHERE business_date = $1`, date); err != nil {
			return fmt.Errorf("failed to clear order lines: %w", err)
		}
		if err := insertEach(ctx, tx, `
			INSERT INTO order_lines (order_id, warehouse_code, sku_code, quantity, order_date, business_date)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, lines, func(l domain.RawOrderLine) []any {
			var orderDate sql.NullTime
			if !l.OrderDate.IsZero() {
				orderDate = sql.NullTime{Time: l.OrderDate, Valid: true}
			}
			return []any{l.OrderID, l.WarehouseCode, l.SKUCode, l.Quantity, orderDate, date}
		}); err != nil {
			return fmt.Errorf("failed to insert order lines: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_feeds (business_date, loaded_at) VALUES ($1, NOW())
			ON CONFLICT (business_date) DO UPDATE SET loaded_at = NOW()
		`, date)
		return err
	})
}

type snapshotRepository struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *snapshotRepository {
	return &snapshotRepository{db: db}
}

var (
	_ repository.SnapshotRepository = (*snapshotRepository)(nil)
	_ repository.SnapshotWriter     = (*snapshotRepository)(nil)
)

// ListSnapshots returns the latest snapshot at or before the business date
// for every (warehouse, SKU).
func (r *snapshotRepository) ListSnapshots(ctx context.Context, businessDate time.Time) ([]domain.InventorySnapshot, error) {
	query := `
		SELECT DISTINCT ON (warehouse_code, sku_code)
		       warehouse_code, sku_code, snapshot_date, on_hand, reserved
		FROM inventory_snapshots
		WHERE snapshot_date <= $1
		ORDER BY warehouse_code, sku_code, snapshot_date DESC
	`
	var snapshots []domain.InventorySnapshot
	if err := sqlx.SelectContext(ctx, r.db, &snapshots, query, domain.TruncateDate(businessDate)); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	for i := range snapshots {
		snapshots[i].SnapshotDate = domain.TruncateDate(snapshots[i].SnapshotDate)
	}
	return snapshots, nil
}

func (r *snapshotRepository) SaveSnapshots(ctx context.Context, snapshots []domain.InventorySnapshot) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return insertEach(ctx, tx, `
			INSERT INTO inventory_snapshots (warehouse_code, sku_code, snapshot_date, on_hand, reserved)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (warehouse_code, sku_code, snapshot_date)
			DO UPDATE SET on_hand = EXCLUDED.on_hand, reserved = EXCLUDED.reserved
		`, snapshots, func(s domain.InventorySnapshot) []any {
			return []any{s.WarehouseCode, s.SKUCode, domain.TruncateDate(s.SnapshotDate), s.OnHand, s.Reserved}
		})
	})
}
