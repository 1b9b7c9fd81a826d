package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

var (
	// ErrInputNotFound is returned when a source has no data for the requested business date.
	ErrInputNotFound = errors.New("input not found")
	// ErrNotFound is returned by result lookups with no matching row.
	ErrNotFound = errors.New("not found")
)

// MasterDataRepository loads products, warehouses, suppliers, terms and safety stock.
type MasterDataRepository interface {
	LoadMasterData(ctx context.Context) (domain.MasterDataRecords, error)
}

// OrderRepository returns raw order lines delivered for a business date.
type OrderRepository interface {
	ListOrderLines(ctx context.Context, businessDate time.Time) ([]domain.RawOrderLine, error)
}

// SnapshotRepository returns inventory snapshots taken at or before a business date.
type SnapshotRepository interface {
	ListSnapshots(ctx context.Context, businessDate time.Time) ([]domain.InventorySnapshot, error)
}

// StockRepository returns current stock counts for a business date.
type StockRepository interface {
	ListStockLevels(ctx context.Context, businessDate time.Time) ([]domain.StockLevel, error)
}

// SnapshotWriter stores snapshots; used by the loader command.
type SnapshotWriter interface {
	SaveSnapshots(ctx context.Context, snapshots []domain.InventorySnapshot) error
}
