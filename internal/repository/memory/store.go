// Package memory provides in-memory repositories for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

// SourceStore serves master data, orders, snapshots and stock levels from memory.
type SourceStore struct {
	mu         sync.RWMutex
	masterData domain.MasterDataRecords
	orders     map[string][]domain.RawOrderLine
	snapshots  []domain.InventorySnapshot
	stock      []domain.StockLevel

	// Set to force the matching call to fail.
	MasterDataErr error
	OrdersErr     error
	SnapshotsErr  error
	StockErr      error
}

// NewSourceStore creates an empty source store
func NewSourceStore() *SourceStore {
	return &SourceStore{orders: make(map[string][]domain.RawOrderLine)}
}

var (
	_ repository.MasterDataRepository = (*SourceStore)(nil)
	_ repository.OrderRepository      = (*SourceStore)(nil)
	_ repository.SnapshotRepository   = (*SourceStore)(nil)
	_ repository.StockRepository      = (*SourceStore)(nil)
	_ repository.SnapshotWriter       = (*SourceStore)(nil)
)

func (s *SourceStore) SetMasterData(records domain.MasterDataRecords) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masterData = records
}

// AddOrderLines registers an order feed for a business date. Registering an
// empty slice marks the feed as delivered with no lines.
func (s *SourceStore) AddOrderLines(businessDate time.Time, lines ...domain.RawOrderLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.TruncateDate(businessDate).Format(domain.DateLayout)
	if _, ok := s.orders[key]; !ok {
		s.orders[key] = []domain.RawOrderLine{}
	}
	s.orders[key] = append(s.orders[key], lines...)
}

func (s *SourceStore) AddStockLevels(levels ...domain.StockLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = append(s.stock, levels...)
}

func (s *SourceStore) LoadMasterData(ctx context.Context) (domain.MasterDataRecords, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.MasterDataErr != nil {
		return domain.MasterDataRecords{}, s.MasterDataErr
	}
	return s.masterData, nil
}

func (s *SourceStore) ListOrderLines(ctx context.Context, businessDate time.Time) ([]domain.RawOrderLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.OrdersErr != nil {
		return nil, s.OrdersErr
	}
	lines, ok := s.orders[domain.TruncateDate(businessDate).Format(domain.DateLayout)]
	if !ok {
		return nil, repository.ErrInputNotFound
	}
	out := make([]domain.RawOrderLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *SourceStore) ListSnapshots(ctx context.Context, businessDate time.Time) ([]domain.InventorySnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.SnapshotsErr != nil {
		return nil, s.SnapshotsErr
	}
	date := domain.TruncateDate(businessDate)
	var out []domain.InventorySnapshot
	for _, snap := range s.snapshots {
		if !domain.TruncateDate(snap.SnapshotDate).After(date) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *SourceStore) SaveSnapshots(ctx context.Context, snapshots []domain.InventorySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshots...)
	return nil
}

func (s *SourceStore) ListStockLevels(ctx context.Context, businessDate time.Time) ([]domain.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.StockErr != nil {
		return nil, s.StockErr
	}
	out := make([]domain.StockLevel, len(s.stock))
	copy(out, s.stock)
	return out, nil
}

// ResultStore keeps run results keyed by business date.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*repository.ResultSet
	saves   int
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]*repository.ResultSet)}
}

var _ repository.ResultRepository = (*ResultStore)(nil)

func dateKey(t time.Time) string {
	return domain.TruncateDate(t).Format(domain.DateLayout)
}

func (s *ResultStore) SaveResults(ctx context.Context, results *repository.ResultSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *results
	s.results[dateKey(results.BusinessDate)] = &cp
	s.saves++
	return nil
}

// Saves returns how many times SaveResults succeeded.
func (s *ResultStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *ResultStore) get(date time.Time) (*repository.ResultSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs, ok := s.results[dateKey(date)]
	return rs, ok
}

func (s *ResultStore) GetSupplierOrders(ctx context.Context, businessDate time.Time, filter repository.OrderFilter) ([]domain.SupplierOrderLine, int, error) {
	rs, ok := s.get(businessDate)
	if !ok {
		return []domain.SupplierOrderLine{}, 0, nil
	}
	filter = filter.Normalize()

	var matched []domain.SupplierOrderLine
	for _, l := range rs.SupplierOrders {
		if filter.WarehouseCode != "" && l.WarehouseCode != filter.WarehouseCode {
			continue
		}
		if filter.SupplierCode != "" && l.SupplierCode != filter.SupplierCode {
			continue
		}
		matched = append(matched, l)
	}
	total := len(matched)
	start := filter.Offset()
	if start >= total {
		return []domain.SupplierOrderLine{}, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *ResultStore) GetNetDemand(ctx context.Context, businessDate time.Time, warehouseCode string) ([]domain.NetDemand, error) {
	rs, ok := s.get(businessDate)
	if !ok {
		return []domain.NetDemand{}, nil
	}
	out := []domain.NetDemand{}
	for _, row := range rs.NetDemand {
		if warehouseCode == "" || row.WarehouseCode == warehouseCode {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *ResultStore) GetExceptions(ctx context.Context, businessDate time.Time, stage string) ([]domain.Exception, error) {
	rs, ok := s.get(businessDate)
	if !ok {
		return []domain.Exception{}, nil
	}
	out := []domain.Exception{}
	for _, ex := range rs.Exceptions {
		if stage == "" || ex.Stage == stage {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (s *ResultStore) GetRunSummary(ctx context.Context, businessDate time.Time) (*domain.RunSummary, error) {
	rs, ok := s.get(businessDate)
	if !ok {
		return nil, repository.ErrNotFound
	}
	summary := rs.Summary
	return &summary, nil
}

func (s *ResultStore) GetAvailableDates(ctx context.Context, limit int) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dates := make([]time.Time, 0, len(s.results))
	for _, rs := range s.results {
		dates = append(dates, domain.TruncateDate(rs.BusinessDate))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}
