// Package cassandra stores inventory snapshots in a wide-column keyspace,
// one partition per snapshot date.
package cassandra

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/procurement-engine/internal/config"
	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

const (
	snapshotDatesBucket = "all"
	batchSize           = 100
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_snapshots (
		snapshot_date  date,
		warehouse_code text,
		sku_code       text,
		on_hand        bigint,
		reserved       bigint,
		PRIMARY KEY ((snapshot_date), warehouse_code, sku_code)
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_snapshot_dates (
		bucket        text,
		snapshot_date date,
		PRIMARY KEY ((bucket), snapshot_date)
	) WITH CLUSTERING ORDER BY (snapshot_date DESC)`,
}

type SnapshotRepository struct {
	session      *gocql.Session
	lookbackDays int
}

var (
	_ repository.SnapshotRepository = (*SnapshotRepository)(nil)
	_ repository.SnapshotWriter     = (*SnapshotRepository)(nil)
)

// Connect opens a session against the configured cluster.
func Connect(cfg config.CassandraConfig) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	cluster.ConnectTimeout = cluster.Timeout

	consistency, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
	if err != nil {
		return nil, fmt.Errorf("invalid cassandra consistency %q: %w", cfg.Consistency, err)
	}
	cluster.Consistency = consistency

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cassandra: %w", err)
	}
	return session, nil
}

func NewSnapshotRepository(session *gocql.Session) *SnapshotRepository {
	return &SnapshotRepository{session: session}
}

// WithLookback limits ListSnapshots to partitions no more than days before the
// business date. Zero or less reads every partition.
func (r *SnapshotRepository) WithLookback(days int) *SnapshotRepository {
	r.lookbackDays = days
	return r
}

// lookbackStart returns the oldest partition date read for businessDate.
func lookbackStart(businessDate time.Time, days int) (time.Time, bool) {
	if days <= 0 {
		return time.Time{}, false
	}
	return domain.TruncateDate(businessDate).AddDate(0, 0, -days), true
}

// Migrate creates the snapshot tables when missing.
func (r *SnapshotRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := r.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("apply cassandra schema: %w", err)
		}
	}
	return nil
}

func (r *SnapshotRepository) snapshotDates(ctx context.Context, businessDate time.Time) ([]time.Time, error) {
	query := r.session.Query(
		`SELECT snapshot_date FROM inventory_snapshot_dates WHERE bucket = ? AND snapshot_date <= ?`,
		snapshotDatesBucket, businessDate,
	)
	if from, ok := lookbackStart(businessDate, r.lookbackDays); ok {
		query = r.session.Query(
			`SELECT snapshot_date FROM inventory_snapshot_dates WHERE bucket = ? AND snapshot_date <= ? AND snapshot_date >= ?`,
			snapshotDatesBucket, businessDate, from,
		)
	}
	iter := query.WithContext(ctx).Iter()

	var dates []time.Time
	scanner := iter.Scanner()
	for scanner.Next() {
		var d time.Time
		if err := scanner.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan snapshot date: %w", err)
		}
		dates = append(dates, domain.TruncateDate(d))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("list snapshot dates: %w", err)
	}
	return dates, nil
}

func (r *SnapshotRepository) partition(ctx context.Context, snapshotDate time.Time) ([]domain.InventorySnapshot, error) {
	iter := r.session.Query(
		`SELECT warehouse_code, sku_code, on_hand, reserved FROM inventory_snapshots WHERE snapshot_date = ?`,
		snapshotDate,
	).WithContext(ctx).PageSize(1000).Iter()

	var out []domain.InventorySnapshot
	scanner := iter.Scanner()
	for scanner.Next() {
		s := domain.InventorySnapshot{SnapshotDate: snapshotDate}
		if err := scanner.Scan(&s.WarehouseCode, &s.SKUCode, &s.OnHand, &s.Reserved); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read snapshots for %s: %w", snapshotDate.Format(domain.DateLayout), err)
	}
	return out, nil
}

// ListSnapshots walks snapshot partitions newest first and keeps the latest
// snapshot per (warehouse, SKU) at or before the business date. Partitions
// older than the lookback window are not read.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, businessDate time.Time) ([]domain.InventorySnapshot, error) {
	date := domain.TruncateDate(businessDate)
	dates, err := r.snapshotDates(ctx, date)
	if err != nil {
		return nil, err
	}

	partitions := make([][]domain.InventorySnapshot, 0, len(dates))
	for _, d := range dates {
		rows, err := r.partition(ctx, d)
		if err != nil {
			return nil, err
		}
		partitions = append(partitions, rows)
	}

	out := latestPerKey(partitions)
	log.Debug().
		Str("business_date", date.Format(domain.DateLayout)).
		Int("partitions", len(dates)).
		Int("snapshots", len(out)).
		Msg("cassandra snapshots loaded")
	return out, nil
}

// latestPerKey merges partitions ordered newest first, keeping the first
// snapshot seen for each key. Output is sorted by key.
func latestPerKey(partitions [][]domain.InventorySnapshot) []domain.InventorySnapshot {
	seen := make(map[domain.StockKey]struct{})
	var out []domain.InventorySnapshot
	for _, rows := range partitions {
		for _, s := range rows {
			key := domain.StockKey{WarehouseCode: s.WarehouseCode, SKUCode: s.SKUCode}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki := domain.StockKey{WarehouseCode: out[i].WarehouseCode, SKUCode: out[i].SKUCode}
		kj := domain.StockKey{WarehouseCode: out[j].WarehouseCode, SKUCode: out[j].SKUCode}
		return ki.Less(kj)
	})
	return out
}

// SaveSnapshots writes snapshots in unlogged batches grouped by partition.
func (r *SnapshotRepository) SaveSnapshots(ctx context.Context, snapshots []domain.InventorySnapshot) error {
	for date, rows := range groupByDate(snapshots) {
		for _, part := range chunk(rows, batchSize) {
			batch := r.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
			for _, s := range part {
				batch.Query(
					`INSERT INTO inventory_snapshots (snapshot_date, warehouse_code, sku_code, on_hand, reserved) VALUES (?, ?, ?, ?, ?)`,
					date, s.WarehouseCode, s.SKUCode, s.OnHand, s.Reserved,
				)
			}
			if err := r.session.ExecuteBatch(batch); err != nil {
				return fmt.Errorf("write snapshots for %s: %w", date.Format(domain.DateLayout), err)
			}
		}
		if err := r.session.Query(
			`INSERT INTO inventory_snapshot_dates (bucket, snapshot_date) VALUES (?, ?)`,
			snapshotDatesBucket, date,
		).WithContext(ctx).Exec(); err != nil {
			return fmt.Errorf("register snapshot date %s: %w", date.Format(domain.DateLayout), err)
		}
	}
	return nil
}

func groupByDate(snapshots []domain.InventorySnapshot) map[time.Time][]domain.InventorySnapshot {
	out := make(map[time.Time][]domain.InventorySnapshot)
	for _, s := range snapshots {
		d := domain.TruncateDate(s.SnapshotDate)
		out[d] = append(out[d], s)
	}
	return out
}

func chunk[T any](rows []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
