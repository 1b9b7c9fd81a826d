package objectstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
	"github.com/andresuchdata/procurement-engine/internal/storage"
)

// Feed names used as the first path segment under the input prefix.
const (
	FeedOrders     = "orders"
	FeedStock      = "stock"
	FeedSnapshots  = "snapshots"
	FeedMasterData = "masterdata"
)

// FeedPrefix returns <prefix>/<feed>/<YYYY-MM-DD>/.
func FeedPrefix(prefix, feed string, businessDate time.Time) string {
	return path.Join(prefix, feed, domain.TruncateDate(businessDate).Format(domain.DateLayout)) + "/"
}

// Feeds reads input files laid out as <prefix>/<feed>/<YYYY-MM-DD>/<file>.
type Feeds struct {
	store  storage.ObjectStorage
	prefix string
}

func NewFeeds(store storage.ObjectStorage, prefix string) *Feeds {
	return &Feeds{store: store, prefix: prefix}
}

var (
	_ repository.MasterDataRepository = (*Feeds)(nil)
	_ repository.OrderRepository      = (*Feeds)(nil)
	_ repository.StockRepository      = (*Feeds)(nil)
	_ repository.SnapshotRepository   = (*Feeds)(nil)
)

type object struct {
	key  string
	data []byte
}

// files reads every supported object under prefix, in key order.
func (f *Feeds) files(ctx context.Context, prefix string, keep func(key string) bool) ([]object, error) {
	infos, err := f.store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var out []object
	for _, info := range infos {
		if !supported(info.Key) || (keep != nil && !keep(info.Key)) {
			continue
		}
		data, err := f.store.ReadObject(ctx, info.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, object{key: info.Key, data: data})
	}
	return out, nil
}

// ListOrderLines reads every order file of the business date.
func (f *Feeds) ListOrderLines(ctx context.Context, businessDate time.Time) ([]domain.RawOrderLine, error) {
	prefix := FeedPrefix(f.prefix, FeedOrders, businessDate)
	objects, err := f.files(ctx, prefix, nil)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("orders under %s: %w", prefix, repository.ErrInputNotFound)
	}

	var lines []domain.RawOrderLine
	for _, obj := range objects {
		parsed, err := ParseOrderLines(obj.key, obj.data)
		if err != nil {
			return nil, err
		}
		lines = append(lines, parsed...)
	}
	return lines, nil
}

// ListStockLevels reads the stock count files of the business date.
func (f *Feeds) ListStockLevels(ctx context.Context, businessDate time.Time) ([]domain.StockLevel, error) {
	date := domain.TruncateDate(businessDate)
	prefix := FeedPrefix(f.prefix, FeedStock, date)
	objects, err := f.files(ctx, prefix, nil)
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("stock under %s: %w", prefix, repository.ErrInputNotFound)
	}

	var levels []domain.StockLevel
	for _, obj := range objects {
		parsed, err := ParseStockLevels(obj.key, obj.data, date)
		if err != nil {
			return nil, err
		}
		levels = append(levels, parsed...)
	}
	return levels, nil
}

// ListSnapshots reads snapshot files from every date folder at or before the
// business date.
func (f *Feeds) ListSnapshots(ctx context.Context, businessDate time.Time) ([]domain.InventorySnapshot, error) {
	date := domain.TruncateDate(businessDate)
	root := path.Join(f.prefix, FeedSnapshots) + "/"
	folderDate := func(key string) (time.Time, bool) {
		folder := strings.SplitN(strings.TrimPrefix(key, root), "/", 2)[0]
		d, err := domain.ParseDate(folder)
		return d, err == nil && !d.After(date)
	}

	objects, err := f.files(ctx, root, func(key string) bool {
		_, ok := folderDate(key)
		return ok
	})
	if err != nil {
		return nil, err
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("snapshots under %s: %w", root, repository.ErrInputNotFound)
	}

	var snapshots []domain.InventorySnapshot
	for _, obj := range objects {
		d, _ := folderDate(obj.key)
		parsed, err := ParseSnapshots(obj.key, obj.data, d)
		if err != nil {
			return nil, err
		}
		for _, s := range parsed {
			if s.SnapshotDate.After(date) {
				continue
			}
			snapshots = append(snapshots, s)
		}
	}
	return snapshots, nil
}

// LoadMasterData reads the master data files under <prefix>/masterdata.
func (f *Feeds) LoadMasterData(ctx context.Context) (domain.MasterDataRecords, error) {
	return f.LoadMasterDataFrom(ctx, path.Join(f.prefix, FeedMasterData))
}
