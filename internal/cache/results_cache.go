// Package cache keeps read-side copies of published run results in Redis.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/procurement-engine/internal/config"
	"github.com/andresuchdata/procurement-engine/internal/domain"
	"github.com/andresuchdata/procurement-engine/internal/repository"
)

const resultsKeyPrefix = "procurement"

// ResultsCache caches run summaries and supplier order pages per business date.
type ResultsCache interface {
	GetSummary(ctx context.Context, businessDate time.Time) (*domain.RunSummary, bool, error)
	SetSummary(ctx context.Context, businessDate time.Time, summary *domain.RunSummary) error
	GetSupplierOrders(ctx context.Context, businessDate time.Time, filter repository.OrderFilter) (*domain.SupplierOrderPage, bool, error)
	SetSupplierOrders(ctx context.Context, businessDate time.Time, filter repository.OrderFilter, page *domain.SupplierOrderPage) error
	InvalidateDate(ctx context.Context, businessDate time.Time) error
	InvalidateAll(ctx context.Context) error
}

type redisResultsCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopResultsCache struct{}

// NewResultsCache connects to Redis when caching is enabled and falls back to
// a no-op cache otherwise.
func NewResultsCache(cfg config.CacheConfig) (ResultsCache, error) {
	if !cfg.Enabled {
		return &noopResultsCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisResultsCache{
		client: client,
		ttl:    ttl,
	}, nil
}

// NewRedisResultsCache wraps an existing client.
func NewRedisResultsCache(client *redis.Client, ttl time.Duration) ResultsCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisResultsCache{client: client, ttl: ttl}
}

func NewNoopResultsCache() ResultsCache {
	return &noopResultsCache{}
}

func datePrefix(businessDate time.Time) string {
	return fmt.Sprintf("%s:%s:", resultsKeyPrefix, domain.TruncateDate(businessDate).Format(domain.DateLayout))
}

func summaryKey(businessDate time.Time) string {
	return datePrefix(businessDate) + "summary"
}

func ordersKey(businessDate time.Time, filter repository.OrderFilter) string {
	return datePrefix(businessDate) + "orders:" + orderFilterHash(filter)
}

func orderFilterHash(filter repository.OrderFilter) string {
	filter = filter.Normalize()
	raw := strings.Join([]string{
		"warehouse=" + strings.ToUpper(strings.TrimSpace(filter.WarehouseCode)),
		"supplier=" + strings.ToUpper(strings.TrimSpace(filter.SupplierCode)),
		fmt.Sprintf("page=%d", filter.Page),
		fmt.Sprintf("page_size=%d", filter.PageSize),
	}, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (c *redisResultsCache) get(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *redisResultsCache) set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisResultsCache) GetSummary(ctx context.Context, businessDate time.Time) (*domain.RunSummary, bool, error) {
	var summary domain.RunSummary
	ok, err := c.get(ctx, summaryKey(businessDate), &summary)
	if !ok || err != nil {
		return nil, false, err
	}
	return &summary, true, nil
}

func (c *redisResultsCache) SetSummary(ctx context.Context, businessDate time.Time, summary *domain.RunSummary) error {
	return c.set(ctx, summaryKey(businessDate), summary)
}

func (c *redisResultsCache) GetSupplierOrders(ctx context.Context, businessDate time.Time, filter repository.OrderFilter) (*domain.SupplierOrderPage, bool, error) {
	var page domain.SupplierOrderPage
	ok, err := c.get(ctx, ordersKey(businessDate, filter), &page)
	if !ok || err != nil {
		return nil, false, err
	}
	return &page, true, nil
}

func (c *redisResultsCache) SetSupplierOrders(ctx context.Context, businessDate time.Time, filter repository.OrderFilter, page *domain.SupplierOrderPage) error {
	return c.set(ctx, ordersKey(businessDate, filter), page)
}

func (c *redisResultsCache) InvalidateDate(ctx context.Context, businessDate time.Time) error {
	return unlinkPrefix(ctx, c.client, datePrefix(businessDate))
}

func (c *redisResultsCache) InvalidateAll(ctx context.Context) error {
	return unlinkPrefix(ctx, c.client, resultsKeyPrefix+":")
}

func (n *noopResultsCache) GetSummary(ctx context.Context, businessDate time.Time) (*domain.RunSummary, bool, error) {
	return nil, false, nil
}

func (n *noopResultsCache) SetSummary(ctx context.Context, businessDate time.Time, summary *domain.RunSummary) error {
	return nil
}

func (n *noopResultsCache) GetSupplierOrders(ctx context.Context, businessDate time.Time, filter repository.OrderFilter) (*domain.SupplierOrderPage, bool, error) {
	return nil, false, nil
}

func (n *noopResultsCache) SetSupplierOrders(ctx context.Context, businessDate time.Time, filter repository.OrderFilter, page *domain.SupplierOrderPage) error {
	return nil
}

func (n *noopResultsCache) InvalidateDate(ctx context.Context, businessDate time.Time) error {
	return nil
}

func (n *noopResultsCache) InvalidateAll(ctx context.Context) error {
	return nil
}
