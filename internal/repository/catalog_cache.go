package repository

import (
	"context"
	"encoding/json"
	"time"

	"billpos/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const catalogKeyPrefix = "catalog:"

// cachedCatalog is a Redis read-through cache in front of the hot catalog
// lookups used while ringing items on and dispatching tickets. Cache failures
// fall back to the database; writes are best effort.
type cachedCatalog struct {
	CatalogRepository
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedCatalog wraps next with a Redis cache. A nil client or a zero TTL
// disables caching.
func NewCachedCatalog(next CatalogRepository, rdb *redis.Client, ttl time.Duration) CatalogRepository {
	if rdb == nil || ttl <= 0 {
		return next
	}
	return &cachedCatalog{CatalogRepository: next, rdb: rdb, ttl: ttl}
}

func readThrough[T any](ctx context.Context, c *cachedCatalog, key string, load func() (T, error)) (T, error) {
	key = catalogKeyPrefix + key
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var v T
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			return v, nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if b, jsonErr := json.Marshal(v); jsonErr == nil {
		if setErr := c.rdb.Set(context.Background(), key, b, c.ttl).Err(); setErr != nil {
			log.Debug().Err(setErr).Str("key", key).Msg("catalog cache: set failed")
		}
	}
	return v, nil
}

func (c *cachedCatalog) FindItem(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	return readThrough(ctx, c, "item:"+id.String(), func() (*model.Item, error) {
		return c.CatalogRepository.FindItem(ctx, id)
	})
}

func (c *cachedCatalog) FindModifierItem(ctx context.Context, id uuid.UUID) (*model.ModifierItem, error) {
	return readThrough(ctx, c, "modifier_item:"+id.String(), func() (*model.ModifierItem, error) {
		return c.CatalogRepository.FindModifierItem(ctx, id)
	})
}

func (c *cachedCatalog) ListPriceGroups(ctx context.Context) ([]model.PriceGroup, error) {
	return readThrough(ctx, c, "price_groups", func() ([]model.PriceGroup, error) {
		return c.CatalogRepository.ListPriceGroups(ctx)
	})
}

func (c *cachedCatalog) ListPrinters(ctx context.Context) ([]model.Printer, error) {
	return readThrough(ctx, c, "printers", func() ([]model.Printer, error) {
		return c.CatalogRepository.ListPrinters(ctx)
	})
}

func (c *cachedCatalog) PrintersForGroup(ctx context.Context, groupID uuid.UUID) ([]model.Printer, error) {
	return readThrough(ctx, c, "printer_group:"+groupID.String(), func() ([]model.Printer, error) {
		return c.CatalogRepository.PrintersForGroup(ctx, groupID)
	})
}

// InvalidateCatalog drops every cached catalog entry.
func InvalidateCatalog(ctx context.Context, rdb *redis.Client) error {
	iter := rdb.Scan(ctx, 0, catalogKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rdb.Del(ctx, keys...).Err()
}
