package lead

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domain "coachcrm/internal/domain/lead"
)

// Cache is a read-through Redis cache in front of a Store.
// ListByOwner results are cached per owner; every write evicts the owner's entry.
type Cache struct {
	base  Store
	redis *redis.Client
	ttl   time.Duration
}

var _ Store = (*Cache)(nil)

// NewCache wraps base. A nil client disables caching.
func NewCache(base Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("lead.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

// ListByOwner serves from Redis when possible and fills the cache on a miss.
func (c *Cache) ListByOwner(ctx context.Context, ownerID string) ([]domain.Record, error) {
	if records, ok := c.load(ctx, ownerID); ok {
		return records, nil
	}
	records, err := c.base.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, ownerID, records)
	return records, nil
}

// GetByID always reads through to the store.
func (c *Cache) GetByID(ctx context.Context, ownerID, id string) (domain.Record, error) {
	return c.base.GetByID(ctx, ownerID, id)
}

// Insert writes through and evicts the owner's list.
func (c *Cache) Insert(ctx context.Context, r domain.NewRecord) (string, error) {
	id, err := c.base.Insert(ctx, r)
	if err != nil {
		return "", err
	}
	c.evict(ctx, r.OwnerID)
	return id, nil
}

// UpdateStatus writes through and evicts the owner's list.
func (c *Cache) UpdateStatus(ctx context.Context, ownerID, id, status string) error {
	if err := c.base.UpdateStatus(ctx, ownerID, id, status); err != nil {
		return err
	}
	c.evict(ctx, ownerID)
	return nil
}

// AddNote writes through and evicts the owner's list.
func (c *Cache) AddNote(ctx context.Context, ownerID, leadID, body string) error {
	if err := c.base.AddNote(ctx, ownerID, leadID, body); err != nil {
		return err
	}
	c.evict(ctx, ownerID)
	return nil
}

// AddTask writes through and evicts the owner's list.
func (c *Cache) AddTask(ctx context.Context, ownerID, leadID string, t domain.Task) error {
	if err := c.base.AddTask(ctx, ownerID, leadID, t); err != nil {
		return err
	}
	c.evict(ctx, ownerID)
	return nil
}

// SetTaskCompleted writes through and evicts the owner's list.
func (c *Cache) SetTaskCompleted(ctx context.Context, ownerID, leadID, taskID string, completed bool) error {
	if err := c.base.SetTaskCompleted(ctx, ownerID, leadID, taskID, completed); err != nil {
		return err
	}
	c.evict(ctx, ownerID)
	return nil
}

func (c *Cache) load(ctx context.Context, ownerID string) ([]domain.Record, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, leadsCacheKey(ownerID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("lead_cache", "event", "get_failed", "owner_id", ownerID, "error", err)
			_ = c.redis.Del(ctx, leadsCacheKey(ownerID)).Err()
		}
		return nil, false
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		_ = c.redis.Del(ctx, leadsCacheKey(ownerID)).Err()
		return nil, false
	}
	return records, true
}

func (c *Cache) store(ctx context.Context, ownerID string, records []domain.Record) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, leadsCacheKey(ownerID), data, c.ttl).Err(); err != nil {
		slog.Warn("lead_cache", "event", "set_failed", "owner_id", ownerID, "error", err)
	}
}

func (c *Cache) evict(ctx context.Context, ownerID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, leadsCacheKey(ownerID)).Result()
}

func leadsCacheKey(ownerID string) string {
	return "leads:" + ownerID
}
