package doctors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medconnect/scheduling-api/pkg/logging"
)

// CachedRepository layers a short-TTL redis cache over the public directory
// reads. Writes pass through and invalidate. A nil client degrades to the
// wrapped repository.
type CachedRepository struct {
	Repository
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedRepository wraps repo with a redis read-through cache.
func NewCachedRepository(repo Repository, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedRepository {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedRepository{Repository: repo, redis: client, ttl: ttl, logger: logger}
}

func (c *CachedRepository) listKey(filter ListFilter) string {
	return fmt.Sprintf("medconnect:doctors:list:%t:%s", filter.ActiveOnly, filter.Specialty)
}

func (c *CachedRepository) docKey(id int64) string {
	return fmt.Sprintf("medconnect:doctors:%d", id)
}

func (c *CachedRepository) List(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	if c.redis == nil {
		return c.Repository.List(ctx, filter)
	}

	key := c.listKey(filter)
	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cached []*Doctor
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("doctors: cache read failed", "error", err, "key", key)
	}

	out, err := c.Repository.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(out); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("doctors: cache write failed", "error", err, "key", key)
		}
	}
	return out, nil
}

func (c *CachedRepository) Get(ctx context.Context, id int64) (*Doctor, error) {
	if c.redis == nil {
		return c.Repository.Get(ctx, id)
	}

	key := c.docKey(id)
	if data, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cached Doctor
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn("doctors: cache read failed", "error", err, "key", key)
	}

	doc, err := c.Repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(doc); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("doctors: cache write failed", "error", err, "key", key)
		}
	}
	return doc, nil
}

func (c *CachedRepository) Create(ctx context.Context, doc *Doctor) (*Doctor, error) {
	created, err := c.Repository.Create(ctx, doc)
	if err == nil {
		c.invalidate(ctx, created.ID)
	}
	return created, err
}

func (c *CachedRepository) Update(ctx context.Context, doc *Doctor) (*Doctor, error) {
	updated, err := c.Repository.Update(ctx, doc)
	if err == nil {
		c.invalidate(ctx, doc.ID)
	}
	return updated, err
}

func (c *CachedRepository) SetActive(ctx context.Context, id int64, active bool) (*Doctor, error) {
	updated, err := c.Repository.SetActive(ctx, id, active)
	if err == nil {
		c.invalidate(ctx, id)
	}
	return updated, err
}

func (c *CachedRepository) invalidate(ctx context.Context, id int64) {
	if c.redis == nil {
		return
	}
	keys := []string{c.docKey(id)}
	iter := c.redis.Scan(ctx, 0, "medconnect:doctors:list:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("doctors: cache scan failed", "error", err)
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("doctors: cache invalidation failed", "error", err)
	}
}

var _ Repository = (*CachedRepository)(nil)
