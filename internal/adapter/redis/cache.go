package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"textrpg/internal/domain"
)

const (
	idKeyPrefix   = "character:"
	nameKeyPrefix = "character:name:"
	scanBatch     = 500
)

// Cache stores JSON character projections under an id key and a name key,
// each with its own TTL.
type Cache struct {
	client *goredis.Client
}

var _ domain.CharacterCache = (*Cache)(nil)

func NewCache(client *goredis.Client) *Cache {
	return &Cache{client: client}
}

func idKey(id string) string     { return idKeyPrefix + id }
func nameKey(name string) string { return nameKeyPrefix + name }

func (c *Cache) Get(ctx context.Context, id string) (*domain.Character, error) {
	return c.load(ctx, idKey(id))
}

// GetByName only returns an entry whose stored name still matches.
func (c *Cache) GetByName(ctx context.Context, name string) (*domain.Character, error) {
	ch, err := c.load(ctx, nameKey(name))
	if err != nil || ch == nil {
		return nil, err
	}
	if ch.Name != name {
		return nil, nil
	}
	return ch, nil
}

func (c *Cache) load(ctx context.Context, key string) (*domain.Character, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}
	var ch domain.Character
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return &ch, nil
}

// Save writes both keys in one MULTI/EXEC.
func (c *Cache) Save(ctx context.Context, ch domain.Character, ttl time.Duration) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	_, err = c.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, idKey(ch.ID), raw, ttl)
		p.Set(ctx, nameKey(ch.Name), raw, ttl)
		return nil
	})
	return err
}

// Evict deletes the id key, and the name key while it still belongs to id.
func (c *Cache) Evict(ctx context.Context, id, name string) error {
	if err := c.client.Del(ctx, idKey(id)).Err(); err != nil {
		return fmt.Errorf("cache evict %s: %w", id, err)
	}
	key := nameKey(name)
	err := c.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		// Undecodable entries are dropped along with ours.
		var owner domain.Character
		if json.Unmarshal(raw, &owner) == nil && owner.ID != id {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("cache evict name %q: %w", name, err)
	}
	return nil
}

// EvictAll removes every character key using SCAN so large caches do not
// block the server.
func (c *Cache) EvictAll(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, idKeyPrefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache delete: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
