package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Deduper remembers processed event ids with SET NX so redelivered entries
// are handled once.
type Deduper struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewDeduper(client *goredis.Client, prefix string, ttl time.Duration) *Deduper {
	return &Deduper{client: client, prefix: prefix, ttl: ttl}
}

// Claim returns true the first time it sees eventID within the TTL.
func (d *Deduper) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(eventID), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return ok, nil
}

// Release forgets eventID so a later delivery is processed again.
func (d *Deduper) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, d.key(eventID)).Err()
}

func (d *Deduper) key(eventID string) string {
	return d.prefix + eventID
}
