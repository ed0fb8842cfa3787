package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textrpg/internal/domain"
)

var at = time.Date(2026, 7, 8, 9, 10, 11, 0, time.UTC)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hero(t *testing.T, name string) domain.Character {
	t.Helper()
	c, err := domain.NewCharacter(name, nil, at)
	require.NoError(t, err)
	c.Version = 1
	return c
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	client, err := Connect(context.Background(), addr, "", 0)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = Connect(context.Background(), addr, "", 0)
	require.Error(t, err)
}

func TestCache_SaveGet(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewCache(client)
	ctx := context.Background()
	c := hero(t, "Hero")

	miss, err := cache.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, cache.Save(ctx, c, time.Minute))

	got, err := cache.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c, *got)

	byName, err := cache.GetByName(ctx, "Hero")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, c.ID, byName.ID)

	assert.Equal(t, time.Minute, mr.TTL("character:"+c.ID))
	assert.Equal(t, time.Minute, mr.TTL("character:name:Hero"))

	mr.FastForward(2 * time.Minute)
	expired, err := cache.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestCache_EvictKeepsForeignNameEntry(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := NewCache(client)
	ctx := context.Background()

	old := hero(t, "Hero")
	require.NoError(t, cache.Save(ctx, old, time.Minute))
	// A different character has since claimed the name.
	other := hero(t, "Hero")
	require.NoError(t, cache.Save(ctx, other, time.Minute))

	require.NoError(t, cache.Evict(ctx, old.ID, "Hero"))

	gone, err := cache.Get(ctx, old.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := cache.GetByName(ctx, "Hero")
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, other.ID, kept.ID)

	require.NoError(t, cache.Evict(ctx, other.ID, "Hero"))
	none, err := cache.GetByName(ctx, "Hero")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCache_EvictAll(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewCache(client)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, cache.Save(ctx, hero(t, name), time.Minute))
	}
	require.NoError(t, mr.Set("unrelated", "x"))

	require.NoError(t, cache.EvictAll(ctx))
	assert.Equal(t, []string{"unrelated"}, mr.Keys())
}

func TestCache_CorruptEntry(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := NewCache(client)
	require.NoError(t, mr.Set("character:bad", "{not json"))

	_, err := cache.Get(context.Background(), "bad")
	require.Error(t, err)
}

func TestCache_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client)
	mr.Close()

	_, err = cache.Get(context.Background(), "x")
	require.Error(t, err)
	require.Error(t, cache.Save(context.Background(), hero(t, "Hero"), time.Minute))
}

func TestStreamPublisher_Publish(t *testing.T) {
	mr, client := setupTestRedis(t)
	pub := NewStreamPublisher(client, "events", 0)
	e := domain.NewLeveledUpEvent("c1", 1, 2, at)

	require.NoError(t, pub.Publish(context.Background(), e))

	entries, err := mr.Stream("events")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	msg := goredis.XMessage{ID: entries[0].ID, Values: map[string]any{}}
	for i := 0; i+1 < len(entries[0].Values); i += 2 {
		msg.Values[entries[0].Values[i]] = entries[0].Values[i+1]
	}
	assert.Equal(t, e.ID, msg.Values[fieldID])
	assert.Equal(t, string(domain.EventLeveledUp), msg.Values[fieldKind])

	decoded, err := decodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, e, decoded)
}

func TestStreamPublisher_RejectsInvalidEvent(t *testing.T) {
	_, client := setupTestRedis(t)
	pub := NewStreamPublisher(client, "events", 0)
	e := domain.NewCreatedEvent("c1", "Hero", domain.DefaultStats, at)
	e.Created = nil
	require.ErrorIs(t, pub.Publish(context.Background(), e), domain.ErrInvalidInput)
}

func TestNotificationStream_Notify(t *testing.T) {
	mr, client := setupTestRedis(t)
	sink := NewNotificationStream(client, "notifications")
	n := domain.NewDiedEvent("c1", at).Notification()

	require.NoError(t, sink.Notify(context.Background(), n))
	entries, err := mr.Stream("notifications")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values, "Character has died.")
}

func TestDeduper(t *testing.T) {
	_, client := setupTestRedis(t)
	d := NewDeduper(client, "processed:", time.Hour)
	ctx := context.Background()

	first, err := d.Claim(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.Claim(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Release(ctx, "e1"))
	retry, err := d.Claim(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, retry)
}

func newTestConsumer(client *goredis.Client, handle HandlerFunc, dedup *Deduper) *StreamConsumer {
	return NewStreamConsumer(client, ConsumerConfig{
		Stream:   "events",
		Group:    "notifier",
		Consumer: "test",
		Block:    -1,
	}, handle, dedup, quietLogger())
}

func TestStreamConsumer_ProcessesAndAcks(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	pub := NewStreamPublisher(client, "events", 0)

	var seen []domain.EventKind
	consumer := newTestConsumer(client, func(_ context.Context, e domain.LifecycleEvent) error {
		seen = append(seen, e.Kind)
		return nil
	}, NewDeduper(client, "processed:", time.Hour))
	require.NoError(t, consumer.EnsureGroup(ctx))
	require.NoError(t, consumer.EnsureGroup(ctx), "second call should tolerate BUSYGROUP")

	require.NoError(t, pub.Publish(ctx, domain.NewCreatedEvent("c1", "Hero", domain.DefaultStats, at)))
	require.NoError(t, pub.Publish(ctx, domain.NewDeletedEvent("c1", at)))

	// First call drains the (empty) pending list.
	n, err := consumer.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = consumer.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []domain.EventKind{domain.EventCreated, domain.EventDeleted}, seen)

	pending, err := client.XPending(ctx, "events", "notifier").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)

	n, err = consumer.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStreamConsumer_SkipsDuplicates(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	pub := NewStreamPublisher(client, "events", 0)

	calls := 0
	consumer := newTestConsumer(client, func(context.Context, domain.LifecycleEvent) error {
		calls++
		return nil
	}, NewDeduper(client, "processed:", time.Hour))
	require.NoError(t, consumer.EnsureGroup(ctx))

	e := domain.NewDiedEvent("c1", at)
	require.NoError(t, pub.Publish(ctx, e))
	require.NoError(t, pub.Publish(ctx, e))

	_, err := consumer.ProcessOnce(ctx)
	require.NoError(t, err)
	n, err := consumer.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, calls)
}

func TestStreamConsumer_FailedEntriesStayPending(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	pub := NewStreamPublisher(client, "events", 0)
	dedup := NewDeduper(client, "processed:", time.Hour)

	fail := true
	handle := func(context.Context, domain.LifecycleEvent) error {
		if fail {
			return errors.New("sink down")
		}
		return nil
	}
	consumer := newTestConsumer(client, handle, dedup)
	require.NoError(t, consumer.EnsureGroup(ctx))
	require.NoError(t, pub.Publish(ctx, domain.NewDiedEvent("c1", at)))

	_, err := consumer.ProcessOnce(ctx)
	require.NoError(t, err)
	n, err := consumer.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := client.XPending(ctx, "events", "notifier").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)

	// A restarted consumer retries the pending entry first.
	fail = false
	restarted := newTestConsumer(client, handle, dedup)
	n, err = restarted.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStreamConsumer_AcksMalformedEntries(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	consumer := newTestConsumer(client, func(context.Context, domain.LifecycleEvent) error {
		t.Error("handler must not see malformed entries")
		return nil
	}, nil)
	require.NoError(t, consumer.EnsureGroup(ctx))
	require.NoError(t, client.XAdd(ctx, &goredis.XAddArgs{
		Stream: "events",
		Values: map[string]any{"garbage": "1"},
	}).Err())

	_, err := consumer.ProcessOnce(ctx)
	require.NoError(t, err)
	n, err := consumer.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
