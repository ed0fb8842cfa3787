// Package memory implements in-memory adapters for development and testing.
package memory

import (
	"cmp"
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"textrpg/internal/domain"
)

// DB implements an in-memory character repository.
type DB struct {
	mu         sync.Mutex
	characters map[string]domain.Character
	names      map[string]string
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		characters: make(map[string]domain.Character),
		names:      make(map[string]string),
	}
}

// Ensure interfaces are met.
var _ domain.CharacterRepository = (*DB)(nil)
var _ domain.CharacterCache = (*Cache)(nil)
var _ domain.EventPublisher = (*Publisher)(nil)
var _ domain.NotificationSink = (*Notifications)(nil)

// --- CharacterRepository ---

// Save inserts c when its version is zero and otherwise replaces the stored
// row if the versions match. The returned copy carries the new version.
func (db *DB) Save(ctx context.Context, c domain.Character) (domain.Character, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, exists := db.characters[c.ID]
	switch {
	case c.Version == 0 && exists:
		return domain.Character{}, domain.ErrStaleVersion
	case c.Version != 0 && (!exists || stored.Version != c.Version):
		return domain.Character{}, domain.ErrStaleVersion
	}
	if owner, ok := db.names[c.Name]; ok && owner != c.ID {
		return domain.Character{}, domain.ErrDuplicateName
	}

	if exists && stored.Name != c.Name {
		delete(db.names, stored.Name)
	}
	c.Version++
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	db.characters[c.ID] = c
	db.names[c.Name] = c.ID
	return c, nil
}

// FindByID returns nil when no character has id.
func (db *DB) FindByID(ctx context.Context, id string) (*domain.Character, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if c, ok := db.characters[id]; ok {
		return &c, nil
	}
	return nil, nil
}

// FindByName returns nil when no character is called name.
func (db *DB) FindByName(ctx context.Context, name string) (*domain.Character, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if id, ok := db.names[name]; ok {
		c := db.characters[id]
		return &c, nil
	}
	return nil, nil
}

func (db *DB) ExistsByID(ctx context.Context, id string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.characters[id]
	return ok, nil
}

func (db *DB) ExistsByName(ctx context.Context, name string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.names[name]
	return ok, nil
}

// DeleteByID reports whether a character was removed.
func (db *DB) DeleteByID(ctx context.Context, id string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.characters[id]
	if !ok {
		return false, nil
	}
	delete(db.characters, id)
	delete(db.names, c.Name)
	return true, nil
}

// Count returns the total number of characters.
func (db *DB) Count(ctx context.Context) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return int64(len(db.characters)), nil
}

// FindAll yields a snapshot ordered by creation time.
func (db *DB) FindAll(ctx context.Context) iter.Seq2[domain.Character, error] {
	return db.scan(ctx, func(domain.Character) bool { return true })
}

// FindByLevelRange yields characters with minLevel <= level <= maxLevel.
func (db *DB) FindByLevelRange(ctx context.Context, minLevel, maxLevel int) iter.Seq2[domain.Character, error] {
	return db.scan(ctx, func(c domain.Character) bool {
		return c.Level >= minLevel && c.Level <= maxLevel
	})
}

// FindByOwner yields the characters owned by ownerID.
func (db *DB) FindByOwner(ctx context.Context, ownerID string) iter.Seq2[domain.Character, error] {
	return db.scan(ctx, func(c domain.Character) bool { return c.OwnerID == ownerID })
}

func (db *DB) scan(ctx context.Context, keep func(domain.Character) bool) iter.Seq2[domain.Character, error] {
	return func(yield func(domain.Character, error) bool) {
		db.mu.Lock()
		snapshot := make([]domain.Character, 0, len(db.characters))
		for _, c := range db.characters {
			if keep(c) {
				snapshot = append(snapshot, c)
			}
		}
		db.mu.Unlock()

		slices.SortFunc(snapshot, func(a, b domain.Character) int {
			return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
		})
		for _, c := range snapshot {
			if err := ctx.Err(); err != nil {
				yield(domain.Character{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// --- CharacterCache ---

type cacheEntry struct {
	character domain.Character
	expiresAt time.Time
}

// Cache is a TTL-bounded character cache keyed by id and by name.
type Cache struct {
	mu     sync.Mutex
	byID   map[string]cacheEntry
	byName map[string]cacheEntry
	now    func() time.Time
}

// NewCache creates an empty cache. A nil clock uses time.Now.
func NewCache(clock func() time.Time) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		byID:   make(map[string]cacheEntry),
		byName: make(map[string]cacheEntry),
		now:    clock,
	}
}

func (c *Cache) Get(ctx context.Context, id string) (*domain.Character, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(c.byID, id), nil
}

func (c *Cache) GetByName(ctx context.Context, name string) (*domain.Character, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(c.byName, name), nil
}

func (c *Cache) lookup(m map[string]cacheEntry, key string) *domain.Character {
	e, ok := m[key]
	if !ok {
		return nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(m, key)
		return nil
	}
	ch := e.character
	return &ch
}

// Save stores ch under both keys for ttl.
func (c *Cache) Save(ctx context.Context, ch domain.Character, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := cacheEntry{character: ch, expiresAt: c.now().Add(ttl)}
	c.byID[ch.ID] = e
	c.byName[ch.Name] = e
	return nil
}

// Evict removes the id entry and the name entry. The name entry is only
// removed while it still points at id.
func (c *Cache) Evict(ctx context.Context, id, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byID, id)
	if e, ok := c.byName[name]; ok && e.character.ID == id {
		delete(c.byName, name)
	}
	return nil
}

func (c *Cache) EvictAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.byID)
	clear(c.byName)
	return nil
}

// Len returns the number of id-keyed entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byID)
}

// --- EventPublisher ---

// Publisher records published events in order.
type Publisher struct {
	mu     sync.Mutex
	events []domain.LifecycleEvent
}

func NewPublisher() *Publisher { return &Publisher{} }

func (p *Publisher) Publish(ctx context.Context, e domain.LifecycleEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// Events returns a copy of every recorded event.
func (p *Publisher) Events() []domain.LifecycleEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

// Kinds returns the kinds of every recorded event.
func (p *Publisher) Kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]domain.EventKind, len(p.events))
	for i, e := range p.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// --- NotificationSink ---

// Notifications records delivered notifications.
type Notifications struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (n *Notifications) Notify(ctx context.Context, note domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, note)
	return nil
}

func (n *Notifications) All() []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.items)
}
