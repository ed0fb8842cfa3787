package domain

import (
	"context"
	"iter"
	"time"
)

// CharacterRepository is the port for durable character storage. It is the
// system of record.
//
// Find methods return (nil, nil) when no row matches. Save inserts when
// Version is zero and otherwise updates only if the stored version still
// equals c.Version, returning ErrStaleVersion when it does not. A save that
// would duplicate a name returns ErrDuplicateName.
type CharacterRepository interface {
	Save(ctx context.Context, c Character) (Character, error)
	FindByID(ctx context.Context, id string) (*Character, error)
	FindByName(ctx context.Context, name string) (*Character, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	DeleteByID(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
	// FindAll, FindByLevelRange and FindByOwner stream rows lazily. Each call starts a new
	// read; breaking out of the loop releases the underlying cursor.
	FindAll(ctx context.Context) iter.Seq2[Character, error]
	FindByLevelRange(ctx context.Context, minLevel, maxLevel int) iter.Seq2[Character, error]
	FindByOwner(ctx context.Context, ownerID string) iter.Seq2[Character, error]
}

// CharacterCache is the port for the disposable read projection keyed by id
// and by name. Misses return (nil, nil). It is never authoritative.
type CharacterCache interface {
	Get(ctx context.Context, id string) (*Character, error)
	GetByName(ctx context.Context, name string) (*Character, error)
	Save(ctx context.Context, c Character, ttl time.Duration) error
	Evict(ctx context.Context, id, name string) error
	EvictAll(ctx context.Context) error
}

// EventPublisher is the port for the lifecycle event log. Delivery is
// at-least-once and not linked to the store transaction.
type EventPublisher interface {
	Publish(ctx context.Context, e LifecycleEvent) error
}

// NotificationSink receives human-readable notifications derived from
// lifecycle events.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification) error
}
