package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventKind discriminates lifecycle events.
type EventKind string

const (
	EventCreated     EventKind = "character.created"
	EventNameChanged EventKind = "character.name_changed"
	EventLeveledUp   EventKind = "character.leveled_up"
	EventDied        EventKind = "character.died"
	EventDeleted     EventKind = "character.deleted"
)

// EventKinds is the closed set of lifecycle event kinds.
var EventKinds = []EventKind{EventCreated, EventNameChanged, EventLeveledUp, EventDied, EventDeleted}

// LifecycleEvent is an immutable fact about a character. Exactly one payload
// is set for kinds that carry one; Died and Deleted carry none.
type LifecycleEvent struct {
	ID          string              `json:"id"`
	Kind        EventKind           `json:"kind"`
	CharacterID string              `json:"characterId"`
	OccurredAt  time.Time           `json:"occurredAt"`
	Created     *CreatedPayload     `json:"created,omitempty"`
	NameChanged *NameChangedPayload `json:"nameChanged,omitempty"`
	LeveledUp   *LeveledUpPayload   `json:"leveledUp,omitempty"`
}

type CreatedPayload struct {
	Name  string `json:"name"`
	Stats Stats  `json:"stats"`
}

type NameChangedPayload struct {
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

type LeveledUpPayload struct {
	OldLevel int `json:"oldLevel"`
	NewLevel int `json:"newLevel"`
}

func newEvent(kind EventKind, characterID string, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		ID:          ulid.Make().String(),
		Kind:        kind,
		CharacterID: characterID,
		OccurredAt:  at,
	}
}

func NewCreatedEvent(characterID, name string, stats Stats, at time.Time) LifecycleEvent {
	e := newEvent(EventCreated, characterID, at)
	e.Created = &CreatedPayload{Name: name, Stats: stats}
	return e
}

func NewNameChangedEvent(characterID, oldName, newName string, at time.Time) LifecycleEvent {
	e := newEvent(EventNameChanged, characterID, at)
	e.NameChanged = &NameChangedPayload{OldName: oldName, NewName: newName}
	return e
}

func NewLeveledUpEvent(characterID string, oldLevel, newLevel int, at time.Time) LifecycleEvent {
	e := newEvent(EventLeveledUp, characterID, at)
	e.LeveledUp = &LeveledUpPayload{OldLevel: oldLevel, NewLevel: newLevel}
	return e
}

func NewDiedEvent(characterID string, at time.Time) LifecycleEvent {
	return newEvent(EventDied, characterID, at)
}

func NewDeletedEvent(characterID string, at time.Time) LifecycleEvent {
	return newEvent(EventDeleted, characterID, at)
}

// Validate checks the payload matches the kind.
func (e LifecycleEvent) Validate() error {
	if e.ID == "" || e.CharacterID == "" {
		return fmt.Errorf("%w: event id and character id are required", ErrInvalidInput)
	}
	var ok bool
	switch e.Kind {
	case EventCreated:
		ok = e.Created != nil
	case EventNameChanged:
		ok = e.NameChanged != nil
	case EventLeveledUp:
		ok = e.LeveledUp != nil
	case EventDied, EventDeleted:
		ok = true
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: %s event is missing its payload", ErrInvalidInput, e.Kind)
	}
	return nil
}

// Message renders the event as a player-facing notification line.
func (e LifecycleEvent) Message() string {
	switch e.Kind {
	case EventCreated:
		return fmt.Sprintf("Character %q was created!", e.Created.Name)
	case EventNameChanged:
		return fmt.Sprintf("Character renamed from %q to %q.", e.NameChanged.OldName, e.NameChanged.NewName)
	case EventLeveledUp:
		return fmt.Sprintf("Character leveled up from %d to %d!", e.LeveledUp.OldLevel, e.LeveledUp.NewLevel)
	case EventDied:
		return "Character has died."
	case EventDeleted:
		return "Character was deleted."
	default:
		return string(e.Kind)
	}
}

// Notification is the human-readable companion of a lifecycle event.
type Notification struct {
	EventID     string    `json:"eventId"`
	CharacterID string    `json:"characterId"`
	Kind        EventKind `json:"kind"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notification derives the notification record for e.
func (e LifecycleEvent) Notification() Notification {
	return Notification{
		EventID:     e.ID,
		CharacterID: e.CharacterID,
		Kind:        e.Kind,
		Message:     e.Message(),
		Timestamp:   e.OccurredAt,
	}
}

// EventHandler receives lifecycle events by kind. Handlers must tolerate
// duplicates; delivery is at-least-once.
type EventHandler interface {
	OnCreated(ctx context.Context, e LifecycleEvent, p CreatedPayload) error
	OnNameChanged(ctx context.Context, e LifecycleEvent, p NameChangedPayload) error
	OnLeveledUp(ctx context.Context, e LifecycleEvent, p LeveledUpPayload) error
	OnDied(ctx context.Context, e LifecycleEvent) error
	OnDeleted(ctx context.Context, e LifecycleEvent) error
}

// Dispatch routes e to the handler method for its kind.
func Dispatch(ctx context.Context, h EventHandler, e LifecycleEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	switch e.Kind {
	case EventCreated:
		return h.OnCreated(ctx, e, *e.Created)
	case EventNameChanged:
		return h.OnNameChanged(ctx, e, *e.NameChanged)
	case EventLeveledUp:
		return h.OnLeveledUp(ctx, e, *e.LeveledUp)
	case EventDied:
		return h.OnDied(ctx, e)
	case EventDeleted:
		return h.OnDeleted(ctx, e)
	}
	return fmt.Errorf("%w: %q", ErrUnknownEventKind, e.Kind)
}
