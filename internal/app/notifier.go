package app

import (
	"context"
	"log/slog"

	"textrpg/internal/domain"
)

// Notifier consumes lifecycle events and forwards a notification for each
// one to a sink. It implements domain.EventHandler.
type Notifier struct {
	sink   domain.NotificationSink
	logger *slog.Logger
}

var _ domain.EventHandler = (*Notifier)(nil)

// NewNotifier creates a Notifier. A nil logger uses slog.Default.
func NewNotifier(sink domain.NotificationSink, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sink: sink, logger: logger}
}

// Handle dispatches e to the matching On method.
func (n *Notifier) Handle(ctx context.Context, e domain.LifecycleEvent) error {
	return domain.Dispatch(ctx, n, e)
}

func (n *Notifier) OnCreated(ctx context.Context, e domain.LifecycleEvent, p domain.CreatedPayload) error {
	n.logger.InfoContext(ctx, "character created", "character_id", e.CharacterID, "name", p.Name,
		"total_power", p.Stats.TotalPower(), "archetype", p.Stats.PrimaryAttribute())
	return n.notify(ctx, e)
}

func (n *Notifier) OnNameChanged(ctx context.Context, e domain.LifecycleEvent, p domain.NameChangedPayload) error {
	n.logger.InfoContext(ctx, "character renamed", "character_id", e.CharacterID, "old_name", p.OldName, "new_name", p.NewName)
	return n.notify(ctx, e)
}

func (n *Notifier) OnLeveledUp(ctx context.Context, e domain.LifecycleEvent, p domain.LeveledUpPayload) error {
	n.logger.InfoContext(ctx, "character leveled up", "character_id", e.CharacterID, "old_level", p.OldLevel, "new_level", p.NewLevel)
	return n.notify(ctx, e)
}

func (n *Notifier) OnDied(ctx context.Context, e domain.LifecycleEvent) error {
	n.logger.InfoContext(ctx, "character died", "character_id", e.CharacterID)
	return n.notify(ctx, e)
}

func (n *Notifier) OnDeleted(ctx context.Context, e domain.LifecycleEvent) error {
	n.logger.InfoContext(ctx, "character deleted", "character_id", e.CharacterID)
	return n.notify(ctx, e)
}

func (n *Notifier) notify(ctx context.Context, e domain.LifecycleEvent) error {
	if n.sink == nil {
		return nil
	}
	return n.sink.Notify(ctx, e.Notification())
}
