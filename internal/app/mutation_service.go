package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"textrpg/internal/domain"
)

// MutationService applies character mutations. Every mutation persists to
// the store first, then writes the cache, then publishes events. Cache and
// event failures are logged and never returned.
type MutationService struct {
	store  domain.CharacterRepository
	cache  domain.CharacterCache
	events domain.EventPublisher
	query  *QueryService
	opts   Options
	logger *slog.Logger
}

// NewMutationService creates a MutationService. A nil cache or publisher
// disables that side effect.
func NewMutationService(store domain.CharacterRepository, cache domain.CharacterCache, events domain.EventPublisher, opts Options) *MutationService {
	opts = opts.withDefaults()
	if cache == nil {
		cache = noopCache{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &MutationService{
		store:  store,
		cache:  cache,
		events: events,
		query:  NewQueryService(store, cache, opts),
		opts:   opts,
		logger: opts.Logger,
	}
}

// Create validates name, checks it is free and stores a new level-1
// unowned character. A nil stats selects domain.DefaultStats.
func (s *MutationService) Create(ctx context.Context, name string, stats *domain.Stats) (domain.Character, error) {
	return s.CreateOwned(ctx, "", name, stats)
}

// CreateOwned is Create for a character belonging to ownerID. Names stay
// unique across all owners.
func (s *MutationService) CreateOwned(ctx context.Context, ownerID, name string, stats *domain.Stats) (c domain.Character, err error) {
	ctx, span := startSpan(ctx, "MutationService.Create",
		attribute.String("character.name", name), attribute.String("owner.id", ownerID))
	defer endSpan(span, &err)

	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return domain.Character{}, err
	}
	if err := domain.ValidateName(name); err != nil {
		return domain.Character{}, err
	}
	if err := s.ensureNameFree(ctx, name); err != nil {
		return domain.Character{}, err
	}
	c, err = domain.NewOwnedCharacter(ownerID, name, stats, s.opts.now())
	if err != nil {
		return domain.Character{}, err
	}
	saved, err := s.store.Save(ctx, c)
	if err != nil {
		return domain.Character{}, storeError("create character", err)
	}
	span.SetAttributes(attribute.String("character.id", saved.ID))

	s.logger.InfoContext(ctx, "character created", "character_id", saved.ID, "name", saved.Name)
	s.cacheWrite(ctx, saved)
	s.publish(ctx, domain.NewCreatedEvent(saved.ID, saved.Name, saved.Stats, saved.CreatedAt))
	return saved, nil
}

// Update renames the character. A nil or unchanged name leaves the character
// untouched and returns its current state.
func (s *MutationService) Update(ctx context.Context, id string, name *string) (c domain.Character, err error) {
	ctx, span := startSpan(ctx, "MutationService.Update", attribute.String("character.id", id))
	defer endSpan(span, &err)

	if name != nil {
		if err := domain.ValidateName(*name); err != nil {
			return domain.Character{}, err
		}
	}
	current, err := s.query.Get(ctx, id)
	if err != nil {
		return domain.Character{}, err
	}
	if name == nil || *name == current.Name {
		return current, nil
	}
	if err := s.ensureNameFree(ctx, *name); err != nil {
		return domain.Character{}, err
	}
	next, err := current.Rename(*name, s.opts.now())
	if err != nil {
		return domain.Character{}, err
	}
	saved, err := s.save(ctx, "rename character", current, next)
	if err != nil {
		return domain.Character{}, err
	}

	s.logger.InfoContext(ctx, "character renamed", "character_id", saved.ID, "old_name", current.Name, "new_name", saved.Name)
	s.evict(ctx, current)
	s.cacheWrite(ctx, saved)
	s.publish(ctx, domain.NewNameChangedEvent(saved.ID, current.Name, saved.Name, saved.UpdatedAt))
	return saved, nil
}

// Delete removes the character and its cache entries.
func (s *MutationService) Delete(ctx context.Context, id string) error {
	return s.delete(ctx, id, nil)
}

// DeleteOwned is Delete restricted to characters owned by ownerID. Any other
// owner gets ErrForbidden and nothing is removed.
func (s *MutationService) DeleteOwned(ctx context.Context, id, ownerID string) error {
	return s.delete(ctx, id, &ownerID)
}

func (s *MutationService) delete(ctx context.Context, id string, ownerID *string) (err error) {
	ctx, span := startSpan(ctx, "MutationService.Delete", attribute.String("character.id", id))
	defer endSpan(span, &err)

	current, err := s.query.Get(ctx, id)
	if err != nil {
		return err
	}
	if ownerID != nil && !current.IsOwnedBy(*ownerID) {
		return fmt.Errorf("character %s: %w", id, ErrForbidden)
	}
	deleted, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return storeError("delete character", err)
	}
	// Deleted concurrently; whoever won already evicted and published.
	if !deleted {
		s.evict(ctx, current)
		return fmt.Errorf("character %s: %w", id, ErrNotFound)
	}

	s.logger.InfoContext(ctx, "character deleted", "character_id", id)
	s.evict(ctx, current)
	s.publish(ctx, domain.NewDeletedEvent(id, s.opts.now()))
	return nil
}

// GainExperience adds amount experience, applying any level-ups.
func (s *MutationService) GainExperience(ctx context.Context, id string, amount int64) (c domain.Character, err error) {
	ctx, span := startSpan(ctx, "MutationService.GainExperience",
		attribute.String("character.id", id), attribute.Int64("experience.amount", amount))
	defer endSpan(span, &err)

	if amount <= 0 {
		return domain.Character{}, fmt.Errorf("%w: experience amount must be positive, got %d", ErrInvalidInput, amount)
	}
	current, err := s.query.Get(ctx, id)
	if err != nil {
		return domain.Character{}, err
	}
	next, err := current.GainExperience(amount, s.opts.now())
	if err != nil {
		return domain.Character{}, err
	}
	saved, err := s.save(ctx, "gain experience", current, next)
	if err != nil {
		return domain.Character{}, err
	}

	s.cacheWrite(ctx, saved)
	if saved.Level > current.Level {
		span.SetAttributes(attribute.Int("character.level", saved.Level))
		s.logger.InfoContext(ctx, "character leveled up", "character_id", saved.ID, "old_level", current.Level, "new_level", saved.Level)
		s.publish(ctx, domain.NewLeveledUpEvent(saved.ID, current.Level, saved.Level, saved.UpdatedAt))
	}
	return saved, nil
}

// ApplyDamage lowers the character's health. Reaching zero publishes a
// Died event once.
func (s *MutationService) ApplyDamage(ctx context.Context, id string, amount int) (c domain.Character, err error) {
	ctx, span := startSpan(ctx, "MutationService.ApplyDamage",
		attribute.String("character.id", id), attribute.Int("damage.amount", amount))
	defer endSpan(span, &err)

	if amount <= 0 {
		return domain.Character{}, fmt.Errorf("%w: damage amount must be positive, got %d", ErrInvalidInput, amount)
	}
	current, err := s.query.Get(ctx, id)
	if err != nil {
		return domain.Character{}, err
	}
	next, err := current.TakeDamage(amount, s.opts.now())
	if err != nil {
		return domain.Character{}, err
	}
	saved, err := s.save(ctx, "apply damage", current, next)
	if err != nil {
		return domain.Character{}, err
	}

	s.cacheWrite(ctx, saved)
	if !current.Health.IsDead() && saved.Health.IsDead() {
		s.publish(ctx, domain.NewDiedEvent(saved.ID, saved.UpdatedAt))
	}
	return saved, nil
}

// Heal restores up to amount health.
func (s *MutationService) Heal(ctx context.Context, id string, amount int) (c domain.Character, err error) {
	ctx, span := startSpan(ctx, "MutationService.Heal",
		attribute.String("character.id", id), attribute.Int("heal.amount", amount))
	defer endSpan(span, &err)

	if amount <= 0 {
		return domain.Character{}, fmt.Errorf("%w: heal amount must be positive, got %d", ErrInvalidInput, amount)
	}
	current, err := s.query.Get(ctx, id)
	if err != nil {
		return domain.Character{}, err
	}
	next, err := current.Heal(amount, s.opts.now())
	if err != nil {
		return domain.Character{}, err
	}
	saved, err := s.save(ctx, "heal", current, next)
	if err != nil {
		return domain.Character{}, err
	}
	s.cacheWrite(ctx, saved)
	return saved, nil
}

// FlushCache drops every cached projection. Unlike the best-effort cache
// calls made by mutations, its error is returned.
func (s *MutationService) FlushCache(ctx context.Context) error {
	return s.cache.EvictAll(ctx)
}

func (s *MutationService) ensureNameFree(ctx context.Context, name string) error {
	taken, err := s.store.ExistsByName(ctx, name)
	if err != nil {
		return storeError("check name", err)
	}
	if taken {
		return fmt.Errorf("%q: %w", name, ErrNameConflict)
	}
	return nil
}

// save persists next. A stale version means current came from an outdated
// cache entry or lost a race, so the entry is evicted before reporting
// ErrConflict, or ErrNotFound when the row is gone altogether.
func (s *MutationService) save(ctx context.Context, op string, current, next domain.Character) (domain.Character, error) {
	saved, err := s.store.Save(ctx, next)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, domain.ErrStaleVersion) {
		return domain.Character{}, storeError(op, err)
	}
	s.evict(ctx, current)
	exists, xerr := s.store.ExistsByID(ctx, current.ID)
	if xerr != nil {
		return domain.Character{}, storeError(op, xerr)
	}
	if !exists {
		return domain.Character{}, fmt.Errorf("%s: character %s: %w", op, current.ID, ErrNotFound)
	}
	return domain.Character{}, storeError(op, err)
}

func (s *MutationService) cacheWrite(ctx context.Context, c domain.Character) {
	if err := s.cache.Save(ctx, c, s.opts.CacheTTL); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "id", c.ID, "err", err)
	}
}

func (s *MutationService) evict(ctx context.Context, c domain.Character) {
	if err := s.cache.Evict(ctx, c.ID, c.Name); err != nil {
		s.logger.WarnContext(ctx, "cache evict failed", "id", c.ID, "err", err)
	}
}

func (s *MutationService) publish(ctx context.Context, e domain.LifecycleEvent) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"event_id", e.ID, "kind", e.Kind, "character_id", e.CharacterID, "err", err)
		return
	}
	s.logger.DebugContext(ctx, "event published", "event_id", e.ID, "kind", e.Kind, "character_id", e.CharacterID)
}
