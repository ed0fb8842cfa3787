package app

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"textrpg/internal/domain"
)

// QueryService serves cache-aside reads. The store is authoritative; the
// cache is consulted first and repopulated on every store hit.
type QueryService struct {
	store  domain.CharacterRepository
	cache  domain.CharacterCache
	opts   Options
	logger *slog.Logger
}

// NewQueryService creates a QueryService. A nil cache disables caching.
func NewQueryService(store domain.CharacterRepository, cache domain.CharacterCache, opts Options) *QueryService {
	opts = opts.withDefaults()
	if cache == nil {
		cache = noopCache{}
	}
	return &QueryService{store: store, cache: cache, opts: opts, logger: opts.Logger}
}

// Get returns the character with id, or ErrNotFound.
func (s *QueryService) Get(ctx context.Context, id string) (c domain.Character, err error) {
	ctx, span := startSpan(ctx, "QueryService.Get", attribute.String("character.id", id))
	defer endSpan(span, &err)

	cached, cerr := s.cache.Get(ctx, id)
	if cerr != nil {
		s.logger.WarnContext(ctx, "cache read failed", "id", id, "err", cerr)
	} else if cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		s.logger.DebugContext(ctx, "cache hit", "character_id", id)
		return *cached, nil
	}

	s.logger.DebugContext(ctx, "cache miss", "character_id", id)
	found, err := s.store.FindByID(ctx, id)
	if err != nil {
		return domain.Character{}, storeError("get character", err)
	}
	if found == nil {
		return domain.Character{}, fmt.Errorf("character %s: %w", id, ErrNotFound)
	}
	s.warm(ctx, *found)
	return *found, nil
}

// GetByName returns the character called name, or ErrNotFound.
func (s *QueryService) GetByName(ctx context.Context, name string) (c domain.Character, err error) {
	ctx, span := startSpan(ctx, "QueryService.GetByName", attribute.String("character.name", name))
	defer endSpan(span, &err)

	cached, cerr := s.cache.GetByName(ctx, name)
	if cerr != nil {
		s.logger.WarnContext(ctx, "cache read failed", "name", name, "err", cerr)
	} else if cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return *cached, nil
	}

	found, err := s.store.FindByName(ctx, name)
	if err != nil {
		return domain.Character{}, storeError("get character by name", err)
	}
	if found == nil {
		return domain.Character{}, fmt.Errorf("character %q: %w", name, ErrNotFound)
	}
	s.warm(ctx, *found)
	return *found, nil
}

// Exists reports whether a character with id is stored.
func (s *QueryService) Exists(ctx context.Context, id string) (ok bool, err error) {
	ctx, span := startSpan(ctx, "QueryService.Exists", attribute.String("character.id", id))
	defer endSpan(span, &err)

	cached, cerr := s.cache.Get(ctx, id)
	if cerr != nil {
		s.logger.WarnContext(ctx, "cache read failed", "id", id, "err", cerr)
	} else if cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return true, nil
	}
	ok, err = s.store.ExistsByID(ctx, id)
	if err != nil {
		return false, storeError("exists", err)
	}
	return ok, nil
}

// Count returns the number of stored characters.
func (s *QueryService) Count(ctx context.Context) (n int64, err error) {
	ctx, span := startSpan(ctx, "QueryService.Count")
	defer endSpan(span, &err)

	n, err = s.store.Count(ctx)
	if err != nil {
		return 0, storeError("count", err)
	}
	return n, nil
}

// List streams every character from the store, warming the cache as it
// goes. Iteration stops at the first error, which is yielded once.
func (s *QueryService) List(ctx context.Context) iter.Seq2[domain.Character, error] {
	return s.stream(ctx, "list characters", s.store.FindAll(ctx))
}

// ListByLevel streams characters whose level lies in [minLevel, maxLevel].
func (s *QueryService) ListByLevel(ctx context.Context, minLevel, maxLevel int) (iter.Seq2[domain.Character, error], error) {
	if minLevel < domain.BaseLevel || maxLevel < minLevel {
		return nil, fmt.Errorf("%w: level range [%d, %d] is invalid", ErrInvalidInput, minLevel, maxLevel)
	}
	return s.stream(ctx, "list characters by level", s.store.FindByLevelRange(ctx, minLevel, maxLevel)), nil
}

// ListByOwner streams the characters owned by ownerID.
func (s *QueryService) ListByOwner(ctx context.Context, ownerID string) (iter.Seq2[domain.Character, error], error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidInput)
	}
	if err := domain.ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}
	return s.stream(ctx, "list characters by owner", s.store.FindByOwner(ctx, ownerID)), nil
}

func (s *QueryService) stream(ctx context.Context, op string, rows iter.Seq2[domain.Character, error]) iter.Seq2[domain.Character, error] {
	return func(yield func(domain.Character, error) bool) {
		for c, err := range rows {
			if err != nil {
				yield(domain.Character{}, storeError(op, err))
				return
			}
			s.warm(ctx, c)
			if !yield(c, nil) {
				return
			}
		}
	}
}

// warm writes c to the cache, then confirms the row still exists. A delete
// that evicted between the store read and the cache write is caught by the
// re-check, which evicts again. Failures are logged and dropped.
func (s *QueryService) warm(ctx context.Context, c domain.Character) {
	if err := s.cache.Save(ctx, c, s.opts.CacheTTL); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "id", c.ID, "err", err)
		return
	}
	exists, err := s.store.ExistsByID(ctx, c.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "cache re-check failed", "id", c.ID, "err", err)
		return
	}
	if !exists {
		s.logger.DebugContext(ctx, "dropping cache entry for deleted character", "character_id", c.ID)
		if err := s.cache.Evict(ctx, c.ID, c.Name); err != nil {
			s.logger.WarnContext(ctx, "cache evict failed", "id", c.ID, "err", err)
		}
	}
}
