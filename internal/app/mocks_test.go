package app_test

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"textrpg/internal/domain"
)

var errUnavailable = errors.New("unavailable")

// mockCache defaults every call to a miss or a successful no-op.
type mockCache struct {
	getFn       func(ctx context.Context, id string) (*domain.Character, error)
	getByNameFn func(ctx context.Context, name string) (*domain.Character, error)
	saveFn      func(ctx context.Context, c domain.Character, ttl time.Duration) error
	evictFn     func(ctx context.Context, id, name string) error
	evictAllFn  func(ctx context.Context) error
}

func (m *mockCache) Get(ctx context.Context, id string) (*domain.Character, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, nil
}

func (m *mockCache) GetByName(ctx context.Context, name string) (*domain.Character, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, name)
	}
	return nil, nil
}

func (m *mockCache) Save(ctx context.Context, c domain.Character, ttl time.Duration) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, c, ttl)
	}
	return nil
}

func (m *mockCache) Evict(ctx context.Context, id, name string) error {
	if m.evictFn != nil {
		return m.evictFn(ctx, id, name)
	}
	return nil
}

func (m *mockCache) EvictAll(ctx context.Context) error {
	if m.evictAllFn != nil {
		return m.evictAllFn(ctx)
	}
	return nil
}

// brokenCache fails every call.
func brokenCache() *mockCache {
	return &mockCache{
		getFn:       func(context.Context, string) (*domain.Character, error) { return nil, errUnavailable },
		getByNameFn: func(context.Context, string) (*domain.Character, error) { return nil, errUnavailable },
		saveFn:      func(context.Context, domain.Character, time.Duration) error { return errUnavailable },
		evictFn:     func(context.Context, string, string) error { return errUnavailable },
		evictAllFn:  func(context.Context) error { return errUnavailable },
	}
}

type mockPublisher struct {
	publishFn func(ctx context.Context, e domain.LifecycleEvent) error
}

func (m *mockPublisher) Publish(ctx context.Context, e domain.LifecycleEvent) error {
	if m.publishFn != nil {
		return m.publishFn(ctx, e)
	}
	return nil
}

// hookedStore wraps a real repository and lets a test override single calls.
type hookedStore struct {
	domain.CharacterRepository
	saveFn       func(ctx context.Context, c domain.Character) (domain.Character, error)
	findByIDFn   func(ctx context.Context, id string) (*domain.Character, error)
	existsNameFn func(ctx context.Context, name string) (bool, error)
	deleteFn     func(ctx context.Context, id string) (bool, error)
	findAllFn    func(ctx context.Context) iter.Seq2[domain.Character, error]
}

func (s *hookedStore) Save(ctx context.Context, c domain.Character) (domain.Character, error) {
	if s.saveFn != nil {
		return s.saveFn(ctx, c)
	}
	return s.CharacterRepository.Save(ctx, c)
}

func (s *hookedStore) FindByID(ctx context.Context, id string) (*domain.Character, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, id)
	}
	return s.CharacterRepository.FindByID(ctx, id)
}

func (s *hookedStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	if s.existsNameFn != nil {
		return s.existsNameFn(ctx, name)
	}
	return s.CharacterRepository.ExistsByName(ctx, name)
}

func (s *hookedStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return s.CharacterRepository.DeleteByID(ctx, id)
}

func (s *hookedStore) FindAll(ctx context.Context) iter.Seq2[domain.Character, error] {
	if s.findAllFn != nil {
		return s.findAllFn(ctx)
	}
	return s.CharacterRepository.FindAll(ctx)
}

// callLog records the order in which ports were touched.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}
