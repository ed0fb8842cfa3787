package app

import (
	"context"
	"time"

	"textrpg/internal/domain"
)

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.Character, error)       { return nil, nil }
func (noopCache) GetByName(context.Context, string) (*domain.Character, error) { return nil, nil }
func (noopCache) Save(context.Context, domain.Character, time.Duration) error  { return nil }
func (noopCache) Evict(context.Context, string, string) error                  { return nil }
func (noopCache) EvictAll(context.Context) error                               { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.LifecycleEvent) error { return nil }
