package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"textrpg/internal/adapter/memory"
	"textrpg/internal/adapter/postgres"
	rediscache "textrpg/internal/adapter/redis"
	"textrpg/internal/adapter/sqlite"
	"textrpg/internal/adapter/sqlstore"
	"textrpg/internal/adapter/sqs"
	"textrpg/internal/app"
	"textrpg/internal/config"
	"textrpg/internal/domain"
)

// deps holds the adapters selected by configuration.
type deps struct {
	store  domain.CharacterRepository
	cache  domain.CharacterCache
	events domain.EventPublisher
	redis  *goredis.Client
	sql    *sqlstore.Store

	closers []func() error
}

func (d *deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

func (d *deps) services(cfg *config.Config, logger *slog.Logger) (*app.QueryService, *app.MutationService) {
	opts := app.Options{CacheTTL: cfg.Cache.TTL, Logger: logger}
	return app.NewQueryService(d.store, d.cache, opts), app.NewMutationService(d.store, d.cache, d.events, opts)
}

func build(ctx context.Context, cfg *config.Config) (_ *deps, err error) {
	d := &deps{}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	switch cfg.Store.Driver {
	case "postgres":
		d.sql, err = postgres.Open(cfg.Store.DSN)
	case "sqlite":
		d.sql, err = sqlite.Open(cfg.Store.DSN)
	default:
		d.store = memory.New()
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	if d.sql != nil {
		d.store = d.sql
		d.closers = append(d.closers, d.sql.Close)
	}

	if cfg.Cache.Driver == "redis" || cfg.Events.Driver == "redis" {
		d.redis, err = rediscache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, d.redis.Close)
	}

	switch cfg.Cache.Driver {
	case "redis":
		d.cache = rediscache.NewCache(d.redis)
	case "memory":
		d.cache = memory.NewCache(nil)
	}

	switch cfg.Events.Driver {
	case "redis":
		d.events = rediscache.NewStreamPublisher(d.redis, cfg.Events.Stream, cfg.Events.MaxLen)
	case "sqs":
		client, cerr := sqs.NewClient(ctx, cfg.SQS.Region)
		if cerr != nil {
			return nil, cerr
		}
		d.events = sqs.NewPublisher(client, cfg.SQS.QueueURL)
	case "memory":
		d.events = memory.NewPublisher()
	}
	return d, nil
}
