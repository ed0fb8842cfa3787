package app

import (
	"log/slog"
	"time"
)

// DefaultCacheTTL applies when Options.CacheTTL is zero.
const DefaultCacheTTL = time.Hour

// Options configures the query and mutation services.
type Options struct {
	CacheTTL time.Duration
	Logger   *slog.Logger
	// Clock overrides time.Now, mostly for tests.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// now returns the clock reading at the precision every store keeps.
func (o Options) now() time.Time {
	return o.Clock().UTC().Truncate(time.Microsecond)
}
