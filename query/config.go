package query

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-entityref/internal/cacheinfra"
	goerrors "github.com/goliatone/go-errors"
)

// Config is the consumer-side staleness budget. It is independent of the
// resolution cache's freshness window.
type Config struct {
	// StaleTime is how long a reference is served without a refresh.
	StaleTime time.Duration `mapstructure:"stale_time"`

	// RefreshJitter spreads refreshes over [StaleTime, StaleTime+RefreshJitter].
	RefreshJitter time.Duration `mapstructure:"refresh_jitter"`

	// SyncRefreshAfter is the age after which a read waits for the refresh.
	SyncRefreshAfter time.Duration `mapstructure:"sync_refresh_after"`

	// GCTime drops references nobody read for this long.
	GCTime time.Duration `mapstructure:"gc_time"`

	RetryBaseDelay     time.Duration `mapstructure:"retry_base_delay"`
	Capacity           int           `mapstructure:"capacity"`
	NumShards          int           `mapstructure:"num_shards"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
}

// DefaultConfig returns a 60s staleness budget.
func DefaultConfig() Config {
	d := cacheinfra.DefaultConfig()
	return Config{
		StaleTime:          d.EarlyRefresh.MinAsyncRefreshTime,
		RefreshJitter:      d.EarlyRefresh.MaxAsyncRefreshTime - d.EarlyRefresh.MinAsyncRefreshTime,
		SyncRefreshAfter:   d.EarlyRefresh.SyncRefreshTime,
		GCTime:             d.TTL,
		RetryBaseDelay:     d.EarlyRefresh.RetryBaseDelay,
		Capacity:           d.Capacity,
		NumShards:          d.NumShards,
		EvictionPercentage: d.EvictionPercentage,
	}
}

// Validate checks the fields that do not map one to one onto the cache config.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.StaleTime, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.RefreshJitter, validation.Min(time.Duration(0))),
		validation.Field(&c.GCTime, validation.Required, validation.Min(c.SyncRefreshAfter)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid query config")
	}
	return c.cacheConfig().Validate()
}

func (c Config) cacheConfig() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.GCTime,
		EvictionPercentage: c.EvictionPercentage,
		EarlyRefresh: &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.StaleTime,
			MaxAsyncRefreshTime: c.StaleTime + c.RefreshJitter,
			SyncRefreshTime:     c.SyncRefreshAfter,
			RetryBaseDelay:      c.RetryBaseDelay,
		},
	}
}
