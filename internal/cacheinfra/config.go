package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/sirupsen/logrus"
	"github.com/viccon/sturdyc"
)

// Config holds the sturdyc options for the presentation cache.
type Config struct {
	// Capacity is the maximum number of references held across all shards.
	// sturdyc divides it evenly between shards and evicts per shard.
	// Default: 10000.
	Capacity int `mapstructure:"capacity"`

	// NumShards spreads entries over independently locked shards. More shards
	// reduce lock contention under concurrent reads. Must not exceed Capacity.
	// Default: 64.
	NumShards int `mapstructure:"num_shards"`

	// TTL is how long a reference may be served at all. Past it the entry is
	// gone and the next read fetches synchronously. With EarlyRefresh set it
	// should be longer than SyncRefreshTime.
	// Default: 10 minutes.
	TTL time.Duration `mapstructure:"ttl"`

	// EvictionPercentage is the share of a full shard dropped when it
	// overflows, between 1 and 100.
	// Default: 10.
	EvictionPercentage int `mapstructure:"eviction_percentage"`

	// EarlyRefresh serves cached values past their staleness budget while a
	// background refresh runs. Nil disables it and entries are only reloaded
	// once TTL has passed.
	// Default: see EarlyRefreshConfig.
	EarlyRefresh *EarlyRefreshConfig `mapstructure:"early_refresh"`

	// EvictionInterval sets how often expired entries are swept. Zero keeps the
	// sturdyc default.
	EvictionInterval time.Duration `mapstructure:"eviction_interval"`

	// Clock replaces the wall clock sturdyc uses for expiry and refresh
	// decisions. Nil keeps the real clock. Tests pass sturdyc.NewTestClock.
	Clock sturdyc.Clock `mapstructure:"-"`
}

// EarlyRefreshConfig is the staleness budget. A read after a random point in
// [MinAsyncRefreshTime, MaxAsyncRefreshTime] returns the cached value and
// triggers a background refresh; after SyncRefreshTime the read waits for the
// refresh instead.
type EarlyRefreshConfig struct {
	// MinAsyncRefreshTime is the earliest age at which a read refreshes.
	// Default: 60 seconds.
	MinAsyncRefreshTime time.Duration `mapstructure:"min_async_refresh_time"`

	// MaxAsyncRefreshTime is the latest age at which the first background
	// refresh is due. The spread avoids refreshing many keys at once.
	// Default: 90 seconds.
	MaxAsyncRefreshTime time.Duration `mapstructure:"max_async_refresh_time"`

	// SyncRefreshTime is the age after which a read blocks on the refresh
	// rather than serve a value that old.
	// Default: 9 minutes.
	SyncRefreshTime time.Duration `mapstructure:"sync_refresh_time"`

	// RetryBaseDelay is the base of the backoff between failed refreshes.
	// Default: 1 second.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
}

// DefaultConfig returns a Config with a 60s staleness budget.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		TTL:                10 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: 60 * time.Second,
			MaxAsyncRefreshTime: 90 * time.Second,
			SyncRefreshTime:     9 * time.Minute,
			RetryBaseDelay:      time.Second,
		},
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1), validation.Max(c.Capacity)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.EarlyRefresh),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid presentation cache config")
	}
	return nil
}

// Validate implements validation.Validatable so ValidateStruct descends into it.
func (e EarlyRefreshConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.MinAsyncRefreshTime, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&e.MaxAsyncRefreshTime, validation.Required, validation.Min(e.MinAsyncRefreshTime)),
		validation.Field(&e.SyncRefreshTime, validation.Required, validation.Min(e.MaxAsyncRefreshTime)),
		validation.Field(&e.RetryBaseDelay, validation.Min(time.Duration(0))),
	)
}

// ToSturdycOptions maps the config onto sturdyc options. Capacity, NumShards, TTL
// and EvictionPercentage go to sturdyc.New directly.
//
// Missing record storage stays off: ids a fetch leaves out are not cached, so a
// reference that failed to resolve is asked for again on the next read.
func (c Config) ToSturdycOptions(log logrus.FieldLogger) []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	if log != nil {
		options = append(options, sturdyc.WithLog(&logBridge{log: log}))
	}

	if c.Clock != nil {
		options = append(options, sturdyc.WithClock(c.Clock))
	}

	return options
}
