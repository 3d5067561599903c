package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// Config exposes the resolution cache options. The zero value is not usable;
// start from DefaultConfig and override what you need.
type Config struct {
	// Capacity bounds the total number of entries kept across all shards.
	// Once a completed batch leaves more than Capacity entries, the least
	// recently used idle entries are evicted, whichever shard holds them.
	// Entries with an outstanding load are never evicted, so the count can
	// briefly exceed Capacity while many keys are pending.
	// Default: 10000.
	Capacity int `mapstructure:"capacity"`

	// NumShards splits the key space across independently locked shards so
	// unrelated keys do not contend on one mutex. Sharding affects locking
	// only; it does not divide Capacity. Must be between 1 and Capacity.
	// Default: 16.
	NumShards int `mapstructure:"num_shards"`

	// FreshFor is how long a resolved reference is served without a refresh.
	// After it elapses the entry turns stale: it is still returned, and the
	// next lookup starts a background reload.
	// Default: 1 minute.
	FreshFor time.Duration `mapstructure:"fresh_for"`

	// AbsentFreshFor is the same window for confirmed-absent references.
	// Keep it short enough that entities created later become resolvable
	// within an acceptable delay.
	// Default: 1 minute.
	AbsentFreshFor time.Duration `mapstructure:"absent_fresh_for"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:       10000,
		NumShards:      16,
		FreshFor:       time.Minute,
		AbsentFreshFor: time.Minute,
	}
}

// Validate checks whether the configuration values are valid. The error is a
// go-errors validation error listing every offending field.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1), validation.Max(c.Capacity)),
		validation.Field(&c.FreshFor, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.AbsentFreshFor, validation.Required, validation.Min(time.Millisecond)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid resolution cache config")
	}
	return nil
}
