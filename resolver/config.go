package resolver

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds the coalescer options.
type Config struct {
	// LoadTimeout bounds a single loader call. Loader calls are detached from the
	// caller's context, so this is the only deadline they observe.
	LoadTimeout time.Duration `mapstructure:"load_timeout"`

	// MaxBatchSize caps the ids passed to one loader call; larger groups are split.
	MaxBatchSize int `mapstructure:"max_batch_size"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LoadTimeout:  10 * time.Second,
		MaxBatchSize: 200,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.LoadTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MaxBatchSize, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid resolver config")
	}
	return nil
}
