package di

import (
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-entityref/cache"
	"github.com/goliatone/go-entityref/query"
	"github.com/goliatone/go-entityref/resolver"
	"github.com/goliatone/go-entityref/store"
	goerrors "github.com/goliatone/go-errors"
	"github.com/sirupsen/logrus"
)

// Config aggregates the configuration of every component the container builds.
type Config struct {
	Cache    cache.Config    `mapstructure:"cache"`
	Resolver resolver.Config `mapstructure:"resolver"`
	Query    query.Config    `mapstructure:"query"`
	Database store.Config    `mapstructure:"database"`
	Loaders  LoaderConfig    `mapstructure:"loaders"`
	Log      LogConfig       `mapstructure:"log"`
}

// LoaderConfig applies to loaders registered through SingleLoader.
type LoaderConfig struct {
	// MaxConcurrency bounds the parallel single-id lookups of one batch.
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the defaults of every component.
func DefaultConfig() Config {
	return Config{
		Cache:    cache.DefaultConfig(),
		Resolver: resolver.DefaultConfig(),
		Query:    query.DefaultConfig(),
		Database: store.DefaultConfig(),
		Loaders:  LoaderConfig{MaxConcurrency: 8},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	for _, v := range []validation.Validatable{c.Cache, c.Resolver, c.Query, c.Database, c.Log} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	err := validation.ValidateStruct(&c.Loaders,
		validation.Field(&c.Loaders.MaxConcurrency, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid loader config")
	}
	return nil
}

// Validate checks the level and format names.
func (l LogConfig) Validate() error {
	err := validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.By(func(any) error {
			_, err := logrus.ParseLevel(l.Level)
			return err
		})),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid log config")
	}
	return nil
}

// NewLogger builds a logrus logger writing to stderr.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := logrus.ParseLevel(cfg.Level)
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
