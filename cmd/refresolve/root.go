package main

import (
	"strings"

	"github.com/goliatone/go-entityref/pkg/di"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "REFRESOLVE"

// envKeys are the settings that can be overridden from the environment, e.g.
// REFRESOLVE_DATABASE_DSN.
var envKeys = []string{
	"database.driver",
	"database.dsn",
	"log.level",
	"log.format",
	"cache.capacity",
	"cache.num_shards",
	"cache.fresh_for",
	"cache.absent_fresh_for",
	"resolver.load_timeout",
	"resolver.max_batch_size",
	"query.stale_time",
	"loaders.max_concurrency",
}

type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "refresolve",
		Short:         "Resolve polymorphic entity references",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	// unchanged flags feed viper their defaults, so they start from the real ones
	defaults := di.DefaultConfig()
	flags := root.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("driver", defaults.Database.Driver, "database driver: sqlite or postgres")
	flags.String("dsn", defaults.Database.DSN, "database connection string")
	flags.String("log-level", defaults.Log.Level, "log level")
	flags.String("log-format", defaults.Log.Format, "log format: text or json")

	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindPFlag("database.driver", flags.Lookup("driver"))
	_ = a.v.BindPFlag("database.dsn", flags.Lookup("dsn"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(newSeedCmd(a), newResolveCmd(a))
	return root
}

func (a *app) initConfig() error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := a.v.BindEnv(key); err != nil {
			return err
		}
	}

	if file := a.v.GetString("config"); file != "" {
		a.v.SetConfigFile(file)
		if err := a.v.ReadInConfig(); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "read config "+file)
		}
	}
	return nil
}

// config layers file, environment and flags over di.DefaultConfig.
func (a *app) config() (di.Config, error) {
	cfg := di.DefaultConfig()
	if err := a.v.Unmarshal(&cfg); err != nil {
		return di.Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "decode config")
	}
	return cfg, cfg.Validate()
}

func (a *app) container() (*di.Container, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	return di.NewDatabaseContainer(cfg)
}
