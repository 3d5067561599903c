package di

import (
	"github.com/goliatone/go-entityref/cache"
	"github.com/goliatone/go-entityref/entity"
	"github.com/goliatone/go-entityref/query"
	"github.com/goliatone/go-entityref/registry"
	"github.com/goliatone/go-entityref/resolver"
	"github.com/goliatone/go-entityref/store"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

// Registration adds loaders to the registry while the container is built.
type Registration func(b *registry.Builder, cfg Config) error

// Loader registers a batch loader for t.
func Loader(t entity.Type, l registry.Loader) Registration {
	return func(b *registry.Builder, _ Config) error {
		return b.Register(t, l)
	}
}

// SingleLoader registers a one-id-at-a-time loader for t, run with at most
// Loaders.MaxConcurrency lookups in parallel.
func SingleLoader(t entity.Type, s registry.SingleLoader) Registration {
	return func(b *registry.Builder, cfg Config) error {
		return b.Register(t, registry.Batched(s, cfg.Loaders.MaxConcurrency))
	}
}

// Tables registers a table loader over db for each type, all types when none
// are given.
func Tables(db bun.IDB, types ...entity.Type) Registration {
	return func(b *registry.Builder, _ Config) error {
		return store.RegisterTables(b, db, types...)
	}
}

// Option customises the container.
type Option func(*options)

type options struct {
	logger logrus.FieldLogger
	clock  clockwork.Clock
}

// WithLogger replaces the logger built from Config.Log.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.logger = log }
}

// WithClock sets the clock of the resolution cache.
func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// Container wires the registry, the resolution cache, the resolver and the
// query client. The registry is frozen once the container exists.
type Container struct {
	config   Config
	logger   logrus.FieldLogger
	registry *registry.Registry
	cache    *cache.Cache
	resolver *resolver.Resolver
	query    *query.Client
	db       *bun.DB
}

// NewContainer validates config, applies the registrations and builds every
// component.
func NewContainer(config Config, registrations []Registration, opts ...Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		log, err := NewLogger(config.Log)
		if err != nil {
			return nil, err
		}
		o.logger = log
	}

	b := registry.NewBuilder()
	for _, register := range registrations {
		if err := register(b, config); err != nil {
			return nil, err
		}
	}
	reg := b.Build()

	var cacheOpts []cache.Option
	if o.clock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(o.clock))
	}
	refs, err := cache.New(config.Cache, cacheOpts...)
	if err != nil {
		return nil, err
	}

	res, err := resolver.New(reg, refs, config.Resolver, resolver.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	client, err := query.New(res, config.Query, query.WithRegistry(reg), query.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	o.logger.WithField("entity_types", reg.Types()).Debug("reference resolution wired")

	return &Container{
		config:   config,
		logger:   o.logger,
		registry: reg,
		cache:    refs,
		resolver: res,
		query:    client,
	}, nil
}

// NewContainerWithDefaults builds a container from DefaultConfig.
func NewContainerWithDefaults(registrations ...Registration) (*Container, error) {
	return NewContainer(DefaultConfig(), registrations)
}

// NewDatabaseContainer opens Config.Database and serves every entity type from
// its table. The container owns the connection; Close releases it.
func NewDatabaseContainer(config Config, opts ...Option) (*Container, error) {
	db, err := store.Open(config.Database)
	if err != nil {
		return nil, err
	}

	c, err := NewContainer(config, []Registration{Tables(db)}, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.db = db
	return c, nil
}

// Config returns the configuration the container was built with.
func (c *Container) Config() Config { return c.config }

// Logger returns the shared logger.
func (c *Container) Logger() logrus.FieldLogger { return c.logger }

// Registry returns the frozen type registry.
func (c *Container) Registry() *registry.Registry { return c.registry }

// Cache returns the resolution cache.
func (c *Container) Cache() *cache.Cache { return c.cache }

// Resolver returns the request coalescer.
func (c *Container) Resolver() *resolver.Resolver { return c.resolver }

// Query returns the consumer adapter.
func (c *Container) Query() *query.Client { return c.query }

// DB returns the database opened by NewDatabaseContainer, nil otherwise.
func (c *Container) DB() *bun.DB { return c.db }

// Close waits for outstanding loader calls and closes the database, if any.
func (c *Container) Close() error {
	c.resolver.Wait()
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
