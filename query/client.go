package query

import (
	"context"
	"errors"

	"github.com/goliatone/go-entityref/entity"
	"github.com/goliatone/go-entityref/internal/cacheinfra"
	"github.com/goliatone/go-entityref/registry"
	goerrors "github.com/goliatone/go-errors"
	"github.com/sirupsen/logrus"
	"github.com/viccon/sturdyc"
)

// Source resolves references authoritatively. *resolver.Resolver implements it.
type Source interface {
	ResolveMany(ctx context.Context, keys []entity.Key) (map[entity.Key]entity.Reference, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, keys []entity.Key) (map[entity.Key]entity.Reference, error)

// ResolveMany implements Source.
func (f SourceFunc) ResolveMany(ctx context.Context, keys []entity.Key) (map[entity.Key]entity.Reference, error) {
	return f(ctx, keys)
}

// errUnresolved keeps an unresolved single lookup out of the cache.
var errUnresolved = errors.New("reference unresolved")

// Client is what rendering code talks to. It keeps its own copy of every
// reference it served and refreshes it in the background once the copy is older
// than Config.StaleTime. References that could not be resolved come back as
// placeholders and are not kept.
type Client struct {
	source   Source
	cache    *cacheinfra.ReferenceCache
	registry *registry.Registry
	log      logrus.FieldLogger
	clock    sturdyc.Clock
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the logger, also used for sturdyc's own output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRegistry rejects keys whose type has no loader before anything is read
// from the cache.
func WithRegistry(reg *registry.Registry) Option {
	return func(c *Client) {
		c.registry = reg
	}
}

// WithClock replaces the clock that ages cached references, for tests.
func WithClock(clock sturdyc.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// New builds a Client over source.
func New(source Source, cfg Config, opts ...Option) (*Client, error) {
	if source == nil {
		return nil, goerrors.New("query client needs a source", goerrors.CategoryValidation)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{source: source}
	for _, opt := range opts {
		opt(c)
	}

	cacheCfg := cfg.cacheConfig()
	cacheCfg.Clock = c.clock
	refs, err := cacheinfra.NewReferenceCache(cacheCfg, c.log)
	if err != nil {
		return nil, err
	}
	c.cache = refs
	return c, nil
}

// Resolve returns the reference for key. Failures render as
// entity.UnknownReference; only an unknown type or a cancelled ctx is an error.
func (c *Client) Resolve(ctx context.Context, key entity.Key) (entity.Reference, error) {
	if err := c.checkTypes([]entity.Key{key}); err != nil {
		return entity.Reference{}, err
	}

	ref, err := c.cache.Get(ctx, key, func(ctx context.Context) (entity.Reference, error) {
		refs, err := c.source.ResolveMany(ctx, []entity.Key{key})
		if err != nil {
			return entity.Reference{}, err
		}
		ref, ok := refs[key]
		if !ok || !ref.Resolved() {
			return entity.Reference{}, errUnresolved
		}
		return ref, nil
	})
	switch {
	case errors.Is(err, errUnresolved):
		return entity.UnknownReference(key), nil
	case err != nil:
		return entity.Reference{}, err
	}
	return ref, nil
}

// ResolveMany returns a reference for every distinct key.
func (c *Client) ResolveMany(ctx context.Context, keys []entity.Key) (map[entity.Key]entity.Reference, error) {
	if err := c.checkTypes(keys); err != nil {
		return nil, err
	}

	found, err := c.cache.GetMany(ctx, keys, func(ctx context.Context, missing []entity.Key) (map[entity.Key]entity.Reference, error) {
		refs, err := c.source.ResolveMany(ctx, missing)
		if err != nil {
			return nil, err
		}
		out := make(map[entity.Key]entity.Reference, len(refs))
		for key, ref := range refs {
			if ref.Resolved() {
				out[key] = ref
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[entity.Key]entity.Reference, len(keys))
	for _, key := range keys {
		if ref, ok := found[key]; ok {
			out[key] = ref
			continue
		}
		out[key] = entity.UnknownReference(key)
	}
	return out, nil
}

// Invalidate drops keys so the next read goes to the source.
func (c *Client) Invalidate(keys ...entity.Key) {
	c.cache.Invalidate(keys...)
}

// InvalidateType drops every reference of type t.
func (c *Client) InvalidateType(t entity.Type) int {
	n := c.cache.InvalidateType(t)
	if c.log != nil && n > 0 {
		c.log.WithFields(logrus.Fields{"entity_type": t, "removed": n}).Debug("invalidated presentation cache")
	}
	return n
}

// Len returns the number of references held.
func (c *Client) Len() int {
	return c.cache.Len()
}

func (c *Client) checkTypes(keys []entity.Key) error {
	for _, key := range keys {
		if c.registry != nil {
			if _, err := c.registry.Lookup(key.Type); err != nil {
				return err
			}
			continue
		}
		if !key.Type.Valid() {
			return goerrors.Wrap(registry.ErrUnknownType, goerrors.CategoryBadInput, "query "+string(key.Type))
		}
	}
	return nil
}
