package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goliatone/go-entityref/entity"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownType is returned by Lookup for a type with no registered loader.
	ErrUnknownType = goerrors.New("no loader registered for entity type", goerrors.CategoryBadInput).
			WithTextCode("UNKNOWN_ENTITY_TYPE")

	// ErrDuplicateType is returned when a second loader is registered for a type.
	ErrDuplicateType = goerrors.New("loader already registered for entity type", goerrors.CategoryConflict).
				WithTextCode("DUPLICATE_ENTITY_TYPE")

	// ErrRegistryFrozen is returned when Register is called after Build.
	ErrRegistryFrozen = goerrors.New("registry is frozen", goerrors.CategoryConflict).
				WithTextCode("REGISTRY_FROZEN")
)

// Loader fetches the references for a set of ids within one entity type.
// Ids with no match are left out of the returned map; an error means the whole
// call failed and says nothing about the existence of individual ids.
type Loader interface {
	FetchByIDs(ctx context.Context, t entity.Type, ids []string) (map[string]entity.Reference, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, t entity.Type, ids []string) (map[string]entity.Reference, error)

// FetchByIDs implements Loader.
func (f LoaderFunc) FetchByIDs(ctx context.Context, t entity.Type, ids []string) (map[string]entity.Reference, error) {
	return f(ctx, t, ids)
}

// Builder collects loaders during process initialisation.
type Builder struct {
	mu      sync.Mutex
	loaders map[entity.Type]Loader
	frozen  bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{loaders: make(map[entity.Type]Loader)}
}

// Register associates loader with t. Each type takes exactly one loader.
func (b *Builder) Register(t entity.Type, loader Loader) error {
	if !t.Valid() {
		return goerrors.New(fmt.Sprintf("cannot register loader for invalid entity type %q", t), goerrors.CategoryValidation)
	}
	if loader == nil {
		return goerrors.New(fmt.Sprintf("nil loader for entity type %q", t), goerrors.CategoryValidation)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen {
		return ErrRegistryFrozen
	}
	if _, exists := b.loaders[t]; exists {
		return goerrors.Wrap(ErrDuplicateType, goerrors.CategoryConflict, "register "+string(t))
	}
	b.loaders[t] = loader
	return nil
}

// Build freezes the builder and returns the read-only Registry.
func (b *Builder) Build() *Registry {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frozen = true
	loaders := make(map[entity.Type]Loader, len(b.loaders))
	for t, l := range b.loaders {
		loaders[t] = l
	}
	return &Registry{loaders: loaders}
}

// Registry is the immutable type → loader table used at request time.
type Registry struct {
	loaders map[entity.Type]Loader
}

// Lookup returns the loader registered for t.
func (r *Registry) Lookup(t entity.Type) (Loader, error) {
	if l, ok := r.loaders[t]; ok {
		return l, nil
	}
	return nil, goerrors.Wrap(ErrUnknownType, goerrors.CategoryBadInput, "lookup "+string(t))
}

// Types lists the registered types, sorted.
func (r *Registry) Types() []entity.Type {
	out := make([]entity.Type, 0, len(r.loaders))
	for t := range r.loaders {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsUnknownType reports whether err came from a lookup of an unregistered type.
func IsUnknownType(err error) bool {
	var e *goerrors.Error
	return goerrors.As(err, &e) && e.TextCode == ErrUnknownType.TextCode
}

// SingleLoader fetches one entity at a time. found is false when no entity matches.
type SingleLoader interface {
	FetchByID(ctx context.Context, t entity.Type, id string) (ref entity.Reference, found bool, err error)
}

// Batched turns a SingleLoader into a Loader that runs at most limit lookups
// concurrently. Any failed lookup fails the whole batch.
func Batched(single SingleLoader, limit int) Loader {
	if limit <= 0 {
		limit = 1
	}
	return LoaderFunc(func(ctx context.Context, t entity.Type, ids []string) (map[string]entity.Reference, error) {
		var mu sync.Mutex
		out := make(map[string]entity.Reference, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, id := range ids {
			g.Go(func() error {
				ref, found, err := single.FetchByID(gctx, t, id)
				if err != nil {
					return err
				}
				if found {
					mu.Lock()
					out[id] = ref
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	})
}
