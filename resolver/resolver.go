package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-entityref/cache"
	"github.com/goliatone/go-entityref/entity"
	"github.com/goliatone/go-entityref/registry"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Resolver turns entity keys into references. It consults the resolution cache,
// groups misses by entity type into one loader call per type and makes sure a
// key never has more than one loader call in flight.
type Resolver struct {
	registry *registry.Registry
	cache    *cache.Cache
	cfg      Config
	log      logrus.FieldLogger
	stats    *statsTable

	// tracks loader calls, which outlive the ResolveMany call that started them
	inflight sync.WaitGroup
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for loader batches.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a Resolver over a frozen registry and a cache it takes ownership of.
// No other component should write to c.
func New(reg *registry.Registry, c *cache.Cache, cfg Config, opts ...Option) (*Resolver, error) {
	if reg == nil || c == nil {
		return nil, goerrors.New("resolver needs a registry and a cache", goerrors.CategoryValidation)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	discard := logrus.New()
	discard.SetLevel(logrus.PanicLevel)

	r := &Resolver{
		registry: reg,
		cache:    c,
		cfg:      cfg,
		log:      discard,
		stats:    newStatsTable(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the reference for a single key.
func (r *Resolver) Resolve(ctx context.Context, key entity.Key) (entity.Reference, error) {
	refs, err := r.ResolveMany(ctx, []entity.Key{key})
	if err != nil {
		return entity.Reference{}, err
	}
	return refs[key], nil
}

// ResolveMany resolves every key and returns a map holding exactly the distinct
// requested keys.
//
// Fresh entries are served as they are. Stale entries are served immediately and
// refreshed in the background. Everything else is loaded, one call per entity
// type, or awaited when another caller already has a loader call in flight.
// Keys whose loader call fails come back with entity.StatusUnknown; nothing
// about them is cached.
//
// A key with an unregistered type fails the whole call before any loader runs.
// If ctx ends while waiting, ResolveMany returns ctx.Err() but the loader calls
// it started still complete and populate the cache.
func (r *Resolver) ResolveMany(ctx context.Context, keys []entity.Key) (map[entity.Key]entity.Reference, error) {
	unique := uniqueKeys(keys)
	if err := r.checkTypes(unique); err != nil {
		return nil, err
	}

	out := make(map[entity.Key]entity.Reference, len(unique))
	load := make(map[entity.Type][]entity.Key)
	refresh := make(map[entity.Type][]entity.Key)
	waiting := make(map[entity.Key]*cache.Flight)

	for _, key := range unique {
		counters := r.stats.of(key.Type)
		c := r.claim(key)

		switch c.kind {
		case claimFresh:
			counters.hits.Inc()
			out[key] = c.ref
		case claimStale:
			counters.staleHits.Inc()
			out[key] = c.ref
			if c.flight != nil {
				refresh[key.Type] = append(refresh[key.Type], key)
			}
		case claimLoad:
			counters.misses.Inc()
			load[key.Type] = append(load[key.Type], key)
			waiting[key] = c.flight
		case claimWait:
			counters.coalesced.Inc()
			waiting[key] = c.flight
		}
	}

	for t, group := range load {
		r.dispatch(ctx, t, group)
	}
	for t, group := range refresh {
		r.dispatch(ctx, t, group)
	}

	for key, flight := range waiting {
		select {
		case <-flight.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		ref, err := flight.Result()
		if err != nil {
			out[key] = entity.UnknownReference(key)
			continue
		}
		out[key] = ref
	}

	return out, nil
}

// Wait blocks until every loader call started so far has finished.
func (r *Resolver) Wait() {
	r.inflight.Wait()
}

// Stats returns a snapshot of the per-type counters.
func (r *Resolver) Stats() map[entity.Type]Stats {
	return r.stats.snapshot()
}

// Totals sums Stats across entity types.
func (r *Resolver) Totals() Stats {
	var total Stats
	for _, s := range r.stats.snapshot() {
		total = total.Add(s)
	}
	return total
}

type claimKind uint8

const (
	claimFresh claimKind = iota
	claimStale
	claimLoad
	claimWait
)

type claim struct {
	kind   claimKind
	ref    entity.Reference
	flight *cache.Flight
}

// claim decides how key is served. For claimStale a non-nil flight means this
// caller owns the refresh; for claimLoad it owns the load.
func (r *Resolver) claim(key entity.Key) claim {
	for {
		entry, ok := r.cache.Lookup(key)
		if ok && entry.HasValue {
			switch entry.State {
			case cache.StateFresh:
				return claim{kind: claimFresh, ref: entry.Value}
			case cache.StatePending:
				return claim{kind: claimStale, ref: entry.Value}
			default:
				flight, owner := r.cache.MarkPending(key)
				if !owner {
					flight = nil
				}
				return claim{kind: claimStale, ref: entry.Value, flight: flight}
			}
		}

		flight, owner := r.cache.MarkPending(key)
		if owner {
			return claim{kind: claimLoad, flight: flight}
		}
		if flight != nil {
			return claim{kind: claimWait, flight: flight}
		}
		// resolved by someone else between Lookup and MarkPending; read it again
	}
}

func (r *Resolver) checkTypes(keys []entity.Key) error {
	for _, key := range keys {
		if _, err := r.registry.Lookup(key.Type); err != nil {
			return err
		}
	}
	return nil
}

// dispatch starts the loader calls for one entity type. They run on a context
// detached from the caller so that other waiters on the same keys are not left
// without a result when this caller goes away.
func (r *Resolver) dispatch(ctx context.Context, t entity.Type, keys []entity.Key) {
	loader, err := r.registry.Lookup(t)
	if err != nil {
		for _, key := range keys {
			r.cache.Fail(key, err)
		}
		return
	}

	detached := context.WithoutCancel(ctx)
	for _, batch := range chunkKeys(keys, r.cfg.MaxBatchSize) {
		r.inflight.Add(1)
		go func() {
			defer r.inflight.Done()
			r.load(detached, loader, t, batch)
		}()
	}
}

func (r *Resolver) load(ctx context.Context, loader registry.Loader, t entity.Type, keys []entity.Key) {
	counters := r.stats.of(t)
	counters.loaderCalls.Inc()

	log := r.log.WithFields(logrus.Fields{
		"entity_type": t,
		"batch_id":    uuid.NewString(),
		"batch_size":  len(keys),
	})
	if origins := originsFromContext(ctx); len(origins) > 0 {
		log = log.WithField("origin", origins)
	}

	ids := make([]string, len(keys))
	for i, key := range keys {
		ids[i] = key.ID
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.LoadTimeout)
	defer cancel()

	start := time.Now()
	found, err := fetch(ctx, loader, t, ids)
	if err != nil {
		counters.loaderFailures.Inc()
		log.WithError(err).Warn("loader call failed, references left unresolved")

		failure := goerrors.WrapRetryable(err, goerrors.CategoryExternal, fmt.Sprintf("load %s batch", t))
		for _, key := range keys {
			r.cache.Fail(key, failure)
		}
		return
	}

	for _, key := range keys {
		ref, ok := found[key.ID]
		if ok {
			ref.Key = key
			ref.Status = entity.StatusExists
		} else {
			counters.absent.Inc()
			ref = entity.AbsentReference(key)
		}
		r.cache.Put(key, ref, r.cache.FreshWindow(ref))
	}

	if n := r.cache.EvictIfOverCapacity(); n > 0 {
		log = log.WithField("evicted", n)
	}
	log.WithField("duration", time.Since(start)).Debug("loader batch resolved")
}

// fetch calls the loader, turning a panic into an error so the flights it owns
// are always completed.
func fetch(ctx context.Context, loader registry.Loader, t entity.Type, ids []string) (found map[string]entity.Reference, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("loader for %s panicked: %v", t, p)
		}
	}()
	return loader.FetchByIDs(ctx, t, ids)
}

func uniqueKeys(keys []entity.Key) []entity.Key {
	seen := make(map[entity.Key]struct{}, len(keys))
	out := make([]entity.Key, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func chunkKeys(keys []entity.Key, size int) [][]entity.Key {
	if size <= 0 || len(keys) <= size {
		return [][]entity.Key{keys}
	}
	var out [][]entity.Key
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		out = append(out, keys[start:end])
	}
	return out
}
