// Package resolver is the request coalescer in front of the per-type loaders.
//
// A ResolveMany call partitions its keys against the resolution cache:
//
//   - fresh entries are returned as they are
//   - stale entries are returned as they are and refreshed in the background
//   - keys with an outstanding loader call are awaited
//   - everything else is claimed and loaded, one loader call per entity type
//
// Loader calls run on a context detached from the caller and bounded by
// Config.LoadTimeout. A caller that gives up gets its context error back while
// other callers waiting on the same keys still receive the result.
//
// A failed loader call leaves its keys with entity.StatusUnknown. Nothing is
// cached for them, so the next request tries again. Keys the loader did not
// return are cached as confirmed absences.
//
// Usage:
//
//	b := registry.NewBuilder()
//	_ = b.Register(entity.TypeItem, itemLoader)
//
//	c, _ := cache.New(cache.DefaultConfig())
//	r, _ := resolver.New(b.Build(), c, resolver.DefaultConfig(), resolver.WithLogger(log))
//
//	ctx = resolver.WithOrigin(ctx, "item-page")
//	refs, err := r.ResolveMany(ctx, keys)
package resolver
