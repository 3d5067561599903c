package cacheinfra

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-entityref/entity"
	"github.com/sirupsen/logrus"
	"github.com/viccon/sturdyc"
)

const keyPrefix = "ref::"

func cacheKey(id string) string { return keyPrefix + id }

// ReferenceCache is a sturdyc client holding references by key. Single and
// batch reads share the same cache keys, "ref::<type>:<id>", so a reference
// loaded by GetMany is a hit for Get and the other way round.
//
// Concurrent reads of the same missing key are collapsed by sturdyc into one
// fetch. Values past their staleness budget are returned as they are while
// sturdyc refreshes them in the background with the same fetch function.
type ReferenceCache struct {
	client *sturdyc.Client[entity.Reference]
}

// NewReferenceCache validates cfg and builds the sturdyc client.
//
// Capacity, NumShards, TTL and EvictionPercentage configure the client
// itself; everything else goes through Config.ToSturdycOptions. log receives
// sturdyc's own messages and may be nil to silence them.
func NewReferenceCache(cfg Config, log logrus.FieldLogger) (*ReferenceCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[entity.Reference](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions(log)...,
	)
	return &ReferenceCache{client: client}, nil
}

// Get returns the cached reference for key or calls fetch. An error from fetch
// is returned as is and nothing is stored, so the next read calls fetch again.
// fetch is also what sturdyc calls for background refreshes of key.
func (c *ReferenceCache) Get(ctx context.Context, key entity.Key, fetch func(context.Context) (entity.Reference, error)) (entity.Reference, error) {
	return c.client.GetOrFetch(ctx, cacheKey(key.String()), fetch)
}

// GetMany returns cached references for keys and calls fetch once with the keys
// that are not cached. Keys fetch leaves out are not stored and are missing from
// the result. Duplicate keys are read once.
//
// When some keys were served from the cache and fetch fails, the cached ones
// are still returned without an error; callers treat the rest as unresolved.
func (c *ReferenceCache) GetMany(
	ctx context.Context,
	keys []entity.Key,
	fetch func(context.Context, []entity.Key) (map[entity.Key]entity.Reference, error),
) (map[entity.Key]entity.Reference, error) {
	byID := make(map[string]entity.Key, len(keys))
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id := key.String()
		if _, ok := byID[id]; ok {
			continue
		}
		byID[id] = key
		ids = append(ids, id)
	}

	fetchFn := func(ctx context.Context, missing []string) (map[string]entity.Reference, error) {
		want := make([]entity.Key, 0, len(missing))
		for _, id := range missing {
			key, ok := byID[id]
			if !ok {
				parsed, err := entity.ParseKey(id)
				if err != nil {
					return nil, err
				}
				key = parsed
			}
			want = append(want, key)
		}

		found, err := fetch(ctx, want)
		if err != nil {
			return nil, err
		}
		out := make(map[string]entity.Reference, len(found))
		for key, ref := range found {
			out[key.String()] = ref
		}
		return out, nil
	}

	res, err := c.client.GetOrFetchBatch(ctx, ids, cacheKey, fetchFn)
	if err != nil && !errors.Is(err, sturdyc.ErrOnlyCachedRecords) {
		return nil, err
	}

	out := make(map[entity.Key]entity.Reference, len(res))
	for id, ref := range res {
		if key, ok := byID[id]; ok {
			out[key] = ref
		}
	}
	return out, nil
}

// Invalidate drops the given keys. Keys that are not cached are ignored.
func (c *ReferenceCache) Invalidate(keys ...entity.Key) {
	for _, key := range keys {
		c.client.Delete(cacheKey(key.String()))
	}
}

// InvalidateType drops every cached reference of type t and returns how many
// were removed.
func (c *ReferenceCache) InvalidateType(t entity.Type) int {
	prefix := cacheKey(string(t) + entity.KeySeparator)
	removed := 0
	for _, k := range c.client.ScanKeys() {
		if strings.HasPrefix(k, prefix) {
			c.client.Delete(k)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached references, including ones past their
// staleness budget that have not been evicted yet.
func (c *ReferenceCache) Len() int {
	return c.client.Size()
}
