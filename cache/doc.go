// Package cache provides the resolution cache used by the resolver.
//
// # Overview
//
// The cache maps an entity.Key to the last reference resolved for it, together
// with freshness metadata:
//
//   - Fresh: resolved less than FreshFor ago (AbsentFreshFor for confirmed absences)
//   - Stale: past its window; the value is still servable while a refresh runs
//   - Pending: a loader call for the key is outstanding
//
// A confirmed absence is stored as a regular entity.Reference with
// StatusAbsent. It ages out like any other entry so an entity created later
// becomes resolvable again.
//
// # Claiming keys
//
// MarkPending is the only way to start a lookup. It hands out at most one
// Flight per key; later callers receive the same Flight and wait on it:
//
//	flight, owner := c.MarkPending(key)
//	if owner {
//		ref, err := load(key)
//		if err != nil {
//			c.Fail(key, err)
//		} else {
//			c.Put(key, ref, c.FreshWindow(ref))
//		}
//	}
//	<-flight.Done()
//	ref, err := flight.Result()
//
// Fail never records a negative result. A stale value stays in place and a
// record without a value is removed.
//
// # Eviction
//
// Keys are spread over NumShards shards by xxhash; shards only split locking.
// Every access stamps the record from one cache-wide counter, and
// EvictIfOverCapacity removes the entries with the oldest stamps, in any shard,
// until the total is back at Capacity. Pending records are skipped.
//
// Nothing is persisted; the cache lives and dies with the process.
package cache
