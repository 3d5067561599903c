package cache

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-entityref/entity"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/jonboulle/clockwork"
)

// Option customises a Cache.
type Option func(*Cache)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Cache maps entity keys to their last resolution. It is safe for concurrent use;
// every operation on a key runs under that key's shard lock.
type Cache struct {
	cfg    Config
	clock  clockwork.Clock
	shards []*shard

	// size is the entry count across shards; tick stamps every access so
	// recency can be compared between shards.
	size atomic.Int64
	tick atomic.Uint64

	evictMu sync.Mutex
}

type shard struct {
	mu sync.Mutex
	// recency order only; eviction is driven by EvictIfOverCapacity so pending
	// records are never dropped behind a waiter's back.
	entries *simplelru.LRU[entity.Key, *record]
}

// New builds a Cache from cfg.
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		cfg:    cfg,
		clock:  clockwork.NewRealClock(),
		shards: make([]*shard, cfg.NumShards),
	}
	for _, opt := range opts {
		opt(c)
	}

	for i := range c.shards {
		entries, err := simplelru.NewLRU[entity.Key, *record](math.MaxInt, nil)
		if err != nil {
			return nil, err
		}
		c.shards[i] = &shard{entries: entries}
	}
	return c, nil
}

// Config returns the configuration the cache was built with.
func (c *Cache) Config() Config { return c.cfg }

// Now is the cache's notion of the current time.
func (c *Cache) Now() time.Time { return c.clock.Now() }

func (c *Cache) shardFor(key entity.Key) *shard {
	h := xxhash.Sum64String(key.String())
	return c.shards[h%uint64(len(c.shards))]
}

// Get returns the entry for key without affecting eviction order.
func (c *Cache) Get(key entity.Key) (Entry, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries.Peek(key)
	if !ok {
		return Entry{}, false
	}
	return rec.snapshot(key, c.clock.Now()), true
}

// Lookup is Get that also marks the entry as recently used.
func (c *Cache) Lookup(key entity.Key) (Entry, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries.Get(key)
	if !ok {
		return Entry{}, false
	}
	c.touch(rec)
	return rec.snapshot(key, c.clock.Now()), true
}

func (c *Cache) touch(rec *record) {
	rec.usedAt = c.tick.Add(1)
}

// add stores a new record for key. The shard lock must be held.
func (c *Cache) add(s *shard, key entity.Key, rec *record) {
	s.entries.Add(key, rec)
	c.size.Add(1)
	c.touch(rec)
}

// remove drops key. The shard lock must be held.
func (c *Cache) remove(s *shard, key entity.Key) {
	if s.entries.Remove(key) {
		c.size.Add(-1)
	}
}

// FreshWindow returns the configured freshness window for ref.
func (c *Cache) FreshWindow(ref entity.Reference) time.Duration {
	if ref.Status == entity.StatusAbsent {
		return c.cfg.AbsentFreshFor
	}
	return c.cfg.FreshFor
}

// Put stores ref for key as Fresh for freshWindow and completes any outstanding
// flight with it. ResolvedAt never moves backwards for a key.
func (c *Cache) Put(key entity.Key, ref entity.Reference, freshWindow time.Duration) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := c.clock.Now()
	rec, ok := s.entries.Get(key)
	if ok {
		c.touch(rec)
	} else {
		rec = &record{}
		c.add(s, key, rec)
	}
	if now.Before(rec.resolvedAt) {
		now = rec.resolvedAt
	}

	rec.value = ref
	rec.hasValue = true
	rec.resolvedAt = now
	rec.freshUntil = now.Add(freshWindow)

	if rec.flight != nil {
		rec.flight.complete(ref, nil)
		rec.flight = nil
	}
}

// MarkPending claims the right to resolve key.
//
// It returns a new flight and true when the entry was missing or stale; the
// caller must then finish it with Put or Fail. When a flight is already
// outstanding it returns that flight and false so the caller can wait on it.
// For a Fresh entry it returns nil and false.
func (c *Cache) MarkPending(key entity.Key) (*Flight, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries.Get(key)
	if !ok {
		rec = &record{flight: newFlight()}
		c.add(s, key, rec)
		return rec.flight, true
	}
	c.touch(rec)
	if rec.flight != nil {
		return rec.flight, false
	}
	if c.clock.Now().Before(rec.freshUntil) {
		return nil, false
	}
	rec.flight = newFlight()
	return rec.flight, true
}

// Fail completes the outstanding flight for key with err. Nothing negative is
// recorded: a previously resolved value stays in place and stays stale, and a
// record that never had a value is dropped so the next lookup starts over.
func (c *Cache) Fail(key entity.Key, err error) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries.Peek(key)
	if !ok || rec.flight == nil {
		return
	}
	rec.flight.complete(entity.UnknownReference(key), err)
	rec.flight = nil
	if !rec.hasValue {
		c.remove(s, key)
	}
}

// EvictIfOverCapacity drops the least recently used entries, across all
// shards, until no more than Capacity remain. Pending entries are skipped. It
// returns the number of entries removed.
func (c *Cache) EvictIfOverCapacity() int {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	evicted := 0
	for {
		over := int(c.size.Load()) - c.cfg.Capacity
		if over <= 0 {
			return evicted
		}
		n := c.evictOldest(over)
		if n == 0 {
			return evicted
		}
		evicted += n
	}
}

type victim struct {
	shard  *shard
	key    entity.Key
	usedAt uint64
}

// evictOldest removes up to n idle entries with the oldest access stamps.
// Each shard's list is already in recency order, so the global oldest n are
// among the first n idle entries of every shard.
func (c *Cache) evictOldest(n int) int {
	var candidates []victim
	for _, s := range c.shards {
		s.mu.Lock()
		taken := 0
		for _, key := range s.entries.Keys() {
			if taken == n {
				break
			}
			rec, ok := s.entries.Peek(key)
			if !ok || rec.flight != nil {
				continue
			}
			candidates = append(candidates, victim{shard: s, key: key, usedAt: rec.usedAt})
			taken++
		}
		s.mu.Unlock()
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].usedAt < candidates[j].usedAt })

	removed := 0
	for _, v := range candidates {
		if removed == n {
			break
		}
		v.shard.mu.Lock()
		rec, ok := v.shard.entries.Peek(v.key)
		// skip entries touched or claimed since they were collected
		if ok && rec.flight == nil && rec.usedAt == v.usedAt {
			c.remove(v.shard, v.key)
			removed++
		}
		v.shard.mu.Unlock()
	}
	return removed
}

// Len returns the number of entries across all shards.
func (c *Cache) Len() int {
	return int(c.size.Load())
}
