package query

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-entityref/entity"
	"github.com/goliatone/go-entityref/pkg/testsupport"
	"github.com/goliatone/go-entityref/registry"
	"github.com/viccon/sturdyc"
)

// countingSource answers from a fixed set and records every request.
type countingSource struct {
	mu       sync.Mutex
	refs     map[entity.Key]entity.Reference
	unknown  map[entity.Key]bool
	err      error
	requests [][]entity.Key
}

func newCountingSource(refs ...entity.Reference) *countingSource {
	s := &countingSource{
		refs:    make(map[entity.Key]entity.Reference),
		unknown: make(map[entity.Key]bool),
	}
	for _, r := range refs {
		s.refs[r.Key] = r
	}
	return s
}

func (s *countingSource) ResolveMany(_ context.Context, keys []entity.Key) (map[entity.Key]entity.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, append([]entity.Key(nil), keys...))
	if s.err != nil {
		return nil, s.err
	}

	out := make(map[entity.Key]entity.Reference, len(keys))
	for _, key := range keys {
		switch {
		case s.unknown[key]:
			out[key] = entity.UnknownReference(key)
		default:
			if ref, ok := s.refs[key]; ok {
				out[key] = ref
			} else {
				out[key] = entity.AbsentReference(key)
			}
		}
	}
	return out, nil
}

func (s *countingSource) set(ref entity.Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[ref.Key] = ref
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestClient(t *testing.T, source Source, opts ...Option) *Client {
	t.Helper()
	c, err := New(source, DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return c
}

var potion = testsupport.Ref(entity.TypeItem, "potion-1", "Potion of Healing", "potion-of-healing")

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StaleTime != 60*time.Second {
		t.Errorf("expected StaleTime to be 60s, got %v", cfg.StaleTime)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero stale time", mutate: func(c *Config) { c.StaleTime = 0 }},
		{name: "gc before sync refresh", mutate: func(c *Config) { c.GCTime = time.Second }},
		{name: "zero capacity", mutate: func(c *Config) { c.Capacity = 0 }},
		{name: "sync refresh inside jitter", mutate: func(c *Config) { c.SyncRefreshAfter = c.StaleTime }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNew_RequiresSource(t *testing.T) {
	if _, err := New(nil, DefaultConfig()); err == nil {
		t.Error("expected an error without a source")
	}
}

func TestClient_ResolveServesCachedCopy(t *testing.T) {
	source := newCountingSource(potion)
	c := newTestClient(t, source)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ref, err := c.Resolve(ctx, potion.Key)
		if err != nil {
			t.Fatalf("Resolve() failed: %v", err)
		}
		if ref != potion {
			t.Errorf("expected %+v, got %+v", potion, ref)
		}
	}
	if n := source.count(); n != 1 {
		t.Errorf("expected 1 source request, got %d", n)
	}
}

func TestClient_ResolveUnknownIsPlaceholderAndNotKept(t *testing.T) {
	source := newCountingSource(potion)
	source.unknown[potion.Key] = true
	c := newTestClient(t, source)
	ctx := context.Background()

	ref, err := c.Resolve(ctx, potion.Key)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if ref.Status != entity.StatusUnknown || ref.Label() != entity.UnknownLabel {
		t.Errorf("expected placeholder, got %+v", ref)
	}

	source.mu.Lock()
	delete(source.unknown, potion.Key)
	source.mu.Unlock()

	ref, _ = c.Resolve(ctx, potion.Key)
	if !ref.Exists() {
		t.Errorf("expected the retry to resolve, got %+v", ref)
	}
	if n := source.count(); n != 2 {
		t.Errorf("expected 2 source requests, got %d", n)
	}
}

func TestClient_ResolveMany(t *testing.T) {
	frightened := testsupport.Ref(entity.TypeCondition, "c1", "Frightened", "frightened")
	source := newCountingSource(potion, frightened)
	flaky := entity.NewKey(entity.TypeMonster, "flaky")
	source.unknown[flaky] = true
	c := newTestClient(t, source)
	ctx := context.Background()

	missing := entity.NewKey(entity.TypeCondition, "missing")
	keys := []entity.Key{potion.Key, frightened.Key, missing, flaky, potion.Key}

	got, err := c.ResolveMany(ctx, keys)
	if err != nil {
		t.Fatalf("ResolveMany() failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 distinct keys, got %d", len(got))
	}
	if got[potion.Key] != potion || got[frightened.Key] != frightened {
		t.Errorf("unexpected existing references %+v", got)
	}
	if got[missing].Status != entity.StatusAbsent {
		t.Errorf("expected missing to be absent, got %v", got[missing].Status)
	}
	if got[flaky].Status != entity.StatusUnknown {
		t.Errorf("expected flaky to be unknown, got %v", got[flaky].Status)
	}

	// resolved keys are kept, the unknown one is asked for again
	if _, err := c.ResolveMany(ctx, keys); err != nil {
		t.Fatalf("ResolveMany() failed: %v", err)
	}
	source.mu.Lock()
	last := source.requests[len(source.requests)-1]
	source.mu.Unlock()
	if len(last) != 1 || last[0] != flaky {
		t.Errorf("expected only the unknown key to be requested again, got %v", last)
	}
}

func TestClient_UnknownTypeIsAnError(t *testing.T) {
	reg := testsupport.NewStubLoader().Registry(t, entity.TypeItem)
	c := newTestClient(t, newCountingSource(potion), WithRegistry(reg))

	_, err := c.ResolveMany(context.Background(), []entity.Key{potion.Key, entity.NewKey(entity.TypeClass, "wizard")})
	if !registry.IsUnknownType(err) {
		t.Errorf("expected unknown type error, got %v", err)
	}

	_, err = c.Resolve(context.Background(), entity.NewKey(entity.Type("spell"), "fireball"))
	if !registry.IsUnknownType(err) {
		t.Errorf("expected unknown type error, got %v", err)
	}
}

func TestClient_InvalidTypeWithoutRegistry(t *testing.T) {
	c := newTestClient(t, newCountingSource())

	_, err := c.Resolve(context.Background(), entity.NewKey(entity.Type("spell"), "fireball"))
	if !registry.IsUnknownType(err) {
		t.Errorf("expected unknown type error, got %v", err)
	}
}

func TestClient_SourceErrorPropagates(t *testing.T) {
	source := newCountingSource()
	source.err = errors.New("resolver down")
	c := newTestClient(t, source)

	if _, err := c.ResolveMany(context.Background(), []entity.Key{potion.Key}); err == nil {
		t.Error("expected the source error")
	}
}

func TestClient_Invalidate(t *testing.T) {
	source := newCountingSource(potion)
	c := newTestClient(t, source)
	ctx := context.Background()

	_, _ = c.Resolve(ctx, potion.Key)
	c.Invalidate(potion.Key)
	_, _ = c.Resolve(ctx, potion.Key)
	if n := source.count(); n != 2 {
		t.Errorf("expected a second source request after Invalidate, got %d", n)
	}

	if n := c.InvalidateType(entity.TypeItem); n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d", c.Len())
	}
}

// waitForRequests polls until source has seen n requests; background refreshes
// run on their own goroutine.
func waitForRequests(t *testing.T, source *countingSource, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for source.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d source requests, got %d", n, source.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_ResolveRefreshesStaleCopyInBackground(t *testing.T) {
	source := newCountingSource(potion)
	clock := sturdyc.NewTestClock(time.Now())
	c := newTestClient(t, source, WithClock(clock))
	ctx := context.Background()

	if _, err := c.Resolve(ctx, potion.Key); err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	renamed := potion
	renamed.Name = "Greater Potion of Healing"
	source.set(renamed)

	cfg := DefaultConfig()
	clock.Add(cfg.StaleTime + cfg.RefreshJitter + time.Second)

	ref, err := c.Resolve(ctx, potion.Key)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if ref != potion {
		t.Errorf("expected the stale copy to be served at once, got %+v", ref)
	}

	waitForRequests(t, source, 2)

	deadline := time.Now().Add(2 * time.Second)
	for {
		ref, err = c.Resolve(ctx, potion.Key)
		if err != nil {
			t.Fatalf("Resolve() failed: %v", err)
		}
		if ref == renamed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected the refreshed reference, got %+v", ref)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := source.count(); n != 2 {
		t.Errorf("expected exactly 1 background request, got %d total", n)
	}
}

func TestClient_ResolveManyRefreshesStaleCopyInBackground(t *testing.T) {
	frightened := testsupport.Ref(entity.TypeCondition, "c1", "Frightened", "frightened")
	source := newCountingSource(potion, frightened)
	clock := sturdyc.NewTestClock(time.Now())
	c := newTestClient(t, source, WithClock(clock))
	ctx := context.Background()
	keys := []entity.Key{potion.Key, frightened.Key}

	if _, err := c.ResolveMany(ctx, keys); err != nil {
		t.Fatalf("ResolveMany() failed: %v", err)
	}

	shaken := frightened
	shaken.Name = "Shaken"
	source.set(shaken)

	cfg := DefaultConfig()
	clock.Add(cfg.StaleTime + cfg.RefreshJitter + time.Second)

	got, err := c.ResolveMany(ctx, keys)
	if err != nil {
		t.Fatalf("ResolveMany() failed: %v", err)
	}
	if got[frightened.Key] != frightened {
		t.Errorf("expected the stale copy to be served at once, got %+v", got[frightened.Key])
	}

	waitForRequests(t, source, 2)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err = c.ResolveMany(ctx, keys)
		if err != nil {
			t.Fatalf("ResolveMany() failed: %v", err)
		}
		if got[frightened.Key] == shaken {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected the refreshed reference, got %+v", got[frightened.Key])
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got[potion.Key] != potion {
		t.Errorf("unexpected potion %+v", got[potion.Key])
	}
}
