package testsupport

import (
	"context"
	"sync"
	"testing"

	"github.com/goliatone/go-entityref/entity"
	"github.com/goliatone/go-entityref/registry"
)

// Call records one FetchByIDs invocation.
type Call struct {
	Type entity.Type
	IDs  []string
}

// StubLoader is an in-memory registry.Loader for tests. It records every call,
// can be told to fail per type, and can hold calls open until released.
type StubLoader struct {
	mu       sync.Mutex
	records  map[entity.Key]entity.Reference
	failures map[entity.Type]error
	gate     chan struct{}
	calls    []Call
	started  chan Call
}

// NewStubLoader returns a StubLoader that knows the given references.
func NewStubLoader(refs ...entity.Reference) *StubLoader {
	s := &StubLoader{
		records:  make(map[entity.Key]entity.Reference),
		failures: make(map[entity.Type]error),
		started:  make(chan Call, 256),
	}
	s.Set(refs...)
	return s
}

// Set adds or replaces references, keyed by their Key.
func (s *StubLoader) Set(refs ...entity.Reference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range refs {
		s.records[ref.Key] = ref
	}
}

// Remove forgets the given keys.
func (s *StubLoader) Remove(keys ...entity.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.records, key)
	}
}

// FailWith makes every call for t return err. A nil err clears the failure.
func (s *StubLoader) FailWith(t entity.Type, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, t)
		return
	}
	s.failures[t] = err
}

// Block holds every call started from now on until release is called.
func (s *StubLoader) Block() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Started receives every call as it enters the loader.
func (s *StubLoader) Started() <-chan Call {
	return s.started
}

// Calls returns the calls made so far.
func (s *StubLoader) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor counts the calls made for t.
func (s *StubLoader) CallsFor(t entity.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Type == t {
			n++
		}
	}
	return n
}

// FetchByIDs implements registry.Loader.
func (s *StubLoader) FetchByIDs(ctx context.Context, t entity.Type, ids []string) (map[string]entity.Reference, error) {
	call := Call{Type: t, IDs: append([]string(nil), ids...)}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	gate := s.gate
	s.mu.Unlock()

	select {
	case s.started <- call:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures[t]; err != nil {
		return nil, err
	}

	out := make(map[string]entity.Reference)
	for _, id := range ids {
		if ref, ok := s.records[entity.NewKey(t, id)]; ok {
			out[id] = ref
		}
	}
	return out, nil
}

// Registry builds a frozen registry that serves every given type from s.
// With no types it registers all of them.
func (s *StubLoader) Registry(t testing.TB, types ...entity.Type) *registry.Registry {
	t.Helper()

	if len(types) == 0 {
		types = entity.AllTypes()
	}
	b := registry.NewBuilder()
	for _, typ := range types {
		if err := b.Register(typ, s); err != nil {
			t.Fatalf("register stub loader for %s: %v", typ, err)
		}
	}
	return b.Build()
}
