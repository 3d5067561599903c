package cache

import (
	"time"

	"github.com/goliatone/go-entityref/entity"
)

// State is the freshness of an entry at the moment it was read.
type State uint8

const (
	StateFresh State = iota
	StateStale
	StatePending
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StatePending:
		return "pending"
	default:
		return "invalid"
	}
}

// Entry is a point-in-time copy of a cached record.
type Entry struct {
	Key entity.Key

	// Value is the last resolved reference. It is only meaningful when HasValue
	// is true; a Pending entry created by a first lookup has no value yet.
	Value    entity.Reference
	HasValue bool

	ResolvedAt time.Time
	FreshUntil time.Time
	State      State
}

// Flight is one outstanding loader call for a key. Waiters block on Done and
// then read Result.
type Flight struct {
	done chan struct{}
	ref  entity.Reference
	err  error
}

func newFlight() *Flight {
	return &Flight{done: make(chan struct{})}
}

// Done is closed once the flight completes.
func (f *Flight) Done() <-chan struct{} { return f.done }

// Result returns the outcome. Only valid after Done is closed.
func (f *Flight) Result() (entity.Reference, error) { return f.ref, f.err }

func (f *Flight) complete(ref entity.Reference, err error) {
	f.ref = ref
	f.err = err
	close(f.done)
}

type record struct {
	value      entity.Reference
	hasValue   bool
	resolvedAt time.Time
	freshUntil time.Time
	flight     *Flight
	usedAt     uint64
}

func (r *record) snapshot(key entity.Key, now time.Time) Entry {
	e := Entry{
		Key:        key,
		Value:      r.value,
		HasValue:   r.hasValue,
		ResolvedAt: r.resolvedAt,
		FreshUntil: r.freshUntil,
	}
	switch {
	case r.flight != nil:
		e.State = StatePending
	case now.Before(r.freshUntil):
		e.State = StateFresh
	default:
		e.State = StateStale
	}
	return e
}
