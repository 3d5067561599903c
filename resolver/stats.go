package resolver

import (
	"github.com/goliatone/go-entityref/entity"
	"github.com/puzpuzpuz/xsync/v3"
)

// Stats is a snapshot of resolver counters for one entity type.
type Stats struct {
	Hits           int64 `json:"hits"`
	StaleHits      int64 `json:"stale_hits"`
	Misses         int64 `json:"misses"`
	Coalesced      int64 `json:"coalesced"`
	LoaderCalls    int64 `json:"loader_calls"`
	LoaderFailures int64 `json:"loader_failures"`
	Absent         int64 `json:"absent"`
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		Hits:           s.Hits + o.Hits,
		StaleHits:      s.StaleHits + o.StaleHits,
		Misses:         s.Misses + o.Misses,
		Coalesced:      s.Coalesced + o.Coalesced,
		LoaderCalls:    s.LoaderCalls + o.LoaderCalls,
		LoaderFailures: s.LoaderFailures + o.LoaderFailures,
		Absent:         s.Absent + o.Absent,
	}
}

type counters struct {
	hits, staleHits, misses, coalesced *xsync.Counter
	loaderCalls, loaderFailures, absent *xsync.Counter
}

func newCounters() *counters {
	return &counters{
		hits:           xsync.NewCounter(),
		staleHits:      xsync.NewCounter(),
		misses:         xsync.NewCounter(),
		coalesced:      xsync.NewCounter(),
		loaderCalls:    xsync.NewCounter(),
		loaderFailures: xsync.NewCounter(),
		absent:         xsync.NewCounter(),
	}
}

type statsTable struct {
	byType *xsync.MapOf[entity.Type, *counters]
}

func newStatsTable() *statsTable {
	return &statsTable{byType: xsync.NewMapOf[entity.Type, *counters]()}
}

func (s *statsTable) of(t entity.Type) *counters {
	c, _ := s.byType.LoadOrCompute(t, newCounters)
	return c
}

func (s *statsTable) snapshot() map[entity.Type]Stats {
	out := make(map[entity.Type]Stats)
	s.byType.Range(func(t entity.Type, c *counters) bool {
		out[t] = Stats{
			Hits:           c.hits.Value(),
			StaleHits:      c.staleHits.Value(),
			Misses:         c.misses.Value(),
			Coalesced:      c.coalesced.Value(),
			LoaderCalls:    c.loaderCalls.Value(),
			LoaderFailures: c.loaderFailures.Value(),
			Absent:         c.absent.Value(),
		}
		return true
	})
	return out
}
