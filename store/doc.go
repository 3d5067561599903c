// Package store backs the per-type loaders with a SQL database through bun.
//
// Every entity type has its own table named after the plural of the type
// ("items", "ancestries") holding only the display projection: id, name and
// slug. A loader answers a batch with one IN query.
//
// RepositoryLoader also accepts any go-repository-bun repository, so a domain
// that already has a richer model can serve references by projecting it:
//
//	loader := store.NewRepositoryLoader[Monster](monsterRepo, func(m Monster) store.Record {
//		return store.Record{ID: m.ID.String(), Name: m.Name, Slug: m.Slug}
//	})
//
// The id filter uses the model's own bun alias. Pass WithIDColumn when the id
// lives in a column not named "id".
package store
