package store

import (
	"context"

	"github.com/goliatone/go-entityref/entity"
	"github.com/goliatone/go-entityref/registry"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Lister is the List method of a go-repository-bun repository.
type Lister[T any] interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
}

// RepositoryLoader serves a registry.Loader from any repository of domain
// models. project maps a model to its display record.
type RepositoryLoader[T any] struct {
	lister   Lister[T]
	project  func(T) Record
	idColumn string
}

var _ registry.Loader = (*RepositoryLoader[Record])(nil)

// LoaderOption customises a RepositoryLoader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	idColumn string
}

// WithIDColumn sets the model column that holds the entity id when it is not
// "id". The value of that column must be what project puts in Record.ID.
func WithIDColumn(column string) LoaderOption {
	return func(o *loaderOptions) {
		if column != "" {
			o.idColumn = column
		}
	}
}

// NewRepositoryLoader wraps lister. The id filter is qualified with the model's
// own bun alias, whatever it is.
func NewRepositoryLoader[T any](lister Lister[T], project func(T) Record, opts ...LoaderOption) *RepositoryLoader[T] {
	o := loaderOptions{idColumn: DefaultIDColumn}
	for _, opt := range opts {
		opt(&o)
	}
	return &RepositoryLoader[T]{lister: lister, project: project, idColumn: o.idColumn}
}

// NewTableLoader serves t from its records table in db.
func NewTableLoader(db bun.IDB, t entity.Type) *RepositoryLoader[Record] {
	return NewRepositoryLoader[Record](NewTable(db, t), func(r Record) Record { return r })
}

// FetchByIDs implements registry.Loader with a single IN query. Rows for ids
// that were not asked for are ignored.
func (l *RepositoryLoader[T]) FetchByIDs(ctx context.Context, t entity.Type, ids []string) (map[string]entity.Reference, error) {
	out := make(map[string]entity.Reference, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	models, _, err := l.lister.List(ctx, WhereColumnIn(l.idColumn, ids))
	if err != nil {
		return nil, goerrors.WrapRetryable(err, goerrors.CategoryExternal, "fetch "+string(t)+" references")
	}

	for _, model := range models {
		rec := l.project(model)
		if _, ok := wanted[rec.ID]; !ok {
			continue
		}
		out[rec.ID] = rec.Reference(t)
	}
	return out, nil
}

// RegisterTables registers a table loader for every type on b.
func RegisterTables(b *registry.Builder, db bun.IDB, types ...entity.Type) error {
	if len(types) == 0 {
		types = entity.AllTypes()
	}
	for _, t := range types {
		if err := b.Register(t, NewTableLoader(db, t)); err != nil {
			return err
		}
	}
	return nil
}
