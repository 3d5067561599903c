package store

import (
	"context"

	"github.com/goliatone/go-entityref/entity"
	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/jinzhu/inflection"
	"github.com/uptrace/bun"
)

// Record is the display projection stored for every entity type.
type Record struct {
	bun.BaseModel `bun:"table:records,alias:r"`

	ID   string `bun:"id,pk" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
	Slug string `bun:"slug,notnull,default:''" json:"slug"`
}

// Reference converts the row into an existing reference of type t.
func (r Record) Reference(t entity.Type) entity.Reference {
	return entity.Reference{
		Key:    entity.NewKey(t, r.ID),
		Name:   r.Name,
		Slug:   r.Slug,
		Status: entity.StatusExists,
	}
}

// TableName is the table holding records of type t, e.g. "ancestries".
func TableName(t entity.Type) string {
	return inflection.Plural(string(t))
}

// Table reads and writes the records of one entity type.
type Table struct {
	db   bun.IDB
	typ  entity.Type
	name string
}

// NewTable returns the table for t. db may be a *bun.DB or a bun.Tx.
func NewTable(db bun.IDB, t entity.Type) *Table {
	return &Table{db: db, typ: t, name: TableName(t)}
}

// Type returns the entity type stored in the table.
func (t *Table) Type() entity.Type { return t.typ }

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// EnsureSchema creates the table when it does not exist.
func (t *Table) EnsureSchema(ctx context.Context) error {
	_, err := t.db.NewCreateTable().
		Model((*Record)(nil)).
		ModelTableExpr("?", bun.Ident(t.name)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "create table "+t.name)
	}
	return nil
}

// Upsert inserts records, replacing name and slug of existing ids.
func (t *Table) Upsert(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := t.db.NewInsert().
		Model(&records).
		ModelTableExpr("?", bun.Ident(t.name)).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("slug = EXCLUDED.slug").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "upsert into "+t.name)
	}
	return nil
}

// Delete removes the given ids.
func (t *Table) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.db.NewDelete().
		Model((*Record)(nil)).
		ModelTableExpr("?", bun.Ident(t.name)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "delete from "+t.name)
	}
	return nil
}

// List returns the records matching every criteria, ordered by id, with their
// count. It has the shape of repository.Repository[T].List so the table can
// back a RepositoryLoader directly.
func (t *Table) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]Record, int, error) {
	var records []Record
	q := t.db.NewSelect().
		Model(&records).
		ModelTableExpr("? AS r", bun.Ident(t.name)).
		OrderExpr("?TableAlias.id ASC")
	for _, c := range criteria {
		q = c(q)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, 0, goerrors.Wrap(err, goerrors.CategoryExternal, "list "+t.name)
	}
	return records, len(records), nil
}

// DefaultIDColumn is the id column WhereIDIn filters on.
const DefaultIDColumn = "id"

// WhereIDIn limits a select to the given ids. The column is qualified with the
// alias of the query's model, so it works for any bun model with an id column.
func WhereIDIn(ids []string) repository.SelectCriteria {
	return WhereColumnIn(DefaultIDColumn, ids)
}

// WhereColumnIn limits a select to rows whose column is one of ids.
func WhereColumnIn(column string, ids []string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? IN (?)", bun.Ident(column), bun.In(ids))
	}
}
