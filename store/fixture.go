package store

import (
	"context"
	"encoding/json"
	"os"

	"github.com/goliatone/go-entityref/entity"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Fixture holds seed records grouped by entity type. Its JSON form is
//
//	{"item": [{"id": "potion-1", "name": "Potion of Healing", "slug": "potion-of-healing"}]}
type Fixture map[entity.Type][]Record

// ParseFixture decodes a fixture, rejecting unknown entity types.
func ParseFixture(data []byte) (Fixture, error) {
	var raw map[string][]Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "decode fixture")
	}

	f := make(Fixture, len(raw))
	for name, records := range raw {
		t, err := entity.ParseType(name)
		if err != nil {
			return nil, err
		}
		f[t] = append(f[t], records...)
	}
	return f, nil
}

// LoadFixture reads and decodes the fixture at path.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "read fixture "+path)
	}
	return ParseFixture(data)
}

// Len counts the records across types.
func (f Fixture) Len() int {
	n := 0
	for _, records := range f {
		n += len(records)
	}
	return n
}

// Seed creates the table of every known type and upserts the fixture records
// in one transaction.
func (f Fixture) Seed(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, t := range entity.AllTypes() {
			table := NewTable(tx, t)
			if err := table.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := table.Upsert(ctx, f[t]...); err != nil {
				return err
			}
		}
		return nil
	})
}
