package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/goliatone/go-entityref/entity"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// fixtureRecord is one row of a references fixture.
type fixtureRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// LoadReferences reads a fixture shaped as {"<type>": [{"id", "name", "slug"}]}
// and returns the existing references it describes, sorted by key.
func LoadReferences(t testing.TB, path string) []entity.Reference {
	t.Helper()

	var raw map[string][]fixtureRecord
	LoadFixtureJSON(t, path, &raw)

	var out []entity.Reference
	for name, rows := range raw {
		typ, err := entity.ParseType(name)
		if err != nil {
			t.Fatalf("fixture %s: %v", path, err)
		}
		for _, row := range rows {
			out = append(out, Ref(typ, row.ID, row.Name, row.Slug))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Ref builds an existing reference.
func Ref(t entity.Type, id, name, slug string) entity.Reference {
	return entity.Reference{
		Key:    entity.NewKey(t, id),
		Name:   name,
		Slug:   slug,
		Status: entity.StatusExists,
	}
}

// Keys builds keys of one type.
func Keys(t entity.Type, ids ...string) []entity.Key {
	out := make([]entity.Key, len(ids))
	for i, id := range ids {
		out[i] = entity.NewKey(t, id)
	}
	return out
}
