package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-entityref/entity"
)

var fixture = filepath.Join("..", "..", "store", "testdata", "references.json")

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand_JSON(t *testing.T) {
	out, err := run(t, "resolve",
		"--dsn", "file::memory:",
		"--log-level", "error",
		"--fixture", fixture,
		"--json",
		"item:potion-1", "condition:missing", "item:potion-1",
	)
	if err != nil {
		t.Fatalf("resolve failed: %v\n%s", err, out)
	}

	var refs []entity.Reference
	if err := json.Unmarshal([]byte(out), &refs); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[0].Name != "Potion of Healing" || refs[0].Status != entity.StatusExists {
		t.Errorf("unexpected potion %+v", refs[0])
	}
	if refs[1].Status != entity.StatusAbsent {
		t.Errorf("expected missing condition to be absent, got %+v", refs[1])
	}
}

func TestResolveCommand_Table(t *testing.T) {
	out, err := run(t, "resolve",
		"--dsn", "file::memory:",
		"--log-level", "error",
		"--fixture", fixture,
		"--stats",
		"monster:goblin",
	)
	if err != nil {
		t.Fatalf("resolve failed: %v\n%s", err, out)
	}
	for _, want := range []string{"monster:goblin", "exists", "Goblin", "LOADS"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestResolveCommand_InvalidKey(t *testing.T) {
	if _, err := run(t, "resolve", "--dsn", "file::memory:", "spell:fireball"); err == nil {
		t.Error("expected an error for an unknown entity type")
	}
}

func TestResolveCommand_EnvOverride(t *testing.T) {
	t.Setenv("REFRESOLVE_DATABASE_DRIVER", "oracle")
	if _, err := run(t, "resolve", "item:potion-1"); err == nil {
		t.Error("expected the invalid driver from the environment to be rejected")
	}
}

func TestSeedCommand(t *testing.T) {
	out, err := run(t, "seed", "--dsn", "file::memory:", "--log-level", "error", fixture)
	if err != nil {
		t.Fatalf("seed failed: %v\n%s", err, out)
	}

	if _, err := run(t, "seed", "--dsn", "file::memory:", filepath.Join("testdata", "missing.json")); err == nil {
		t.Error("expected an error for a missing fixture")
	}
}

func TestParseKeys(t *testing.T) {
	keys, err := parseKeys([]string{"item:a", "Monster:b", "item:a"})
	if err != nil {
		t.Fatalf("parseKeys() failed: %v", err)
	}
	if len(keys) != 2 || keys[1] != entity.NewKey(entity.TypeMonster, "b") {
		t.Errorf("unexpected keys %v", keys)
	}

	if _, err := parseKeys([]string{"no-separator"}); err == nil {
		t.Error("expected an error for a malformed key")
	}
}
