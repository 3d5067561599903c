package entity

import (
	"encoding/json"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{in: "item", want: TypeItem},
		{in: " Condition ", want: TypeCondition},
		{in: "SUBCLASS", want: TypeSubclass},
		{in: "spell", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	key := NewKey(TypeItem, "potion-1")
	if key.String() != "item:potion-1" {
		t.Fatalf("unexpected string form %q", key.String())
	}

	parsed, err := ParseKey(key.String())
	if err != nil {
		t.Fatalf("ParseKey failed: %v", err)
	}
	if parsed != key {
		t.Errorf("expected %v, got %v", key, parsed)
	}
}

func TestParseKey_IDMayContainSeparator(t *testing.T) {
	parsed, err := ParseKey("source:srd:5.1")
	if err != nil {
		t.Fatalf("ParseKey failed: %v", err)
	}
	if parsed.Type != TypeSource || parsed.ID != "srd:5.1" {
		t.Errorf("unexpected key %+v", parsed)
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, in := range []string{"item", "item:", "spell:fireball", ":x"} {
		if _, err := ParseKey(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}

func TestKeysAreComparable(t *testing.T) {
	seen := map[Key]int{}
	seen[NewKey(TypeItem, "a")]++
	seen[Key{Type: TypeItem, ID: "a"}]++
	if len(seen) != 1 || seen[NewKey(TypeItem, "a")] != 2 {
		t.Errorf("structurally equal keys should collapse, got %v", seen)
	}
}

func TestReferenceLabel(t *testing.T) {
	key := NewKey(TypeCondition, "c1")

	if got := (Reference{Key: key, Name: "Poisoned", Status: StatusExists}).Label(); got != "Poisoned" {
		t.Errorf("expected name label, got %q", got)
	}
	if got := AbsentReference(key).Label(); got != "missing condition" {
		t.Errorf("unexpected absent label %q", got)
	}
	if got := UnknownReference(key).Label(); got != UnknownLabel {
		t.Errorf("unexpected unknown label %q", got)
	}
	if UnknownReference(key).Resolved() {
		t.Error("unknown reference should not be resolved")
	}
	if !AbsentReference(key).Resolved() || AbsentReference(key).Exists() {
		t.Error("absent reference should be resolved but not exist")
	}
}

func TestReferenceJSON(t *testing.T) {
	ref := Reference{Key: NewKey(TypeItem, "potion-1"), Name: "Potion of Healing", Slug: "potion-of-healing", Status: StatusExists}

	data, err := json.Marshal(ref)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"key":{"type":"item","id":"potion-1"},"name":"Potion of Healing","slug":"potion-of-healing","status":"exists"}`
	if string(data) != want {
		t.Errorf("unexpected JSON:\n%s\nwant:\n%s", data, want)
	}

	var decoded Reference
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded != ref {
		t.Errorf("expected %+v, got %+v", ref, decoded)
	}
}
