package entity

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Type tags one content domain. The set is closed; see AllTypes.
type Type string

const (
	TypeClass      Type = "class"
	TypeSubclass   Type = "subclass"
	TypeItem       Type = "item"
	TypeAncestry   Type = "ancestry"
	TypeBackground Type = "background"
	TypeMonster    Type = "monster"
	TypeCondition  Type = "condition"
	TypeSource     Type = "source"
)

var allTypes = []Type{
	TypeAncestry,
	TypeBackground,
	TypeClass,
	TypeCondition,
	TypeItem,
	TypeMonster,
	TypeSource,
	TypeSubclass,
}

// KeySeparator separates the type and the id in the string form of a Key.
const KeySeparator = ":"

// AllTypes returns every known entity type in a stable order.
func AllTypes() []Type {
	return append([]Type(nil), allTypes...)
}

// Valid reports whether t is one of the known entity types.
func (t Type) Valid() bool {
	for _, known := range allTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t Type) String() string { return string(t) }

// ParseType normalises s and returns the matching Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", goerrors.New(fmt.Sprintf("unknown entity type %q", s), goerrors.CategoryBadInput).
			WithTextCode("INVALID_ENTITY_TYPE")
	}
	return t, nil
}

// Key identifies one entity across domains. Two keys with the same type and id are
// interchangeable.
type Key struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

// NewKey is a convenience constructor.
func NewKey(t Type, id string) Key {
	return Key{Type: t, ID: id}
}

func (k Key) String() string {
	return string(k.Type) + KeySeparator + k.ID
}

// ParseKey parses the "type:id" form produced by Key.String.
func ParseKey(s string) (Key, error) {
	typ, id, ok := strings.Cut(s, KeySeparator)
	if !ok || strings.TrimSpace(id) == "" {
		return Key{}, goerrors.New(fmt.Sprintf("malformed entity key %q, expected type:id", s), goerrors.CategoryBadInput).
			WithTextCode("INVALID_ENTITY_KEY")
	}
	t, err := ParseType(typ)
	if err != nil {
		return Key{}, err
	}
	return Key{Type: t, ID: strings.TrimSpace(id)}, nil
}
