package entity

import "fmt"

// Status records what is known about a referenced entity.
type Status uint8

const (
	// StatusUnknown means the entity could not be looked up right now.
	// It is the zero value so an unpopulated Reference never claims existence.
	StatusUnknown Status = iota
	StatusExists
	StatusAbsent
)

var statusNames = map[Status]string{
	StatusUnknown: "unknown",
	StatusExists:  "exists",
	StatusAbsent:  "absent",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown reference status %q", text)
}

// UnknownLabel is rendered for references that could not be resolved.
const UnknownLabel = "unknown reference"

// Reference is the display projection of a resolved entity: enough to render a
// link, a tooltip or a label without knowing the domain schema.
type Reference struct {
	Key    Key    `json:"key"`
	Name   string `json:"name,omitempty"`
	Slug   string `json:"slug,omitempty"`
	Status Status `json:"status"`
}

// AbsentReference is the confirmed negative result for key.
func AbsentReference(key Key) Reference {
	return Reference{Key: key, Status: StatusAbsent}
}

// UnknownReference is the placeholder for a key whose lookup failed.
func UnknownReference(key Key) Reference {
	return Reference{Key: key, Status: StatusUnknown}
}

// Exists reports whether the loader confirmed the entity.
func (r Reference) Exists() bool { return r.Status == StatusExists }

// Resolved reports whether the status is definitive, exists or absent.
func (r Reference) Resolved() bool { return r.Status != StatusUnknown }

// Label returns the text to render for the reference.
func (r Reference) Label() string {
	switch r.Status {
	case StatusExists:
		if r.Name != "" {
			return r.Name
		}
		return r.Key.ID
	case StatusAbsent:
		return "missing " + string(r.Key.Type)
	default:
		return UnknownLabel
	}
}
