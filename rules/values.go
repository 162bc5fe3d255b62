package rules

import (
	"encoding/json"
	"maps"
	"reflect"
	"slices"
)

// Values is a snapshot of field values keyed by field id
type Values map[string]any

// Clone returns a shallow copy
func (v Values) Clone() Values {
	out := make(Values, len(v))
	maps.Copy(out, v)
	return out
}

// Overlay returns a new snapshot of v with over applied on top
func (v Values) Overlay(over Values) Values {
	out := make(Values, len(v)+len(over))
	maps.Copy(out, v)
	maps.Copy(out, over)
	return out
}

// Equal reports structural equality of two snapshots
func (v Values) Equal(other Values) bool {
	return maps.EqualFunc(v, other, func(a, b any) bool {
		return reflect.DeepEqual(a, b)
	})
}

// Set is a set of identifiers. It encodes as a sorted JSON array.
type Set map[string]struct{}

// NewSet builds a set from ids
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

func (s Set) MarshalJSON() ([]byte, error) {
	ids := s.Sorted()
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSet(ids...)
	return nil
}
