package profile

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Set is an insertion-ordered mapping of profile id to profile. It is the
// unit the store loads and saves.
type Set struct {
	m *orderedmap.OrderedMap[string, Profile]
}

// NewSet returns a set holding profiles in the given order.
func NewSet(profiles ...Profile) *Set {
	s := &Set{m: orderedmap.New[string, Profile]()}
	for _, p := range profiles {
		s.Put(p)
	}
	return s
}

// Get returns the profile with the given id.
func (s *Set) Get(id string) (Profile, bool) {
	return s.m.Get(id)
}

// Put inserts or replaces a profile. Replacing keeps the original position.
func (s *Set) Put(p Profile) {
	s.m.Set(p.ID, p)
}

// Delete removes a profile and reports whether it was present.
func (s *Set) Delete(id string) bool {
	_, ok := s.m.Delete(id)
	return ok
}

// Len returns the number of profiles.
func (s *Set) Len() int {
	return s.m.Len()
}

// List returns the profiles in insertion order.
func (s *Set) List() []Profile {
	out := make([]Profile, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	return NewSet(s.List()...)
}

// MarshalJSON encodes the set as a JSON object keyed by id, in insertion order.
func (s *Set) MarshalJSON() ([]byte, error) {
	return s.m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object keyed by id. Records missing their
// embedded id take it from the key, and the key wins on mismatch.
func (s *Set) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, Profile]()
	if err := json.Unmarshal(data, m); err != nil {
		return err
	}

	out := orderedmap.New[string, Profile]()
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		p := pair.Value
		if pair.Key == "" {
			return fmt.Errorf("%w: empty profile key", ErrInvalidProfile)
		}
		p.ID = pair.Key
		out.Set(p.ID, p)
	}

	s.m = out
	return nil
}
