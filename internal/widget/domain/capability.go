package domain

import (
	"encoding/json"
	"slices"
)

// CapabilitySet is an unordered set of capabilities. The zero value (nil) is an
// empty set and is safe to read. Set operations never mutate their receiver or
// arguments; they return fresh sets.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities, dropping duplicates.
func NewCapabilitySet(capabilities ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(capabilities))
	for _, c := range capabilities {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Len returns the number of capabilities in the set.
func (s CapabilitySet) Len() int {
	return len(s)
}

// Slice returns the capabilities sorted lexicographically.
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Strings returns the sorted capabilities as plain strings.
func (s CapabilitySet) Strings() []string {
	caps := s.Slice()
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}

// Clone returns an independent copy of the set.
func (s CapabilitySet) Clone() CapabilitySet {
	out := make(CapabilitySet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Union returns the capabilities present in s or other.
func (s CapabilitySet) Union(other CapabilitySet) CapabilitySet {
	out := s.Clone()
	for c := range other {
		out[c] = struct{}{}
	}
	return out
}

// Intersect returns the capabilities present in both s and other.
func (s CapabilitySet) Intersect(other CapabilitySet) CapabilitySet {
	out := make(CapabilitySet)
	for c := range s {
		if other.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

// Difference returns the capabilities of s that are not in other.
func (s CapabilitySet) Difference(other CapabilitySet) CapabilitySet {
	out := make(CapabilitySet)
	for c := range s {
		if !other.Has(c) {
			out[c] = struct{}{}
		}
	}
	return out
}

// IsSubsetOf reports whether every capability of s is also in other.
// The empty set is a subset of every set.
func (s CapabilitySet) IsSubsetOf(other CapabilitySet) bool {
	for c := range s {
		if !other.Has(c) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s CapabilitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes a JSON array of strings, dropping duplicates.
func (s *CapabilitySet) UnmarshalJSON(data []byte) error {
	var items []Capability
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewCapabilitySet(items...)
	return nil
}
