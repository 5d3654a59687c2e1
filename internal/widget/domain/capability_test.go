package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCapabilitySet_DropsDuplicates(t *testing.T) {
	set := NewCapabilitySet("m.send.event", "m.read.roomState", "m.send.event")

	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Has("m.send.event"))
	assert.True(t, set.Has("m.read.roomState"))
	assert.False(t, set.Has("m.other"))
}

func TestCapabilitySet_NilIsEmpty(t *testing.T) {
	var set CapabilitySet

	assert.Equal(t, 0, set.Len())
	assert.False(t, set.Has("m.send.event"))
	assert.Empty(t, set.Slice())
	assert.True(t, set.IsSubsetOf(NewCapabilitySet()))
}

func TestCapabilitySet_Operations(t *testing.T) {
	a := NewCapabilitySet("a", "b", "c")
	b := NewCapabilitySet("b", "c", "d")

	t.Run("Intersect", func(t *testing.T) {
		assert.Equal(t, []Capability{"b", "c"}, a.Intersect(b).Slice())
	})

	t.Run("Union", func(t *testing.T) {
		assert.Equal(t, []Capability{"a", "b", "c", "d"}, a.Union(b).Slice())
	})

	t.Run("Difference", func(t *testing.T) {
		assert.Equal(t, []Capability{"a"}, a.Difference(b).Slice())
	})

	t.Run("OperandsUntouched", func(t *testing.T) {
		assert.Equal(t, []Capability{"a", "b", "c"}, a.Slice())
		assert.Equal(t, []Capability{"b", "c", "d"}, b.Slice())
	})
}

func TestCapabilitySet_IsSubsetOf(t *testing.T) {
	tests := []struct {
		name     string
		set      CapabilitySet
		other    CapabilitySet
		expected bool
	}{
		{name: "Success_EmptyOfEmpty", set: NewCapabilitySet(), other: NewCapabilitySet(), expected: true},
		{name: "Success_EmptyOfAny", set: NewCapabilitySet(), other: NewCapabilitySet("a"), expected: true},
		{name: "Success_Equal", set: NewCapabilitySet("a", "b"), other: NewCapabilitySet("b", "a"), expected: true},
		{name: "Success_Proper", set: NewCapabilitySet("a"), other: NewCapabilitySet("a", "b"), expected: true},
		{name: "Failure_ExtraElement", set: NewCapabilitySet("a", "z"), other: NewCapabilitySet("a", "b"), expected: false},
		{name: "Failure_OfNil", set: NewCapabilitySet("a"), other: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.set.IsSubsetOf(tt.other))
		})
	}
}

func TestCapabilitySet_CloneIsIndependent(t *testing.T) {
	original := NewCapabilitySet("a")
	clone := original.Clone()
	clone["b"] = struct{}{}

	assert.False(t, original.Has("b"))
	assert.True(t, clone.Has("b"))
}

func TestCapabilitySet_JSON(t *testing.T) {
	t.Run("Success_MarshalSorted", func(t *testing.T) {
		data, err := json.Marshal(NewCapabilitySet("z", "a", "m"))
		require.NoError(t, err)
		assert.JSONEq(t, `["a","m","z"]`, string(data))
	})

	t.Run("Success_MarshalEmptyAsArray", func(t *testing.T) {
		var set CapabilitySet
		data, err := json.Marshal(set)
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(data))
	})

	t.Run("Success_UnmarshalDropsDuplicates", func(t *testing.T) {
		var set CapabilitySet
		require.NoError(t, json.Unmarshal([]byte(`["a","b","a"]`), &set))
		assert.Equal(t, []Capability{"a", "b"}, set.Slice())
	})

	t.Run("Failure_UnmarshalNotArray", func(t *testing.T) {
		var set CapabilitySet
		assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &set))
	})
}
