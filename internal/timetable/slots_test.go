package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoomTime(t *testing.T) {
	code, room, slot, err := ParseRoomTime("CS F211:R101:Th:10")
	require.NoError(t, err)
	assert.Equal(t, "CS F211", code)
	assert.Equal(t, "R101", room)
	assert.Equal(t, Slot{Day: "Th", Hour: 10}, slot)
	assert.Equal(t, "Th10", slot.Key())

	_, _, _, err = ParseRoomTime("R101:M:3")
	assert.Error(t, err)

	_, _, _, err = ParseRoomTime("CS F211:R101:M:three")
	assert.Error(t, err)
}

func TestEncodeRoomTimeRoundTrip(t *testing.T) {
	entry := EncodeRoomTime("CS F211", "R101", "M", 3)
	assert.Equal(t, "CS F211:R101:M:3", entry)

	code, room, slot, err := ParseRoomTime(entry)
	require.NoError(t, err)
	assert.Equal(t, "CS F211", code)
	assert.Equal(t, "R101", room)
	assert.Equal(t, "M3", slot.Key())
}

func TestTimingsFor(t *testing.T) {
	timings, err := TimingsFor("CS F211", []string{"CS F211:R101:M:3", "CS F211:R101:W:4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CS F211:M3", "CS F211:W4"}, timings)
}

func TestSlotsFromRoomTimesDeduplicates(t *testing.T) {
	// Two rooms at the same hour still occupy one slot.
	slots, err := SlotsFromRoomTimes([]string{"CS F211:R101:M:3", "CS F211:R102:M:3"})
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestEqualSets(t *testing.T) {
	assert.True(t, EqualSets([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, EqualSets([]string{"a", "b"}, []string{"a", "c"}))
	assert.False(t, EqualSets([]string{"a"}, []string{"a", "a"}))
	assert.True(t, EqualSets(nil, nil))
}

func TestDifferenceAndIntersects(t *testing.T) {
	diff := Difference([]string{"CS F211:M3", "CS F211:W4"}, []string{"CS F211:M3"})
	assert.Equal(t, []string{"CS F211:W4"}, diff)

	assert.True(t, Intersects([]string{"CS F211:W4"}, diff))
	assert.False(t, Intersects([]string{"CS F211:M3"}, diff))
}
