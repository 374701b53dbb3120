package timetable

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

// Slot is a (day, hour) pair, room-independent. It is the unit of clash
// detection and of the derived timings list.
type Slot struct {
	Day  string
	Hour int
}

// Key renders the slot signature used in timings and the clash index,
// e.g. "M3" or "Th10".
func (s Slot) Key() string {
	return s.Day + strconv.Itoa(s.Hour)
}

// EncodeRoomTime builds the stored roomTime entry "<code>:<room>:<day>:<hour>".
func EncodeRoomTime(code, room, day string, hour int) string {
	return fmt.Sprintf("%s:%s:%s:%d", code, room, day, hour)
}

// ParseRoomTime splits a stored roomTime entry back into its parts. Course
// codes never contain colons, so a plain split is safe.
func ParseRoomTime(entry string) (code, room string, slot Slot, err error) {
	parts := strings.Split(entry, ":")
	if len(parts) != 4 {
		return "", "", Slot{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed room-time entry %q", entry))
	}
	hour, convErr := strconv.Atoi(parts[3])
	if convErr != nil {
		return "", "", Slot{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed hour in room-time entry %q", entry))
	}
	return parts[0], parts[1], Slot{Day: parts[2], Hour: hour}, nil
}

// SlotsFromRoomTimes derives the slot set a section occupies.
func SlotsFromRoomTimes(roomTime []string) ([]Slot, error) {
	slots := make([]Slot, 0, len(roomTime))
	seen := make(map[string]struct{}, len(roomTime))
	for _, entry := range roomTime {
		_, _, slot, err := ParseRoomTime(entry)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[slot.Key()]; dup {
			continue
		}
		seen[slot.Key()] = struct{}{}
		slots = append(slots, slot)
	}
	return slots, nil
}

// TimingsFor derives the timings entries "<code>:<day><hour>" a section
// contributes to its timetable.
func TimingsFor(courseCode string, roomTime []string) ([]string, error) {
	slots, err := SlotsFromRoomTimes(roomTime)
	if err != nil {
		return nil, err
	}
	timings := make([]string, 0, len(slots))
	for _, slot := range slots {
		timings = append(timings, courseCode+":"+slot.Key())
	}
	return timings, nil
}

// SortedTimings returns a sorted copy, the canonical stored form after
// reconciliation.
func SortedTimings(timings []string) []string {
	out := make([]string, len(timings))
	copy(out, timings)
	sort.Strings(out)
	return out
}

// EqualSets compares two timing lists order-insensitively.
func EqualSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, v := range a {
		counts[v]++
	}
	for _, v := range b {
		counts[v]--
		if counts[v] < 0 {
			return false
		}
	}
	return true
}

// Difference returns the entries of a that are absent from b.
func Difference(a, b []string) []string {
	present := make(map[string]struct{}, len(b))
	for _, v := range b {
		present[v] = struct{}{}
	}
	var diff []string
	for _, v := range a {
		if _, ok := present[v]; !ok {
			diff = append(diff, v)
		}
	}
	return diff
}

// Intersects reports whether any entry of a appears in b.
func Intersects(a, b []string) bool {
	present := make(map[string]struct{}, len(b))
	for _, v := range b {
		present[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := present[v]; ok {
			return true
		}
	}
	return false
}
