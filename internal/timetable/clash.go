package timetable

import (
	"fmt"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// Occupancy names the section holding a slot.
type Occupancy struct {
	Label    string
	CourseID string
	Type     models.SectionType
}

// SectionEntry is the slice of a section the clash index needs.
type SectionEntry struct {
	CourseID   string
	CourseCode string
	Type       models.SectionType
	Number     int
	RoomTime   []string
}

// Label renders the user-facing section name, e.g. "CS F211 L1".
func (e SectionEntry) Label() string {
	return fmt.Sprintf("%s %s%d", e.CourseCode, e.Type, e.Number)
}

// ClashIndex maps slot signatures to the section occupying them.
type ClashIndex map[string]Occupancy

// BuildClashIndex derives the slot-occupancy map of a timetable's sections.
func BuildClashIndex(entries []SectionEntry) (ClashIndex, error) {
	index := make(ClashIndex)
	for _, entry := range entries {
		slots, err := SlotsFromRoomTimes(entry.RoomTime)
		if err != nil {
			return nil, err
		}
		for _, slot := range slots {
			index[slot.Key()] = Occupancy{
				Label:    entry.Label(),
				CourseID: entry.CourseID,
				Type:     entry.Type,
			}
		}
	}
	return index, nil
}

// Blocks returns the occupancy preventing selection of the candidate, or nil
// when the candidate is selectable. Slots held by a section of the same
// (course, type) never block: switching between sections of the same
// requirement is always permitted.
func (idx ClashIndex) Blocks(candidate SectionEntry) (*Occupancy, error) {
	slots, err := SlotsFromRoomTimes(candidate.RoomTime)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		occ, taken := idx[slot.Key()]
		if !taken {
			continue
		}
		if occ.CourseID == candidate.CourseID && occ.Type == candidate.Type {
			continue
		}
		found := occ
		return &found, nil
	}
	return nil, nil
}
