package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

func TestBuildClashIndex(t *testing.T) {
	index, err := BuildClashIndex([]SectionEntry{
		{
			CourseID:   "course-1",
			CourseCode: "CS F211",
			Type:       models.SectionTypeLecture,
			Number:     1,
			RoomTime:   []string{"CS F211:R101:M:3", "CS F211:R101:W:3"},
		},
	})
	require.NoError(t, err)
	require.Len(t, index, 2)
	assert.Equal(t, "CS F211 L1", index["M3"].Label)
	assert.Equal(t, "course-1", index["W3"].CourseID)
}

func TestClashIndexBlocksCrossCourse(t *testing.T) {
	index, err := BuildClashIndex([]SectionEntry{
		{CourseID: "course-1", CourseCode: "CS F211", Type: models.SectionTypeLecture, Number: 1, RoomTime: []string{"CS F211:R101:M:3"}},
	})
	require.NoError(t, err)

	occ, err := index.Blocks(SectionEntry{
		CourseID:   "course-2",
		CourseCode: "MATH F111",
		Type:       models.SectionTypeLecture,
		Number:     2,
		RoomTime:   []string{"MATH F111:R202:M:3"},
	})
	require.NoError(t, err)
	require.NotNil(t, occ)
	assert.Equal(t, "CS F211 L1", occ.Label)
}

func TestClashIndexAllowsSameRequirementSwitch(t *testing.T) {
	index, err := BuildClashIndex([]SectionEntry{
		{CourseID: "course-1", CourseCode: "CS F211", Type: models.SectionTypeLecture, Number: 1, RoomTime: []string{"CS F211:R101:M:3"}},
	})
	require.NoError(t, err)

	// L2 of the same course occupies the same slot; switching is permitted.
	occ, err := index.Blocks(SectionEntry{
		CourseID:   "course-1",
		CourseCode: "CS F211",
		Type:       models.SectionTypeLecture,
		Number:     2,
		RoomTime:   []string{"CS F211:R105:M:3"},
	})
	require.NoError(t, err)
	assert.Nil(t, occ)

	// A different type of the same course is still a clash.
	occ, err = index.Blocks(SectionEntry{
		CourseID:   "course-1",
		CourseCode: "CS F211",
		Type:       models.SectionTypeTutorial,
		Number:     1,
		RoomTime:   []string{"CS F211:R105:M:3"},
	})
	require.NoError(t, err)
	require.NotNil(t, occ)
	assert.Equal(t, models.SectionTypeLecture, occ.Type)
}

func TestClashIndexFreeSlot(t *testing.T) {
	index, err := BuildClashIndex(nil)
	require.NoError(t, err)

	occ, err := index.Blocks(SectionEntry{
		CourseID: "course-1", CourseCode: "CS F211", Type: models.SectionTypeLecture, Number: 1,
		RoomTime: []string{"CS F211:R101:M:3"},
	})
	require.NoError(t, err)
	assert.Nil(t, occ)
}
