package timetable

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

var lpt = []models.SectionType{models.SectionTypeLecture, models.SectionTypePractical, models.SectionTypeTutorial}

func TestUpdateWarningsAddRemoveScenario(t *testing.T) {
	var warnings []Warning
	var err error

	warnings, err = UpdateWarnings("CS F211", models.SectionTypeLecture, lpt, true, warnings)
	require.NoError(t, err)
	assert.Equal(t, []string{"CS F211:PT"}, EncodeWarnings(warnings))

	warnings, err = UpdateWarnings("CS F211", models.SectionTypePractical, lpt, true, warnings)
	require.NoError(t, err)
	assert.Equal(t, []string{"CS F211:T"}, EncodeWarnings(warnings))

	warnings, err = UpdateWarnings("CS F211", models.SectionTypeTutorial, lpt, true, warnings)
	require.NoError(t, err)
	assert.Empty(t, EncodeWarnings(warnings))

	warnings, err = UpdateWarnings("CS F211", models.SectionTypeLecture, lpt, false, warnings)
	require.NoError(t, err)
	assert.Equal(t, []string{"CS F211:L"}, EncodeWarnings(warnings))
}

func TestUpdateWarningsSingleTypeCourse(t *testing.T) {
	required := []models.SectionType{models.SectionTypeLecture}

	warnings, err := UpdateWarnings("BIO F110", models.SectionTypeLecture, required, true, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	warnings, err = UpdateWarnings("BIO F110", models.SectionTypeLecture, required, false, warnings)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestUpdateWarningsRemoveLastPartialSection(t *testing.T) {
	required := []models.SectionType{models.SectionTypeLecture, models.SectionTypePractical}

	warnings, err := UpdateWarnings("CHEM F111", models.SectionTypeLecture, required, true, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"CHEM F111:P"}, EncodeWarnings(warnings))

	// Removing the only held section zeroes coverage; no warning remains.
	warnings, err = UpdateWarnings("CHEM F111", models.SectionTypeLecture, required, false, warnings)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestUpdateWarningsImpossibleRemoval(t *testing.T) {
	current := []Warning{{CourseCode: "CS F211", Missing: []models.SectionType{models.SectionTypeLecture}}}

	_, err := UpdateWarnings("CS F211", models.SectionTypeLecture, lpt, false, current)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConsistency.Code, appErr.Code)
}

func TestUpdateWarningsPreservesUnrelatedCourseOrder(t *testing.T) {
	var warnings []Warning
	var err error

	warnings, err = UpdateWarnings("CS F211", models.SectionTypeLecture, lpt, true, warnings)
	require.NoError(t, err)
	warnings, err = UpdateWarnings("MATH F111", models.SectionTypeLecture, []models.SectionType{models.SectionTypeLecture, models.SectionTypeTutorial}, true, warnings)
	require.NoError(t, err)
	warnings, err = UpdateWarnings("CS F211", models.SectionTypePractical, lpt, true, warnings)
	require.NoError(t, err)

	assert.Equal(t, []string{"CS F211:T", "MATH F111:T"}, EncodeWarnings(warnings))
}

// Randomized sequences against a reference coverage model: a warning exists
// iff coverage is strictly partial, and it lists exactly the missing types.
func TestUpdateWarningsPartialCoverageProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		size := 1 + rng.Intn(3)
		required := append([]models.SectionType(nil), lpt[:size]...)
		held := make(map[models.SectionType]bool)
		var warnings []Warning

		for op := 0; op < 30; op++ {
			candidate := required[rng.Intn(size)]
			add := !held[candidate]

			var err error
			warnings, err = UpdateWarnings("CS F211", candidate, required, add, warnings)
			require.NoError(t, err)
			held[candidate] = add

			heldCount := 0
			for _, ok := range held {
				if ok {
					heldCount++
				}
			}

			if heldCount == 0 || heldCount == len(required) {
				assert.Empty(t, warnings, "run %d op %d: full or zero coverage must not warn", run, op)
				continue
			}
			require.Len(t, warnings, 1, "run %d op %d", run, op)
			missing := warnings[0].Missing
			assert.Len(t, missing, len(required)-heldCount)
			for _, m := range missing {
				assert.False(t, held[m], "run %d op %d: held type %s reported missing", run, op, m)
			}
		}
	}
}

func TestParseWarningsRoundTrip(t *testing.T) {
	raw := []string{"CS F211:PT", "MATH F111:L"}
	warnings, err := ParseWarnings(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, EncodeWarnings(warnings))

	_, err = ParseWarnings([]string{"CS F211"})
	assert.Error(t, err)

	_, err = ParseWarnings([]string{"CS F211:X"})
	assert.Error(t, err)
}
