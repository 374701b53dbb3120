package timetable

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

// Warning marks that a timetable holds some but not all required section
// types for a course. Stored as "<courseCode>:<missing type chars>".
type Warning struct {
	CourseCode string
	Missing    []models.SectionType
}

// Encode renders the storage form, missing chars sorted L < P < T.
func (w Warning) Encode() string {
	chars := make([]string, 0, len(w.Missing))
	for _, t := range sortTypes(w.Missing) {
		chars = append(chars, string(t))
	}
	return w.CourseCode + ":" + strings.Join(chars, "")
}

// ParseWarnings decodes stored warning strings preserving their order.
func ParseWarnings(raw []string) ([]Warning, error) {
	warnings := make([]Warning, 0, len(raw))
	for _, entry := range raw {
		idx := strings.LastIndex(entry, ":")
		if idx <= 0 || idx == len(entry)-1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed warning entry %q", entry))
		}
		code := entry[:idx]
		var missing []models.SectionType
		for _, ch := range entry[idx+1:] {
			t := string(ch)
			if !models.IsValidSectionType(t) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown section type %q in warning %q", t, entry))
			}
			missing = append(missing, models.SectionType(t))
		}
		warnings = append(warnings, Warning{CourseCode: code, Missing: missing})
	}
	return warnings, nil
}

// EncodeWarnings renders the storage form of a warning list.
func EncodeWarnings(warnings []Warning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Encode())
	}
	return out
}

// UpdateWarnings recomputes the warning list for one section add or remove.
// The returned list keeps first-seen course order; unrelated courses are
// never reordered. Removing a section whose type the warning list already
// reports missing is impossible by construction and fails with a consistency
// error.
func UpdateWarnings(courseCode string, sectionType models.SectionType, required []models.SectionType, added bool, current []Warning) ([]Warning, error) {
	result := make([]Warning, len(current))
	copy(result, current)

	idx := -1
	for i, w := range result {
		if w.CourseCode == courseCode {
			idx = i
			break
		}
	}

	if added {
		if idx < 0 {
			missing := subtractType(required, sectionType)
			if len(missing) > 0 {
				result = append(result, Warning{CourseCode: courseCode, Missing: sortTypes(missing)})
			}
			return result, nil
		}
		missing := subtractType(result[idx].Missing, sectionType)
		if len(missing) == 0 {
			return append(result[:idx], result[idx+1:]...), nil
		}
		result[idx] = Warning{CourseCode: courseCode, Missing: missing}
		return result, nil
	}

	if idx < 0 {
		// The course was fully covered; removing one section leaves the
		// remaining types as coverage, so only multi-type courses warn.
		if len(required) > 1 {
			result = append(result, Warning{CourseCode: courseCode, Missing: []models.SectionType{sectionType}})
		}
		return result, nil
	}

	if containsType(result[idx].Missing, sectionType) {
		return nil, appErrors.Clone(appErrors.ErrConsistency,
			fmt.Sprintf("section type %s of %s is reported missing yet was present in the timetable", sectionType, courseCode))
	}
	if !containsType(required, sectionType) {
		return result, nil
	}
	missing := sortTypes(append(result[idx].Missing, sectionType))
	if len(missing) == len(required) {
		// Zero sections of the course remain; partial coverage ended.
		return append(result[:idx], result[idx+1:]...), nil
	}
	result[idx] = Warning{CourseCode: courseCode, Missing: missing}
	return result, nil
}

func subtractType(types []models.SectionType, drop models.SectionType) []models.SectionType {
	var out []models.SectionType
	for _, t := range types {
		if t != drop {
			out = append(out, t)
		}
	}
	return out
}

func containsType(types []models.SectionType, want models.SectionType) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func sortTypes(types []models.SectionType) []models.SectionType {
	out := make([]models.SectionType, len(types))
	copy(out, types)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
