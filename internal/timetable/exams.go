package timetable

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

const (
	ExamMidsem = "MIDSEM"
	ExamCompre = "COMPRE"

	isoLayout = "2006-01-02T15:04:05.000Z07:00"
)

// ExamWindow is one decoded examTimes entry.
type ExamWindow struct {
	CourseCode string
	Kind       string
	Start      time.Time
	End        time.Time
}

// Encode renders the storage form "<code>|<kind>|<isoStart>|<isoEnd>".
func (w ExamWindow) Encode() string {
	return strings.Join([]string{
		w.CourseCode,
		w.Kind,
		w.Start.UTC().Format(isoLayout),
		w.End.UTC().Format(isoLayout),
	}, "|")
}

// ExamTimesForCourse derives the examTimes entries a course contributes. A
// course only contributes windows it defines.
func ExamTimesForCourse(c models.Course) []string {
	var entries []string
	if c.MidsemStartTime != nil && c.MidsemEndTime != nil {
		entries = append(entries, ExamWindow{CourseCode: c.Code, Kind: ExamMidsem, Start: *c.MidsemStartTime, End: *c.MidsemEndTime}.Encode())
	}
	if c.CompreStartTime != nil && c.CompreEndTime != nil {
		entries = append(entries, ExamWindow{CourseCode: c.Code, Kind: ExamCompre, Start: *c.CompreStartTime, End: *c.CompreEndTime}.Encode())
	}
	return entries
}

// ParseExamTimes decodes stored examTimes entries.
func ParseExamTimes(raw []string) ([]ExamWindow, error) {
	windows := make([]ExamWindow, 0, len(raw))
	for _, entry := range raw {
		parts := strings.Split(entry, "|")
		if len(parts) != 4 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed exam-time entry %q", entry))
		}
		start, err := time.Parse(isoLayout, parts[2])
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed exam start in %q", entry))
		}
		end, err := time.Parse(isoLayout, parts[3])
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed exam end in %q", entry))
		}
		windows = append(windows, ExamWindow{CourseCode: parts[0], Kind: parts[1], Start: start, End: end})
	}
	return windows, nil
}

// ParseExamRange decodes a dataset "<isoStart>|<isoEnd>" window.
func ParseExamRange(raw string) (start, end time.Time, err error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed exam range %q", raw))
	}
	start, err = time.Parse(isoLayout, parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed exam start in %q", raw))
	}
	end, err = time.Parse(isoLayout, parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("malformed exam end in %q", raw))
	}
	return start, end, nil
}

// HasCourseExamTimes reports whether any entry belongs to the given course.
func HasCourseExamTimes(raw []string, courseCode string) bool {
	for _, entry := range raw {
		if strings.SplitN(entry, "|", 2)[0] == courseCode {
			return true
		}
	}
	return false
}

// RemoveCourseExamTimes drops all entries of the given course.
func RemoveCourseExamTimes(raw []string, courseCode string) []string {
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if strings.SplitN(entry, "|", 2)[0] == courseCode {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// FindExamClash returns the stored window of a different course overlapping
// one of the candidate course's exam windows, or nil when none clash.
func FindExamClash(raw []string, candidate models.Course) (*ExamWindow, error) {
	stored, err := ParseExamTimes(raw)
	if err != nil {
		return nil, err
	}
	candidateWindows, err := ParseExamTimes(ExamTimesForCourse(candidate))
	if err != nil {
		return nil, err
	}
	for _, w := range stored {
		if w.CourseCode == candidate.Code {
			continue
		}
		for _, cw := range candidateWindows {
			if cw.Start.Before(w.End) && w.Start.Before(cw.End) {
				found := w
				return &found, nil
			}
		}
	}
	return nil, nil
}
