package models

import (
	"time"

	"github.com/lib/pq"
)

// SectionType identifies the kind of scheduled instance a section is.
type SectionType string

const (
	SectionTypeLecture   SectionType = "L"
	SectionTypePractical SectionType = "P"
	SectionTypeTutorial  SectionType = "T"
)

// ApprovedSectionTypes is the source of truth for valid section types.
var ApprovedSectionTypes = []SectionType{SectionTypeLecture, SectionTypePractical, SectionTypeTutorial}

// IsValidSectionType reports whether raw names an approved section type.
func IsValidSectionType(raw string) bool {
	for _, t := range ApprovedSectionTypes {
		if string(t) == raw {
			return true
		}
	}
	return false
}

// Course is one offering of a course code inside a cohort. Rows are created
// only by the ingestion pipeline and archived, never deleted, when a newer
// cohort arrives. Unique per (code, acad_year, semester).
type Course struct {
	ID              string     `db:"id" json:"id"`
	Code            string     `db:"code" json:"code"`
	Name            string     `db:"name" json:"name"`
	AcadYear        int        `db:"acad_year" json:"acadYear"`
	Semester        int        `db:"semester" json:"semester"`
	Archived        bool       `db:"archived" json:"archived"`
	MidsemStartTime *time.Time `db:"midsem_start_time" json:"midsemStartTime,omitempty"`
	MidsemEndTime   *time.Time `db:"midsem_end_time" json:"midsemEndTime,omitempty"`
	CompreStartTime *time.Time `db:"compre_start_time" json:"compreStartTime,omitempty"`
	CompreEndTime   *time.Time `db:"compre_end_time" json:"compreEndTime,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

// Section is one scheduled instance of a course. RoomTime entries are encoded
// "<code>:<room>:<day>:<hour>".
type Section struct {
	ID          string         `db:"id" json:"id"`
	CourseID    string         `db:"course_id" json:"courseId"`
	Type        SectionType    `db:"type" json:"type"`
	Number      int            `db:"number" json:"number"`
	Instructors pq.StringArray `db:"instructors" json:"instructors"`
	RoomTime    pq.StringArray `db:"room_time" json:"roomTime"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// SectionWithCourse joins a section with the code of its owning course, used
// wherever derived timetable state needs the course prefix.
type SectionWithCourse struct {
	Section
	CourseCode string `db:"course_code" json:"courseCode"`
}

// CourseWithSections bundles a course and its sections for read endpoints and
// search-index payloads.
type CourseWithSections struct {
	Course
	Sections []Section `json:"sections"`
}

// Cohort is the (academic year, semester) pair all courses, sections and
// timetables hang off.
type Cohort struct {
	AcadYear int `db:"acad_year" json:"acadYear"`
	Semester int `db:"semester" json:"semester"`
}

// Compare orders cohorts chronologically: negative when c precedes other.
func (c Cohort) Compare(other Cohort) int {
	if c.AcadYear != other.AcadYear {
		if c.AcadYear < other.AcadYear {
			return -1
		}
		return 1
	}
	if c.Semester != other.Semester {
		if c.Semester < other.Semester {
			return -1
		}
		return 1
	}
	return 0
}
