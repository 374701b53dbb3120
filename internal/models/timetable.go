package models

import (
	"time"

	"github.com/lib/pq"
)

// Timetable is a user-built selection of sections for one cohort. Timings,
// ExamTimes and Warnings are derived state maintained on every section
// mutation:
//   - Timings entries are "<code>:<day><hour>" slot signatures.
//   - ExamTimes entries are "<code>|<MIDSEM|COMPRE>|<isoStart>|<isoEnd>".
//   - Warnings entries are "<code>:<missing section type chars>".
type Timetable struct {
	ID          int            `db:"id" json:"id"`
	AuthorID    string         `db:"author_id" json:"authorId"`
	Name        string         `db:"name" json:"name"`
	Degrees     pq.StringArray `db:"degrees" json:"degrees"`
	Private     bool           `db:"private" json:"private"`
	Draft       bool           `db:"draft" json:"draft"`
	Archived    bool           `db:"archived" json:"archived"`
	Year        int            `db:"year" json:"year"`
	AcadYear    int            `db:"acad_year" json:"acadYear"`
	Semester    int            `db:"semester" json:"semester"`
	Timings     pq.StringArray `db:"timings" json:"timings"`
	ExamTimes   pq.StringArray `db:"exam_times" json:"examTimes"`
	Warnings    pq.StringArray `db:"warnings" json:"warnings"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	LastUpdated time.Time      `db:"last_updated" json:"lastUpdated"`
}

// TimetableFilter narrows public timetable listings.
type TimetableFilter struct {
	AcadYear int
	Semester int
	Degrees  []string
}
