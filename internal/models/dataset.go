package models

// Dataset is the authoritative per-semester course dump consumed by the
// ingestion pipeline.
type Dataset struct {
	Courses  map[string]DatasetCourse `json:"courses" validate:"required,min=1"`
	Metadata DatasetMetadata          `json:"metadata" validate:"required"`
}

// DatasetMetadata stamps the cohort the dataset belongs to.
type DatasetMetadata struct {
	AcadYear int `json:"acadYear" validate:"required,min=1900"`
	Semester int `json:"semester" validate:"required,min=1,max=3"`
}

// DatasetCourse is one course entry keyed by course code.
type DatasetCourse struct {
	CourseName string                    `json:"course_name" validate:"required"`
	Units      int                       `json:"units"`
	Sections   map[string]DatasetSection `json:"sections" validate:"required"`
	ExamsISO   []DatasetExams            `json:"exams_iso"`
}

// DatasetSection is one section entry keyed by "<typeChar><number>".
type DatasetSection struct {
	Instructor []string          `json:"instructor"`
	Schedule   []DatasetSchedule `json:"schedule" validate:"required,min=1"`
}

// DatasetSchedule declares a room with the day and hour grid it occupies. The
// stored roomTime list is the {day x hour} cross product of each entry.
type DatasetSchedule struct {
	Room  string   `json:"room" validate:"required"`
	Days  []string `json:"days" validate:"required,min=1"`
	Hours []int    `json:"hours" validate:"required,min=1"`
}

// DatasetExams carries "<isoStart>|<isoEnd>" windows; nil means the course
// does not define that exam.
type DatasetExams struct {
	Midsem *string `json:"midsem"`
	Compre *string `json:"compre"`
}

// IngestSummary reports what one ingestion run did.
type IngestSummary struct {
	Cohort              Cohort `json:"cohort"`
	NoOp                bool   `json:"noop"`
	Overwritten         bool   `json:"overwritten"`
	CoursesArchived     int64  `json:"coursesArchived"`
	TimetablesArchived  int64  `json:"timetablesArchived"`
	DraftsDeleted       int64  `json:"draftsDeleted"`
	CoursesDeleted      int64  `json:"coursesDeleted"`
	TimetablesDeleted   int64  `json:"timetablesDeleted"`
	CoursesInserted     int    `json:"coursesInserted"`
	SectionsInserted    int    `json:"sectionsInserted"`
	DurationMillis      int64  `json:"durationMillis"`
	SearchSyncScheduled int    `json:"searchSyncScheduled"`
}
