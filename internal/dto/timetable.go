package dto

// CreateTimetableRequest opens a new draft timetable for the current cohort.
type CreateTimetableRequest struct {
	Name    string   `json:"name" validate:"required,min=1,max=200"`
	Year    int      `json:"year" validate:"required,min=1,max=5"`
	Degrees []string `json:"degrees" validate:"required,min=1,dive,required"`
}

// EditTimetableMetaRequest updates the user-editable timetable fields.
// Setting Draft to false publishes the timetable.
type EditTimetableMetaRequest struct {
	Name    string   `json:"name" validate:"required,min=1,max=200"`
	Degrees []string `json:"degrees" validate:"required,min=1,dive,required"`
	Private *bool    `json:"private" validate:"required"`
	Draft   *bool    `json:"draft" validate:"required"`
}

// SectionRequest identifies the section an add or remove operation targets.
type SectionRequest struct {
	SectionID string `json:"sectionId"`
}

// TimetableListQuery filters the public timetable listing.
type TimetableListQuery struct {
	AcadYear int      `form:"acadYear"`
	Semester int      `form:"semester"`
	Degrees  []string `form:"degrees"`
}
