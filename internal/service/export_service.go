package service

import (
	"fmt"
	"strconv"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/export"
)

var exportDayOrder = []string{"M", "T", "W", "Th", "F", "S"}

// ExportService renders timetables and the course catalogue into
// downloadable documents.
type ExportService struct {
	pdf *export.PDFExporter
	csv *export.CSVExporter
}

// NewExportService builds an export service.
func NewExportService() *ExportService {
	return &ExportService{pdf: export.NewPDFExporter(), csv: export.NewCSVExporter()}
}

// TimetablePDF renders a timetable as a week-grid PDF.
func (s *ExportService) TimetablePDF(t models.Timetable, sections []models.SectionWithCourse) ([]byte, error) {
	cells := make(map[string]string)
	minHour, maxHour := 1, 8
	for _, section := range sections {
		label := fmt.Sprintf("%s %s%d", section.CourseCode, section.Type, section.Number)
		for _, entry := range section.RoomTime {
			_, room, slot, err := timetable.ParseRoomTime(entry)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed room-time entry")
			}
			cells[slot.Key()] = label + " " + room
			if slot.Hour > maxHour {
				maxHour = slot.Hour
			}
		}
	}
	hours := make([]int, 0, maxHour-minHour+1)
	for hour := minHour; hour <= maxHour; hour++ {
		hours = append(hours, hour)
	}

	title := fmt.Sprintf("%s (%d-%d)", t.Name, t.AcadYear, t.Semester)
	return s.pdf.RenderGrid(export.TimetableGrid{
		Days:  exportDayOrder,
		Hours: hours,
		Cells: cells,
	}, title)
}

// CatalogueCSV renders the current course catalogue as CSV.
func (s *ExportService) CatalogueCSV(courses []models.Course) ([]byte, error) {
	data := export.Dataset{
		Headers: []string{"code", "name", "acad_year", "semester"},
		Rows:    make([]map[string]string, 0, len(courses)),
	}
	for _, course := range courses {
		data.Rows = append(data.Rows, map[string]string{
			"code":      course.Code,
			"name":      course.Name,
			"acad_year": strconv.Itoa(course.AcadYear),
			"semester":  strconv.Itoa(course.Semester),
		})
	}
	return s.csv.Render(data)
}
