package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/pkg/response"
)

type courseService interface {
	List(ctx context.Context) ([]models.Course, error)
	Get(ctx context.Context, id string) (*models.CourseWithSections, error)
}

type catalogueExporter interface {
	CatalogueCSV(courses []models.Course) ([]byte, error)
}

// CourseHandler exposes the current course catalogue.
type CourseHandler struct {
	service  courseService
	exporter catalogueExporter
}

// NewCourseHandler builds a new handler.
func NewCourseHandler(service courseService, exporter catalogueExporter) *CourseHandler {
	return &CourseHandler{service: service, exporter: exporter}
}

// List godoc
// @Summary List current courses
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses)
}

// Get godoc
// @Summary Get a course with its sections
// @Tags Courses
// @Produce json
// @Param id path string true "Course id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course)
}

// Export godoc
// @Summary Export the course catalogue as CSV
// @Tags Courses
// @Produce text/csv
// @Success 200 {file} binary
// @Router /courses/export [get]
func (h *CourseHandler) Export(c *gin.Context) {
	courses, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.exporter.CatalogueCSV(courses)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="courses.csv"`)
	c.Data(http.StatusOK, "text/csv", payload)
}
