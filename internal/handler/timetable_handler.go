package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
	"github.com/noah-isme/uni-timetable-api/pkg/response"
)

type timetableService interface {
	Create(ctx context.Context, authorID string, req dto.CreateTimetableRequest) (*models.Timetable, error)
	Get(ctx context.Context, id int, requesterID string) (*models.Timetable, error)
	Sections(ctx context.Context, id int, requesterID string) ([]models.SectionWithCourse, error)
	EditMetadata(ctx context.Context, id int, authorID string, req dto.EditTimetableMetaRequest) (*models.Timetable, error)
	Delete(ctx context.Context, id int, authorID string) error
	ListPublic(ctx context.Context, query dto.TimetableListQuery) ([]models.Timetable, error)
	AddSection(ctx context.Context, id int, authorID, sectionID string) (*models.Timetable, error)
	RemoveSection(ctx context.Context, id int, authorID, sectionID string) (*models.Timetable, error)
}

type timetableExporter interface {
	TimetablePDF(t models.Timetable, sections []models.SectionWithCourse) ([]byte, error)
}

// TimetableHandler exposes timetable endpoints.
type TimetableHandler struct {
	service  timetableService
	exporter timetableExporter
}

// NewTimetableHandler builds a new handler.
func NewTimetableHandler(service timetableService, exporter timetableExporter) *TimetableHandler {
	return &TimetableHandler{service: service, exporter: exporter}
}

func timetableID(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid timetable id")
	}
	return id, nil
}

// Create godoc
// @Summary Create a draft timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.CreateTimetableRequest true "Timetable payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req dto.CreateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	record, err := h.service.Create(c.Request.Context(), requesterID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List godoc
// @Summary List published timetables
// @Tags Timetables
// @Produce json
// @Param acadYear query int false "Academic year"
// @Param semester query int false "Semester"
// @Param degrees query []string false "Degree codes"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable query"))
		return
	}
	list, err := h.service.ListPublic(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list)
}

// Get godoc
// @Summary Get a timetable
// @Tags Timetables
// @Produce json
// @Param id path int true "Timetable id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	id, err := timetableID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Get(c.Request.Context(), id, requesterID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Update godoc
// @Summary Edit timetable metadata
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path int true "Timetable id"
// @Param payload body dto.EditTimetableMetaRequest true "Metadata payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	id, err := timetableID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.EditTimetableMetaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid metadata payload"))
		return
	}
	record, err := h.service.EditMetadata(c.Request.Context(), id, requesterID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Delete godoc
// @Summary Delete a timetable
// @Tags Timetables
// @Param id path int true "Timetable id"
// @Success 204
// @Security BearerAuth
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	id, err := timetableID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, requesterID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddSection godoc
// @Summary Add a section to a draft timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path int true "Timetable id"
// @Param payload body dto.SectionRequest true "Section payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/sections [post]
func (h *TimetableHandler) AddSection(c *gin.Context) {
	id, err := timetableID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid section payload"))
		return
	}
	record, err := h.service.AddSection(c.Request.Context(), id, requesterID(c), req.SectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// RemoveSection godoc
// @Summary Remove a section from a draft timetable
// @Tags Timetables
// @Produce json
// @Param id path int true "Timetable id"
// @Param sectionId path string true "Section id"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/sections/{sectionId} [delete]
func (h *TimetableHandler) RemoveSection(c *gin.Context) {
	id, err := timetableID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.RemoveSection(c.Request.Context(), id, requesterID(c), c.Param("sectionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Export godoc
// @Summary Export a timetable as PDF
// @Tags Timetables
// @Produce application/pdf
// @Param id path int true "Timetable id"
// @Success 200 {file} binary
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	id, err := timetableID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	requester := requesterID(c)
	record, err := h.service.Get(c.Request.Context(), id, requester)
	if err != nil {
		response.Error(c, err)
		return
	}
	sections, err := h.service.Sections(c.Request.Context(), id, requester)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.exporter.TimetablePDF(*record, sections)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="timetable.pdf"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}
