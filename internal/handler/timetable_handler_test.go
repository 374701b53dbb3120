package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/middleware"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type stubTimetableService struct {
	record    *models.Timetable
	sections  []models.SectionWithCourse
	err       error
	requester string
	sectionID string
}

func (s *stubTimetableService) Create(_ context.Context, authorID string, req dto.CreateTimetableRequest) (*models.Timetable, error) {
	s.requester = authorID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Timetable{ID: 1, AuthorID: authorID, Name: req.Name, Private: true, Draft: true}, nil
}

func (s *stubTimetableService) Get(_ context.Context, id int, requesterID string) (*models.Timetable, error) {
	s.requester = requesterID
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubTimetableService) Sections(_ context.Context, id int, requesterID string) ([]models.SectionWithCourse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sections, nil
}

func (s *stubTimetableService) EditMetadata(_ context.Context, id int, authorID string, req dto.EditTimetableMetaRequest) (*models.Timetable, error) {
	s.requester = authorID
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubTimetableService) Delete(_ context.Context, id int, authorID string) error {
	s.requester = authorID
	return s.err
}

func (s *stubTimetableService) ListPublic(_ context.Context, query dto.TimetableListQuery) ([]models.Timetable, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.record == nil {
		return nil, nil
	}
	return []models.Timetable{*s.record}, nil
}

func (s *stubTimetableService) AddSection(_ context.Context, id int, authorID, sectionID string) (*models.Timetable, error) {
	s.requester = authorID
	s.sectionID = sectionID
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

func (s *stubTimetableService) RemoveSection(_ context.Context, id int, authorID, sectionID string) (*models.Timetable, error) {
	s.requester = authorID
	s.sectionID = sectionID
	if s.err != nil {
		return nil, s.err
	}
	return s.record, nil
}

type stubExporter struct {
	payload []byte
}

func (s *stubExporter) TimetablePDF(models.Timetable, []models.SectionWithCourse) ([]byte, error) {
	return s.payload, nil
}

func buildTimetableRouter(svc *stubTimetableService, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if userID != "" {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID})
			c.Next()
		})
	}
	h := NewTimetableHandler(svc, &stubExporter{payload: []byte("%PDF-1.4")})
	router.POST("/timetables", h.Create)
	router.GET("/timetables", h.List)
	router.GET("/timetables/:id", h.Get)
	router.PUT("/timetables/:id", h.Update)
	router.DELETE("/timetables/:id", h.Delete)
	router.POST("/timetables/:id/sections", h.AddSection)
	router.DELETE("/timetables/:id/sections/:sectionId", h.RemoveSection)
	router.GET("/timetables/:id/export", h.Export)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestTimetableHandlerCreate(t *testing.T) {
	svc := &stubTimetableService{}
	router := buildTimetableRouter(svc, "user-1")

	body := bytes.NewBufferString(`{"name":"my draft","year":2,"degrees":["A7"]}`)
	req, _ := http.NewRequest(http.MethodPost, "/timetables", body)
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, "user-1", svc.requester)
	require.Contains(t, resp.Body.String(), `"name":"my draft"`)
}

func TestTimetableHandlerRejectsBadID(t *testing.T) {
	router := buildTimetableRouter(&stubTimetableService{}, "")

	req, _ := http.NewRequest(http.MethodGet, "/timetables/not-a-number", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "VALIDATION_ERROR")
}

func TestTimetableHandlerGetMapsServiceError(t *testing.T) {
	svc := &stubTimetableService{err: appErrors.ErrForbidden}
	router := buildTimetableRouter(svc, "")

	req, _ := http.NewRequest(http.MethodGet, "/timetables/7", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Empty(t, svc.requester)
}

func TestTimetableHandlerAddSection(t *testing.T) {
	svc := &stubTimetableService{record: &models.Timetable{ID: 4, AuthorID: "user-1"}}
	router := buildTimetableRouter(svc, "user-1")

	body := bytes.NewBufferString(`{"sectionId":"9f4a2d6c-1b3e-4c5d-8e7f-0a1b2c3d4e5f"}`)
	req, _ := http.NewRequest(http.MethodPost, "/timetables/4/sections", body)
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "9f4a2d6c-1b3e-4c5d-8e7f-0a1b2c3d4e5f", svc.sectionID)
}

func TestTimetableHandlerSlotClash(t *testing.T) {
	svc := &stubTimetableService{err: appErrors.ErrSlotClash}
	router := buildTimetableRouter(svc, "user-1")

	body := bytes.NewBufferString(`{"sectionId":"9f4a2d6c-1b3e-4c5d-8e7f-0a1b2c3d4e5f"}`)
	req, _ := http.NewRequest(http.MethodPost, "/timetables/4/sections", body)
	req.Header.Set("Content-Type", "application/json")
	resp := performRequest(router, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, resp.Body.String(), "SLOT_CLASH")
}

func TestTimetableHandlerExport(t *testing.T) {
	svc := &stubTimetableService{
		record: &models.Timetable{ID: 4, Name: "export me"},
	}
	router := buildTimetableRouter(svc, "")

	req, _ := http.NewRequest(http.MethodGet, "/timetables/4/export", nil)
	resp := performRequest(router, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	require.True(t, bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")))
}
