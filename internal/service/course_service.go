package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

const (
	cacheKeyCourseList   = "courses:list"
	cacheKeyCoursePrefix = "courses:detail:"
)

type courseCatalogueStore interface {
	ListCurrent(ctx context.Context) ([]models.Course, error)
	GetByID(ctx context.Context, id string) (*models.Course, error)
}

type courseSectionLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Section, error)
}

// CourseService serves the current course catalogue with read-through
// caching; ingestion invalidates the cache when a new cohort lands.
type CourseService struct {
	courses  courseCatalogueStore
	sections courseSectionLister
	cache    *CacheService
	logger   *zap.Logger
}

// NewCourseService wires course read dependencies. Cache may be nil.
func NewCourseService(courses courseCatalogueStore, sections courseSectionLister, cache *CacheService, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, sections: sections, cache: cache, logger: logger}
}

// List returns the non-archived courses of the current cohort.
func (s *CourseService) List(ctx context.Context) ([]models.Course, error) {
	var cached []models.Course
	if hit, err := s.cache.Get(ctx, cacheKeyCourseList, &cached); err == nil && hit {
		return cached, nil
	}

	courses, err := s.courses.ListCurrent(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if err := s.cache.Set(ctx, cacheKeyCourseList, courses, 0); err != nil {
		s.logger.Warn("failed to cache course list", zap.Error(err))
	}
	return courses, nil
}

// Get returns a course with its sections.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseWithSections, error) {
	key := cacheKeyCoursePrefix + id
	var cached models.CourseWithSections
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("course %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	sections, err := s.sections.ListByCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course sections")
	}

	result := &models.CourseWithSections{Course: *course, Sections: sections}
	if err := s.cache.Set(ctx, key, result, 0); err != nil {
		s.logger.Warn("failed to cache course", zap.String("courseId", id), zap.Error(err))
	}
	return result, nil
}
