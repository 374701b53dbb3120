package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/dto"
	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type timetableStore interface {
	Create(ctx context.Context, t *models.Timetable) error
	GetByID(ctx context.Context, id int) (*models.Timetable, error)
	UpdateMetadata(ctx context.Context, id int, name string, degrees []string, private, draft bool) error
	UpdateDerived(ctx context.Context, exec sqlx.ExtContext, id int, timings, examTimes, warnings []string) error
	Delete(ctx context.Context, id int) error
	ListPublic(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, error)
	AddSection(ctx context.Context, exec sqlx.ExtContext, timetableID int, sectionID string) error
	RemoveSection(ctx context.Context, exec sqlx.ExtContext, timetableID int, sectionID string) error
	HasSection(ctx context.Context, timetableID int, sectionID string) (bool, error)
	CountSectionsOfType(ctx context.Context, timetableID int, courseID string, sectionType models.SectionType) (int, error)
	CountSectionsOfCourse(ctx context.Context, timetableID int, courseID string) (int, error)
	SectionsWithCourse(ctx context.Context, timetableID int) ([]models.SectionWithCourse, error)
}

type timetableSectionReader interface {
	GetByID(ctx context.Context, id string) (*models.Section, error)
	DistinctTypes(ctx context.Context, courseID string) ([]models.SectionType, error)
}

type timetableCourseReader interface {
	GetByID(ctx context.Context, id string) (*models.Course, error)
	LatestCohort(ctx context.Context, exec sqlx.ExtContext) (*models.Cohort, error)
}

type timetableSearchScheduler interface {
	ScheduleTimetableAdd(t models.Timetable) error
	ScheduleTimetableRemove(id int) error
}

// TimetableService owns timetable CRUD and the add/remove-section paths that
// maintain the derived timings, exam and warning state.
type TimetableService struct {
	timetables timetableStore
	sections   timetableSectionReader
	courses    timetableCourseReader
	tx         txProvider
	search     timetableSearchScheduler
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTimetableService wires timetable dependencies. Search is optional.
func NewTimetableService(
	timetables timetableStore,
	sections timetableSectionReader,
	courses timetableCourseReader,
	tx txProvider,
	search timetableSearchScheduler,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		timetables: timetables,
		sections:   sections,
		courses:    courses,
		tx:         tx,
		search:     search,
		validator:  validate,
		logger:     logger,
	}
}

// Create opens an empty private draft timetable bound to the current cohort.
func (s *TimetableService) Create(ctx context.Context, authorID string, req dto.CreateTimetableRequest) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	cohort, err := s.courses.LatestCohort(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current cohort")
	}
	if cohort == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no course dataset has been ingested yet")
	}

	record := &models.Timetable{
		AuthorID: authorID,
		Name:     req.Name,
		Degrees:  pq.StringArray(req.Degrees),
		Private:  true,
		Draft:    true,
		Year:     req.Year,
		AcadYear: cohort.AcadYear,
		Semester: cohort.Semester,
	}
	if err := s.timetables.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}
	return record, nil
}

// Get loads a timetable. Private and draft timetables are visible to their
// author only.
func (s *TimetableService) Get(ctx context.Context, id int, requesterID string) (*models.Timetable, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if (record.Private || record.Draft) && record.AuthorID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "timetable is private")
	}
	return record, nil
}

// Sections returns the sections a timetable holds, with the same visibility
// rules as Get.
func (s *TimetableService) Sections(ctx context.Context, id int, requesterID string) ([]models.SectionWithCourse, error) {
	if _, err := s.Get(ctx, id, requesterID); err != nil {
		return nil, err
	}
	held, err := s.timetables.SectionsWithCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable sections")
	}
	return held, nil
}

// EditMetadata updates name, degrees and visibility. Only the author may
// edit, and publishing requires a warning-free timetable.
func (s *TimetableService) EditMetadata(ctx context.Context, id int, authorID string, req dto.EditTimetableMetaRequest) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	record, err := s.loadOwned(ctx, id, authorID)
	if err != nil {
		return nil, err
	}

	draft := *req.Draft
	private := *req.Private
	if record.Draft && !draft && len(record.Warnings) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("cannot publish with incomplete courses: %v", []string(record.Warnings)))
	}

	if err := s.timetables.UpdateMetadata(ctx, id, req.Name, req.Degrees, private, draft); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable")
	}

	record.Name = req.Name
	record.Degrees = pq.StringArray(req.Degrees)
	wasListed := !record.Private && !record.Draft
	record.Private = private
	record.Draft = draft
	listed := !private && !draft
	s.syncListing(record, wasListed, listed)
	return record, nil
}

// Delete removes an owned timetable.
func (s *TimetableService) Delete(ctx context.Context, id int, authorID string) error {
	record, err := s.loadOwned(ctx, id, authorID)
	if err != nil {
		return err
	}
	if err := s.timetables.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	if !record.Private && !record.Draft {
		s.syncListing(record, true, false)
	}
	return nil
}

// ListPublic returns published timetables matching the filter.
func (s *TimetableService) ListPublic(ctx context.Context, query dto.TimetableListQuery) ([]models.Timetable, error) {
	list, err := s.timetables.ListPublic(ctx, models.TimetableFilter{
		AcadYear: query.AcadYear,
		Semester: query.Semester,
		Degrees:  query.Degrees,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	return list, nil
}

// AddSection places a section into a draft timetable after clash gating, and
// updates the derived timings, exam and warning state in one transaction.
func (s *TimetableService) AddSection(ctx context.Context, id int, authorID, sectionID string) (*models.Timetable, error) {
	if err := s.validator.Var(sectionID, "required,uuid"); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid section id")
	}
	record, err := s.loadOwnedDraft(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	section, course, err := s.loadSectionCourse(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if course.AcadYear != record.AcadYear || course.Semester != record.Semester {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section belongs to a different cohort")
	}

	sameType, err := s.timetables.CountSectionsOfType(ctx, id, section.CourseID, section.Type)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect timetable sections")
	}
	if sameType > 0 {
		return nil, appErrors.Clone(appErrors.ErrDuplicateSectionType,
			fmt.Sprintf("timetable already holds a %s section of %s", section.Type, course.Code))
	}

	held, err := s.timetables.SectionsWithCourse(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable sections")
	}
	index, err := timetable.BuildClashIndex(clashEntries(held))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to index occupied slots")
	}
	candidate := timetable.SectionEntry{
		CourseID:   section.CourseID,
		CourseCode: course.Code,
		Type:       section.Type,
		Number:     section.Number,
		RoomTime:   section.RoomTime,
	}
	occupant, err := index.Blocks(candidate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot clashes")
	}
	if occupant != nil {
		return nil, appErrors.Clone(appErrors.ErrSlotClash,
			fmt.Sprintf("section clashes with %s", occupant.Label))
	}

	examTimes := []string(record.ExamTimes)
	firstOfCourse := countCourseSections(held, section.CourseID) == 0
	if firstOfCourse {
		clash, examErr := timetable.FindExamClash(examTimes, *course)
		if examErr != nil {
			return nil, examErr
		}
		if clash != nil {
			return nil, appErrors.Clone(appErrors.ErrExamClash,
				fmt.Sprintf("exam window clashes with %s %s", clash.CourseCode, clash.Kind))
		}
		examTimes = append(examTimes, timetable.ExamTimesForCourse(*course)...)
	}

	required, err := s.sections.DistinctTypes(ctx, section.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course section types")
	}
	warnings, err := timetable.ParseWarnings(record.Warnings)
	if err != nil {
		return nil, err
	}
	warnings, err = timetable.UpdateWarnings(course.Code, section.Type, required, true, warnings)
	if err != nil {
		return nil, err
	}

	added, err := timetable.TimingsFor(course.Code, section.RoomTime)
	if err != nil {
		return nil, err
	}
	timings := timetable.SortedTimings(append([]string(record.Timings), added...))

	if err := s.applySectionChange(ctx, id, sectionID, true, timings, examTimes, timetable.EncodeWarnings(warnings)); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// RemoveSection takes a section out of a draft timetable, mirroring the add
// path's derived-state maintenance.
func (s *TimetableService) RemoveSection(ctx context.Context, id int, authorID, sectionID string) (*models.Timetable, error) {
	if err := s.validator.Var(sectionID, "required,uuid"); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid section id")
	}
	record, err := s.loadOwnedDraft(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	held, err := s.timetables.HasSection(ctx, id, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect timetable sections")
	}
	if !held {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section is not part of this timetable")
	}
	section, course, err := s.loadSectionCourse(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	required, err := s.sections.DistinctTypes(ctx, section.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course section types")
	}
	warnings, err := timetable.ParseWarnings(record.Warnings)
	if err != nil {
		return nil, err
	}
	warnings, err = timetable.UpdateWarnings(course.Code, section.Type, required, false, warnings)
	if err != nil {
		return nil, err
	}

	removed, err := timetable.TimingsFor(course.Code, section.RoomTime)
	if err != nil {
		return nil, err
	}
	timings := timetable.SortedTimings(timetable.Difference(record.Timings, removed))

	examTimes := []string(record.ExamTimes)
	remaining, err := s.timetables.CountSectionsOfCourse(ctx, id, section.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count course sections")
	}
	if remaining == 1 {
		examTimes = timetable.RemoveCourseExamTimes(examTimes, course.Code)
	}

	if err := s.applySectionChange(ctx, id, sectionID, false, timings, examTimes, timetable.EncodeWarnings(warnings)); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *TimetableService) applySectionChange(ctx context.Context, id int, sectionID string, add bool, timings, examTimes, warnings []string) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if add {
		err = s.timetables.AddSection(ctx, tx, id, sectionID)
	} else {
		err = s.timetables.RemoveSection(ctx, tx, id, sectionID)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable sections")
	}
	if err = s.timetables.UpdateDerived(ctx, tx, id, timings, examTimes, warnings); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist derived state")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit section change")
	}
	return nil
}

func (s *TimetableService) load(ctx context.Context, id int) (*models.Timetable, error) {
	record, err := s.timetables.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return record, nil
}

func (s *TimetableService) loadOwned(ctx context.Context, id int, authorID string) (*models.Timetable, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.AuthorID != authorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the timetable author")
	}
	return record, nil
}

func (s *TimetableService) loadOwnedDraft(ctx context.Context, id int, authorID string) (*models.Timetable, error) {
	record, err := s.loadOwned(ctx, id, authorID)
	if err != nil {
		return nil, err
	}
	if !record.Draft {
		return nil, appErrors.Clone(appErrors.ErrNotDraft, "published timetables cannot be edited")
	}
	return record, nil
}

func (s *TimetableService) syncListing(record *models.Timetable, wasListed, listed bool) {
	if s.search == nil || wasListed == listed {
		return
	}
	var err error
	if listed {
		err = s.search.ScheduleTimetableAdd(*record)
	} else {
		err = s.search.ScheduleTimetableRemove(record.ID)
	}
	if err != nil {
		s.logger.Error("failed to schedule timetable index sync",
			zap.Int("timetableId", record.ID), zap.Error(err))
	}
}

func clashEntries(held []models.SectionWithCourse) []timetable.SectionEntry {
	entries := make([]timetable.SectionEntry, 0, len(held))
	for _, section := range held {
		entries = append(entries, timetable.SectionEntry{
			CourseID:   section.CourseID,
			CourseCode: section.CourseCode,
			Type:       section.Type,
			Number:     section.Number,
			RoomTime:   section.RoomTime,
		})
	}
	return entries
}

func (s *TimetableService) loadSectionCourse(ctx context.Context, sectionID string) (*models.Section, *models.Course, error) {
	section, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	course, err := s.courses.GetByID(ctx, section.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return section, course, nil
}
