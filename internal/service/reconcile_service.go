package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type reconcileSectionStore interface {
	GetByID(ctx context.Context, id string) (*models.Section, error)
	UpdateRoomTime(ctx context.Context, exec sqlx.ExtContext, id string, roomTime []string) error
	DistinctTypes(ctx context.Context, courseID string) ([]models.SectionType, error)
}

type reconcileTimetableStore interface {
	ListIDs(ctx context.Context) ([]int, error)
	GetByID(ctx context.Context, id int) (*models.Timetable, error)
	SectionsWithCourse(ctx context.Context, timetableID int) ([]models.SectionWithCourse, error)
	RemoveSection(ctx context.Context, exec sqlx.ExtContext, timetableID int, sectionID string) error
	UpdateDerived(ctx context.Context, exec sqlx.ExtContext, id int, timings, examTimes, warnings []string) error
}

// ReconcileSummary reports what one reconciliation run did.
type ReconcileSummary struct {
	SectionsUpdated    int `json:"sectionsUpdated"`
	TimetablesScanned  int `json:"timetablesScanned"`
	TimetablesRepaired int `json:"timetablesRepaired"`
	SectionsEvicted    int `json:"sectionsEvicted"`
	TimetablesFailed   int `json:"timetablesFailed"`
}

// ReconcileService repairs user timetables after authoritative course or
// section data changed beneath them. Stale selections are evicted, never
// migrated; the user re-selects.
type ReconcileService struct {
	sections   reconcileSectionStore
	timetables reconcileTimetableStore
	tx         txProvider
	logger     *zap.Logger
}

// NewReconcileService wires reconciliation dependencies.
func NewReconcileService(sections reconcileSectionStore, timetables reconcileTimetableStore, tx txProvider, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileService{sections: sections, timetables: timetables, tx: tx, logger: logger}
}

// Reconcile applies out-of-band course and section changes, then scans every
// timetable and evicts selections whose slots no longer match stored state.
// Each timetable is an independent unit of failure; one broken timetable
// never stops the scan.
func (s *ReconcileService) Reconcile(ctx context.Context, course models.Course, sections []models.Section) (*ReconcileSummary, error) {
	summary := &ReconcileSummary{}

	for _, incoming := range sections {
		stored, err := s.sections.GetByID(ctx, incoming.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section for reconciliation")
		}
		if timetable.EqualSets(stored.RoomTime, incoming.RoomTime) {
			continue
		}
		if err := s.sections.UpdateRoomTime(ctx, nil, incoming.ID, incoming.RoomTime); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update section room time")
		}
		summary.SectionsUpdated++
	}

	ids, err := s.timetables.ListIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables for reconciliation")
	}

	for _, id := range ids {
		summary.TimetablesScanned++
		evicted, repaired, err := s.reconcileTimetable(ctx, id, course)
		if err != nil {
			summary.TimetablesFailed++
			s.logger.Error("timetable reconciliation failed",
				zap.Int("timetableId", id), zap.Error(err))
			continue
		}
		if repaired {
			summary.TimetablesRepaired++
		}
		summary.SectionsEvicted += evicted
	}

	s.logger.Info("reconciliation finished",
		zap.String("courseCode", course.Code),
		zap.Int("timetablesScanned", summary.TimetablesScanned),
		zap.Int("timetablesRepaired", summary.TimetablesRepaired),
		zap.Int("sectionsEvicted", summary.SectionsEvicted),
		zap.Int("timetablesFailed", summary.TimetablesFailed))
	return summary, nil
}

func (s *ReconcileService) reconcileTimetable(ctx context.Context, id int, course models.Course) (int, bool, error) {
	stored, err := s.timetables.GetByID(ctx, id)
	if err != nil {
		return 0, false, err
	}
	held, err := s.timetables.SectionsWithCourse(ctx, id)
	if err != nil {
		return 0, false, err
	}

	recomputed, perSection, err := recomputeTimings(held)
	if err != nil {
		return 0, false, err
	}

	holdsCourse := false
	for _, section := range held {
		if section.CourseID == course.ID {
			holdsCourse = true
			break
		}
	}
	examTimes := []string(stored.ExamTimes)
	examsChanged := false
	if holdsCourse {
		refreshed := timetable.RemoveCourseExamTimes(examTimes, course.Code)
		refreshed = append(refreshed, timetable.ExamTimesForCourse(course)...)
		if !timetable.EqualSets(examTimes, refreshed) {
			examTimes = refreshed
			examsChanged = true
		}
	}

	if timetable.EqualSets(stored.Timings, recomputed) && !examsChanged {
		return 0, false, nil
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Slots present now but unknown to the stored state mark the sections
	// whose times moved; those selections are stale and get evicted.
	introduced := timetable.Difference(recomputed, stored.Timings)
	warnings, err := timetable.ParseWarnings(stored.Warnings)
	if err != nil {
		return 0, false, err
	}

	evicted := 0
	remaining := make([]models.SectionWithCourse, 0, len(held))
	remaining = append(remaining, held...)

	for _, section := range held {
		if !timetable.Intersects(perSection[section.ID], introduced) {
			continue
		}
		if err = s.timetables.RemoveSection(ctx, tx, id, section.ID); err != nil {
			return 0, false, err
		}
		required, typesErr := s.sections.DistinctTypes(ctx, section.CourseID)
		if typesErr != nil {
			err = typesErr
			return 0, false, err
		}
		warnings, err = timetable.UpdateWarnings(section.CourseCode, section.Type, required, false, warnings)
		if err != nil {
			return 0, false, err
		}
		remaining = removeSectionEntry(remaining, section.ID)
		if countCourseSections(remaining, section.CourseID) == 0 {
			examTimes = timetable.RemoveCourseExamTimes(examTimes, section.CourseCode)
		}
		evicted++
	}

	finalTimings, _, err := recomputeTimings(remaining)
	if err != nil {
		return 0, false, err
	}

	if err = s.timetables.UpdateDerived(ctx, tx, id,
		timetable.SortedTimings(finalTimings), examTimes, timetable.EncodeWarnings(warnings)); err != nil {
		return 0, false, err
	}
	if err = tx.Commit(); err != nil {
		return 0, false, err
	}
	return evicted, true, nil
}

// recomputeTimings derives the slot signatures of a timetable from its held
// sections, plus the per-section signature lists used for eviction checks.
func recomputeTimings(held []models.SectionWithCourse) ([]string, map[string][]string, error) {
	var combined []string
	perSection := make(map[string][]string, len(held))
	for _, section := range held {
		timings, err := timetable.TimingsFor(section.CourseCode, section.RoomTime)
		if err != nil {
			return nil, nil, err
		}
		perSection[section.ID] = timings
		combined = append(combined, timings...)
	}
	return combined, perSection, nil
}

func removeSectionEntry(held []models.SectionWithCourse, sectionID string) []models.SectionWithCourse {
	out := held[:0]
	for _, section := range held {
		if section.ID == sectionID {
			continue
		}
		out = append(out, section)
	}
	return out
}

func countCourseSections(held []models.SectionWithCourse, courseID string) int {
	count := 0
	for _, section := range held {
		if section.CourseID == courseID {
			count++
		}
	}
	return count
}
