package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type ingestCourseStore interface {
	LatestCohort(ctx context.Context, exec sqlx.ExtContext) (*models.Cohort, error)
	ListIDsByCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) ([]string, error)
	ArchiveCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error)
	DeleteCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error)
	CountUnarchived(ctx context.Context, exec sqlx.ExtContext) (int, error)
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, courses []models.Course) error
}

type ingestSectionStore interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, sections []models.Section) error
}

type ingestTimetableStore interface {
	ListIDsByCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) ([]int, error)
	ArchiveCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error)
	DeleteDraftsByCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error)
	DeleteCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error)
	CountUnarchived(ctx context.Context, exec sqlx.ExtContext) (int, error)
}

type ingestGuard interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type searchScheduler interface {
	ScheduleCourseAdd(course models.CourseWithSections) error
	ScheduleCourseRemove(id string) error
	ScheduleTimetableRemove(id int) error
}

// IngestService replaces the stored course catalogue with a new per-semester
// dataset inside one transaction, archiving what the previous cohort left.
type IngestService struct {
	courses    ingestCourseStore
	sections   ingestSectionStore
	timetables ingestTimetableStore
	guard      ingestGuard
	tx         txProvider
	cache      cacheInvalidator
	search     searchScheduler
	validator  *validator.Validate
	logger     *zap.Logger

	overwriteDelay time.Duration
}

// IngestConfig tunes ingestion behaviour.
type IngestConfig struct {
	// OverwriteDelay is the abort window before a forced overwrite starts
	// deleting the current cohort.
	OverwriteDelay time.Duration
}

// NewIngestService wires ingestion dependencies. Cache and search are
// optional; a nil value disables that side effect.
func NewIngestService(
	courses ingestCourseStore,
	sections ingestSectionStore,
	timetables ingestTimetableStore,
	guard ingestGuard,
	tx txProvider,
	cache cacheInvalidator,
	search searchScheduler,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg IngestConfig,
) *IngestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		courses:        courses,
		sections:       sections,
		timetables:     timetables,
		guard:          guard,
		tx:             tx,
		cache:          cache,
		search:         search,
		validator:      validate,
		logger:         logger,
		overwriteDelay: cfg.OverwriteDelay,
	}
}

// Ingest runs one ingestion. A dataset older than the stored cohort is
// rejected, an equal cohort is a no-op unless overwrite is set, and a newer
// cohort archives the previous one before inserting.
func (s *IngestService) Ingest(ctx context.Context, dataset models.Dataset, overwrite bool) (*models.IngestSummary, error) {
	started := time.Now()

	if err := s.validator.Struct(dataset); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dataset payload")
	}
	incoming := models.Cohort{AcadYear: dataset.Metadata.AcadYear, Semester: dataset.Metadata.Semester}

	acquired, err := s.guard.TryAcquire(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire ingest lock")
	}
	if !acquired {
		return nil, appErrors.ErrIngestInProgress
	}
	defer func() {
		if releaseErr := s.guard.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.logger.Error("failed to release ingest lock", zap.Error(releaseErr))
		}
	}()

	latest, err := s.courses.LatestCohort(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stored cohort")
	}

	summary := &models.IngestSummary{Cohort: incoming}
	var staleCourseIDs []string
	var staleTimetableIDs []int

	if latest != nil {
		switch order := incoming.Compare(*latest); {
		case order < 0:
			return nil, appErrors.Clone(appErrors.ErrDatasetOutdated,
				fmt.Sprintf("dataset cohort %d-%d is older than stored cohort %d-%d",
					incoming.AcadYear, incoming.Semester, latest.AcadYear, latest.Semester))
		case order == 0 && !overwrite:
			summary.NoOp = true
			summary.DurationMillis = time.Since(started).Milliseconds()
			s.logger.Info("dataset cohort already stored, nothing to do",
				zap.Int("acadYear", incoming.AcadYear), zap.Int("semester", incoming.Semester))
			return summary, nil
		case order == 0:
			summary.Overwritten = true
			// Abort window for the operator; a cancelled context stops the
			// run before anything is deleted.
			if err := s.waitForOverwrite(ctx); err != nil {
				return nil, err
			}
		}
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin ingest transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if latest != nil {
		staleCourseIDs, err = s.courses.ListIDsByCohort(ctx, tx, *latest)
		if err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stored course ids")
			return nil, err
		}
		staleTimetableIDs, err = s.timetables.ListIDsByCohort(ctx, tx, *latest)
		if err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stored timetable ids")
			return nil, err
		}

		if summary.Overwritten {
			if summary.TimetablesDeleted, err = s.timetables.DeleteCohort(ctx, tx, *latest); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete overwritten timetables")
				return nil, err
			}
			if summary.CoursesDeleted, err = s.courses.DeleteCohort(ctx, tx, *latest); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete overwritten courses")
				return nil, err
			}
		} else {
			if summary.CoursesArchived, err = s.courses.ArchiveCohort(ctx, tx, *latest); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous courses")
				return nil, err
			}
			if summary.TimetablesArchived, err = s.timetables.ArchiveCohort(ctx, tx, *latest); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous timetables")
				return nil, err
			}
			if summary.DraftsDeleted, err = s.timetables.DeleteDraftsByCohort(ctx, tx, *latest); err != nil {
				err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete draft timetables")
				return nil, err
			}
		}
	}

	if err = s.assertArchived(ctx, tx); err != nil {
		return nil, err
	}

	courses, sections, buildErr := buildRows(dataset, incoming)
	if buildErr != nil {
		err = buildErr
		return nil, err
	}

	if err = s.courses.InsertBatch(ctx, tx, courses); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert courses")
		return nil, err
	}
	if err = s.sections.InsertBatch(ctx, tx, sections); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to insert sections")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit ingest transaction")
		return nil, err
	}

	summary.CoursesInserted = len(courses)
	summary.SectionsInserted = len(sections)
	summary.SearchSyncScheduled = s.scheduleSync(ctx, courses, sections, staleCourseIDs, staleTimetableIDs)
	summary.DurationMillis = time.Since(started).Milliseconds()

	s.logger.Info("dataset ingested",
		zap.Int("acadYear", incoming.AcadYear),
		zap.Int("semester", incoming.Semester),
		zap.Bool("overwritten", summary.Overwritten),
		zap.Int("coursesInserted", summary.CoursesInserted),
		zap.Int("sectionsInserted", summary.SectionsInserted),
		zap.Int64("durationMillis", summary.DurationMillis))
	return summary, nil
}

func (s *IngestService) waitForOverwrite(ctx context.Context) error {
	if s.overwriteDelay <= 0 {
		return nil
	}
	s.logger.Warn("overwrite requested, waiting before deleting current cohort",
		zap.Duration("delay", s.overwriteDelay))
	timer := time.NewTimer(s.overwriteDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return appErrors.Wrap(ctx.Err(), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "ingest aborted during overwrite delay")
	case <-timer.C:
		return nil
	}
}

// assertArchived verifies the archival step left no current rows behind. A
// violation aborts the transaction rather than committing a mixed catalogue.
func (s *IngestService) assertArchived(ctx context.Context, tx *sqlx.Tx) error {
	courseCount, err := s.courses.CountUnarchived(ctx, tx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unarchived courses")
	}
	if courseCount != 0 {
		return appErrors.Clone(appErrors.ErrInconsistentState,
			fmt.Sprintf("%d courses remain unarchived after cohort archival", courseCount))
	}
	timetableCount, err := s.timetables.CountUnarchived(ctx, tx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unarchived timetables")
	}
	if timetableCount != 0 {
		return appErrors.Clone(appErrors.ErrInconsistentState,
			fmt.Sprintf("%d timetables remain unarchived after cohort archival", timetableCount))
	}
	return nil
}

func (s *IngestService) scheduleSync(ctx context.Context, inserted []models.Course, insertedSections []models.Section, staleCourseIDs []string, staleTimetableIDs []int) int {
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "courses:*"); err != nil {
			s.logger.Error("failed to invalidate course cache", zap.Error(err))
		}
	}
	if s.search == nil {
		return 0
	}

	scheduled := 0
	for _, id := range staleCourseIDs {
		if err := s.search.ScheduleCourseRemove(id); err != nil {
			s.logger.Error("failed to schedule course removal", zap.String("courseId", id), zap.Error(err))
			continue
		}
		scheduled++
	}
	// Archived and deleted timetables alike leave the index; only current
	// published timetables are searchable.
	for _, id := range staleTimetableIDs {
		if err := s.search.ScheduleTimetableRemove(id); err != nil {
			s.logger.Error("failed to schedule timetable removal", zap.Int("timetableId", id), zap.Error(err))
			continue
		}
		scheduled++
	}

	sectionsByCourse := make(map[string][]models.Section, len(inserted))
	for _, section := range insertedSections {
		sectionsByCourse[section.CourseID] = append(sectionsByCourse[section.CourseID], section)
	}
	for _, course := range inserted {
		doc := models.CourseWithSections{Course: course, Sections: sectionsByCourse[course.ID]}
		if err := s.search.ScheduleCourseAdd(doc); err != nil {
			s.logger.Error("failed to schedule course indexing", zap.String("courseId", course.ID), zap.Error(err))
			continue
		}
		scheduled++
	}
	return scheduled
}

// buildRows flattens the dataset into insertable course and section rows.
// Courses are ordered by code and sections by their dataset key so reruns
// produce identical row order.
func buildRows(dataset models.Dataset, cohort models.Cohort) ([]models.Course, []models.Section, error) {
	codes := make([]string, 0, len(dataset.Courses))
	for code := range dataset.Courses {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	courses := make([]models.Course, 0, len(codes))
	var sections []models.Section

	for _, code := range codes {
		entry := dataset.Courses[code]
		course := models.Course{
			Code:     code,
			Name:     entry.CourseName,
			AcadYear: cohort.AcadYear,
			Semester: cohort.Semester,
		}
		for _, exams := range entry.ExamsISO {
			if exams.Midsem != nil && course.MidsemStartTime == nil {
				start, end, err := timetable.ParseExamRange(*exams.Midsem)
				if err != nil {
					return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s: %v", code, err))
				}
				course.MidsemStartTime, course.MidsemEndTime = &start, &end
			}
			if exams.Compre != nil && course.CompreStartTime == nil {
				start, end, err := timetable.ParseExamRange(*exams.Compre)
				if err != nil {
					return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s: %v", code, err))
				}
				course.CompreStartTime, course.CompreEndTime = &start, &end
			}
		}
		course.ID = uuid.NewString()
		courses = append(courses, course)

		sectionKeys := make([]string, 0, len(entry.Sections))
		for key := range entry.Sections {
			sectionKeys = append(sectionKeys, key)
		}
		sort.Strings(sectionKeys)

		for _, key := range sectionKeys {
			sectionType, number, err := parseSectionKey(key)
			if err != nil {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("course %s: %v", code, err))
			}
			raw := entry.Sections[key]
			roomTime := make([]string, 0, len(raw.Schedule))
			for _, schedule := range raw.Schedule {
				for _, day := range schedule.Days {
					for _, hour := range schedule.Hours {
						roomTime = append(roomTime, timetable.EncodeRoomTime(code, schedule.Room, day, hour))
					}
				}
			}
			sections = append(sections, models.Section{
				CourseID:    course.ID,
				Type:        sectionType,
				Number:      number,
				Instructors: pq.StringArray(raw.Instructor),
				RoomTime:    pq.StringArray(roomTime),
			})
		}
	}
	return courses, sections, nil
}

// parseSectionKey splits a dataset key like "L1" or "P12" into its type and
// running number.
func parseSectionKey(key string) (models.SectionType, int, error) {
	if len(key) < 2 {
		return "", 0, fmt.Errorf("malformed section key %q", key)
	}
	sectionType := models.SectionType(key[:1])
	if !models.IsValidSectionType(string(sectionType)) {
		return "", 0, fmt.Errorf("unknown section type in key %q", key)
	}
	number, err := strconv.Atoi(key[1:])
	if err != nil || number <= 0 {
		return "", 0, fmt.Errorf("malformed section number in key %q", key)
	}
	return sectionType, number, nil
}
