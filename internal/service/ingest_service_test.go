package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { sqlxdb.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type stubGuard struct {
	acquired bool
	acquires int
	releases int
	failTry  error
}

func (g *stubGuard) TryAcquire(ctx context.Context) (bool, error) {
	g.acquires++
	if g.failTry != nil {
		return false, g.failTry
	}
	return g.acquired, nil
}

func (g *stubGuard) Release(ctx context.Context) error {
	g.releases++
	return nil
}

type stubCourseStore struct {
	latest          *models.Cohort
	ids             []string
	archived        int64
	deleted         int64
	unarchivedAfter int
	inserted        []models.Course
}

func (s *stubCourseStore) LatestCohort(ctx context.Context, exec sqlx.ExtContext) (*models.Cohort, error) {
	return s.latest, nil
}

func (s *stubCourseStore) ListIDsByCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) ([]string, error) {
	return s.ids, nil
}

func (s *stubCourseStore) ArchiveCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	s.archived = int64(len(s.ids))
	return s.archived, nil
}

func (s *stubCourseStore) DeleteCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	s.deleted = int64(len(s.ids))
	return s.deleted, nil
}

func (s *stubCourseStore) CountUnarchived(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	return s.unarchivedAfter, nil
}

func (s *stubCourseStore) InsertBatch(ctx context.Context, exec sqlx.ExtContext, courses []models.Course) error {
	s.inserted = append(s.inserted, courses...)
	return nil
}

type stubSectionStore struct {
	inserted []models.Section
}

func (s *stubSectionStore) InsertBatch(ctx context.Context, exec sqlx.ExtContext, sections []models.Section) error {
	s.inserted = append(s.inserted, sections...)
	return nil
}

type stubTimetableStore struct {
	ids             []int
	archived        int64
	draftsDeleted   int64
	deleted         int64
	unarchivedAfter int
}

func (s *stubTimetableStore) ListIDsByCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) ([]int, error) {
	return s.ids, nil
}

func (s *stubTimetableStore) ArchiveCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	s.archived = int64(len(s.ids))
	return s.archived, nil
}

func (s *stubTimetableStore) DeleteDraftsByCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	s.draftsDeleted = 1
	return s.draftsDeleted, nil
}

func (s *stubTimetableStore) DeleteCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	s.deleted = int64(len(s.ids))
	return s.deleted, nil
}

func (s *stubTimetableStore) CountUnarchived(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	return s.unarchivedAfter, nil
}

type stubScheduler struct {
	courseAdds       []string
	courseAddDocs    []models.CourseWithSections
	courseRemovals   []string
	timetableRemoves []int
}

func (s *stubScheduler) ScheduleCourseAdd(course models.CourseWithSections) error {
	s.courseAdds = append(s.courseAdds, course.Code)
	s.courseAddDocs = append(s.courseAddDocs, course)
	return nil
}

func (s *stubScheduler) ScheduleCourseRemove(id string) error {
	s.courseRemovals = append(s.courseRemovals, id)
	return nil
}

func (s *stubScheduler) ScheduleTimetableRemove(id int) error {
	s.timetableRemoves = append(s.timetableRemoves, id)
	return nil
}

func sampleDataset(acadYear, semester int) models.Dataset {
	midsem := "2024-03-05T04:30:00.000Z|2024-03-05T06:00:00.000Z"
	compre := "2024-05-10T04:30:00.000Z|2024-05-10T07:30:00.000Z"
	return models.Dataset{
		Metadata: models.DatasetMetadata{AcadYear: acadYear, Semester: semester},
		Courses: map[string]models.DatasetCourse{
			"CS F211": {
				CourseName: "Data Structures and Algorithms",
				Units:      4,
				Sections: map[string]models.DatasetSection{
					"L1": {
						Instructor: []string{"RAO"},
						Schedule: []models.DatasetSchedule{
							{Room: "F102", Days: []string{"M", "W"}, Hours: []int{3, 4}},
						},
					},
					"T1": {
						Instructor: []string{"RAO"},
						Schedule: []models.DatasetSchedule{
							{Room: "F105", Days: []string{"F"}, Hours: []int{2}},
						},
					},
				},
				ExamsISO: []models.DatasetExams{{Midsem: &midsem, Compre: &compre}},
			},
		},
	}
}

func newIngestFixture(t *testing.T, courses *stubCourseStore, timetables *stubTimetableStore, guard *stubGuard, scheduler *stubScheduler) (*IngestService, *stubSectionStore, sqlmock.Sqlmock) {
	txProvider, mock := newTxProviderMock(t)
	sections := &stubSectionStore{}
	service := NewIngestService(courses, sections, timetables, guard, txProvider, nil, scheduler, nil, nil, IngestConfig{})
	return service, sections, mock
}

func TestIngestFirstCohort(t *testing.T) {
	guard := &stubGuard{acquired: true}
	courses := &stubCourseStore{}
	timetables := &stubTimetableStore{}
	scheduler := &stubScheduler{}
	service, sections, mock := newIngestFixture(t, courses, timetables, guard, scheduler)

	mock.ExpectBegin()
	mock.ExpectCommit()

	summary, err := service.Ingest(context.Background(), sampleDataset(2024, 1), false)
	require.NoError(t, err)
	assert.False(t, summary.NoOp)
	assert.Equal(t, 1, summary.CoursesInserted)
	assert.Equal(t, 2, summary.SectionsInserted)
	assert.Len(t, sections.inserted, 2)
	assert.Equal(t, 1, guard.releases)

	// the lecture cross product covers {M,W} x {3,4}
	lecture := sections.inserted[0]
	assert.Equal(t, models.SectionTypeLecture, lecture.Type)
	assert.ElementsMatch(t, []string{
		"CS F211:F102:M:3", "CS F211:F102:M:4",
		"CS F211:F102:W:3", "CS F211:F102:W:4",
	}, []string(lecture.RoomTime))

	course := courses.inserted[0]
	require.NotNil(t, course.MidsemStartTime)
	require.NotNil(t, course.CompreEndTime)
	assert.Equal(t, []string{"CS F211"}, scheduler.courseAdds)
	require.Len(t, scheduler.courseAddDocs, 1)
	assert.Len(t, scheduler.courseAddDocs[0].Sections, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestRejectsOlderCohort(t *testing.T) {
	guard := &stubGuard{acquired: true}
	courses := &stubCourseStore{latest: &models.Cohort{AcadYear: 2024, Semester: 2}}
	service, _, _ := newIngestFixture(t, courses, &stubTimetableStore{}, guard, nil)

	_, err := service.Ingest(context.Background(), sampleDataset(2024, 1), false)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDatasetOutdated.Code, appErr.Code)
	assert.Equal(t, 1, guard.releases)
}

func TestIngestSameCohortIsNoOp(t *testing.T) {
	guard := &stubGuard{acquired: true}
	courses := &stubCourseStore{latest: &models.Cohort{AcadYear: 2024, Semester: 1}}
	service, sections, _ := newIngestFixture(t, courses, &stubTimetableStore{}, guard, nil)

	summary, err := service.Ingest(context.Background(), sampleDataset(2024, 1), false)
	require.NoError(t, err)
	assert.True(t, summary.NoOp)
	assert.Empty(t, sections.inserted)
	assert.Equal(t, 1, guard.releases)
}

func TestIngestOverwriteDeletesCohort(t *testing.T) {
	guard := &stubGuard{acquired: true}
	courses := &stubCourseStore{
		latest: &models.Cohort{AcadYear: 2024, Semester: 1},
		ids:    []string{"course-old"},
	}
	timetables := &stubTimetableStore{ids: []int{11, 12}}
	scheduler := &stubScheduler{}
	service, _, mock := newIngestFixture(t, courses, timetables, guard, scheduler)

	mock.ExpectBegin()
	mock.ExpectCommit()

	summary, err := service.Ingest(context.Background(), sampleDataset(2024, 1), true)
	require.NoError(t, err)
	assert.True(t, summary.Overwritten)
	assert.EqualValues(t, 2, summary.TimetablesDeleted)
	assert.EqualValues(t, 1, summary.CoursesDeleted)
	assert.Equal(t, []string{"course-old"}, scheduler.courseRemovals)
	assert.Equal(t, []int{11, 12}, scheduler.timetableRemoves)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestOverwriteAbortWindow(t *testing.T) {
	guard := &stubGuard{acquired: true}
	courses := &stubCourseStore{latest: &models.Cohort{AcadYear: 2024, Semester: 1}}
	txProvider, _ := newTxProviderMock(t)
	service := NewIngestService(courses, &stubSectionStore{}, &stubTimetableStore{}, guard, txProvider, nil, nil, nil, nil,
		IngestConfig{OverwriteDelay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := service.Ingest(ctx, sampleDataset(2024, 1), true)
	require.Error(t, err)
	assert.Equal(t, int64(0), courses.deleted)
	assert.Equal(t, 1, guard.releases)
}

func TestIngestNewerCohortArchivesPrevious(t *testing.T) {
	guard := &stubGuard{acquired: true}
	courses := &stubCourseStore{
		latest: &models.Cohort{AcadYear: 2023, Semester: 2},
		ids:    []string{"course-old-1", "course-old-2"},
	}
	timetables := &stubTimetableStore{ids: []int{42, 43}}
	scheduler := &stubScheduler{}
	service, _, mock := newIngestFixture(t, courses, timetables, guard, scheduler)

	mock.ExpectBegin()
	mock.ExpectCommit()

	summary, err := service.Ingest(context.Background(), sampleDataset(2024, 1), false)
	require.NoError(t, err)
	assert.False(t, summary.Overwritten)
	assert.EqualValues(t, 2, summary.CoursesArchived)
	assert.EqualValues(t, 2, summary.TimetablesArchived)
	assert.EqualValues(t, 1, summary.DraftsDeleted)
	assert.Equal(t, []string{"course-old-1", "course-old-2"}, scheduler.courseRemovals)
	// archived timetables leave the search index just like deleted ones
	assert.Equal(t, []int{42, 43}, scheduler.timetableRemoves)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestFailsWhenArchivalLeavesRows(t *testing.T) {
	guard := &stubGuard{acquired: true}
	courses := &stubCourseStore{
		latest:          &models.Cohort{AcadYear: 2023, Semester: 2},
		unarchivedAfter: 3,
	}
	service, _, mock := newIngestFixture(t, courses, &stubTimetableStore{}, guard, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := service.Ingest(context.Background(), sampleDataset(2024, 1), false)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInconsistentState.Code, appErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestParseSectionKey(t *testing.T) {
	sectionType, number, err := parseSectionKey("P12")
	require.NoError(t, err)
	assert.Equal(t, models.SectionTypePractical, sectionType)
	assert.Equal(t, 12, number)

	_, _, err = parseSectionKey("X1")
	assert.Error(t, err)
	_, _, err = parseSectionKey("L")
	assert.Error(t, err)
	_, _, err = parseSectionKey("L0")
	assert.Error(t, err)
}

func TestIngestLockHeld(t *testing.T) {
	guard := &stubGuard{acquired: false}
	service, _, _ := newIngestFixture(t, &stubCourseStore{}, &stubTimetableStore{}, guard, nil)

	_, err := service.Ingest(context.Background(), sampleDataset(2024, 1), false)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIngestInProgress.Code, appErr.Code)
}
