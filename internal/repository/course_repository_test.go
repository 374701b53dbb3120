package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryLatestCohort(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	rows := sqlmock.NewRows([]string{"acad_year", "semester"}).AddRow(2024, 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT acad_year, semester FROM courses ORDER BY acad_year DESC, semester DESC LIMIT 1")).
		WillReturnRows(rows)

	cohort, err := repo.LatestCohort(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, cohort)
	require.Equal(t, 2024, cohort.AcadYear)
	require.Equal(t, 2, cohort.Semester)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryLatestCohortEmpty(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT acad_year, semester FROM courses")).
		WillReturnRows(sqlmock.NewRows([]string{"acad_year", "semester"}))

	cohort, err := repo.LatestCohort(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, cohort)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryArchiveAndCountUnarchived(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	cohort := models.Cohort{AcadYear: 2024, Semester: 1}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET archived = TRUE WHERE acad_year = $1 AND semester = $2 AND archived = FALSE")).
		WithArgs(cohort.AcadYear, cohort.Semester).
		WillReturnResult(sqlmock.NewResult(0, 42))

	archived, err := repo.ArchiveCohort(context.Background(), nil, cohort)
	require.NoError(t, err)
	require.EqualValues(t, 42, archived)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE archived = FALSE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	count, err := repo.CountUnarchived(context.Background(), nil)
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryDeleteCohort(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE acad_year = $1 AND semester = $2")).
		WithArgs(2024, 2).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := repo.DeleteCohort(context.Background(), nil, models.Cohort{AcadYear: 2024, Semester: 2})
	require.NoError(t, err)
	require.EqualValues(t, 7, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryInsertBatchAssignsIDs(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	courses := []models.Course{
		{Code: "CS F211", Name: "Data Structures", AcadYear: 2024, Semester: 1},
		{Code: "CS F222", Name: "Discrete Structures", AcadYear: 2024, Semester: 1},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), nil, courses))
	require.NotEmpty(t, courses[0].ID)
	require.NotEmpty(t, courses[1].ID)
	require.NotEqual(t, courses[0].ID, courses[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryGetCurrentByCode(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	rows := sqlmock.NewRows([]string{"id", "code", "name", "acad_year", "semester", "archived", "midsem_start_time", "midsem_end_time", "compre_start_time", "compre_end_time", "created_at"}).
		AddRow("course-1", "CS F211", "Data Structures", 2024, 1, false, nil, nil, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE code = $1 AND archived = FALSE")).
		WithArgs("CS F211").
		WillReturnRows(rows)

	course, err := repo.GetCurrentByCode(context.Background(), "CS F211")
	require.NoError(t, err)
	require.Equal(t, "course-1", course.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
