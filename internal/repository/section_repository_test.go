package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

func TestSectionRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sections")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sections := []models.Section{
		{
			CourseID:    "course-1",
			Type:        models.SectionTypeLecture,
			Number:      1,
			Instructors: pq.StringArray{"RAO"},
			RoomTime:    pq.StringArray{"CS F211:F102:M:3"},
		},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), nil, sections))
	require.NotEmpty(t, sections[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryDistinctTypes(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	rows := sqlmock.NewRows([]string{"type"}).AddRow("L").AddRow("P").AddRow("T")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT type FROM sections WHERE course_id = $1 ORDER BY type")).
		WithArgs("course-1").
		WillReturnRows(rows)

	types, err := repo.DistinctTypes(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, []models.SectionType{models.SectionTypeLecture, models.SectionTypePractical, models.SectionTypeTutorial}, types)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	rows := sqlmock.NewRows([]string{"id", "course_id", "type", "number", "instructors", "room_time", "created_at"}).
		AddRow("sec-1", "course-1", "L", 1, pq.StringArray{"RAO"}, pq.StringArray{"CS F211:F102:M:3"}, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM sections WHERE id = $1")).
		WithArgs("sec-1").
		WillReturnRows(rows)

	section, err := repo.GetByID(context.Background(), "sec-1")
	require.NoError(t, err)
	require.Equal(t, models.SectionTypeLecture, section.Type)
	require.Equal(t, 1, section.Number)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionRepositoryUpdateRoomTime(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()

	repo := NewSectionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET room_time = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), "sec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateRoomTime(context.Background(), nil, "sec-1", []string{"CS F211:F103:T:4"}))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sections SET room_time = $1 WHERE id = $2")).
		WithArgs(sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateRoomTime(context.Background(), nil, "missing", []string{"CS F211:F103:T:4"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
