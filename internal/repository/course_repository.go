package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// CourseRepository persists courses and cohort-level lifecycle operations.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LatestCohort returns the most recent (acad_year, semester) pair of any
// stored course, or nil when no course exists.
func (r *CourseRepository) LatestCohort(ctx context.Context, exec sqlx.ExtContext) (*models.Cohort, error) {
	const query = `SELECT acad_year, semester FROM courses ORDER BY acad_year DESC, semester DESC LIMIT 1`
	var cohort models.Cohort
	if err := sqlx.GetContext(ctx, r.exec(exec), &cohort, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest course cohort: %w", err)
	}
	return &cohort, nil
}

// ListIDsByCohort returns the course ids of one cohort.
func (r *CourseRepository) ListIDsByCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) ([]string, error) {
	const query = `SELECT id FROM courses WHERE acad_year = $1 AND semester = $2`
	var ids []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, cohort.AcadYear, cohort.Semester); err != nil {
		return nil, fmt.Errorf("list course ids by cohort: %w", err)
	}
	return ids, nil
}

// ArchiveCohort marks every non-archived course of the cohort as archived and
// returns the number of rows touched.
func (r *CourseRepository) ArchiveCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	const query = `UPDATE courses SET archived = TRUE WHERE acad_year = $1 AND semester = $2 AND archived = FALSE`
	result, err := r.exec(exec).ExecContext(ctx, query, cohort.AcadYear, cohort.Semester)
	if err != nil {
		return 0, fmt.Errorf("archive course cohort: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive course cohort rows affected: %w", err)
	}
	return affected, nil
}

// DeleteCohort removes every course of the cohort; sections cascade.
func (r *CourseRepository) DeleteCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	const query = `DELETE FROM courses WHERE acad_year = $1 AND semester = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, cohort.AcadYear, cohort.Semester)
	if err != nil {
		return 0, fmt.Errorf("delete course cohort: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete course cohort rows affected: %w", err)
	}
	return affected, nil
}

// CountUnarchived counts courses still marked current across all cohorts.
func (r *CourseRepository) CountUnarchived(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	const query = `SELECT COUNT(*) FROM courses WHERE archived = FALSE`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query); err != nil {
		return 0, fmt.Errorf("count unarchived courses: %w", err)
	}
	return count, nil
}

// InsertBatch inserts new course rows, assigning ids where missing.
func (r *CourseRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, courses []models.Course) error {
	if len(courses) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range courses {
		if courses[i].ID == "" {
			courses[i].ID = uuid.NewString()
		}
		if courses[i].CreatedAt.IsZero() {
			courses[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO courses
	(id, code, name, acad_year, semester, archived, midsem_start_time, midsem_end_time, compre_start_time, compre_end_time, created_at)
	VALUES (:id, :code, :name, :acad_year, :semester, :archived, :midsem_start_time, :midsem_end_time, :compre_start_time, :compre_end_time, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, courses); err != nil {
		return fmt.Errorf("insert courses: %w", err)
	}
	return nil
}

// ListCurrent returns the non-archived courses ordered by code.
func (r *CourseRepository) ListCurrent(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT id, code, name, acad_year, semester, archived, midsem_start_time, midsem_end_time, compre_start_time, compre_end_time, created_at
	FROM courses WHERE archived = FALSE ORDER BY code`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list current courses: %w", err)
	}
	return courses, nil
}

// GetByID loads a course by its identifier.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, name, acad_year, semester, archived, midsem_start_time, midsem_end_time, compre_start_time, compre_end_time, created_at
	FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// GetCurrentByCode loads the non-archived offering of a course code.
func (r *CourseRepository) GetCurrentByCode(ctx context.Context, code string) (*models.Course, error) {
	const query = `SELECT id, code, name, acad_year, semester, archived, midsem_start_time, midsem_end_time, compre_start_time, compre_end_time, created_at
	FROM courses WHERE code = $1 AND archived = FALSE`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}
