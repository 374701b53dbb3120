package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// TimetableRepository persists user timetables, their section relation and
// cohort-level lifecycle operations.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a timetable and backfills its generated id.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.Timetable) error {
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.LastUpdated = now
	if timetable.Degrees == nil {
		timetable.Degrees = pq.StringArray{}
	}
	if timetable.Timings == nil {
		timetable.Timings = pq.StringArray{}
	}
	if timetable.ExamTimes == nil {
		timetable.ExamTimes = pq.StringArray{}
	}
	if timetable.Warnings == nil {
		timetable.Warnings = pq.StringArray{}
	}
	const query = `INSERT INTO timetables
	(author_id, name, degrees, private, draft, archived, year, acad_year, semester, timings, exam_times, warnings, created_at, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		timetable.AuthorID, timetable.Name, timetable.Degrees, timetable.Private, timetable.Draft, timetable.Archived,
		timetable.Year, timetable.AcadYear, timetable.Semester,
		timetable.Timings, timetable.ExamTimes, timetable.Warnings,
		timetable.CreatedAt, timetable.LastUpdated,
	).Scan(&timetable.ID); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// GetByID loads a timetable by its identifier.
func (r *TimetableRepository) GetByID(ctx context.Context, id int) (*models.Timetable, error) {
	const query = `SELECT id, author_id, name, degrees, private, draft, archived, year, acad_year, semester, timings, exam_times, warnings, created_at, last_updated
	FROM timetables WHERE id = $1`
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// UpdateDerived rewrites the derived state columns of a timetable.
func (r *TimetableRepository) UpdateDerived(ctx context.Context, exec sqlx.ExtContext, id int, timings, examTimes, warnings []string) error {
	const query = `UPDATE timetables SET timings = $1, exam_times = $2, warnings = $3, last_updated = $4 WHERE id = $5`
	result, err := r.exec(exec).ExecContext(ctx, query,
		pq.StringArray(timings), pq.StringArray(examTimes), pq.StringArray(warnings), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable derived state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable derived state rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateMetadata rewrites the user-editable fields of a timetable.
func (r *TimetableRepository) UpdateMetadata(ctx context.Context, id int, name string, degrees []string, private, draft bool) error {
	const query = `UPDATE timetables SET name = $1, degrees = $2, private = $3, draft = $4, last_updated = $5 WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, name, pq.StringArray(degrees), private, draft, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable metadata: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable metadata rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a timetable; its section relation cascades.
func (r *TimetableRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPublic returns non-private, non-draft timetables matching the filter.
func (r *TimetableRepository) ListPublic(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, author_id, name, degrees, private, draft, archived, year, acad_year, semester, timings, exam_times, warnings, created_at, last_updated
	FROM timetables WHERE private = FALSE AND draft = FALSE`)
	args := []interface{}{}
	if filter.AcadYear > 0 {
		args = append(args, filter.AcadYear)
		builder.WriteString(fmt.Sprintf(" AND acad_year = $%d", len(args)))
	}
	if filter.Semester > 0 {
		args = append(args, filter.Semester)
		builder.WriteString(fmt.Sprintf(" AND semester = $%d", len(args)))
	}
	if len(filter.Degrees) > 0 {
		args = append(args, pq.StringArray(filter.Degrees))
		builder.WriteString(fmt.Sprintf(" AND degrees && $%d", len(args)))
	}
	builder.WriteString(" ORDER BY last_updated DESC")

	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list public timetables: %w", err)
	}
	return timetables, nil
}

// ListIDs returns the ids of every stored timetable.
func (r *TimetableRepository) ListIDs(ctx context.Context) ([]int, error) {
	const query = `SELECT id FROM timetables ORDER BY id`
	var ids []int
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list timetable ids: %w", err)
	}
	return ids, nil
}

// AddSection links a section to a timetable.
func (r *TimetableRepository) AddSection(ctx context.Context, exec sqlx.ExtContext, timetableID int, sectionID string) error {
	const query = `INSERT INTO timetable_sections (timetable_id, section_id) VALUES ($1, $2)`
	if _, err := r.exec(exec).ExecContext(ctx, query, timetableID, sectionID); err != nil {
		return fmt.Errorf("add section to timetable: %w", err)
	}
	return nil
}

// RemoveSection unlinks a section from a timetable.
func (r *TimetableRepository) RemoveSection(ctx context.Context, exec sqlx.ExtContext, timetableID int, sectionID string) error {
	const query = `DELETE FROM timetable_sections WHERE timetable_id = $1 AND section_id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, timetableID, sectionID)
	if err != nil {
		return fmt.Errorf("remove section from timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove section rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// HasSection reports whether the timetable holds the section.
func (r *TimetableRepository) HasSection(ctx context.Context, timetableID int, sectionID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM timetable_sections WHERE timetable_id = $1 AND section_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, timetableID, sectionID); err != nil {
		return false, fmt.Errorf("check timetable section: %w", err)
	}
	return count > 0, nil
}

// CountSectionsOfType counts held sections of one (course, type) pair; the
// add path rejects a second one.
func (r *TimetableRepository) CountSectionsOfType(ctx context.Context, timetableID int, courseID string, sectionType models.SectionType) (int, error) {
	const query = `SELECT COUNT(*) FROM timetable_sections ts
	INNER JOIN sections s ON s.id = ts.section_id
	WHERE ts.timetable_id = $1 AND s.course_id = $2 AND s.type = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, timetableID, courseID, sectionType); err != nil {
		return 0, fmt.Errorf("count timetable sections of type: %w", err)
	}
	return count, nil
}

// CountSectionsOfCourse counts held sections of one course; the remove path
// prunes exam times when the last one goes.
func (r *TimetableRepository) CountSectionsOfCourse(ctx context.Context, timetableID int, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM timetable_sections ts
	INNER JOIN sections s ON s.id = ts.section_id
	WHERE ts.timetable_id = $1 AND s.course_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, timetableID, courseID); err != nil {
		return 0, fmt.Errorf("count timetable sections of course: %w", err)
	}
	return count, nil
}

// SectionsWithCourse returns the timetable's sections joined with their
// owning course code.
func (r *TimetableRepository) SectionsWithCourse(ctx context.Context, timetableID int) ([]models.SectionWithCourse, error) {
	const query = `SELECT s.id, s.course_id, s.type, s.number, s.instructors, s.room_time, s.created_at, c.code AS course_code
	FROM timetable_sections ts
	INNER JOIN sections s ON s.id = ts.section_id
	INNER JOIN courses c ON c.id = s.course_id
	WHERE ts.timetable_id = $1
	ORDER BY c.code, s.type, s.number`
	var sections []models.SectionWithCourse
	if err := r.db.SelectContext(ctx, &sections, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable sections: %w", err)
	}
	return sections, nil
}

// ArchiveCohort marks every current non-draft timetable of the cohort as
// archived and returns the number of rows touched.
func (r *TimetableRepository) ArchiveCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	const query = `UPDATE timetables SET archived = TRUE WHERE acad_year = $1 AND semester = $2 AND draft = FALSE AND archived = FALSE`
	result, err := r.exec(exec).ExecContext(ctx, query, cohort.AcadYear, cohort.Semester)
	if err != nil {
		return 0, fmt.Errorf("archive timetable cohort: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive timetable cohort rows affected: %w", err)
	}
	return affected, nil
}

// DeleteDraftsByCohort discards the cohort's draft timetables outright; they
// were never externally visible.
func (r *TimetableRepository) DeleteDraftsByCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	const query = `DELETE FROM timetables WHERE acad_year = $1 AND semester = $2 AND draft = TRUE`
	result, err := r.exec(exec).ExecContext(ctx, query, cohort.AcadYear, cohort.Semester)
	if err != nil {
		return 0, fmt.Errorf("delete draft timetables: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete draft timetables rows affected: %w", err)
	}
	return affected, nil
}

// DeleteCohort removes every timetable of the cohort.
func (r *TimetableRepository) DeleteCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) (int64, error) {
	const query = `DELETE FROM timetables WHERE acad_year = $1 AND semester = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, cohort.AcadYear, cohort.Semester)
	if err != nil {
		return 0, fmt.Errorf("delete timetable cohort: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete timetable cohort rows affected: %w", err)
	}
	return affected, nil
}

// CountUnarchived counts timetables still marked current across all cohorts.
func (r *TimetableRepository) CountUnarchived(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	const query = `SELECT COUNT(*) FROM timetables WHERE archived = FALSE`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query); err != nil {
		return 0, fmt.Errorf("count unarchived timetables: %w", err)
	}
	return count, nil
}

// ListIDsByCohort returns the timetable ids of one cohort.
func (r *TimetableRepository) ListIDsByCohort(ctx context.Context, exec sqlx.ExtContext, cohort models.Cohort) ([]int, error) {
	const query = `SELECT id FROM timetables WHERE acad_year = $1 AND semester = $2`
	var ids []int
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, cohort.AcadYear, cohort.Semester); err != nil {
		return nil, fmt.Errorf("list timetable ids by cohort: %w", err)
	}
	return ids, nil
}
