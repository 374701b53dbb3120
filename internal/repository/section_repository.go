package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

// SectionRepository persists course sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func (r *SectionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch inserts section rows, assigning ids where missing.
func (r *SectionRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, sections []models.Section) error {
	if len(sections) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range sections {
		if sections[i].ID == "" {
			sections[i].ID = uuid.NewString()
		}
		if sections[i].CreatedAt.IsZero() {
			sections[i].CreatedAt = now
		}
	}
	const query = `INSERT INTO sections (id, course_id, type, number, instructors, room_time, created_at)
	VALUES (:id, :course_id, :type, :number, :instructors, :room_time, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, sections); err != nil {
		return fmt.Errorf("insert sections: %w", err)
	}
	return nil
}

// GetByID loads a section by its identifier.
func (r *SectionRepository) GetByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, course_id, type, number, instructors, room_time, created_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListByCourse returns all sections of a course ordered by type and number.
func (r *SectionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Section, error) {
	const query = `SELECT id, course_id, type, number, instructors, room_time, created_at
	FROM sections WHERE course_id = $1 ORDER BY type, number`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list sections by course: %w", err)
	}
	return sections, nil
}

// DistinctTypes returns the section types a course offers; these are the
// required types for completeness warnings.
func (r *SectionRepository) DistinctTypes(ctx context.Context, courseID string) ([]models.SectionType, error) {
	const query = `SELECT DISTINCT type FROM sections WHERE course_id = $1 ORDER BY type`
	var types []models.SectionType
	if err := r.db.SelectContext(ctx, &types, query, courseID); err != nil {
		return nil, fmt.Errorf("distinct section types: %w", err)
	}
	return types, nil
}

// UpdateRoomTime rewrites a section's room-time encoding.
func (r *SectionRepository) UpdateRoomTime(ctx context.Context, exec sqlx.ExtContext, id string, roomTime []string) error {
	const query = `UPDATE sections SET room_time = $1 WHERE id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, pq.StringArray(roomTime), id)
	if err != nil {
		return fmt.Errorf("update section room time: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update section room time rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
