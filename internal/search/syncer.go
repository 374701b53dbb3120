package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/pkg/jobs"
)

const (
	jobCourseAdd       = "search.course.add"
	jobCourseRemove    = "search.course.remove"
	jobTimetableAdd    = "search.timetable.add"
	jobTimetableRemove = "search.timetable.remove"
)

// CourseDocument is the course payload pushed to the search index,
// including the sections users search by.
type CourseDocument struct {
	ID       string            `json:"id"`
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	AcadYear int               `json:"acadYear"`
	Semester int               `json:"semester"`
	Sections []SectionDocument `json:"sections"`
}

// SectionDocument is one section entry inside a course document.
type SectionDocument struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Number      int      `json:"number"`
	Instructors []string `json:"instructors"`
	RoomTime    []string `json:"roomTime"`
}

// TimetableDocument is the public timetable payload pushed to the search index.
type TimetableDocument struct {
	ID       string   `json:"id"`
	AuthorID string   `json:"authorId"`
	Name     string   `json:"name"`
	Degrees  []string `json:"degrees"`
	Year     int      `json:"year"`
	AcadYear int      `json:"acadYear"`
	Semester int      `json:"semester"`
}

// SyncerConfig tunes the background sync queue.
type SyncerConfig struct {
	Workers int
	Retries int
	Logger  *zap.Logger
}

// Syncer keeps the external search index eventually consistent with the
// database by pushing documents through a retrying worker queue. Index
// failures are retried and eventually logged, never surfaced to callers.
type Syncer struct {
	client *Client
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewSyncer builds a syncer around the given client.
func NewSyncer(client *Client, cfg SyncerConfig) *Syncer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Syncer{client: client, logger: cfg.Logger}
	s.queue = jobs.NewQueue("search-sync", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     cfg.Logger,
	})
	return s
}

// Start launches the sync workers. Safe on a nil syncer.
func (s *Syncer) Start(ctx context.Context) {
	if s == nil {
		return
	}
	s.queue.Start(ctx)
}

// Stop halts the workers. Queued items are dropped. Safe on a nil syncer.
func (s *Syncer) Stop() {
	if s == nil {
		return
	}
	s.queue.Stop()
}

// Drain flushes all scheduled items before stopping. Safe on a nil syncer.
func (s *Syncer) Drain() {
	if s == nil {
		return
	}
	s.queue.Drain()
}

// ScheduleCourseAdd enqueues indexing of a course with its sections.
func (s *Syncer) ScheduleCourseAdd(course models.CourseWithSections) error {
	sections := make([]SectionDocument, 0, len(course.Sections))
	for _, section := range course.Sections {
		sections = append(sections, SectionDocument{
			ID:          section.ID,
			Type:        string(section.Type),
			Number:      section.Number,
			Instructors: section.Instructors,
			RoomTime:    section.RoomTime,
		})
	}
	return s.enqueue(jobCourseAdd, CourseDocument{
		ID:       course.ID,
		Code:     course.Code,
		Name:     course.Name,
		AcadYear: course.AcadYear,
		Semester: course.Semester,
		Sections: sections,
	})
}

// ScheduleCourseRemove enqueues removal of a course document.
func (s *Syncer) ScheduleCourseRemove(id string) error {
	return s.enqueue(jobCourseRemove, id)
}

// ScheduleTimetableAdd enqueues indexing of a public timetable.
func (s *Syncer) ScheduleTimetableAdd(t models.Timetable) error {
	return s.enqueue(jobTimetableAdd, TimetableDocument{
		ID:       strconv.Itoa(t.ID),
		AuthorID: t.AuthorID,
		Name:     t.Name,
		Degrees:  t.Degrees,
		Year:     t.Year,
		AcadYear: t.AcadYear,
		Semester: t.Semester,
	})
}

// ScheduleTimetableRemove enqueues removal of a timetable document.
func (s *Syncer) ScheduleTimetableRemove(id int) error {
	return s.enqueue(jobTimetableRemove, strconv.Itoa(id))
}

func (s *Syncer) enqueue(jobType string, payload interface{}) error {
	if s == nil {
		return nil
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
}

func (s *Syncer) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobCourseAdd:
		doc, ok := job.Payload.(CourseDocument)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.Type, job.Payload)
		}
		return s.client.AddCourse(ctx, doc)
	case jobCourseRemove:
		id, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.Type, job.Payload)
		}
		return s.client.RemoveCourse(ctx, id)
	case jobTimetableAdd:
		doc, ok := job.Payload.(TimetableDocument)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.Type, job.Payload)
		}
		return s.client.AddTimetable(ctx, doc)
	case jobTimetableRemove:
		id, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.Type, job.Payload)
		}
		return s.client.RemoveTimetable(ctx, id)
	default:
		s.logger.Warn("unknown search sync job", zap.String("type", job.Type))
		return nil
	}
}
