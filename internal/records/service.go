package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	apperrors "github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/resilience"
)

var studentIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Tracker receives an event for every successful save. *analytics.Collector
// satisfies it.
type Tracker interface {
	TrackRecord(event analytics.RecordEvent)
}

// DroppedCourse reports a submitted course that failed validation.
type DroppedCourse struct {
	Semester int               `json:"semester"`
	Position int               `json:"position"`
	Fields   map[string]string `json:"fields"`
}

// SaveResult echoes what was stored.
type SaveResult struct {
	StudentID string             `json:"studentId"`
	Semesters []grading.Semester `json:"semesters"`
	Dropped   []DroppedCourse    `json:"dropped"`
}

// Student is everything the planner needs for one student.
type Student struct {
	ID      string
	History grading.Record
	Draft   grading.Semester
}

// Service validates submissions before handing them to a Repository.
type Service struct {
	repo    Repository
	table   *grading.Table
	timeout time.Duration
	tracker Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewService wires a Service. tracker and m may be nil.
func NewService(repo Repository, table *grading.Table, timeout time.Duration, tracker Tracker, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		table:   table,
		timeout: timeout,
		tracker: tracker,
		metrics: m,
		logger:  slog.Default().With("component", "records-service"),
	}
}

// ValidateStudentID rejects ids that are empty, too long, or contain
// characters outside [A-Za-z0-9._-].
func ValidateStudentID(id string) error {
	if !studentIDPattern.MatchString(id) {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid student id %q", id)
	}
	return nil
}

// SaveHistory normalises every semester, drops invalid courses and replaces
// the stored history. Semesters without an index are numbered by position.
func (s *Service) SaveHistory(ctx context.Context, studentID string, semesters []grading.Semester) (*SaveResult, error) {
	if err := ValidateStudentID(studentID); err != nil {
		return nil, err
	}
	result := &SaveResult{StudentID: studentID, Semesters: make([]grading.Semester, 0, len(semesters)), Dropped: []DroppedCourse{}}
	seen := make(map[int]bool, len(semesters))
	valid := 0
	for i, sem := range semesters {
		if sem.Index <= 0 {
			sem.Index = i + 1
		}
		if seen[sem.Index] {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "duplicate semester index %d", sem.Index)
		}
		seen[sem.Index] = true

		norm, dropped := grading.NormalizeSemester(s.table, sem, true)
		result.Dropped = appendDropped(result.Dropped, sem.Index, dropped)
		valid += len(norm.Courses)
		result.Semesters = append(result.Semesters, norm)
	}
	if valid == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "submission contains no valid course")
	}

	err := resilience.WithTimeout(ctx, s.timeout, "save history", func(ctx context.Context) error {
		return s.repo.SaveHistory(ctx, studentID, result.Semesters)
	})
	s.observe("history", err)
	if err != nil {
		return nil, fmt.Errorf("saving history for %s: %w", studentID, err)
	}
	if s.tracker != nil {
		s.tracker.TrackRecord(analytics.RecordEvent{
			StudentID: studentID,
			Kind:      "history",
			Semesters: len(result.Semesters),
			Courses:   valid,
		})
	}
	return result, nil
}

// SaveDraft stores the ungraded semester. Any grades submitted are
// discarded.
func (s *Service) SaveDraft(ctx context.Context, studentID string, draft grading.Semester) (*SaveResult, error) {
	if err := ValidateStudentID(studentID); err != nil {
		return nil, err
	}
	norm, dropped := grading.NormalizeSemester(s.table, draft, false)
	norm.Index = 0
	if len(norm.Courses) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "submission contains no valid course")
	}

	err := resilience.WithTimeout(ctx, s.timeout, "save draft", func(ctx context.Context) error {
		return s.repo.SaveDraft(ctx, studentID, norm)
	})
	s.observe("draft", err)
	if err != nil {
		return nil, fmt.Errorf("saving draft for %s: %w", studentID, err)
	}
	if s.tracker != nil {
		s.tracker.TrackRecord(analytics.RecordEvent{
			StudentID: studentID,
			Kind:      "draft",
			Semesters: 1,
			Courses:   len(norm.Courses),
		})
	}
	return &SaveResult{
		StudentID: studentID,
		Semesters: []grading.Semester{norm},
		Dropped:   appendDropped([]DroppedCourse{}, 0, dropped),
	}, nil
}

func (s *Service) History(ctx context.Context, studentID string) (grading.Record, error) {
	if err := ValidateStudentID(studentID); err != nil {
		return nil, err
	}
	return resilience.WithTimeoutValue(ctx, s.timeout, "load history", func(ctx context.Context) (grading.Record, error) {
		return s.repo.LoadHistory(ctx, studentID)
	})
}

func (s *Service) Draft(ctx context.Context, studentID string) (grading.Semester, error) {
	if err := ValidateStudentID(studentID); err != nil {
		return grading.Semester{}, err
	}
	return resilience.WithTimeoutValue(ctx, s.timeout, "load draft", func(ctx context.Context) (grading.Semester, error) {
		return s.repo.LoadDraft(ctx, studentID)
	})
}

// LoadStudent fetches history and draft concurrently. A student without
// history plans against an empty record; a missing draft is an error.
func (s *Service) LoadStudent(ctx context.Context, studentID string) (*Student, error) {
	if err := ValidateStudentID(studentID); err != nil {
		return nil, err
	}
	st := &Student{ID: studentID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := s.History(gctx, studentID)
		if errors.Is(err, apperrors.ErrNotFound) {
			st.History = grading.Record{}
			return nil
		}
		st.History = rec
		return err
	})
	g.Go(func() error {
		draft, err := s.Draft(gctx, studentID)
		st.Draft = draft
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) observe(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		s.logger.Error("record write failed", "kind", kind, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordWritesTotal.WithLabelValues(kind, status).Inc()
	}
}

func appendDropped(out []DroppedCourse, semester int, dropped map[int]error) []DroppedCourse {
	for pos := 0; len(dropped) > 0; pos++ {
		err, ok := dropped[pos]
		if !ok {
			continue
		}
		delete(dropped, pos)
		d := DroppedCourse{Semester: semester, Position: pos, Fields: map[string]string{"course": err.Error()}}
		var ve *grading.ValidationError
		if errors.As(err, &ve) {
			d.Fields = ve.Fields
		}
		out = append(out, d)
	}
	return out
}
