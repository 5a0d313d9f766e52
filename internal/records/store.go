// Package records persists each student's graded semesters and the single
// ungraded draft semester the planner works on.
package records

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	apperrors "github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/postgres"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository is the persistence contract used by the HTTP layers.
type Repository interface {
	SaveHistory(ctx context.Context, studentID string, semesters []grading.Semester) error
	SaveDraft(ctx context.Context, studentID string, draft grading.Semester) error
	LoadHistory(ctx context.Context, studentID string) (grading.Record, error)
	LoadDraft(ctx context.Context, studentID string) (grading.Semester, error)
}

// Store is the PostgreSQL Repository.
type Store struct {
	db     *postgres.Client
	table  *grading.Table
	logger *slog.Logger
}

// NewStore returns a Store. table is used to restore grade points on load.
func NewStore(db *postgres.Client, table *grading.Table) *Store {
	return &Store{
		db:     db,
		table:  table,
		logger: slog.Default().With("component", "records-store"),
	}
}

// SaveHistory replaces every graded semester of studentID in one
// transaction.
func (s *Store) SaveHistory(ctx context.Context, studentID string, semesters []grading.Semester) error {
	now := time.Now().UTC()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := execBuilt(ctx, tx, psql.Delete("semesters").Where(sq.Eq{"student_id": studentID})); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		if len(semesters) == 0 {
			return nil
		}
		if err := execBuilt(ctx, tx, semesterInsert(studentID, semesters, now)); err != nil {
			return fmt.Errorf("inserting semesters: %w", err)
		}
		if ins, ok := historyCourseInsert(studentID, semesters); ok {
			if err := execBuilt(ctx, tx, ins); err != nil {
				return fmt.Errorf("inserting semester courses: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("history saved", "student_id", studentID, "semesters", len(semesters))
	return nil
}

// SaveDraft upserts the student's draft semester, replacing its courses.
func (s *Store) SaveDraft(ctx context.Context, studentID string, draft grading.Semester) error {
	now := time.Now().UTC()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := execBuilt(ctx, tx, draftUpsert(studentID, draft.Name, now)); err != nil {
			return fmt.Errorf("upserting draft: %w", err)
		}
		if err := execBuilt(ctx, tx, psql.Delete("draft_courses").Where(sq.Eq{"student_id": studentID})); err != nil {
			return fmt.Errorf("clearing draft courses: %w", err)
		}
		if ins, ok := draftCourseInsert(studentID, draft.Courses); ok {
			if err := execBuilt(ctx, tx, ins); err != nil {
				return fmt.Errorf("inserting draft courses: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("draft saved", "student_id", studentID, "courses", len(draft.Courses))
	return nil
}

// LoadHistory returns the student's semesters in index order, or
// ErrNotFound when none are stored.
func (s *Store) LoadHistory(ctx context.Context, studentID string) (grading.Record, error) {
	semRows, err := queryBuilt(ctx, s.db.DB, psql.Select("idx", "name").
		From("semesters").
		Where(sq.Eq{"student_id": studentID}).
		OrderBy("idx"))
	if err != nil {
		return nil, fmt.Errorf("querying semesters: %w", err)
	}
	defer semRows.Close()

	var rec grading.Record
	pos := make(map[int]int)
	for semRows.Next() {
		var sem grading.Semester
		if err := semRows.Scan(&sem.Index, &sem.Name); err != nil {
			return nil, fmt.Errorf("scanning semester: %w", err)
		}
		sem.Courses = []grading.Course{}
		pos[sem.Index] = len(rec)
		rec = append(rec, sem)
	}
	if err := semRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating semesters: %w", err)
	}
	if len(rec) == 0 {
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "no semesters stored for student %s", studentID)
	}

	courseRows, err := queryBuilt(ctx, s.db.DB, psql.Select("semester", "code", "credits", "grade").
		From("semester_courses").
		Where(sq.Eq{"student_id": studentID}).
		OrderBy("semester", "position"))
	if err != nil {
		return nil, fmt.Errorf("querying semester courses: %w", err)
	}
	defer courseRows.Close()

	for courseRows.Next() {
		var (
			semester int
			c        grading.Course
			grade    string
		)
		if err := courseRows.Scan(&semester, &c.Code, &c.Credits, &grade); err != nil {
			return nil, fmt.Errorf("scanning semester course: %w", err)
		}
		i, ok := pos[semester]
		if !ok {
			continue
		}
		rec[i].Courses = append(rec[i].Courses, c.WithGrade(s.table, grading.Symbol(grade)))
	}
	if err := courseRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating semester courses: %w", err)
	}
	return rec, nil
}

// LoadDraft returns the student's draft, or ErrNotFound.
func (s *Store) LoadDraft(ctx context.Context, studentID string) (grading.Semester, error) {
	var draft grading.Semester
	query, args, err := psql.Select("name").
		From("drafts").
		Where(sq.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		return draft, fmt.Errorf("building draft query: %w", err)
	}
	err = s.db.DB.QueryRowContext(ctx, query, args...).Scan(&draft.Name)
	if err == sql.ErrNoRows {
		return draft, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "no draft stored for student %s", studentID)
	}
	if err != nil {
		return draft, fmt.Errorf("querying draft: %w", err)
	}

	rows, err := queryBuilt(ctx, s.db.DB, psql.Select("code", "credits").
		From("draft_courses").
		Where(sq.Eq{"student_id": studentID}).
		OrderBy("position"))
	if err != nil {
		return draft, fmt.Errorf("querying draft courses: %w", err)
	}
	defer rows.Close()

	draft.Courses = []grading.Course{}
	for rows.Next() {
		var c grading.Course
		if err := rows.Scan(&c.Code, &c.Credits); err != nil {
			return draft, fmt.Errorf("scanning draft course: %w", err)
		}
		draft.Courses = append(draft.Courses, c)
	}
	if err := rows.Err(); err != nil {
		return draft, fmt.Errorf("iterating draft courses: %w", err)
	}
	return draft, nil
}

func semesterInsert(studentID string, semesters []grading.Semester, now time.Time) sq.InsertBuilder {
	ins := psql.Insert("semesters").Columns("student_id", "idx", "name", "updated_at")
	for _, sem := range semesters {
		ins = ins.Values(studentID, sem.Index, sem.Name, now)
	}
	return ins
}

func historyCourseInsert(studentID string, semesters []grading.Semester) (sq.InsertBuilder, bool) {
	ins := psql.Insert("semester_courses").Columns("student_id", "semester", "position", "code", "credits", "grade")
	n := 0
	for _, sem := range semesters {
		for i, c := range sem.Courses {
			ins = ins.Values(studentID, sem.Index, i, c.Code, c.Credits, string(c.Grade))
			n++
		}
	}
	return ins, n > 0
}

func draftUpsert(studentID, name string, now time.Time) sq.InsertBuilder {
	return psql.Insert("drafts").
		Columns("student_id", "name", "updated_at").
		Values(studentID, name, now).
		Suffix("ON CONFLICT (student_id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at")
}

func draftCourseInsert(studentID string, courses []grading.Course) (sq.InsertBuilder, bool) {
	ins := psql.Insert("draft_courses").Columns("student_id", "position", "code", "credits")
	for i, c := range courses {
		ins = ins.Values(studentID, i, c.Code, c.Credits)
	}
	return ins, len(courses) > 0
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func execBuilt(ctx context.Context, db execer, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("building statement: %w", err)
	}
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

func queryBuilt(ctx context.Context, db querier, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return db.QueryContext(ctx, query, args...)
}
