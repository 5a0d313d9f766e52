package grading

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const maxCodeLength = 64

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// NormalizeCourse trims the course code, upper-cases the grade and checks
// both against t. Graded courses must carry a known grade; draft courses
// (requireGrade false) have any grade dropped. GradePoints is recomputed.
func NormalizeCourse(t *Table, c Course, requireGrade bool) (Course, error) {
	errs := make(map[string]string)

	code := strings.TrimSpace(c.Code)
	if code == "" {
		errs["code"] = "code is required"
	} else if len(code) > maxCodeLength {
		errs["code"] = fmt.Sprintf("code must be at most %d characters", maxCodeLength)
	}
	if math.IsNaN(c.Credits) || math.IsInf(c.Credits, 0) || c.Credits <= 0 {
		errs["credits"] = "credits must be a positive number"
	}

	grade := Symbol(strings.ToUpper(strings.TrimSpace(string(c.Grade))))
	if requireGrade {
		if grade == "" {
			errs["grade"] = "grade is required"
		} else if !t.Has(grade) {
			errs["grade"] = fmt.Sprintf("unknown grade %q", grade)
		}
	}

	if len(errs) > 0 {
		return Course{}, &ValidationError{Fields: errs}
	}

	out := Course{Code: code, Credits: c.Credits}
	if requireGrade {
		out = out.WithGrade(t, grade)
	}
	return out, nil
}

// NormalizeSemester normalises every course in sem, dropping the invalid
// ones. The per-course errors are returned keyed by position.
func NormalizeSemester(t *Table, sem Semester, requireGrade bool) (Semester, map[int]error) {
	out := Semester{Index: sem.Index, Name: strings.TrimSpace(sem.Name)}
	out.Courses = make([]Course, 0, len(sem.Courses))
	var dropped map[int]error
	for i, c := range sem.Courses {
		nc, err := NormalizeCourse(t, c, requireGrade)
		if err != nil {
			if dropped == nil {
				dropped = make(map[int]error)
			}
			dropped[i] = err
			continue
		}
		out.Courses = append(out.Courses, nc)
	}
	return out, dropped
}
