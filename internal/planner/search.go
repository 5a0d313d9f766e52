// Package planner enumerates letter-grade outcomes for a draft semester and
// keeps the ones that reach a target SGPA and CGPA. It also shapes the
// accepted set for display: histograms, pages and substring filters.
package planner

import (
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
)

// Unlimited disables the result cap.
const Unlimited = -1

// Targets are the minimum SGPA and CGPA an assignment must reach.
type Targets struct {
	SGPA float64 `json:"targetSGPA"`
	CGPA float64 `json:"targetCGPA"`
}

// Options configure one search.
type Options struct {
	// Alphabet is the set of grades tried for every draft course, in the
	// order they are tried.
	Alphabet []grading.Symbol `json:"gradeAlphabet"`
	// ResultCap is a soft limit on accepted results; negative means no cap.
	ResultCap int `json:"resultCap"`
}

// Result is one accepted grade assignment.
type Result struct {
	Assignment []grading.Course `json:"assignment"`
	SGPA       float64          `json:"sgpa"`
	CGPA       float64          `json:"cgpa"`
	Ordinal    int              `json:"ordinal"`
}

// Outcome is everything a search produces.
type Outcome struct {
	Results []Result `json:"results"`
	// Evaluated counts complete assignments scored, accepted or not.
	Evaluated int `json:"evaluated"`
	// Capped reports whether enumeration was cut short by the result cap.
	Capped bool `json:"capped"`
}

// Search returns the accepted assignments for draft in enumeration order.
func Search(table *grading.Table, draft []grading.Course, targets Targets, history grading.Record, opts Options) []Result {
	return Run(table, draft, targets, history, opts).Results
}

// Run enumerates alphabet^len(draft) assignments depth first, with the
// course at position 0 varying slowest. An assignment is accepted when both
// its rounded SGPA and rounded CGPA (history plus the draft) meet targets.
//
// The cap is checked once per grade choice, just before descending, so a
// search stops shortly after the accepted count first exceeds ResultCap
// rather than exactly at it. draft and history are never modified.
func Run(table *grading.Table, draft []grading.Course, targets Targets, history grading.Record, opts Options) Outcome {
	s := &searcher{
		table:    table,
		targets:  targets,
		alphabet: opts.Alphabet,
		cap:      opts.ResultCap,
		courses:  make([]grading.Course, len(draft)),
	}
	for i, c := range draft {
		s.courses[i] = grading.Course{Code: c.Code, Credits: c.Credits}
	}

	s.record = make(grading.Record, len(history), len(history)+1)
	copy(s.record, history)
	s.record = append(s.record, grading.Semester{
		Index:   nextIndex(history),
		Name:    "draft",
		Courses: s.courses,
	})

	s.recurse(0)
	return Outcome{
		Results:   s.results,
		Evaluated: s.evaluated,
		Capped:    s.capped(),
	}
}

type searcher struct {
	table     *grading.Table
	targets   Targets
	alphabet  []grading.Symbol
	cap       int
	courses   []grading.Course
	record    grading.Record
	results   []Result
	evaluated int
}

func (s *searcher) capped() bool {
	return s.cap >= 0 && len(s.results) > s.cap
}

func (s *searcher) recurse(pos int) {
	if pos == len(s.courses) {
		s.evaluate()
		return
	}
	for _, sym := range s.alphabet {
		s.courses[pos].Grade = sym
		if s.capped() {
			return
		}
		s.recurse(pos + 1)
	}
}

func (s *searcher) evaluate() {
	s.evaluated++
	sgpa := grading.ParseAverage(grading.SemesterAverage(s.table, s.courses))
	cgpa := grading.ParseAverage(grading.CumulativeAverage(s.table, s.record))
	if sgpa < s.targets.SGPA || cgpa < s.targets.CGPA {
		return
	}

	assignment := make([]grading.Course, len(s.courses))
	for i, c := range s.courses {
		assignment[i] = c.WithGrade(s.table, c.Grade)
	}
	s.results = append(s.results, Result{
		Assignment: assignment,
		SGPA:       sgpa,
		CGPA:       cgpa,
		Ordinal:    len(s.results) + 1,
	})
}

func nextIndex(history grading.Record) int {
	highest := len(history)
	for _, sem := range history {
		if sem.Index > highest {
			highest = sem.Index
		}
	}
	return highest + 1
}
