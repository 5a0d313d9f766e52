package grading

import "strconv"

// ZeroAverage is returned whenever no credits count towards an average.
const ZeroAverage = "0.000"

// Course is a single course load. Grade is empty while the course is still
// ungraded. GradePoints is informational only: averages always look the
// grade up in the table again.
type Course struct {
	Code        string   `json:"code" yaml:"code"`
	Credits     float64  `json:"credits" yaml:"credits"`
	Grade       Symbol   `json:"grade,omitempty" yaml:"grade,omitempty"`
	GradePoints *float64 `json:"gradePoints,omitempty" yaml:"gradePoints,omitempty"`
}

// WithGrade returns a copy of c graded sym, with GradePoints taken from t.
func (c Course) WithGrade(t *Table, sym Symbol) Course {
	c.Grade = sym
	c.GradePoints = nil
	if p, ok := t.Points(sym); ok {
		c.GradePoints = &p
	}
	return c
}

// Semester is one term of courses. Index is 1-based.
type Semester struct {
	Index   int      `json:"index" yaml:"index"`
	Name    string   `json:"name" yaml:"name"`
	Courses []Course `json:"courses" yaml:"courses"`
}

// Record is a student's semesters, in ascending index order.
type Record []Semester

// accumulator sums credits and credit-weighted points over counted courses.
type accumulator struct {
	credits  float64
	weighted float64
}

func (a *accumulator) add(t *Table, courses []Course) {
	for _, c := range courses {
		if c.Grade == "" || c.Grade == GradeS {
			continue
		}
		points, ok := t.Points(c.Grade)
		if !ok {
			continue
		}
		a.credits += c.Credits
		a.weighted += c.Credits * points
	}
}

func (a *accumulator) format() string {
	if a.credits <= 0 {
		return ZeroAverage
	}
	return FormatAverage(a.weighted / a.credits)
}

// SemesterAverage returns the SGPA of courses formatted to three decimals.
// S-graded and ungraded courses are skipped; with no counted credits the
// result is ZeroAverage.
func SemesterAverage(t *Table, courses []Course) string {
	var acc accumulator
	acc.add(t, courses)
	return acc.format()
}

// CumulativeAverage returns the CGPA over every semester in rec. Credits and
// weighted points are summed globally before a single division.
func CumulativeAverage(t *Table, rec Record) string {
	var acc accumulator
	for _, sem := range rec {
		acc.add(t, sem.Courses)
	}
	return acc.format()
}

// CumulativeAverageUpTo is CumulativeAverage restricted to semesters with
// index 1..n inclusive.
func CumulativeAverageUpTo(t *Table, rec Record, n int) string {
	var acc accumulator
	for _, sem := range rec {
		if sem.Index < 1 || sem.Index > n {
			continue
		}
		acc.add(t, sem.Courses)
	}
	return acc.format()
}

// FormatAverage renders v in fixed-point notation with three decimals.
func FormatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// ParseAverage converts a formatted average back to a number. Comparisons
// and histogram buckets use this reduced-precision value. Unparseable input
// yields 0.
func ParseAverage(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
