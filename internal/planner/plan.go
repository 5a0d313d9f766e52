package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/config"
)

// ErrSearchTooLarge is returned by Resolve when the draft and alphabet span
// more assignments than Settings.MaxAssignments allows.
var ErrSearchTooLarge = errors.New("search space too large")

// Settings are the service-wide defaults applied to a Request.
type Settings struct {
	Alphabet     []grading.Symbol
	ResultCap    int
	TargetSGPA   float64
	TargetCGPA   float64
	DefaultLimit int
	MaxLimit     int

	// MaxAssignments bounds len(alphabet)^len(draft), the number of complete
	// assignments a search may score. Zero disables the bound.
	MaxAssignments int64
}

// DefaultSettings mirrors the values the dashboard has always used.
func DefaultSettings() Settings {
	return Settings{
		Alphabet:       grading.ExtendedAlphabet,
		ResultCap:      20000,
		TargetSGPA:     8,
		TargetCGPA:     7,
		DefaultLimit:   5,
		MaxLimit:       100,
		MaxAssignments: 1_000_000,
	}
}

// SettingsFromConfig validates the configured alphabet against table.
func SettingsFromConfig(table *grading.Table, cfg config.PlannerConfig) (Settings, error) {
	alphabet := make([]grading.Symbol, len(cfg.Alphabet))
	for i, raw := range cfg.Alphabet {
		alphabet[i] = grading.Symbol(strings.ToUpper(strings.TrimSpace(raw)))
	}
	if err := table.ValidateAlphabet(alphabet); err != nil {
		return Settings{}, fmt.Errorf("planner alphabet: %w", err)
	}
	resultCap := cfg.ResultCap
	if resultCap < 0 {
		resultCap = Unlimited
	}
	return Settings{
		Alphabet:       alphabet,
		ResultCap:      resultCap,
		TargetSGPA:     cfg.TargetSGPA,
		TargetCGPA:     cfg.TargetCGPA,
		DefaultLimit:   cfg.DefaultLimit,
		MaxLimit:       cfg.MaxLimit,
		MaxAssignments: cfg.MaxAssignments,
	}, nil
}

// Request is the planning input. Optional fields fall back to Settings.
type Request struct {
	HistoricalSemesters []grading.Semester `json:"historicalSemesters" yaml:"history"`
	DraftCourses        []grading.Course   `json:"draftCourses" yaml:"draft"`
	TargetSGPA          *float64           `json:"targetSGPA,omitempty" yaml:"targetSgpa,omitempty"`
	TargetCGPA          *float64           `json:"targetCGPA,omitempty" yaml:"targetCgpa,omitempty"`
	GradeAlphabet       []grading.Symbol   `json:"gradeAlphabet,omitempty" yaml:"alphabet,omitempty"`
	ResultCap           *int               `json:"resultCap,omitempty" yaml:"cap,omitempty"`
	Page                int                `json:"page,omitempty" yaml:"page,omitempty"`
	Limit               int                `json:"limit,omitempty" yaml:"limit,omitempty"`
	SGPAFilter          string             `json:"sgpaFilter,omitempty" yaml:"sgpaFilter,omitempty"`
	CGPAFilter          string             `json:"cgpaFilter,omitempty" yaml:"cgpaFilter,omitempty"`
}

// Query is a fully resolved search: everything that determines the
// accepted set, and nothing that only affects presentation.
type Query struct {
	History grading.Record   `json:"history"`
	Draft   []grading.Course `json:"draft"`
	Targets Targets          `json:"targets"`
	Options Options          `json:"options"`
}

// View selects what part of an Outcome is returned.
type View struct {
	Page       int
	Limit      int
	SGPAFilter string
	CGPAFilter string
}

// Response is the planning output handed to the presentation layer.
type Response struct {
	SGPAPerHistoricalSemester []string `json:"sgpaPerHistoricalSemester"`
	CGPAUpToHistory           string   `json:"cgpaUpToHistory"`
	PossibleCombinationsCount int      `json:"possibleCombinationsCount"`
	MatchedCount              int      `json:"matchedCount"`
	Capped                    bool     `json:"capped"`
	CurrentPage               int      `json:"currentPage"`
	TotalPages                int      `json:"totalPages"`
	OptimizedCombinations     []Result `json:"optimizedCombinations"`
	CGPADistribution          []Bucket `json:"cgpaDistribution"`
	SGPADistribution          []Bucket `json:"sgpaDistribution"`
}

// Resolve applies settings to req and splits it into the search Query and
// the presentation View.
func (req Request) Resolve(table *grading.Table, s Settings) (Query, View, error) {
	q := Query{
		Targets: Targets{SGPA: s.TargetSGPA, CGPA: s.TargetCGPA},
		Options: Options{Alphabet: s.Alphabet, ResultCap: s.ResultCap},
	}
	if req.TargetSGPA != nil {
		q.Targets.SGPA = *req.TargetSGPA
	}
	if req.TargetCGPA != nil {
		q.Targets.CGPA = *req.TargetCGPA
	}
	if len(req.GradeAlphabet) > 0 {
		if err := table.ValidateAlphabet(req.GradeAlphabet); err != nil {
			return Query{}, View{}, fmt.Errorf("grade alphabet: %w", err)
		}
		q.Options.Alphabet = req.GradeAlphabet
	}
	if req.ResultCap != nil {
		q.Options.ResultCap = *req.ResultCap
		if q.Options.ResultCap < 0 {
			q.Options.ResultCap = Unlimited
		}
	}

	var err error
	if q.History, q.Draft, err = normalizeCourses(table, req); err != nil {
		return Query{}, View{}, err
	}
	if n, ok := assignmentCount(len(q.Options.Alphabet), len(q.Draft), s.MaxAssignments); !ok {
		return Query{}, View{}, fmt.Errorf("%w: %d draft courses over %d grades exceed %d assignments",
			ErrSearchTooLarge, len(q.Draft), len(q.Options.Alphabet), n)
	}

	v := View{
		Page:       req.Page,
		Limit:      req.Limit,
		SGPAFilter: req.SGPAFilter,
		CGPAFilter: req.CGPAFilter,
	}
	if v.Page < 1 {
		v.Page = 1
	}
	if v.Limit < 1 {
		v.Limit = s.DefaultLimit
	}
	if s.MaxLimit > 0 && v.Limit > s.MaxLimit {
		v.Limit = s.MaxLimit
	}
	return q, v, nil
}

// Execute runs the search described by q.
func (q Query) Execute(table *grading.Table) Outcome {
	return Run(table, q.Draft, q.Targets, q.History, q.Options)
}

// Respond builds the Response for q from a finished search. Distributions
// cover every accepted result; the substring filters only narrow the
// paginated list.
func Respond(table *grading.Table, q Query, out Outcome, v View) *Response {
	resp := &Response{
		SGPAPerHistoricalSemester: make([]string, len(q.History)),
		CGPAUpToHistory:           grading.CumulativeAverageUpTo(table, q.History, lastIndex(q.History)),
		PossibleCombinationsCount: len(out.Results),
		Capped:                    out.Capped,
		CGPADistribution:          Histogram(out.Results, KeyCGPA),
		SGPADistribution:          Histogram(out.Results, KeySGPA),
	}
	for i, sem := range q.History {
		resp.SGPAPerHistoricalSemester[i] = grading.SemesterAverage(table, sem.Courses)
	}

	matched := FilterBySubstring(out.Results, KeySGPA, v.SGPAFilter)
	matched = FilterBySubstring(matched, KeyCGPA, v.CGPAFilter)
	resp.MatchedCount = len(matched)

	page := Paginate(matched, v.Page, v.Limit)
	resp.CurrentPage = page.CurrentPage
	resp.TotalPages = page.TotalPages
	resp.OptimizedCombinations = page.Items
	return resp
}

// Plan resolves, searches and responds in one call.
func Plan(table *grading.Table, req Request, s Settings) (*Response, error) {
	q, v, err := req.Resolve(table, s)
	if err != nil {
		return nil, err
	}
	return Respond(table, q, q.Execute(table), v), nil
}

// normalizeCourses validates every course: history courses must carry a
// known grade, draft courses lose any grade they were sent with. All field
// errors are reported together, keyed by their position in the request.
func normalizeCourses(table *grading.Table, req Request) (grading.Record, []grading.Course, error) {
	fields := make(map[string]string)
	addErr := func(prefix string, err error) {
		var ve *grading.ValidationError
		if !errors.As(err, &ve) {
			fields[prefix] = err.Error()
			return
		}
		for f, msg := range ve.Fields {
			fields[prefix+"."+f] = msg
		}
	}

	history := make(grading.Record, len(req.HistoricalSemesters))
	for i, sem := range req.HistoricalSemesters {
		if sem.Index <= 0 {
			sem.Index = i + 1
		}
		out := grading.Semester{Index: sem.Index, Name: sem.Name, Courses: make([]grading.Course, 0, len(sem.Courses))}
		for j, c := range sem.Courses {
			nc, err := grading.NormalizeCourse(table, c, true)
			if err != nil {
				addErr(fmt.Sprintf("historicalSemesters[%d].courses[%d]", i, j), err)
				continue
			}
			out.Courses = append(out.Courses, nc)
		}
		history[i] = out
	}

	draft := make([]grading.Course, 0, len(req.DraftCourses))
	for j, c := range req.DraftCourses {
		nc, err := grading.NormalizeCourse(table, c, false)
		if err != nil {
			addErr(fmt.Sprintf("draftCourses[%d]", j), err)
			continue
		}
		draft = append(draft, nc)
	}

	if len(fields) > 0 {
		return nil, nil, &grading.ValidationError{Fields: fields}
	}
	return history, draft, nil
}

// assignmentCount returns grades^courses, or limit and false once the
// product passes a positive limit.
func assignmentCount(grades, courses int, limit int64) (int64, bool) {
	if courses == 0 {
		return 1, true
	}
	n := int64(1)
	for range courses {
		n *= int64(grades)
		if limit > 0 && n > limit {
			return limit, false
		}
		if n == 0 {
			return 0, true
		}
	}
	return n, true
}

func lastIndex(rec grading.Record) int {
	last := 0
	for _, sem := range rec {
		if sem.Index > last {
			last = sem.Index
		}
	}
	return last
}
