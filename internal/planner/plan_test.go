package planner

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/config"
)

func sampleRequest() Request {
	return Request{
		HistoricalSemesters: []grading.Semester{
			{Name: "Sem 1", Courses: []grading.Course{
				gradedCourse("MTL100", 4, grading.GradeA),
				gradedCourse("PYL100", 3, grading.GradeB),
			}},
			{Name: "Sem 2", Courses: []grading.Course{
				gradedCourse("COL106", 4, grading.GradeAMinus),
				gradedCourse("NLN100", 1, grading.GradeS),
			}},
		},
		DraftCourses: []grading.Course{
			{Code: "APL105", Credits: 4},
			{Code: "ASL385", Credits: 3},
			{Code: "TXL211", Credits: 3},
		},
	}
}

func TestResolveDefaults(t *testing.T) {
	s := DefaultSettings()
	q, v, err := sampleRequest().Resolve(defaultTable(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Targets.SGPA != 8 || q.Targets.CGPA != 7 {
		t.Errorf("default targets not applied: %+v", q.Targets)
	}
	if q.Options.ResultCap != 20000 || len(q.Options.Alphabet) != 10 {
		t.Errorf("default options not applied: %+v", q.Options)
	}
	if v.Page != 1 || v.Limit != 5 {
		t.Errorf("default view not applied: %+v", v)
	}
	if q.History[0].Index != 1 || q.History[1].Index != 2 {
		t.Errorf("history indexes not assigned: %d, %d", q.History[0].Index, q.History[1].Index)
	}
}

func TestResolveOverrides(t *testing.T) {
	req := sampleRequest()
	req.TargetSGPA = ptr(9.0)
	req.TargetCGPA = ptr(0.0)
	req.GradeAlphabet = []grading.Symbol{grading.GradeA, grading.GradeB}
	req.ResultCap = ptr(-10)
	req.Page = 3
	req.Limit = 5000

	q, v, err := req.Resolve(defaultTable(), DefaultSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Targets.SGPA != 9 || q.Targets.CGPA != 0 {
		t.Errorf("targets not overridden: %+v", q.Targets)
	}
	if q.Options.ResultCap != Unlimited {
		t.Errorf("negative cap should mean unlimited, got %d", q.Options.ResultCap)
	}
	if v.Page != 3 || v.Limit != 100 {
		t.Errorf("view = %+v, want page 3 and clamped limit 100", v)
	}
}

func TestResolveRejectsUnknownGrade(t *testing.T) {
	req := sampleRequest()
	req.GradeAlphabet = []grading.Symbol{"A", "Z"}
	if _, _, err := req.Resolve(defaultTable(), DefaultSettings()); err == nil {
		t.Error("expected error for unknown grade in alphabet")
	}
}

func TestResolveRejectsInvalidCourses(t *testing.T) {
	req := Request{
		HistoricalSemesters: []grading.Semester{{Name: "Sem 1", Courses: []grading.Course{
			{Credits: -4, Grade: grading.GradeA},
			{Code: "", Credits: 3, Grade: "Q"},
			{Code: "MA101", Credits: 4, Grade: grading.GradeB},
		}}},
		DraftCourses: []grading.Course{
			{Code: "", Credits: -3},
			{Code: "CS201", Credits: 0},
		},
	}
	_, _, err := req.Resolve(defaultTable(), DefaultSettings())
	var ve *grading.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, key := range []string{
		"historicalSemesters[0].courses[0].code",
		"historicalSemesters[0].courses[0].credits",
		"historicalSemesters[0].courses[1].code",
		"historicalSemesters[0].courses[1].grade",
		"draftCourses[0].code",
		"draftCourses[0].credits",
		"draftCourses[1].credits",
	} {
		if _, ok := ve.Fields[key]; !ok {
			t.Errorf("missing field error %s in %v", key, ve.Fields)
		}
	}
	if _, ok := ve.Fields["historicalSemesters[0].courses[2].code"]; ok {
		t.Error("valid course reported as invalid")
	}

	req = Request{HistoricalSemesters: []grading.Semester{{Courses: []grading.Course{{Code: "MA101", Credits: 4}}}}}
	if _, _, err := req.Resolve(defaultTable(), DefaultSettings()); !errors.As(err, &ve) || ve.Fields["historicalSemesters[0].courses[0].grade"] == "" {
		t.Errorf("ungraded history course should be rejected, got %v", err)
	}
}

func TestResolveNormalizesCourses(t *testing.T) {
	stale := 3.0
	req := Request{
		HistoricalSemesters: []grading.Semester{{Courses: []grading.Course{
			{Code: " MA101 ", Credits: 4, Grade: " a- ", GradePoints: &stale},
		}}},
		DraftCourses: []grading.Course{{Code: "CS201", Credits: 4, Grade: grading.GradeA}},
	}
	q, _, err := req.Resolve(defaultTable(), DefaultSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := q.History[0].Courses[0]
	if c.Code != "MA101" || c.Grade != grading.GradeAMinus || c.GradePoints == nil || *c.GradePoints != 9 {
		t.Errorf("history course not normalised: %+v", c)
	}
	if q.Draft[0].Grade != "" {
		t.Errorf("draft grade should be dropped, got %q", q.Draft[0].Grade)
	}
	if req.DraftCourses[0].Grade != grading.GradeA {
		t.Error("caller's draft was modified")
	}
}

func TestResolveBoundsSearchSpace(t *testing.T) {
	draftOf := func(n int) []grading.Course {
		cs := make(courseFixtures, n)
		for i := range cs {
			cs[i] = courseFixture{code: "C" + string(rune('A'+i)), credits: 3}
		}
		return cs.courses()
	}

	// 10 grades over 7 courses is 10^7 assignments.
	req := Request{DraftCourses: draftOf(7), TargetSGPA: ptr(11.0), ResultCap: ptr(-1)}
	if _, _, err := req.Resolve(defaultTable(), DefaultSettings()); !errors.Is(err, ErrSearchTooLarge) {
		t.Fatalf("expected ErrSearchTooLarge, got %v", err)
	}

	req.DraftCourses = draftOf(6)
	q, _, err := req.Resolve(defaultTable(), DefaultSettings())
	if err != nil {
		t.Fatalf("10^6 assignments should be allowed: %v", err)
	}
	if q.Options.ResultCap != Unlimited {
		t.Errorf("negative cap within the bound should stay unlimited, got %d", q.Options.ResultCap)
	}

	req.DraftCourses = draftOf(7)
	req.GradeAlphabet = []grading.Symbol{grading.GradeA, grading.GradeB}
	if _, _, err := req.Resolve(defaultTable(), DefaultSettings()); err != nil {
		t.Errorf("a smaller alphabet brings 7 courses under the bound: %v", err)
	}

	unbounded := DefaultSettings()
	unbounded.MaxAssignments = 0
	req.GradeAlphabet = nil
	if _, _, err := req.Resolve(defaultTable(), unbounded); err != nil {
		t.Errorf("zero MaxAssignments disables the bound: %v", err)
	}
}

func TestAssignmentCount(t *testing.T) {
	tests := []struct {
		grades, courses int
		limit           int64
		want            int64
		ok              bool
	}{
		{10, 0, 100, 1, true},
		{10, 2, 100, 100, true},
		{10, 3, 100, 100, false},
		{5, 8, 0, 390625, true},
		{10, 40, 1_000_000, 1_000_000, false},
		{0, 3, 10, 0, true},
	}
	for _, tt := range tests {
		got, ok := assignmentCount(tt.grades, tt.courses, tt.limit)
		if got != tt.want || ok != tt.ok {
			t.Errorf("assignmentCount(%d, %d, %d) = %d, %v; want %d, %v",
				tt.grades, tt.courses, tt.limit, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPlan(t *testing.T) {
	req := sampleRequest()
	req.TargetSGPA = ptr(9.0)
	req.TargetCGPA = ptr(8.5)
	req.GradeAlphabet = []grading.Symbol{grading.GradeA, grading.GradeAMinus, grading.GradeB}
	req.Limit = 2

	resp, err := Plan(defaultTable(), req, DefaultSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantSGPA := []string{"9.143", "9.000"}
	if !reflect.DeepEqual(resp.SGPAPerHistoricalSemester, wantSGPA) {
		t.Errorf("per-semester sgpa = %v, want %v", resp.SGPAPerHistoricalSemester, wantSGPA)
	}
	// (40 + 24 + 36) / 11
	if resp.CGPAUpToHistory != "9.091" {
		t.Errorf("cgpa up to history = %q, want 9.091", resp.CGPAUpToHistory)
	}
	if resp.PossibleCombinationsCount == 0 {
		t.Fatal("expected accepted combinations")
	}
	if resp.MatchedCount != resp.PossibleCombinationsCount {
		t.Errorf("no filters: matched %d != possible %d", resp.MatchedCount, resp.PossibleCombinationsCount)
	}
	if len(resp.OptimizedCombinations) > 2 {
		t.Errorf("page holds %d items, limit is 2", len(resp.OptimizedCombinations))
	}
	wantPages := (resp.PossibleCombinationsCount + 1) / 2
	if resp.TotalPages != wantPages {
		t.Errorf("total pages = %d, want %d", resp.TotalPages, wantPages)
	}
	for _, key := range []struct {
		name    string
		buckets []Bucket
	}{{"sgpa", resp.SGPADistribution}, {"cgpa", resp.CGPADistribution}} {
		sum := 0
		for _, b := range key.buckets {
			sum += b.Count
		}
		if sum != resp.PossibleCombinationsCount {
			t.Errorf("%s distribution sums to %d, want %d", key.name, sum, resp.PossibleCombinationsCount)
		}
	}
}

func TestPlanSubstringFiltersNarrowPageOnly(t *testing.T) {
	req := sampleRequest()
	req.TargetSGPA = ptr(0.0)
	req.TargetCGPA = ptr(0.0)
	req.GradeAlphabet = []grading.Symbol{grading.GradeA, grading.GradeB}
	req.SGPAFilter = "10"
	req.Limit = 50

	resp, err := Plan(defaultTable(), req, DefaultSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PossibleCombinationsCount != 8 {
		t.Errorf("expected 8 accepted combinations, got %d", resp.PossibleCombinationsCount)
	}
	if resp.MatchedCount != 1 || len(resp.OptimizedCombinations) != 1 {
		t.Fatalf("expected only the all-A combination to match, got %d", resp.MatchedCount)
	}
	if resp.OptimizedCombinations[0].Ordinal != 1 {
		t.Errorf("ordinal should keep its enumeration position, got %d", resp.OptimizedCombinations[0].Ordinal)
	}
	sum := 0
	for _, b := range resp.SGPADistribution {
		sum += b.Count
	}
	if sum != 8 {
		t.Errorf("distribution should cover all accepted results, sums to %d", sum)
	}
}

func TestPlanEmptyInputs(t *testing.T) {
	resp, err := Plan(defaultTable(), Request{}, DefaultSettings())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CGPAUpToHistory != "0.000" {
		t.Errorf("cgpa = %q, want 0.000", resp.CGPAUpToHistory)
	}
	if resp.PossibleCombinationsCount != 0 || resp.TotalPages != 0 {
		t.Errorf("expected no combinations, got %+v", resp)
	}
	if resp.OptimizedCombinations == nil || resp.SGPADistribution == nil {
		t.Error("empty response slices should encode as [] rather than null")
	}
}

func TestSettingsFromConfig(t *testing.T) {
	s, err := SettingsFromConfig(defaultTable(), config.PlannerConfig{
		Alphabet:     []string{" a", "b-"},
		ResultCap:    -5,
		TargetSGPA:   8.5,
		TargetCGPA:   7.5,
		DefaultLimit: 10,
		MaxLimit:     50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []grading.Symbol{grading.GradeA, grading.GradeBMinus}
	if !reflect.DeepEqual(s.Alphabet, want) {
		t.Errorf("alphabet = %v, want %v", s.Alphabet, want)
	}
	if s.ResultCap != Unlimited || s.TargetSGPA != 8.5 || s.MaxLimit != 50 {
		t.Errorf("settings = %+v", s)
	}
	if _, err := SettingsFromConfig(defaultTable(), config.PlannerConfig{Alphabet: []string{"Z"}}); err == nil {
		t.Error("expected error for unknown grade")
	}
}
