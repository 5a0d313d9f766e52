package planner

import (
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
)

var ab = []grading.Symbol{grading.GradeA, grading.GradeB}

func draftXY() []grading.Course {
	return []grading.Course{
		{Code: "X", Credits: 4},
		{Code: "Y", Credits: 3},
	}
}

func grades(r Result) []grading.Symbol {
	out := make([]grading.Symbol, len(r.Assignment))
	for i, c := range r.Assignment {
		out[i] = c.Grade
	}
	return out
}

func TestSearchThresholds(t *testing.T) {
	table := grading.DefaultTable()
	opts := Options{Alphabet: ab, ResultCap: Unlimited}

	tests := []struct {
		name   string
		target float64
		want   [][]grading.Symbol
	}{
		// A/B = 64/7 = 9.143 still clears 9.
		{"sgpa 9", 9, [][]grading.Symbol{{"A", "A"}, {"A", "B"}}},
		{"sgpa 9.5", 9.5, [][]grading.Symbol{{"A", "A"}}},
		{"sgpa 10.001", 10.001, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := Search(table, draftXY(), Targets{SGPA: tt.target}, nil, opts)
			if len(results) != len(tt.want) {
				t.Fatalf("expected %d results, got %d", len(tt.want), len(results))
			}
			for i, r := range results {
				if !reflect.DeepEqual(grades(r), tt.want[i]) {
					t.Errorf("result %d: got %v, want %v", i, grades(r), tt.want[i])
				}
				if r.Ordinal != i+1 {
					t.Errorf("result %d: ordinal %d", i, r.Ordinal)
				}
			}
		})
	}
}

func TestSearchAllAIsTen(t *testing.T) {
	results := Search(grading.DefaultTable(), draftXY(), Targets{SGPA: 9.5}, nil, Options{Alphabet: ab, ResultCap: Unlimited})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].SGPA != 10 || results[0].CGPA != 10 {
		t.Errorf("expected 10/10, got %v/%v", results[0].SGPA, results[0].CGPA)
	}
	for _, c := range results[0].Assignment {
		if c.GradePoints == nil || *c.GradePoints != 10 {
			t.Errorf("course %s: grade points not filled in", c.Code)
		}
	}
}

func TestSearchEnumerationOrder(t *testing.T) {
	table := grading.DefaultTable()
	opts := Options{Alphabet: ab, ResultCap: Unlimited}
	first := Search(table, draftXY(), Targets{}, nil, opts)
	second := Search(table, draftXY(), Targets{}, nil, opts)

	want := [][]grading.Symbol{{"A", "A"}, {"A", "B"}, {"B", "A"}, {"B", "B"}}
	if len(first) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(first))
	}
	for i := range want {
		if !reflect.DeepEqual(grades(first[i]), want[i]) {
			t.Errorf("position %d: got %v, want %v", i, grades(first[i]), want[i])
		}
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different result sequences")
	}
}

func TestSearchAcceptedMeetTargets(t *testing.T) {
	table := grading.DefaultTable()
	history := grading.Record{{Index: 1, Courses: []grading.Course{
		{Code: "H1", Credits: 4, Grade: grading.GradeB},
		{Code: "H2", Credits: 3, Grade: grading.GradeA},
	}}}
	draft := []grading.Course{{Code: "D1", Credits: 4}, {Code: "D2", Credits: 3}, {Code: "D3", Credits: 4.5}}
	targets := Targets{SGPA: 7.5, CGPA: 8}

	out := Run(table, draft, targets, history, Options{Alphabet: grading.ExtendedAlphabet, ResultCap: Unlimited})
	if out.Evaluated != 1000 {
		t.Errorf("expected 1000 evaluated assignments, got %d", out.Evaluated)
	}
	if out.Capped {
		t.Error("unlimited search reported capped")
	}
	if len(out.Results) == 0 {
		t.Fatal("expected some accepted assignments")
	}
	for _, r := range out.Results {
		if r.SGPA < targets.SGPA || r.CGPA < targets.CGPA {
			t.Errorf("result %d below target: sgpa=%v cgpa=%v", r.Ordinal, r.SGPA, r.CGPA)
		}
	}
}

func TestSearchRaisingThresholdNeverAddsResults(t *testing.T) {
	table := grading.DefaultTable()
	draft := []grading.Course{{Code: "D1", Credits: 4}, {Code: "D2", Credits: 3}, {Code: "D3", Credits: 2}}
	opts := Options{Alphabet: grading.ExtendedAlphabet, ResultCap: Unlimited}

	prev := -1
	for target := 0.0; target <= 10.5; target += 0.5 {
		n := len(Search(table, draft, Targets{SGPA: target, CGPA: 6}, nil, opts))
		if prev >= 0 && n > prev {
			t.Errorf("target %v accepted %d, more than %d at the lower target", target, n, prev)
		}
		prev = n
	}
}

func TestSearchDoesNotMutateInputs(t *testing.T) {
	table := grading.DefaultTable()
	draft := []grading.Course{{Code: "X", Credits: 4, Grade: grading.GradeF}, {Code: "Y", Credits: 3}}
	history := grading.Record{{Index: 1, Courses: []grading.Course{{Code: "H", Credits: 3, Grade: grading.GradeC}}}}
	draftCopy := append([]grading.Course(nil), draft...)

	Search(table, draft, Targets{}, history, Options{Alphabet: ab, ResultCap: Unlimited})

	if !reflect.DeepEqual(draft, draftCopy) {
		t.Errorf("draft mutated: %+v", draft)
	}
	if len(history) != 1 || len(history[0].Courses) != 1 {
		t.Errorf("history mutated: %+v", history)
	}
}

func TestSearchIgnoresStaleDraftGrades(t *testing.T) {
	table := grading.DefaultTable()
	draft := []grading.Course{{Code: "X", Credits: 4, Grade: grading.GradeS}}
	results := Search(table, draft, Targets{SGPA: 10}, nil, Options{Alphabet: ab, ResultCap: Unlimited})
	if len(results) != 1 || results[0].Assignment[0].Grade != grading.GradeA {
		t.Errorf("expected the A assignment only, got %+v", results)
	}
}

func TestSearchSoftCap(t *testing.T) {
	table := grading.DefaultTable()
	draft := []grading.Course{{Code: "X", Credits: 4}, {Code: "Y", Credits: 3}, {Code: "Z", Credits: 2}}

	tests := []struct {
		name string
		cap  int
	}{
		{"zero", 0},
		{"one", 1},
		{"five", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Run(table, draft, Targets{}, nil, Options{Alphabet: ab, ResultCap: tt.cap})
			if len(out.Results) <= tt.cap {
				t.Errorf("expected overshoot past cap %d, got %d results", tt.cap, len(out.Results))
			}
			if len(out.Results) > tt.cap+len(ab) {
				t.Errorf("overshoot too large: cap %d, got %d", tt.cap, len(out.Results))
			}
			if !out.Capped {
				t.Error("expected capped outcome")
			}
		})
	}

	out := Run(table, draft, Targets{}, nil, Options{Alphabet: ab, ResultCap: 100})
	if len(out.Results) != 8 || out.Capped {
		t.Errorf("cap above the search space should not bite: %d results, capped=%v", len(out.Results), out.Capped)
	}
}

func TestSearchEmptyDraft(t *testing.T) {
	table := grading.DefaultTable()

	out := Run(table, nil, Targets{SGPA: 8}, nil, Options{Alphabet: ab, ResultCap: Unlimited})
	if out.Evaluated != 1 {
		t.Errorf("expected a single trivial assignment, evaluated %d", out.Evaluated)
	}
	if len(out.Results) != 0 {
		t.Errorf("empty semester should not clear 8, got %d results", len(out.Results))
	}

	out = Run(table, nil, Targets{}, nil, Options{Alphabet: ab, ResultCap: Unlimited})
	if len(out.Results) != 1 || len(out.Results[0].Assignment) != 0 {
		t.Errorf("expected the empty assignment to be accepted at zero targets, got %+v", out.Results)
	}
}

func TestSearchCGPAIncludesHistory(t *testing.T) {
	table := grading.DefaultTable()
	history := grading.Record{{Index: 1, Courses: []grading.Course{{Code: "H", Credits: 4, Grade: grading.GradeF}}}}
	draft := []grading.Course{{Code: "X", Credits: 4}}

	results := Search(table, draft, Targets{}, history, Options{Alphabet: ab, ResultCap: Unlimited})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// (0*4 + 10*4) / 8
	if results[0].CGPA != 5 || results[0].SGPA != 10 {
		t.Errorf("A: got sgpa=%v cgpa=%v", results[0].SGPA, results[0].CGPA)
	}
	if results[1].CGPA != 4 || results[1].SGPA != 8 {
		t.Errorf("B: got sgpa=%v cgpa=%v", results[1].SGPA, results[1].CGPA)
	}
}

func TestSearchRoundsBeforeComparing(t *testing.T) {
	table := grading.DefaultTable()
	// A over 3 credits and B over 4: 62/7 = 8.857142..., rounded to 8.857.
	draft := []grading.Course{{Code: "X", Credits: 3}, {Code: "Y", Credits: 4}}
	results := Search(table, draft, Targets{SGPA: 8.857}, nil, Options{Alphabet: ab, ResultCap: Unlimited})
	found := false
	for _, r := range results {
		if r.Assignment[0].Grade == grading.GradeA && r.Assignment[1].Grade == grading.GradeB {
			found = true
			if r.SGPA != 8.857 {
				t.Errorf("expected rounded 8.857, got %v", r.SGPA)
			}
		}
	}
	if !found {
		t.Error("rounded average equal to the target should be accepted")
	}
}
