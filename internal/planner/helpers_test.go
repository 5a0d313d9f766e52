package planner

import "github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"

type courseFixture struct {
	code    string
	credits float64
}

type courseFixtures []courseFixture

func (cs courseFixtures) courses() []grading.Course {
	out := make([]grading.Course, len(cs))
	for i, c := range cs {
		out[i] = grading.Course{Code: c.code, Credits: c.credits}
	}
	return out
}

func defaultTable() *grading.Table { return grading.DefaultTable() }

func extended() []grading.Symbol { return grading.ExtendedAlphabet }

func gradedCourse(code string, credits float64, g grading.Symbol) grading.Course {
	return grading.Course{Code: code, Credits: credits}.WithGrade(grading.DefaultTable(), g)
}

func ptr[T any](v T) *T { return &v }
