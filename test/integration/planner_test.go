// Package integration contains tests that verify the records store, the
// records service and the planner handler working together against a real
// PostgreSQL database. Kafka and Redis are left out: the plan cache runs
// without a backend and no analytics events are published.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner/cache"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner/handler"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/records"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/migrations"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/postgres"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "gradeplanner_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "gradeplanner"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		QueryTimeout:    5 * time.Second,
	}
}

func newPlannerServer(t *testing.T, db *postgres.Client) *httptest.Server {
	t.Helper()
	table := grading.DefaultTable()
	m := metrics.New(prometheus.NewRegistry())

	svc := records.NewService(records.NewStore(db, table), table, db.QueryTimeout(), nil, m)
	h := handler.New(table, planner.DefaultSettings(), handler.Deps{
		Cache:   cache.New(nil, 0, m),
		Loader:  svc,
		Metrics: m,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	records.NewHandler(svc).RegisterRoutes(mux)
	srv := httptest.NewServer(middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)))
	t.Cleanup(srv.Close)
	return srv
}

func put(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", url, err)
	}
	return resp
}

func TestStoredStudentPlan(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newPlannerServer(t, db)
	student := srv.URL + "/api/v1/students/it-" + uuid.NewString()[:8]

	resp := put(t, student+"/semesters", map[string]any{
		"semesters": []map[string]any{{
			"name": "Sem 1",
			"courses": []map[string]any{
				{"code": "MA101", "credits": 4, "grade": "A"},
				{"code": "HS101", "credits": 2, "grade": "S"},
			},
		}},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store history: status %d", resp.StatusCode)
	}

	resp = put(t, student+"/draft", map[string]any{
		"name": "Sem 2",
		"courses": []map[string]any{
			{"code": "CS201", "credits": 4},
			{"code": "CS202", "credits": 3},
		},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store draft: status %d", resp.StatusCode)
	}

	resp, err := http.Get(student + "/plan?targetSgpa=9&targetCgpa=9&alphabet=A,B")
	if err != nil {
		t.Fatalf("plan request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("plan: status %d", resp.StatusCode)
	}
	var plan planner.Response
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		t.Fatalf("decoding plan: %v", err)
	}
	if plan.PossibleCombinationsCount != 2 {
		t.Errorf("combinations = %d, want 2", plan.PossibleCombinationsCount)
	}
	if plan.CGPAUpToHistory != "10.000" {
		t.Errorf("cgpa up to history = %s, want 10.000", plan.CGPAUpToHistory)
	}
	if len(plan.SGPAPerHistoricalSemester) != 1 || plan.SGPAPerHistoricalSemester[0] != "10.000" {
		t.Errorf("per-semester sgpa = %v", plan.SGPAPerHistoricalSemester)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newPlannerServer(t, db)
	student := srv.URL + "/api/v1/students/it-" + uuid.NewString()[:8]

	resp := put(t, student+"/semesters", map[string]any{
		"semesters": []map[string]any{
			{"index": 1, "name": "Sem 1", "courses": []map[string]any{{"code": "MA101", "credits": 4, "grade": "B"}}},
			{"index": 2, "name": "Sem 2", "courses": []map[string]any{
				{"code": "CS101", "credits": 3, "grade": "A"},
				{"code": "", "credits": 3, "grade": "A"},
			}},
		},
	})
	var saved records.SaveResult
	json.NewDecoder(resp.Body).Decode(&saved)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("store history: status %d", resp.StatusCode)
	}
	if len(saved.Dropped) != 1 {
		t.Errorf("dropped = %v, want the course without a code", saved.Dropped)
	}

	resp, err := http.Get(student + "/semesters")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Semesters grading.Record `json:"semesters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Semesters) != 2 || len(body.Semesters[1].Courses) != 1 {
		t.Fatalf("unexpected history: %+v", body.Semesters)
	}
	if body.Semesters[0].Courses[0].Grade != grading.GradeB {
		t.Errorf("grade = %s, want B", body.Semesters[0].Courses[0].Grade)
	}
}

func TestMissingDraft(t *testing.T) {
	db := skipIfNoPostgres(t)
	srv := newPlannerServer(t, db)

	resp, err := http.Get(srv.URL + "/api/v1/students/it-" + uuid.NewString()[:8] + "/plan")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for a student without a draft, got %d", resp.StatusCode)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
