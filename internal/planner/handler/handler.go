package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner/cache"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/records"
	apperrors "github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/tracing"
)

const maxBodyBytes = 1 << 20

// StudentLoader is satisfied by *records.Service.
type StudentLoader interface {
	LoadStudent(ctx context.Context, studentID string) (*records.Student, error)
}

// PlanTracker is satisfied by *analytics.Collector.
type PlanTracker interface {
	TrackPlan(event analytics.PlanEvent)
}

// Deps collects the optional collaborators. Any of them may be nil.
type Deps struct {
	Cache   *cache.PlanCache
	Loader  StudentLoader
	Tracker PlanTracker
	Metrics *metrics.Metrics
	Tracer  *tracing.Tracer
}

type Handler struct {
	table    *grading.Table
	settings planner.Settings
	deps     Deps
	logger   *slog.Logger
}

func New(table *grading.Table, settings planner.Settings, deps Deps) *Handler {
	return &Handler{
		table:    table,
		settings: settings,
		deps:     deps,
		logger:   slog.Default().With("component", "planner-handler"),
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/plan", h.Plan)
	mux.HandleFunc("GET /api/v1/students/{id}/plan", h.StudentPlan)
	mux.HandleFunc("GET /api/v1/students/{id}/plan/distribution", h.StudentDistribution)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Plan is stateless: history and draft come in the body.
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	var req planner.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx, root := h.startTrace(r.Context(), "")
	defer root.End()
	resp, err := h.run(ctx, "", req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// StudentPlan plans against the stored history and draft of {id}.
func (h *Handler) StudentPlan(w http.ResponseWriter, r *http.Request) {
	resp, err := h.studentRun(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// StudentDistribution returns only the histograms of a student plan. The
// optional key parameter ("sgpa" or "cgpa") narrows it to one histogram.
func (h *Handler) StudentDistribution(w http.ResponseWriter, r *http.Request) {
	var key planner.Key
	if raw := r.URL.Query().Get("key"); raw != "" {
		k, err := planner.ParseKey(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "key must be sgpa or cgpa")
			return
		}
		key = k
	}
	resp, err := h.studentRun(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := map[string]any{
		"possibleCombinationsCount": resp.PossibleCombinationsCount,
		"capped":                    resp.Capped,
	}
	if key == "" || key == planner.KeyCGPA {
		out["cgpaDistribution"] = resp.CGPADistribution
	}
	if key == "" || key == planner.KeySGPA {
		out["sgpaDistribution"] = resp.SGPADistribution
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, cache.Stats{Enabled: false})
		return
	}
	h.writeJSON(w, http.StatusOK, h.deps.Cache.Stats(r.Context()))
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.deps.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) studentRun(r *http.Request) (*planner.Response, error) {
	if h.deps.Loader == nil {
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "student records are not configured")
	}
	id := r.PathValue("id")
	req, err := h.parseParams(r.URL.Query())
	if err != nil {
		return nil, err
	}

	ctx, root := h.startTrace(r.Context(), id)
	defer root.End()
	loadCtx, span := tracing.StartChildSpan(ctx, "load")
	st, err := h.deps.Loader.LoadStudent(loadCtx, id)
	span.End()
	if err != nil {
		return nil, err
	}
	req.HistoricalSemesters = st.History
	req.DraftCourses = st.Draft.Courses
	return h.run(ctx, id, req)
}

// parseParams maps query parameters onto a Request. Malformed page and limit
// fall back to defaults; malformed targets, alphabet or cap are rejected.
func (h *Handler) parseParams(v url.Values) (planner.Request, error) {
	var req planner.Request
	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"targetSgpa", &req.TargetSGPA},
		{"targetCgpa", &req.TargetCGPA},
	} {
		raw := v.Get(p.name)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%s must be a number", p.name)
		}
		*p.dst = &f
	}
	if raw := v.Get("alphabet"); raw != "" {
		alphabet, err := h.table.ParseAlphabet(raw)
		if err != nil {
			return req, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "alphabet: %v", err)
		}
		req.GradeAlphabet = alphabet
	}
	if raw := v.Get("cap"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "cap must be an integer")
		}
		req.ResultCap = &n
	}
	req.Page, _ = strconv.Atoi(v.Get("page"))
	req.Limit, _ = strconv.Atoi(v.Get("limit"))
	req.SGPAFilter = v.Get("sgpa")
	req.CGPAFilter = v.Get("cgpa")
	return req, nil
}

func (h *Handler) run(ctx context.Context, studentID string, req planner.Request) (*planner.Response, error) {
	start := time.Now()
	q, view, err := req.Resolve(h.table, h.settings)
	if err != nil {
		h.countPlan("error")
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%v", err)
	}

	_, span := tracing.StartChildSpan(ctx, "search")
	compute := func() (planner.Outcome, error) { return q.Execute(h.table), nil }
	var out planner.Outcome
	cacheHit := false
	if h.deps.Cache != nil {
		out, cacheHit, err = h.deps.Cache.GetOrCompute(ctx, q, compute)
	} else {
		out, err = compute()
	}
	span.SetAttr("accepted", len(out.Results))
	span.SetAttr("evaluated", out.Evaluated)
	span.SetAttr("cache_hit", cacheHit)
	span.End()
	if err != nil {
		h.countPlan("error")
		return nil, fmt.Errorf("running search: %w", err)
	}

	_, span = tracing.StartChildSpan(ctx, "aggregate")
	resp := planner.Respond(h.table, q, out, view)
	span.End()

	latency := time.Since(start)
	h.observe(q, out, cacheHit, latency)
	logger.FromContext(ctx).Info("plan completed",
		"student_id", studentID,
		"draft_courses", len(q.Draft),
		"accepted", len(out.Results),
		"evaluated", out.Evaluated,
		"capped", out.Capped,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.deps.Tracker != nil {
		h.deps.Tracker.TrackPlan(analytics.PlanEvent{
			StudentID:    studentID,
			TargetSGPA:   q.Targets.SGPA,
			TargetCGPA:   q.Targets.CGPA,
			DraftCourses: len(q.Draft),
			AlphabetSize: len(q.Options.Alphabet),
			Accepted:     len(out.Results),
			Evaluated:    int64(out.Evaluated),
			Capped:       out.Capped,
			LatencyMs:    latency.Milliseconds(),
			CacheHit:     cacheHit,
			RequestID:    middleware.GetRequestID(ctx),
		})
	}
	return resp, nil
}

func (h *Handler) startTrace(ctx context.Context, studentID string) (context.Context, *tracing.Span) {
	ctx, root := h.deps.Tracer.Start(ctx, "plan", middleware.GetRequestID(ctx))
	if studentID != "" {
		root.SetAttr("student_id", studentID)
	}
	return ctx, root
}

func (h *Handler) observe(q planner.Query, out planner.Outcome, cacheHit bool, latency time.Duration) {
	switch {
	case out.Capped:
		h.countPlan("capped")
	case len(out.Results) == 0:
		h.countPlan("zero_result")
	default:
		h.countPlan("accepted")
	}
	m := h.deps.Metrics
	if m == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	m.SearchLatency.WithLabelValues(status).Observe(latency.Seconds())
	m.AcceptedCombinations.Observe(float64(len(out.Results)))
	if !cacheHit {
		m.EvaluatedAssignments.Observe(float64(out.Evaluated))
	}
}

func (h *Handler) countPlan(outcome string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.PlansTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("plan failed", "error", err, "status_code", status)
	}
	h.writeError(w, status, apperrors.Message(err, "plan failed"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
