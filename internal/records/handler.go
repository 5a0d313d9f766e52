package records

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	apperrors "github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/logger"
)

// maxBodyBytes caps submission bodies.
const maxBodyBytes = 1 << 20

type historyRequest struct {
	Semesters []grading.Semester `json:"semesters"`
}

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "records-handler"),
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/v1/students/{id}/semesters", h.PutHistory)
	mux.HandleFunc("GET /api/v1/students/{id}/semesters", h.GetHistory)
	mux.HandleFunc("PUT /api/v1/students/{id}/draft", h.PutDraft)
	mux.HandleFunc("GET /api/v1/students/{id}/draft", h.GetDraft)
}

func (h *Handler) PutHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := h.service.SaveHistory(r.Context(), r.PathValue("id"), req.Semesters)
	if err != nil {
		h.fail(w, r, "saving history failed", err)
		return
	}
	logger.FromContext(r.Context()).Info("history stored",
		"student_id", result.StudentID,
		"semesters", len(result.Semesters),
		"dropped", len(result.Dropped),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.service.History(r.Context(), id)
	if err != nil {
		h.fail(w, r, "loading history failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"studentId": id, "semesters": rec})
}

func (h *Handler) PutDraft(w http.ResponseWriter, r *http.Request) {
	var draft grading.Semester
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&draft); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := h.service.SaveDraft(r.Context(), r.PathValue("id"), draft)
	if err != nil {
		h.fail(w, r, "saving draft failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	draft, err := h.service.Draft(r.Context(), id)
	if err != nil {
		h.fail(w, r, "loading draft failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"studentId": id, "draft": draft})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error(msg, "error", err, "status_code", status)
	}
	h.writeError(w, status, apperrors.Message(err, msg))
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
