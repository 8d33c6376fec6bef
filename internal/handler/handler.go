package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examgrader/internal/export"
	"github.com/pavelanni/examgrader/internal/grading"
	appI18n "github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/store"
)

const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	svc    *grading.Service
	config model.GradingConfig
}

// New creates a new Handler.
func New(s *store.Store, svc *grading.Service, cfg model.GradingConfig) *Handler {
	return &Handler{store: s, svc: svc, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/api/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/api/logout", h.handleLogout)
		r.Post("/api/exams/grade", h.handleGrade)
		r.Post("/api/reports/monthly", h.handleMonthlyReport)
		r.Get("/api/exams", h.handleListExams)
		r.Get("/api/exams/{examID}", h.handleGetExam)
		r.Get("/api/submissions/{submissionID}", h.handleGetSubmission)
		r.Get("/api/students/{studentID}/submissions", h.handleListStudentSubmissions)
		r.Get("/api/reports/{reportID}", h.handleGetReport)
		r.Get("/api/reports/{reportID}/pdf", h.handleReportPDF)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher))
			r.Get("/api/admin/users", h.handleListUsers)
			r.Post("/api/admin/users", h.handleCreateUser)
			r.Post("/api/admin/exams", h.handleUploadExams)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req grading.GradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !canActFor(r, req.StudentID) {
		writeError(w, r, http.StatusForbidden, "forbidden", "Forbidden")
		return
	}

	resp, err := h.svc.GradeSubmission(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	var req grading.MonthlyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !canActFor(r, req.StudentID) {
		writeError(w, r, http.StatusForbidden, "forbidden", "Forbidden")
		return
	}

	resp, err := h.svc.GenerateMonthlyReport(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams(r.URL.Query().Get("subject"), r.URL.Query().Get("grade"))
	if err != nil {
		internalError(w, r, "failed to list exams", err)
		return
	}
	if model.UserFromContext(r.Context()).IsStudent() {
		for i := range exams {
			exams[i] = hideAnswers(exams[i])
		}
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleGetExam(w http.ResponseWriter, r *http.Request) {
	exam, err := h.store.GetExam(chi.URLParam(r, "examID"))
	if err != nil {
		internalError(w, r, "failed to get exam", err)
		return
	}
	if exam == nil {
		writeError(w, r, http.StatusNotFound, "exam_not_found", "ExamNotFound")
		return
	}
	if model.UserFromContext(r.Context()).IsStudent() {
		*exam = hideAnswers(*exam)
	}
	writeJSON(w, http.StatusOK, exam)
}

func (h *Handler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.store.GetSubmission(chi.URLParam(r, "submissionID"))
	if err != nil {
		internalError(w, r, "failed to get submission", err)
		return
	}
	// Another student's submission is reported as missing.
	if sub == nil || !canActFor(r, sub.StudentID) {
		writeError(w, r, http.StatusNotFound, "submission_not_found", "SubmissionNotFound")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *Handler) handleListStudentSubmissions(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	if !canActFor(r, studentID) {
		writeError(w, r, http.StatusForbidden, "forbidden", "Forbidden")
		return
	}
	subs, err := h.store.ListSubmissionsByStudent(studentID)
	if err != nil {
		internalError(w, r, "failed to list submissions", err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	name := report.StudentID
	if u, err := h.store.GetUserByID(report.StudentID); err == nil && u != nil {
		name = u.Name
	}

	var buf bytes.Buffer
	if err := export.WriteReportPDF(&buf, *report, name); err != nil {
		internalError(w, r, "failed to render report", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="report-%s-%d-%02d.pdf"`, report.StudentID, report.Year, report.Month))
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) loadReport(w http.ResponseWriter, r *http.Request) (*model.MonthlyReport, bool) {
	report, err := h.store.GetMonthlyReport(chi.URLParam(r, "reportID"))
	if err != nil {
		internalError(w, r, "failed to get report", err)
		return nil, false
	}
	if report == nil || !canActFor(r, report.StudentID) {
		writeError(w, r, http.StatusNotFound, "report_not_found", "ReportNotFound")
		return nil, false
	}
	return report, true
}

// canActFor reports whether the logged-in user may act for studentID.
// Teachers may act for anyone, students only for themselves.
func canActFor(r *http.Request, studentID string) bool {
	u := model.UserFromContext(r.Context())
	if u == nil {
		return false
	}
	if u.Role == model.UserRoleTeacher {
		return true
	}
	return studentID == "" || studentID == u.ID
}

func hideAnswers(e model.Exam) model.Exam {
	qs := make([]model.Question, len(e.Questions))
	for i, q := range e.Questions {
		q.CorrectAnswer = ""
		qs[i] = q
	}
	e.Questions = qs
	return e
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Debug("invalid request body", "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusBadRequest, "invalid_body", "InvalidBody")
		return false
	}
	return true
}

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code"`
	ReportID string `json:"reportId,omitempty"`
}

var serviceErrors = []struct {
	err    error
	status int
	code   string
	msgID  string
}{
	{grading.ErrMissingFields, http.StatusBadRequest, "missing_fields", "MissingFields"},
	{grading.ErrInvalidStartTime, http.StatusBadRequest, "invalid_start_time", "InvalidStartTime"},
	{grading.ErrExamNotFound, http.StatusNotFound, "exam_not_found", "ExamNotFound"},
	{grading.ErrStudentNotFound, http.StatusNotFound, "student_not_found", "StudentNotFound"},
	{grading.ErrAlreadySubmitted, http.StatusConflict, "already_submitted", "AlreadySubmitted"},
	{grading.ErrReportExists, http.StatusConflict, "report_exists", "ReportExists"},
	{grading.ErrNoResults, http.StatusNotFound, "no_results", "NoResults"},
	{grading.ErrUnsupportedQuestionType, http.StatusUnprocessableEntity, "unsupported_question_type", "UnsupportedQuestionType"},
	{grading.ErrMissingReference, http.StatusUnprocessableEntity, "missing_reference", "MissingReference"},
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, se := range serviceErrors {
		if !errors.Is(err, se.err) {
			continue
		}
		resp := errorResponse{Error: appI18n.T(r.Context(), se.msgID), Code: se.code}
		var exists *grading.ReportExistsError
		if errors.As(err, &exists) {
			resp.ReportID = exists.ReportID
		}
		slog.Info("request rejected", "path", r.URL.Path, "code", se.code, "error", err)
		writeJSON(w, se.status, resp)
		return
	}
	internalError(w, r, "request failed", err)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msgID string) {
	writeJSON(w, status, errorResponse{Error: appI18n.T(r.Context(), msgID), Code: code})
}

func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "path", r.URL.Path, "error", err)
	writeError(w, r, http.StatusInternalServerError, "internal_error", "InternalError")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
