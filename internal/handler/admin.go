package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pavelanni/examgrader/internal/importer"
	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/store"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		internalError(w, r, "failed to list users", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UserImport
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := importer.NewUser(req)
	if err != nil {
		slog.Debug("invalid user", "error", err)
		writeError(w, r, http.StatusBadRequest, "missing_fields", "MissingFields")
		return
	}

	existing, err := h.store.GetUserByID(user.ID)
	if err != nil {
		internalError(w, r, "failed to get user", err)
		return
	}
	if existing != nil {
		writeError(w, r, http.StatusConflict, "user_exists", "UserExists")
		return
	}

	if err := h.store.PutUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, r, http.StatusConflict, "user_exists", "UserExists")
			return
		}
		internalError(w, r, "failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleUploadExams(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_file", "InvalidFile")
		return
	}

	file, header, err := r.FormFile("exams_file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_file", "InvalidFile")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		internalError(w, r, "failed to read upload", err)
		return
	}

	res, err := importer.Exams(h.store, header.Filename, data)
	if errors.Is(err, importer.ErrExamInUse) {
		slog.Warn("exam upload rejected", "filename", header.Filename, "error", err)
		writeError(w, r, http.StatusConflict, "exam_in_use", "ExamInUse")
		return
	}
	if err != nil {
		slog.Warn("exam upload rejected", "filename", header.Filename, "error", err)
		writeError(w, r, http.StatusUnprocessableEntity, "invalid_file", "InvalidFile")
		return
	}

	slog.Info("uploaded exams via admin", "filename", header.Filename, "status", res.Status, "added", res.Added, "updated", res.Updated)
	writeJSON(w, http.StatusOK, res)
}
