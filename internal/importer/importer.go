// Package importer loads exams and users from JSON files into the store.
package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examgrader/internal/grading"
	"github.com/pavelanni/examgrader/internal/model"
)

// ErrExamInUse is returned when an import would change the questions of an
// exam that students have already submitted.
var ErrExamInUse = errors.New("exam already has submissions")

// Store is the persistence an import needs.
type Store interface {
	GetImportedFileHash(path string) (string, error)
	SetImportedFileHash(path, hash string) error
	GetExam(id string) (*model.Exam, error)
	CountSubmissionsForExam(examID string) (int, error)
	PutExam(e model.Exam) error
	PutUser(u model.User) error
}

// Status describes what an import did with a file.
type Status string

const (
	StatusImported  Status = "imported"
	StatusUnchanged Status = "unchanged"
)

// Result reports the outcome of importing one file.
type Result struct {
	Status  Status `json:"status"`
	Count   int    `json:"count"`
	Added   int    `json:"added"`
	Updated int    `json:"updated"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Exams imports a JSON array of exams. name identifies the file so that an
// identical re-import is skipped. New exams are added and existing ones
// updated, but the questions of an exam with submissions never change: such
// a file is rejected with ErrExamInUse and nothing from it is stored.
func Exams(s Store, name string, data []byte) (Result, error) {
	hash := sha256sum(data)
	storedHash, err := s.GetImportedFileHash(name)
	if err != nil {
		return Result{}, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if storedHash == hash {
		slog.Info("exams file unchanged, skipping", "path", name)
		return Result{Status: StatusUnchanged}, nil
	}

	var exams []model.ExamImport
	if err := json.Unmarshal(data, &exams); err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", name, err)
	}
	seen := make(map[string]bool, len(exams))
	for i, ei := range exams {
		if err := validate.Struct(ei); err != nil {
			return Result{}, fmt.Errorf("%s: exam %d: %w", name, i, err)
		}
		if seen[ei.ID] {
			return Result{}, fmt.Errorf("%s: exam %s listed twice", name, ei.ID)
		}
		seen[ei.ID] = true
		if err := grading.ValidateExam(model.Exam{ID: ei.ID, Questions: ei.Questions}); err != nil {
			return Result{}, fmt.Errorf("%s: exam %s: %w", name, ei.ID, err)
		}
	}

	existing := make(map[string]bool, len(exams))
	for _, ei := range exams {
		stored, err := s.GetExam(ei.ID)
		if err != nil {
			return Result{}, fmt.Errorf("look up exam %s: %w", ei.ID, err)
		}
		if stored == nil {
			continue
		}
		existing[ei.ID] = true
		if slices.Equal(stored.Questions, ei.Questions) {
			continue
		}
		n, err := s.CountSubmissionsForExam(ei.ID)
		if err != nil {
			return Result{}, fmt.Errorf("count submissions for exam %s: %w", ei.ID, err)
		}
		if n > 0 {
			return Result{}, fmt.Errorf("%s: exam %s (%d submissions): %w", name, ei.ID, n, ErrExamInUse)
		}
	}

	res := Result{Status: StatusImported}
	for _, ei := range exams {
		err := s.PutExam(model.Exam{
			ID:           ei.ID,
			Title:        ei.Title,
			Subject:      ei.Subject,
			GradeLevel:   ei.GradeLevel,
			TimeLimit:    ei.TimeLimit,
			Questions:    ei.Questions,
			Instructions: ei.Instructions,
			CreatedBy:    ei.CreatedBy,
		})
		if err != nil {
			return Result{}, fmt.Errorf("save exam %s from %s: %w", ei.ID, name, err)
		}
		if existing[ei.ID] {
			res.Updated++
		} else {
			res.Added++
		}
	}
	res.Count = res.Added + res.Updated

	if err := s.SetImportedFileHash(name, hash); err != nil {
		return Result{}, fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported exams", "path", name, "added", res.Added, "updated", res.Updated)
	return res, nil
}

// Users imports a JSON array of users. Unlike exams, a changed users file is
// imported again; existing users are updated in place.
func Users(s Store, name string, data []byte) (Result, error) {
	hash := sha256sum(data)
	storedHash, err := s.GetImportedFileHash(name)
	if err != nil {
		return Result{}, fmt.Errorf("check import status for %s: %w", name, err)
	}
	if storedHash == hash {
		slog.Info("users file unchanged, skipping", "path", name)
		return Result{Status: StatusUnchanged}, nil
	}

	var users []model.UserImport
	if err := json.Unmarshal(data, &users); err != nil {
		return Result{}, fmt.Errorf("parse %s: %w", name, err)
	}
	for i, ui := range users {
		if err := validate.Struct(ui); err != nil {
			return Result{}, fmt.Errorf("%s: user %d: %w", name, i, err)
		}
	}

	for _, ui := range users {
		u, err := NewUser(ui)
		if err != nil {
			return Result{}, fmt.Errorf("%s: user %s: %w", name, ui.ID, err)
		}
		if err := s.PutUser(u); err != nil {
			return Result{}, fmt.Errorf("save user %s from %s: %w", ui.ID, name, err)
		}
	}

	if err := s.SetImportedFileHash(name, hash); err != nil {
		return Result{}, fmt.Errorf("record import for %s: %w", name, err)
	}
	slog.Info("imported users", "path", name, "count", len(users))
	return Result{Status: StatusImported, Count: len(users)}, nil
}

// NewUser validates an import record and hashes its password, if any.
func NewUser(ui model.UserImport) (model.User, error) {
	if err := validate.Struct(ui); err != nil {
		return model.User{}, err
	}
	u := model.User{
		ID:    ui.ID,
		Name:  ui.Name,
		Email: ui.Email,
		Role:  ui.Role,
	}
	if ui.Role == model.UserRoleStudent {
		u.GradeLevel = ui.GradeLevel
	}
	if ui.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(ui.Password), bcrypt.DefaultCost)
		if err != nil {
			return model.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}
	return u, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
