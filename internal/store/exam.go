package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

const examColumns = `id, title, subject, grade_level, time_limit, questions_json, instructions_json, created_by, created_at`

// PutExam inserts an exam or replaces the definition stored under its ID.
func (s *Store) PutExam(e model.Exam) error {
	questions, err := marshalJSON(e.Questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	if e.Instructions == nil {
		e.Instructions = []string{}
	}
	instructions, err := marshalJSON(e.Instructions)
	if err != nil {
		return fmt.Errorf("marshal instructions: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err = s.db.Exec(
		`INSERT INTO exams (`+examColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			subject = excluded.subject,
			grade_level = excluded.grade_level,
			time_limit = excluded.time_limit,
			questions_json = excluded.questions_json,
			instructions_json = excluded.instructions_json,
			created_by = excluded.created_by`,
		e.ID, e.Title, e.Subject, e.GradeLevel, e.TimeLimit, questions, instructions, e.CreatedBy, e.CreatedAt.UTC(),
	)
	return err
}

func scanExam(row rowScanner) (*model.Exam, error) {
	var e model.Exam
	var questions, instructions string
	err := row.Scan(&e.ID, &e.Title, &e.Subject, &e.GradeLevel, &e.TimeLimit,
		&questions, &instructions, &e.CreatedBy, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(questions, &e.Questions); err != nil {
		return nil, fmt.Errorf("exam %s questions: %w", e.ID, err)
	}
	if err := unmarshalJSON(instructions, &e.Instructions); err != nil {
		return nil, fmt.Errorf("exam %s instructions: %w", e.ID, err)
	}
	return &e, nil
}

// GetExam returns an exam by ID, or nil if there is none.
func (s *Store) GetExam(id string) (*model.Exam, error) {
	return scanExam(s.db.QueryRow(`SELECT `+examColumns+` FROM exams WHERE id = ?`, id))
}

// ListExams returns exams, optionally filtered by subject and grade level.
// Empty filters match everything.
func (s *Store) ListExams(subject, grade string) ([]model.Exam, error) {
	rows, err := s.db.Query(
		`SELECT `+examColumns+` FROM exams
		 WHERE (? = '' OR subject = ?) AND (? = '' OR grade_level = ?)
		 ORDER BY subject, title, id`,
		subject, subject, grade, grade,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	exams := []model.Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ExamCount returns the total number of exams.
func (s *Store) ExamCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM exams`).Scan(&count)
	return count, err
}
