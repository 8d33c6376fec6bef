package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

const submissionColumns = `id, student_id, exam_id, answers_json, start_time, submitted_at,
	total_marks, total_possible, feedback, strengths_json, weaknesses_json`

// CreateSubmission stores a graded submission. It returns ErrDuplicate when
// the student already has a submission for the exam.
func (s *Store) CreateSubmission(sub model.Submission) error {
	answers, err := marshalJSON(sub.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	strengths, err := marshalJSON(nonNil(sub.OverallFeedback.StrengthAreas))
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	weaknesses, err := marshalJSON(nonNil(sub.OverallFeedback.ImprovementAreas))
	if err != nil {
		return fmt.Errorf("marshal weaknesses: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO submissions (`+submissionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.StudentID, sub.ExamID, answers,
		sub.StartTime.UTC(), sub.SubmissionTime.UTC(),
		sub.TotalMarks, sub.TotalPossibleMarks, sub.Feedback, strengths, weaknesses,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	var sub model.Submission
	var answers, strengths, weaknesses string
	err := row.Scan(&sub.ID, &sub.StudentID, &sub.ExamID, &answers, &sub.StartTime, &sub.SubmissionTime,
		&sub.TotalMarks, &sub.TotalPossibleMarks, &sub.Feedback, &strengths, &weaknesses)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(answers, &sub.Answers); err != nil {
		return nil, fmt.Errorf("submission %s answers: %w", sub.ID, err)
	}
	if err := unmarshalJSON(strengths, &sub.OverallFeedback.StrengthAreas); err != nil {
		return nil, fmt.Errorf("submission %s strengths: %w", sub.ID, err)
	}
	if err := unmarshalJSON(weaknesses, &sub.OverallFeedback.ImprovementAreas); err != nil {
		return nil, fmt.Errorf("submission %s weaknesses: %w", sub.ID, err)
	}
	return &sub, nil
}

func (s *Store) querySubmissions(query string, args ...any) ([]model.Submission, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	subs := []model.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// GetSubmission returns a submission by ID, or nil if there is none.
func (s *Store) GetSubmission(id string) (*model.Submission, error) {
	return scanSubmission(s.db.QueryRow(`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
}

// GetSubmissionFor returns the student's submission for an exam, or nil.
func (s *Store) GetSubmissionFor(studentID, examID string) (*model.Submission, error) {
	return scanSubmission(s.db.QueryRow(
		`SELECT `+submissionColumns+` FROM submissions WHERE student_id = ? AND exam_id = ?`,
		studentID, examID,
	))
}

// ListSubmissionsByStudent returns a student's submissions, oldest first.
func (s *Store) ListSubmissionsByStudent(studentID string) ([]model.Submission, error) {
	return s.querySubmissions(
		`SELECT `+submissionColumns+` FROM submissions WHERE student_id = ? ORDER BY submitted_at, id`,
		studentID,
	)
}

// ListSubmissionsBetween returns a student's submissions whose submission
// time lies in [from, to], oldest first.
func (s *Store) ListSubmissionsBetween(studentID string, from, to time.Time) ([]model.Submission, error) {
	return s.querySubmissions(
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE student_id = ? AND submitted_at >= ? AND submitted_at <= ?
		 ORDER BY submitted_at, id`,
		studentID, from.UTC(), to.UTC(),
	)
}

// CountSubmissionsForExam returns how many submissions exist for an exam.
func (s *Store) CountSubmissionsForExam(examID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM submissions WHERE exam_id = ?`, examID).Scan(&n)
	return n, err
}

// ListSubmissions returns every submission, oldest first.
func (s *Store) ListSubmissions() ([]model.Submission, error) {
	return s.querySubmissions(`SELECT ` + submissionColumns + ` FROM submissions ORDER BY submitted_at, id`)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
