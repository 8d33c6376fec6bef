package store

import (
	"database/sql"
	"fmt"

	"github.com/pavelanni/examgrader/internal/model"
)

const reportColumns = `id, student_id, month, year, exam_results_json, subject_progress_json,
	overall_score, overall_percentage, monthly_assessment, progress_evaluation,
	recommended_actions_json, improvement, created_at`

// CreateMonthlyReport stores a monthly report. It returns ErrDuplicate when
// the student already has a report for that month.
func (s *Store) CreateMonthlyReport(r model.MonthlyReport) error {
	results, err := marshalJSON(nonNil(r.ExamResults))
	if err != nil {
		return fmt.Errorf("marshal exam results: %w", err)
	}
	if r.SubjectProgress == nil {
		r.SubjectProgress = []model.SubjectProgress{}
	}
	progress, err := marshalJSON(r.SubjectProgress)
	if err != nil {
		return fmt.Errorf("marshal subject progress: %w", err)
	}
	actions, err := marshalJSON(nonNil(r.RecommendedActions))
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO monthly_reports (`+reportColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StudentID, r.Month, r.Year, results, progress,
		r.OverallScore, r.OverallPercentage, r.MonthlyAssessment, r.ProgressEvaluation,
		actions, r.Improvement, r.CreatedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func scanReport(row rowScanner) (*model.MonthlyReport, error) {
	var r model.MonthlyReport
	var results, progress, actions string
	var improvement sql.NullInt64
	err := row.Scan(&r.ID, &r.StudentID, &r.Month, &r.Year, &results, &progress,
		&r.OverallScore, &r.OverallPercentage, &r.MonthlyAssessment, &r.ProgressEvaluation,
		&actions, &improvement, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if improvement.Valid {
		v := int(improvement.Int64)
		r.Improvement = &v
	}
	if err := unmarshalJSON(results, &r.ExamResults); err != nil {
		return nil, fmt.Errorf("report %s exam results: %w", r.ID, err)
	}
	if err := unmarshalJSON(progress, &r.SubjectProgress); err != nil {
		return nil, fmt.Errorf("report %s subject progress: %w", r.ID, err)
	}
	if err := unmarshalJSON(actions, &r.RecommendedActions); err != nil {
		return nil, fmt.Errorf("report %s actions: %w", r.ID, err)
	}
	return &r, nil
}

// GetMonthlyReport returns a report by ID, or nil if there is none.
func (s *Store) GetMonthlyReport(id string) (*model.MonthlyReport, error) {
	return scanReport(s.db.QueryRow(`SELECT `+reportColumns+` FROM monthly_reports WHERE id = ?`, id))
}

// GetMonthlyReportFor returns the student's report for a month, or nil.
func (s *Store) GetMonthlyReportFor(studentID string, month, year int) (*model.MonthlyReport, error) {
	return scanReport(s.db.QueryRow(
		`SELECT `+reportColumns+` FROM monthly_reports WHERE student_id = ? AND month = ? AND year = ?`,
		studentID, month, year,
	))
}
