package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/examgrader/internal/model"
)

const (
	resultsSheet = "Results"
	answersSheet = "Answers"
)

// WriteXLSX writes a workbook with one row per submission on the Results
// sheet and one row per answered question on the Answers sheet.
func WriteXLSX(w io.Writer, results []model.StudentResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(answersSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	header := []any{"Submission", "Student ID", "Student", "Exam ID", "Exam", "Subject",
		"Started", "Submitted", "Marks", "Possible", "Percentage"}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return err
	}
	answerHeader := []any{"Submission", "Student ID", "Question ID", "Type", "Question",
		"Answer", "Marks", "Max marks", "Feedback"}
	if err := f.SetSheetRow(answersSheet, "A1", &answerHeader); err != nil {
		return err
	}

	answerRow := 2
	for i, r := range results {
		row := []any{r.SubmissionID, r.StudentID, r.StudentName, r.ExamID, r.ExamTitle, r.Subject,
			r.StartTime.UTC().Format(time.RFC3339), r.SubmissionTime.UTC().Format(time.RFC3339),
			r.TotalMarks, r.TotalPossible, r.Percentage}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return fmt.Errorf("write result row %d: %w", i+2, err)
		}

		for _, q := range r.Questions {
			qrow := []any{r.SubmissionID, r.StudentID, q.QuestionID, string(q.Type), q.Text,
				q.Answer, q.Marks, q.MaxMarks, q.Feedback}
			cell, err := excelize.CoordinatesToCellName(1, answerRow)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(answersSheet, cell, &qrow); err != nil {
				return fmt.Errorf("write answer row %d: %w", answerRow, err)
			}
			answerRow++
		}
	}

	return f.Write(w)
}
