package grading

import (
	"context"

	"github.com/pavelanni/examgrader/internal/llm/prompts"
	"github.com/pavelanni/examgrader/internal/model"
)

const (
	// SummaryErrorFeedback is the overall feedback used when the summary call fails.
	SummaryErrorFeedback = "Error generating summary. Please review manually."
	noOverallFeedback    = "No overall feedback provided."
)

// ExamSummary is the aggregated result of a graded exam.
type ExamSummary struct {
	OverallFeedback  string
	StrengthAreas    []string
	ImprovementAreas []string
	TotalMarks       int
	TotalPossible    int
	Percentage       int
}

// Totals sums awarded marks over answers; possible is the exam's total marks.
func Totals(exam model.Exam, answers []model.GradedAnswer) (total, possible int) {
	for _, a := range answers {
		total += a.Marks
	}
	return total, exam.TotalMarks()
}

// SummarizeExam computes the exam totals and asks the model for an overall
// assessment. The totals are always filled in, even when the call fails.
func (g *Grader) SummarizeExam(ctx context.Context, studentName string, exam model.Exam, answers []model.GradedAnswer) ExamSummary {
	total, possible := Totals(exam, answers)
	s := ExamSummary{
		TotalMarks:       total,
		TotalPossible:    possible,
		Percentage:       model.Percent(total, possible),
		StrengthAreas:    []string{},
		ImprovementAreas: []string{},
	}

	byID := make(map[string]model.Question, len(exam.Questions))
	for _, q := range exam.Questions {
		byID[q.ID] = q
	}
	items := make([]prompts.SummaryItem, 0, len(answers))
	for i, a := range answers {
		q := byID[a.QuestionID]
		items = append(items, prompts.SummaryItem{
			Index:    i + 1,
			Text:     q.Text,
			Type:     q.Type,
			Marks:    a.Marks,
			MaxMarks: q.Marks,
			Answer:   a.Answer,
			Feedback: a.Feedback,
		})
	}

	prompt, err := prompts.ExamSummary(prompts.SummaryData{
		StudentName:   studentName,
		ExamTitle:     exam.Title,
		TotalMarks:    total,
		TotalPossible: possible,
		Percentage:    s.Percentage,
		Items:         items,
	})
	if err == nil {
		var raw string
		raw, err = g.llm.Complete(ctx, prompt)
		if err == nil {
			r := ParseReply(raw, LabelOverallFeedback, LabelStrengthAreas, LabelImprovementAreas)
			s.OverallFeedback = r.Text(LabelOverallFeedback, noOverallFeedback)
			s.StrengthAreas = r.List(LabelStrengthAreas)
			s.ImprovementAreas = r.List(LabelImprovementAreas)
			return s
		}
	}

	g.logger.Warn("exam summary failed", "exam_id", exam.ID, "error", err)
	s.OverallFeedback = SummaryErrorFeedback
	return s
}
