package store

import (
	"fmt"

	"github.com/pavelanni/examgrader/internal/model"
)

// ExportAllSubmissions builds export-ready results from all submissions.
func (s *Store) ExportAllSubmissions() ([]model.StudentResult, error) {
	subs, err := s.ListSubmissions()
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	users := map[string]*model.User{}
	exams := map[string]*model.Exam{}

	results := []model.StudentResult{}
	for _, sub := range subs {
		user, ok := users[sub.StudentID]
		if !ok {
			if user, err = s.GetUserByID(sub.StudentID); err != nil {
				return nil, fmt.Errorf("get user %s: %w", sub.StudentID, err)
			}
			users[sub.StudentID] = user
		}
		exam, ok := exams[sub.ExamID]
		if !ok {
			if exam, err = s.GetExam(sub.ExamID); err != nil {
				return nil, fmt.Errorf("get exam %s: %w", sub.ExamID, err)
			}
			exams[sub.ExamID] = exam
		}

		res := model.StudentResult{
			SubmissionID:   sub.ID,
			StudentID:      sub.StudentID,
			ExamID:         sub.ExamID,
			StartTime:      sub.StartTime,
			SubmissionTime: sub.SubmissionTime,
			TotalMarks:     sub.TotalMarks,
			TotalPossible:  sub.TotalPossibleMarks,
			Percentage:     model.Percent(sub.TotalMarks, sub.TotalPossibleMarks),
		}
		if user != nil {
			res.StudentName = user.Name
		}

		questions := map[string]model.Question{}
		if exam != nil {
			res.ExamTitle = exam.Title
			res.Subject = exam.Subject
			for _, q := range exam.Questions {
				questions[q.ID] = q
			}
		}
		for _, a := range sub.Answers {
			q := questions[a.QuestionID]
			res.Questions = append(res.Questions, model.QuestionResult{
				QuestionID: a.QuestionID,
				Type:       q.Type,
				Text:       q.Text,
				Answer:     a.Answer,
				Marks:      a.Marks,
				MaxMarks:   a.PossibleMarks,
				Feedback:   a.Feedback,
			})
		}
		results = append(results, res)
	}

	return results, nil
}
