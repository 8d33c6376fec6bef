package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/store"
)

// Store is the persistence the grading service needs.
type Store interface {
	GetExam(id string) (*model.Exam, error)
	GetUserByID(id string) (*model.User, error)
	GetSubmissionFor(studentID, examID string) (*model.Submission, error)
	CreateSubmission(sub model.Submission) error
	ListSubmissionsBetween(studentID string, from, to time.Time) ([]model.Submission, error)
	GetMonthlyReportFor(studentID string, month, year int) (*model.MonthlyReport, error)
	CreateMonthlyReport(r model.MonthlyReport) error
}

// GradeRequest is the body of a grade-submission call.
type GradeRequest struct {
	ExamID    string            `json:"examId" validate:"required"`
	StudentID string            `json:"studentId" validate:"required"`
	Answers   map[string]string `json:"answers" validate:"required"`
	StartTime string            `json:"startTime" validate:"required"`
}

// GradeResponse is returned after a submission has been graded and stored.
type GradeResponse struct {
	Success            bool     `json:"success"`
	SubmissionID       string   `json:"studentAnswerId"`
	TotalMarks         int      `json:"totalMarks"`
	TotalPossibleMarks int      `json:"totalPossibleMarks"`
	Percentage         int      `json:"percentage"`
	OverallFeedback    string   `json:"overallFeedback"`
	StrengthAreas      []string `json:"strengthAreas"`
	ImprovementAreas   []string `json:"improvementAreas"`
}

// MonthlyRequest is the body of a generate-monthly-report call.
type MonthlyRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	Month     int    `json:"month" validate:"required,min=1,max=12"`
	Year      int    `json:"year" validate:"required,min=1970,max=9999"`
}

// MonthlyResponse is returned after a monthly report has been generated.
type MonthlyResponse struct {
	Success               bool                    `json:"success"`
	ReportID              string                  `json:"reportId"`
	OverallPercentage     int                     `json:"overallPercentage"`
	MonthlyAssessment     string                  `json:"monthlyAssessment"`
	ProgressEvaluation    string                  `json:"progressEvaluation"`
	RecommendedActions    []string                `json:"recommendedActions"`
	ImprovementPercentage *int                    `json:"improvementPercentage,omitempty"`
	SubjectProgress       []model.SubjectProgress `json:"subjectProgress"`
}

// Service validates requests, runs the grader and persists the results.
type Service struct {
	store    Store
	grader   *Grader
	loc      *time.Location
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a grading service.
func NewService(s Store, g *Grader, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		grader:   g,
		loc:      loc,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// GradeSubmission grades every question of the exam in order, summarizes the
// result and stores it as the student's only submission for that exam.
func (s *Service) GradeSubmission(ctx context.Context, req GradeRequest) (*GradeResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingFields, err)
	}
	startTime, err := time.Parse(time.RFC3339Nano, req.StartTime)
	if err != nil {
		return nil, ErrInvalidStartTime
	}

	exam, err := s.store.GetExam(req.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam == nil {
		return nil, ErrExamNotFound
	}

	student, err := s.store.GetUserByID(req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if !student.IsStudent() {
		return nil, ErrStudentNotFound
	}

	existing, err := s.store.GetSubmissionFor(student.ID, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing submission: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadySubmitted
	}

	// Reject the whole submission before spending any model calls on it.
	if err := ValidateExam(*exam); err != nil {
		return nil, err
	}

	answers := make([]model.GradedAnswer, 0, len(exam.Questions))
	for _, q := range exam.Questions {
		text := req.Answers[q.ID]
		res, err := s.grader.GradeQuestion(ctx, q, text)
		if err != nil {
			return nil, err
		}
		answers = append(answers, model.GradedAnswer{
			QuestionID:     q.ID,
			Answer:         text,
			Marks:          res.Marks,
			PossibleMarks:  q.Marks,
			Feedback:       res.Feedback,
			Graded:         true,
			GradingDetails: res.Details,
		})
	}

	summary := s.grader.SummarizeExam(ctx, student.Name, *exam, answers)

	sub := model.Submission{
		ID:                 uuid.NewString(),
		StudentID:          student.ID,
		ExamID:             exam.ID,
		Answers:            answers,
		StartTime:          startTime,
		SubmissionTime:     s.now(),
		TotalMarks:         summary.TotalMarks,
		TotalPossibleMarks: summary.TotalPossible,
		Feedback:           summary.OverallFeedback,
		OverallFeedback: model.OverallFeedback{
			StrengthAreas:    summary.StrengthAreas,
			ImprovementAreas: summary.ImprovementAreas,
		},
	}
	if err := s.store.CreateSubmission(sub); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("save submission: %w", err)
	}

	s.logger.Info("graded submission",
		"submission_id", sub.ID,
		"exam_id", exam.ID,
		"student_id", student.ID,
		"total", sub.TotalMarks,
		"possible", sub.TotalPossibleMarks,
	)

	return &GradeResponse{
		Success:            true,
		SubmissionID:       sub.ID,
		TotalMarks:         summary.TotalMarks,
		TotalPossibleMarks: summary.TotalPossible,
		Percentage:         summary.Percentage,
		OverallFeedback:    summary.OverallFeedback,
		StrengthAreas:      summary.StrengthAreas,
		ImprovementAreas:   summary.ImprovementAreas,
	}, nil
}

// GenerateMonthlyReport aggregates a student's submissions for one calendar
// month and stores the report. A report is generated at most once.
func (s *Service) GenerateMonthlyReport(ctx context.Context, req MonthlyRequest) (*MonthlyResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingFields, err)
	}

	student, err := s.store.GetUserByID(req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if !student.IsStudent() {
		return nil, ErrStudentNotFound
	}

	existing, err := s.store.GetMonthlyReportFor(student.ID, req.Month, req.Year)
	if err != nil {
		return nil, fmt.Errorf("check existing report: %w", err)
	}
	if existing != nil {
		return nil, &ReportExistsError{ReportID: existing.ID}
	}

	from, to := MonthWindow(req.Year, req.Month, s.loc)
	subs, err := s.store.ListSubmissionsBetween(student.ID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	if len(subs) == 0 {
		return nil, ErrNoResults
	}

	entries, err := s.monthEntries(subs)
	if err != nil {
		return nil, err
	}

	prevYear, prevMonth := PreviousMonth(req.Year, req.Month)
	previous, err := s.store.GetMonthlyReportFor(student.ID, prevMonth, prevYear)
	if err != nil {
		return nil, fmt.Errorf("get previous report: %w", err)
	}

	agg := AggregateMonth(entries)
	improvement := Improvement(agg.Percentage, previous)
	monthLabel := from.Format("January 2006")
	narrative := s.grader.NarrateMonth(ctx, *student, monthLabel, entries, agg, improvement)
	ApplyAnalysis(agg.Subjects, narrative.SubjectAnalysis)

	report := model.MonthlyReport{
		ID:                 uuid.NewString(),
		StudentID:          student.ID,
		Month:              req.Month,
		Year:               req.Year,
		ExamResults:        agg.SubmissionIDs,
		SubjectProgress:    agg.Subjects,
		OverallScore:       agg.TotalScore,
		OverallPercentage:  agg.Percentage,
		MonthlyAssessment:  narrative.Assessment,
		ProgressEvaluation: narrative.Progress,
		RecommendedActions: narrative.Actions,
		Improvement:        improvement,
		CreatedAt:          s.now(),
	}
	if err := s.store.CreateMonthlyReport(report); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			winner, getErr := s.store.GetMonthlyReportFor(student.ID, req.Month, req.Year)
			if getErr == nil && winner != nil {
				return nil, &ReportExistsError{ReportID: winner.ID}
			}
			return nil, ErrReportExists
		}
		return nil, fmt.Errorf("save monthly report: %w", err)
	}

	s.logger.Info("generated monthly report",
		"report_id", report.ID,
		"student_id", student.ID,
		"month", req.Month,
		"year", req.Year,
		"submissions", len(subs),
		"percentage", report.OverallPercentage,
	)

	return &MonthlyResponse{
		Success:               true,
		ReportID:              report.ID,
		OverallPercentage:     report.OverallPercentage,
		MonthlyAssessment:     report.MonthlyAssessment,
		ProgressEvaluation:    report.ProgressEvaluation,
		RecommendedActions:    report.RecommendedActions,
		ImprovementPercentage: improvement,
		SubjectProgress:       report.SubjectProgress,
	}, nil
}

// monthEntries loads the exam of every submission, each exam once.
func (s *Service) monthEntries(subs []model.Submission) ([]MonthEntry, error) {
	exams := map[string]model.Exam{}
	entries := make([]MonthEntry, 0, len(subs))
	for _, sub := range subs {
		exam, ok := exams[sub.ExamID]
		if !ok {
			e, err := s.store.GetExam(sub.ExamID)
			if err != nil {
				return nil, fmt.Errorf("get exam %s: %w", sub.ExamID, err)
			}
			if e == nil {
				s.logger.Warn("submission references a missing exam", "submission_id", sub.ID, "exam_id", sub.ExamID)
				e = &model.Exam{ID: sub.ExamID, Title: sub.ExamID, Subject: "Unknown"}
			}
			exam = *e
			exams[sub.ExamID] = exam
		}
		sub.SubmissionTime = sub.SubmissionTime.In(s.loc)
		entries = append(entries, MonthEntry{Submission: sub, Exam: exam})
	}
	return entries, nil
}
