package grading

import (
	"context"
	"strings"
	"time"

	"github.com/pavelanni/examgrader/internal/llm/prompts"
	"github.com/pavelanni/examgrader/internal/model"
)

const (
	// Per submission, only the first few strengths and weaknesses count towards a subject.
	phrasesPerSubmission = 2
	// A subject keeps at most this many distinct strengths and weaknesses.
	phrasesPerSubject = 3

	assessmentErrorText = "Error generating monthly assessment. Please review manually."
	progressErrorText   = "Error generating overall progress evaluation."
	noAssessmentText    = "No monthly assessment provided."
	noProgressText      = "No overall progress evaluation provided."
)

// MonthEntry pairs a submission with the exam it was written for.
type MonthEntry struct {
	Submission model.Submission
	Exam       model.Exam
}

// MonthAggregate is the numeric part of a monthly report.
type MonthAggregate struct {
	Subjects      []model.SubjectProgress
	SubmissionIDs []string
	TotalScore    int
	TotalPossible int
	Percentage    int
}

// MonthNarrative is the model-written part of a monthly report.
type MonthNarrative struct {
	Assessment      string
	SubjectAnalysis map[string]string
	Progress        string
	Actions         []string
}

// MonthWindow returns the first and last instant of a calendar month in loc.
func MonthWindow(year, month int, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// PreviousMonth returns the month before (year, month), rolling January back
// to December of the previous year.
func PreviousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}

// Improvement returns current minus the previous report's overall
// percentage, or nil when there is no previous report.
func Improvement(current int, previous *model.MonthlyReport) *int {
	if previous == nil {
		return nil
	}
	d := current - previous.OverallPercentage
	return &d
}

type subjectAcc struct {
	progress   model.SubjectProgress
	score      int
	possible   int
	strengths  []string
	weaknesses []string
}

// AggregateMonth groups entries by subject in first-seen order and computes
// per-subject and overall percentages.
func AggregateMonth(entries []MonthEntry) MonthAggregate {
	var agg MonthAggregate
	order := []string{}
	accs := map[string]*subjectAcc{}

	for _, e := range entries {
		sub := e.Submission
		subject := e.Exam.Subject
		acc, ok := accs[subject]
		if !ok {
			acc = &subjectAcc{progress: model.SubjectProgress{Subject: subject}}
			accs[subject] = acc
			order = append(order, subject)
		}
		acc.progress.ExamCount++
		acc.score += sub.TotalMarks
		acc.possible += sub.TotalPossibleMarks
		acc.strengths = append(acc.strengths, head(sub.OverallFeedback.StrengthAreas, phrasesPerSubmission)...)
		acc.weaknesses = append(acc.weaknesses, head(sub.OverallFeedback.ImprovementAreas, phrasesPerSubmission)...)

		agg.TotalScore += sub.TotalMarks
		agg.TotalPossible += sub.TotalPossibleMarks
		agg.SubmissionIDs = append(agg.SubmissionIDs, sub.ID)
	}

	agg.Subjects = make([]model.SubjectProgress, 0, len(order))
	for _, name := range order {
		acc := accs[name]
		p := acc.progress
		p.AverageScore = model.Percent(acc.score, acc.possible)
		p.Strengths = head(dedupe(acc.strengths), phrasesPerSubject)
		p.Weaknesses = head(dedupe(acc.weaknesses), phrasesPerSubject)
		agg.Subjects = append(agg.Subjects, p)
	}
	agg.Percentage = model.Percent(agg.TotalScore, agg.TotalPossible)
	return agg
}

// NarrateMonth asks the model for the written parts of a monthly report.
func (g *Grader) NarrateMonth(ctx context.Context, student model.User, monthLabel string, entries []MonthEntry, agg MonthAggregate, improvement *int) MonthNarrative {
	results := make([]prompts.ExamResult, 0, len(entries))
	for _, e := range entries {
		sub := e.Submission
		results = append(results, prompts.ExamResult{
			ExamTitle:     e.Exam.Title,
			Subject:       e.Exam.Subject,
			Date:          sub.SubmissionTime.Format(time.DateOnly),
			Marks:         sub.TotalMarks,
			TotalPossible: sub.TotalPossibleMarks,
			Percentage:    model.Percent(sub.TotalMarks, sub.TotalPossibleMarks),
			Strengths:     sub.OverallFeedback.StrengthAreas,
			Weaknesses:    sub.OverallFeedback.ImprovementAreas,
		})
	}
	subjects := make([]string, 0, len(agg.Subjects))
	for _, s := range agg.Subjects {
		subjects = append(subjects, s.Subject)
	}

	prompt, err := prompts.MonthlyReport(prompts.MonthlyData{
		StudentName:       student.Name,
		GradeLevel:        student.GradeLevel,
		MonthLabel:        monthLabel,
		Results:           results,
		Subjects:          subjects,
		OverallPercentage: agg.Percentage,
		Improvement:       improvement,
	})
	if err == nil {
		var raw string
		raw, err = g.llm.Complete(ctx, prompt)
		if err == nil {
			r := ParseReply(raw, LabelMonthlyAssessment, LabelSubjectAnalysis, LabelOverallProgress, LabelRecommendedActions)
			return MonthNarrative{
				Assessment:      r.Text(LabelMonthlyAssessment, noAssessmentText),
				SubjectAnalysis: parseSubjectAnalysis(r.List(LabelSubjectAnalysis)),
				Progress:        r.Text(LabelOverallProgress, noProgressText),
				Actions:         r.List(LabelRecommendedActions),
			}
		}
	}

	g.logger.Warn("monthly narrative failed", "student_id", student.ID, "month", monthLabel, "error", err)
	return MonthNarrative{
		Assessment:      assessmentErrorText,
		SubjectAnalysis: map[string]string{},
		Progress:        progressErrorText,
		Actions:         []string{},
	}
}

// ApplyAnalysis copies each subject's analysis from the narrative, matching
// subject names case-insensitively. Subjects the model skipped get a placeholder.
func ApplyAnalysis(subjects []model.SubjectProgress, analysis map[string]string) {
	folded := make(map[string]string, len(analysis))
	for k, v := range analysis {
		folded[strings.ToLower(k)] = v
	}
	for i := range subjects {
		if a, ok := folded[strings.ToLower(subjects[i].Subject)]; ok {
			subjects[i].Analysis = a
			continue
		}
		subjects[i].Analysis = "No specific analysis available for " + subjects[i].Subject
	}
}

// parseSubjectAnalysis reads "Subject: analysis" items.
func parseSubjectAnalysis(items []string) map[string]string {
	out := make(map[string]string, len(items))
	for _, it := range items {
		subject, analysis, ok := strings.Cut(it, ":")
		if !ok {
			continue
		}
		subject = strings.Trim(strings.TrimSpace(subject), "[]*")
		analysis = strings.TrimSpace(analysis)
		if subject != "" && analysis != "" {
			out[subject] = analysis
		}
	}
	return out
}

// dedupe drops repeated phrases, keeping the first occurrence of each.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

func head(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	return append([]string{}, items...)
}
