package grading

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/pavelanni/examgrader/internal/llm/prompts"
	"github.com/pavelanni/examgrader/internal/model"
)

// GradingErrorFeedback replaces the feedback of an answer whose grading call failed.
const GradingErrorFeedback = "Error during grading. Please review manually."

// Completer is the text-in/text-out boundary to the hosted language model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Grader turns questions and answers into prompts, calls the model and
// reads scores back out of its replies.
type Grader struct {
	llm    Completer
	short  model.ShortRubric
	long   model.LongRubric
	logger *slog.Logger
}

// NewGrader creates a Grader. Zero rubrics fall back to the default caps.
func NewGrader(c Completer, short model.ShortRubric, long model.LongRubric, logger *slog.Logger) *Grader {
	if short == (model.ShortRubric{}) {
		short = model.DefaultShortRubric()
	}
	if long == (model.LongRubric{}) {
		long = model.DefaultLongRubric()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Grader{llm: c, short: short, long: long, logger: logger}
}

// QuestionResult is the outcome of grading one answer.
type QuestionResult struct {
	Marks    int
	Feedback string
	Details  map[string]int
}

// ValidateQuestion reports whether a question can be graded.
func ValidateQuestion(q model.Question) error {
	if !q.Type.Valid() {
		return fmt.Errorf("question %q: %w %q", q.ID, ErrUnsupportedQuestionType, q.Type)
	}
	if q.Type == model.QuestionSingleWord && q.CorrectAnswer == "" {
		return fmt.Errorf("question %q: %w", q.ID, ErrMissingReference)
	}
	return nil
}

// ValidateExam checks every question of an exam.
func ValidateExam(e model.Exam) error {
	for _, q := range e.Questions {
		if err := ValidateQuestion(q); err != nil {
			return err
		}
	}
	return nil
}

// GradeQuestion grades one answer. It only fails for questions that cannot
// be graded at all; a failed or garbled model reply yields zero marks.
func (g *Grader) GradeQuestion(ctx context.Context, q model.Question, answer string) (QuestionResult, error) {
	if err := ValidateQuestion(q); err != nil {
		return QuestionResult{}, err
	}

	var res QuestionResult
	switch q.Type {
	case model.QuestionSingleWord:
		res = g.gradeSingleWord(ctx, q, answer)
	case model.QuestionShortAnswer:
		res = g.gradeShortAnswer(ctx, q, answer)
	case model.QuestionLongAnswer:
		res = g.gradeLongAnswer(ctx, q, answer)
	}
	res.Marks = clamp(res.Marks, 0, q.Marks)
	return res, nil
}

func (g *Grader) gradeSingleWord(ctx context.Context, q model.Question, answer string) QuestionResult {
	prompt, err := prompts.SingleWord(q.CorrectAnswer, answer)
	if err != nil {
		return g.failed(q, err, "marks")
	}
	raw, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return g.failed(q, err, "marks")
	}

	r := ParseReply(raw, LabelMarks, LabelFeedback)
	marks := r.Int(LabelMarks)
	return QuestionResult{
		Marks:    marks,
		Feedback: r.Text(LabelFeedback, NoFeedback),
		Details:  map[string]int{"marks": marks},
	}
}

func (g *Grader) gradeShortAnswer(ctx context.Context, q model.Question, answer string) QuestionResult {
	prompt, err := prompts.ShortAnswer(q.Text, answer, g.short)
	if err != nil {
		return g.failed(q, err, "accuracy", "clarity", "completeness")
	}
	raw, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return g.failed(q, err, "accuracy", "clarity", "completeness")
	}

	r := ParseReply(raw, LabelAccuracy, LabelClarity, LabelCompleteness, LabelFeedback)
	details := map[string]int{
		"accuracy":     r.Int(LabelAccuracy),
		"clarity":      r.Int(LabelClarity),
		"completeness": r.Int(LabelCompleteness),
	}
	total := sumDetails(details, "accuracy", "clarity", "completeness")
	details["total"] = total
	return QuestionResult{
		Marks:    total,
		Feedback: r.Text(LabelFeedback, NoFeedback),
		Details:  details,
	}
}

func (g *Grader) gradeLongAnswer(ctx context.Context, q model.Question, answer string) QuestionResult {
	keys := []string{"contentAccuracy", "clarityStructure", "grammarLanguage", "depthExplanation"}
	prompt, err := prompts.LongAnswer(q.Text, answer, g.long)
	if err != nil {
		return g.failed(q, err, keys...)
	}
	raw, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return g.failed(q, err, keys...)
	}

	r := ParseReply(raw, LabelContentAccuracy, LabelClarityStructure, LabelGrammarLanguage, LabelDepthExplanation, LabelFeedback)
	details := map[string]int{
		"contentAccuracy":  r.Int(LabelContentAccuracy),
		"clarityStructure": r.Int(LabelClarityStructure),
		"grammarLanguage":  r.Int(LabelGrammarLanguage),
		"depthExplanation": r.Int(LabelDepthExplanation),
	}
	total := sumDetails(details, keys...)
	details["total"] = total
	return QuestionResult{
		Marks:    total,
		Feedback: r.Text(LabelFeedback, NoFeedback),
		Details:  details,
	}
}

// failed builds the zero-mark result used when grading could not complete.
func (g *Grader) failed(q model.Question, err error, keys ...string) QuestionResult {
	g.logger.Warn("grading failed, awarding zero marks",
		"question_id", q.ID,
		"type", q.Type,
		"error", err,
	)
	details := make(map[string]int, len(keys)+1)
	for _, k := range keys {
		details[k] = 0
	}
	if len(keys) > 1 {
		details["total"] = 0
	}
	return QuestionResult{Marks: 0, Feedback: GradingErrorFeedback, Details: details}
}

// sumDetails adds the non-negative sub-scores under keys, saturating at
// math.MaxInt. Details keep the scores as the model returned them; only the
// total is clamped to the question's marks.
func sumDetails(details map[string]int, keys ...string) int {
	total := 0
	for _, k := range keys {
		v := details[k]
		if total > math.MaxInt-v {
			return math.MaxInt
		}
		total += v
	}
	return total
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
