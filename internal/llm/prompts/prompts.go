package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/examgrader/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// maxAnswerRunes caps the student text embedded into a prompt.
const maxAnswerRunes = 10000

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
	// Lines that start with a reply label could be taken for the model's own output.
	labelLineRegex = regexp.MustCompile(`(?m)^\s*([A-Z_]{4,}):`)
)

// Kind names one prompt template.
type Kind string

const (
	KindSingleWord    Kind = "single_word"
	KindShortAnswer   Kind = "short_answer"
	KindLongAnswer    Kind = "long_answer"
	KindExamSummary   Kind = "exam_summary"
	KindMonthlyReport Kind = "monthly_report"
)

var kinds = []Kind{KindSingleWord, KindShortAnswer, KindLongAnswer, KindExamSummary, KindMonthlyReport}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[Kind]*template.Template
)

var funcs = template.FuncMap{
	"join": strings.Join,
	"signed": func(v *int) string {
		if v == nil {
			return ""
		}
		if *v > 0 {
			return "+" + strconv.Itoa(*v)
		}
		return strconv.Itoa(*v)
	},
}

// SingleWordData holds template data for single-word grading prompts.
type SingleWordData struct {
	Reference string
	Answer    string
}

// ShortAnswerData holds template data for short-answer grading prompts.
type ShortAnswerData struct {
	Question string
	Answer   string
	Rubric   model.ShortRubric
}

// LongAnswerData holds template data for long-answer grading prompts.
type LongAnswerData struct {
	Question string
	Answer   string
	Rubric   model.LongRubric
}

// SummaryItem is one graded question embedded in the exam summary prompt.
type SummaryItem struct {
	Index    int
	Text     string
	Type     model.QuestionType
	Marks    int
	MaxMarks int
	Answer   string
	Feedback string
}

// SummaryData holds template data for the exam summary prompt.
type SummaryData struct {
	StudentName   string
	ExamTitle     string
	TotalMarks    int
	TotalPossible int
	Percentage    int
	Items         []SummaryItem
}

// ExamResult is one submission embedded in the monthly report prompt.
type ExamResult struct {
	ExamTitle     string
	Subject       string
	Date          string
	Marks         int
	TotalPossible int
	Percentage    int
	Strengths     []string
	Weaknesses    []string
}

// MonthlyData holds template data for the monthly report prompt.
type MonthlyData struct {
	StudentName       string
	GradeLevel        string
	MonthLabel        string
	Results           []ExamResult
	Subjects          []string
	OverallPercentage int
	Improvement       *int
}

// load parses the embedded templates once.
func load() error {
	loadOnce.Do(func() {
		templates = make(map[Kind]*template.Template, len(kinds))
		for _, k := range kinds {
			name := "templates/" + string(k) + ".tmpl"
			content, err := templateFS.ReadFile(name)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + name + ": " + err.Error())
				return
			}
			tmpl, err := template.New(string(k)).Funcs(funcs).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + name + ": " + err.Error())
				return
			}
			templates[k] = tmpl
		}
	})
	return loadErr
}

func execute(k Kind, data any) (string, error) {
	if err := load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := templates[k]
	if !ok {
		return "", errors.New("unknown prompt kind: " + string(k))
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// SingleWord builds the prompt grading a single-word answer against its reference.
func SingleWord(reference, answer string) (string, error) {
	return execute(KindSingleWord, SingleWordData{
		Reference: strings.TrimSpace(reference),
		Answer:    SanitizeAnswer(answer),
	})
}

// ShortAnswer builds the three-criterion short-answer prompt.
func ShortAnswer(question, answer string, rubric model.ShortRubric) (string, error) {
	return execute(KindShortAnswer, ShortAnswerData{
		Question: question,
		Answer:   SanitizeAnswer(answer),
		Rubric:   rubric,
	})
}

// LongAnswer builds the four-criterion essay prompt.
func LongAnswer(question, answer string, rubric model.LongRubric) (string, error) {
	return execute(KindLongAnswer, LongAnswerData{
		Question: question,
		Answer:   SanitizeAnswer(answer),
		Rubric:   rubric,
	})
}

// ExamSummary builds the consolidated exam summary prompt. Answers in
// data.Items are sanitized here.
func ExamSummary(data SummaryData) (string, error) {
	items := make([]SummaryItem, len(data.Items))
	for i, it := range data.Items {
		it.Answer = SanitizeAnswer(it.Answer)
		items[i] = it
	}
	data.Items = items
	return execute(KindExamSummary, data)
}

// MonthlyReport builds the monthly progress narrative prompt.
func MonthlyReport(data MonthlyData) (string, error) {
	return execute(KindMonthlyReport, data)
}

// SanitizeAnswer strips prompt-structure tags and label lines from student
// text and truncates very long answers.
func SanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = labelLineRegex.ReplaceAllString(answer, "$1 -")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:maxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
