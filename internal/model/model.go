package model

import (
	"context"
	"math"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
)

// User represents a system user. GradeLevel is only set for students.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         UserRole  `json:"role"`
	GradeLevel   string    `json:"grade,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsStudent reports whether the user has the student role.
func (u *User) IsStudent() bool {
	return u != nil && u.Role == UserRoleStudent
}

// LoginSession binds a cookie token to a user until it expires.
type LoginSession struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// QuestionType selects the grading strategy for a question.
type QuestionType string

const (
	QuestionSingleWord  QuestionType = "single-word"
	QuestionShortAnswer QuestionType = "short-answer"
	QuestionLongAnswer  QuestionType = "long-answer"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionSingleWord, QuestionShortAnswer, QuestionLongAnswer:
		return true
	}
	return false
}

// Question is a single exam question.
type Question struct {
	ID            string       `json:"id" validate:"required"`
	Type          QuestionType `json:"type" validate:"required"`
	Text          string       `json:"text" validate:"required"`
	Marks         int          `json:"marks" validate:"min=1"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
}

// Exam is an ordered set of questions for one subject and grade.
type Exam struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Subject      string     `json:"subject"`
	GradeLevel   string     `json:"grade"`
	TimeLimit    int        `json:"timeLimit"`
	Questions    []Question `json:"questions"`
	Instructions []string   `json:"instructions"`
	CreatedBy    string     `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// TotalMarks returns the sum of the questions' maximum marks.
func (e Exam) TotalMarks() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Marks
	}
	return total
}

// GradedAnswer is the graded result for one question of a submission.
type GradedAnswer struct {
	QuestionID     string         `json:"questionId"`
	Answer         string         `json:"answer"`
	Marks          int            `json:"marks"`
	PossibleMarks  int            `json:"possibleMarks"`
	Feedback       string         `json:"feedback"`
	Graded         bool           `json:"graded"`
	GradingDetails map[string]int `json:"gradingDetails,omitempty"`
}

// OverallFeedback holds the strengths and weaknesses of a submission.
type OverallFeedback struct {
	StrengthAreas    []string `json:"strengthAreas"`
	ImprovementAreas []string `json:"improvementAreas"`
}

// Submission is one student's graded attempt at one exam.
type Submission struct {
	ID                 string          `json:"id"`
	StudentID          string          `json:"studentId"`
	ExamID             string          `json:"examId"`
	Answers            []GradedAnswer  `json:"answers"`
	StartTime          time.Time       `json:"startTime"`
	SubmissionTime     time.Time       `json:"submissionTime"`
	TotalMarks         int             `json:"totalMarks"`
	TotalPossibleMarks int             `json:"totalPossibleMarks"`
	Feedback           string          `json:"feedback"`
	OverallFeedback    OverallFeedback `json:"overallFeedback"`
}

// SubjectProgress is the per-subject breakdown of a monthly report.
type SubjectProgress struct {
	Subject      string   `json:"subject"`
	ExamCount    int      `json:"examCount"`
	AverageScore int      `json:"averageScore"`
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	Analysis     string   `json:"analysis"`
}

// MonthlyReport aggregates a student's submissions over a calendar month.
type MonthlyReport struct {
	ID                 string            `json:"id"`
	StudentID          string            `json:"studentId"`
	Month              int               `json:"month"`
	Year               int               `json:"year"`
	ExamResults        []string          `json:"examResults"`
	SubjectProgress    []SubjectProgress `json:"subjectProgress"`
	OverallScore       int               `json:"overallScore"`
	OverallPercentage  int               `json:"overallPercentage"`
	MonthlyAssessment  string            `json:"monthlyAssessment"`
	ProgressEvaluation string            `json:"progressEvaluation"`
	RecommendedActions []string          `json:"recommendedActions"`
	Improvement        *int              `json:"improvementFromPreviousMonth,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
}

// Percent returns round(100 * score / possible), or 0 when nothing was possible.
func Percent(score, possible int) int {
	if possible <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(possible)))
}

// ShortRubric holds the point caps for short-answer grading.
type ShortRubric struct {
	Accuracy     int
	Clarity      int
	Completeness int
}

// LongRubric holds the point caps for long-answer grading.
type LongRubric struct {
	ContentAccuracy  int
	ClarityStructure int
	GrammarLanguage  int
	DepthExplanation int
}

// GradingConfig holds runtime grading parameters set via CLI flags.
type GradingConfig struct {
	Short         ShortRubric
	Long          LongRubric
	Location      *time.Location // month boundaries for monthly reports
	SecureCookies bool           // Set Secure flag on cookies (disable for local dev)
	SessionTTL    time.Duration  // lifetime of a login session; zero means DefaultSessionTTL
}

// DefaultSessionTTL is how long a login stays valid unless configured.
const DefaultSessionTTL = 24 * time.Hour

// DefaultShortRubric returns the 5/3/2 short-answer caps.
func DefaultShortRubric() ShortRubric {
	return ShortRubric{Accuracy: 5, Clarity: 3, Completeness: 2}
}

// DefaultLongRubric returns the 5/3/2/5 long-answer caps.
func DefaultLongRubric() LongRubric {
	return LongRubric{ContentAccuracy: 5, ClarityStructure: 3, GrammarLanguage: 2, DepthExplanation: 5}
}

// ExamImport is used for loading exams from JSON.
type ExamImport struct {
	ID           string     `json:"id" validate:"required"`
	Title        string     `json:"title" validate:"required"`
	Subject      string     `json:"subject" validate:"required"`
	GradeLevel   string     `json:"grade" validate:"required"`
	TimeLimit    int        `json:"timeLimit" validate:"min=0"`
	Questions    []Question `json:"questions" validate:"required,min=1,dive"`
	Instructions []string   `json:"instructions"`
	CreatedBy    string     `json:"createdBy"`
}

// UserImport is used for loading users from JSON.
type UserImport struct {
	ID         string   `json:"id" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	Email      string   `json:"email" validate:"required,email"`
	Role       UserRole `json:"role" validate:"required,oneof=student teacher"`
	GradeLevel string   `json:"grade"`
	Password   string   `json:"password"`
}
