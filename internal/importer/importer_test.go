package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

const examsJSON = `[
  {
    "id": "phys-1",
    "title": "Forces",
    "subject": "Physics",
    "grade": "8",
    "timeLimit": 20,
    "questions": [
      {"id": "q1", "type": "single-word", "text": "Force pulling objects down?", "marks": 2, "correctAnswer": "gravity"},
      {"id": "q2", "type": "long-answer", "text": "Describe Newton's laws.", "marks": 10}
    ]
  }
]`

func TestExamsImport(t *testing.T) {
	s := newTestStore(t)

	res, err := Exams(s, "exams.json", []byte(examsJSON))
	require.NoError(t, err)
	assert.Equal(t, Result{Status: StatusImported, Count: 1, Added: 1}, res)

	e, err := s.GetExam("phys-1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 12, e.TotalMarks())
	assert.Equal(t, "gravity", e.Questions[0].CorrectAnswer)

	// Same content is skipped.
	res, err = Exams(s, "exams.json", []byte(examsJSON))
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, res.Status)
}

func singleWordExam(id, answer string) string {
	return `{"id":"` + id + `","title":"T","subject":"Physics","grade":"8",
	  "questions":[{"id":"q1","type":"single-word","text":"Force pulling objects down?","marks":2,"correctAnswer":"` + answer + `"}]}`
}

func TestExamsImportChangedFileAddsNewExams(t *testing.T) {
	s := newTestStore(t)

	_, err := Exams(s, "a.json", []byte(`[`+singleWordExam("e1", "gravity")+`]`))
	require.NoError(t, err)

	// The same file name with different content is imported, not skipped.
	res, err := Exams(s, "a.json", []byte(`[`+singleWordExam("e1", "gravity")+`,`+singleWordExam("e2", "mass")+`]`))
	require.NoError(t, err)
	assert.Equal(t, Result{Status: StatusImported, Count: 2, Added: 1, Updated: 1}, res)

	e2, err := s.GetExam("e2")
	require.NoError(t, err)
	require.NotNil(t, e2)
	assert.Equal(t, "mass", e2.Questions[0].CorrectAnswer)

	// Without submissions an exam may still be corrected.
	_, err = Exams(s, "b.json", []byte(`[`+singleWordExam("e1", "weight")+`]`))
	require.NoError(t, err)
	e1, _ := s.GetExam("e1")
	assert.Equal(t, "weight", e1.Questions[0].CorrectAnswer)

	count, _ := s.ExamCount()
	assert.Equal(t, 2, count)
}

func TestExamsImportKeepsSubmittedExams(t *testing.T) {
	s := newTestStore(t)

	_, err := Exams(s, "a.json", []byte(`[`+singleWordExam("e1", "gravity")+`]`))
	require.NoError(t, err)
	require.NoError(t, s.CreateSubmission(model.Submission{
		ID: "sub1", StudentID: "s1", ExamID: "e1",
		StartTime: time.Now(), SubmissionTime: time.Now(),
		TotalMarks: 2, TotalPossibleMarks: 2,
	}))

	// Another file redefining e1 is rejected as a whole, e3 included.
	_, err = Exams(s, "b.json", []byte(`[`+singleWordExam("e3", "mass")+`,`+singleWordExam("e1", "mass")+`]`))
	require.ErrorIs(t, err, ErrExamInUse)

	e1, err := s.GetExam("e1")
	require.NoError(t, err)
	assert.Equal(t, "gravity", e1.Questions[0].CorrectAnswer)
	e3, err := s.GetExam("e3")
	require.NoError(t, err)
	assert.Nil(t, e3)
	hash, _ := s.GetImportedFileHash("b.json")
	assert.Empty(t, hash)

	// Metadata may change as long as the questions are the same.
	renamed := `[{"id":"e1","title":"Renamed","subject":"Physics","grade":"8",
	  "questions":[{"id":"q1","type":"single-word","text":"Force pulling objects down?","marks":2,"correctAnswer":"gravity"}]}]`
	res, err := Exams(s, "c.json", []byte(renamed))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	e1, _ = s.GetExam("e1")
	assert.Equal(t, "Renamed", e1.Title)
}

func TestExamsImportRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad json", `{`},
		{"missing subject", `[{"id":"e","title":"T","grade":"8","questions":[{"id":"q","type":"short-answer","text":"x","marks":5}]}]`},
		{"no questions", `[{"id":"e","title":"T","subject":"S","grade":"8","questions":[]}]`},
		{"zero marks", `[{"id":"e","title":"T","subject":"S","grade":"8","questions":[{"id":"q","type":"short-answer","text":"x","marks":0}]}]`},
		{"unknown type", `[{"id":"e","title":"T","subject":"S","grade":"8","questions":[{"id":"q","type":"essay","text":"x","marks":5}]}]`},
		{"duplicate id", `[{"id":"e","title":"T","subject":"S","grade":"8","questions":[{"id":"q","type":"short-answer","text":"x","marks":5}]},{"id":"e","title":"T","subject":"S","grade":"8","questions":[{"id":"q","type":"short-answer","text":"x","marks":5}]}]`},
		{"single-word without answer", `[{"id":"e","title":"T","subject":"S","grade":"8","questions":[{"id":"q","type":"single-word","text":"x","marks":1}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			_, err := Exams(s, "bad.json", []byte(tt.data))
			require.Error(t, err)

			count, _ := s.ExamCount()
			assert.Zero(t, count)
			hash, _ := s.GetImportedFileHash("bad.json")
			assert.Empty(t, hash, "failed import must not be recorded")
		})
	}
}

func TestUsersImport(t *testing.T) {
	s := newTestStore(t)
	data := `[
	  {"id": "s1", "name": "Ann", "email": "ann@example.com", "role": "student", "grade": "8", "password": "secret"},
	  {"id": "t1", "name": "Mr. Lee", "email": "lee@example.com", "role": "teacher", "grade": "8"}
	]`

	res, err := Users(s, "users.json", []byte(data))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	ann, err := s.GetUserByID("s1")
	require.NoError(t, err)
	require.NotNil(t, ann)
	assert.Equal(t, "8", ann.GradeLevel)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(ann.PasswordHash), []byte("secret")))

	lee, _ := s.GetUserByID("t1")
	require.NotNil(t, lee)
	assert.Equal(t, model.UserRoleTeacher, lee.Role)
	assert.Empty(t, lee.GradeLevel, "teachers have no grade level")

	// A changed users file is applied again.
	res, err = Users(s, "users.json", []byte(`[{"id": "s1", "name": "Ann B.", "email": "ann@example.com", "role": "student", "grade": "9"}]`))
	require.NoError(t, err)
	assert.Equal(t, StatusImported, res.Status)
	ann, _ = s.GetUserByID("s1")
	assert.Equal(t, "Ann B.", ann.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(ann.PasswordHash), []byte("secret")), "password kept when omitted")
}

func TestNewUserRejectsBadRole(t *testing.T) {
	_, err := NewUser(model.UserImport{ID: "x", Name: "X", Email: "x@example.com", Role: "admin"})
	assert.Error(t, err)

	_, err = NewUser(model.UserImport{ID: "x", Name: "X", Email: "not-an-email", Role: model.UserRoleStudent})
	assert.Error(t, err)
}
