package store

import (
	"errors"
	"testing"
	"time"

	"github.com/pavelanni/examgrader/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestStudent(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.PutUser(model.User{
		ID:         id,
		Name:       "Student " + id,
		Email:      id + "@example.com",
		Role:       model.UserRoleStudent,
		GradeLevel: "10",
	})
	if err != nil {
		t.Fatalf("insertTestStudent: %v", err)
	}
}

func insertTestExam(t *testing.T, s *Store, id, subject string) {
	t.Helper()
	err := s.PutExam(model.Exam{
		ID:         id,
		Title:      "Exam " + id,
		Subject:    subject,
		GradeLevel: "10",
		TimeLimit:  30,
		Questions: []model.Question{
			{ID: "q1", Type: model.QuestionSingleWord, Text: "Force pulling objects down?", Marks: 2, CorrectAnswer: "gravity"},
			{ID: "q2", Type: model.QuestionShortAnswer, Text: "Explain inertia.", Marks: 5},
		},
		Instructions: []string{"Answer all questions."},
		CreatedBy:    "t1",
	})
	if err != nil {
		t.Fatalf("insertTestExam: %v", err)
	}
}

func testSubmission(id, studentID, examID string, at time.Time) model.Submission {
	return model.Submission{
		ID:        id,
		StudentID: studentID,
		ExamID:    examID,
		Answers: []model.GradedAnswer{
			{QuestionID: "q1", Answer: "gravity", Marks: 2, PossibleMarks: 2, Feedback: "Correct", Graded: true,
				GradingDetails: map[string]int{"marks": 2}},
			{QuestionID: "q2", Answer: "Objects resist change.", Marks: 3, PossibleMarks: 5, Feedback: "Partial", Graded: true,
				GradingDetails: map[string]int{"accuracy": 2, "clarity": 1, "completeness": 0, "total": 3}},
		},
		StartTime:          at.Add(-20 * time.Minute),
		SubmissionTime:     at,
		TotalMarks:         5,
		TotalPossibleMarks: 7,
		Feedback:           "Good effort",
		OverallFeedback: model.OverallFeedback{
			StrengthAreas:    []string{"recall"},
			ImprovementAreas: []string{"detail"},
		},
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 users, got %d", count)
	}

	err = s.PutUser(model.User{ID: "s1", Name: "Ann", Email: "ann@example.com", Role: model.UserRoleStudent, GradeLevel: "9", PasswordHash: "h1"})
	if err != nil {
		t.Fatalf("PutUser: %v", err)
	}

	u, err := s.GetUserByID("s1")
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if u == nil || u.Name != "Ann" || u.Role != model.UserRoleStudent || u.GradeLevel != "9" {
		t.Fatalf("unexpected user: %+v", u)
	}

	u, err = s.GetUserByEmail("ann@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u == nil || u.ID != "s1" {
		t.Fatalf("expected s1 by email, got %+v", u)
	}

	// Not found.
	u, err = s.GetUserByID("nobody")
	if err != nil {
		t.Fatalf("GetUserByID missing: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil user, got %+v", u)
	}

	// Re-import without a password keeps the stored hash.
	err = s.PutUser(model.User{ID: "s1", Name: "Ann B.", Email: "ann@example.com", Role: model.UserRoleStudent, GradeLevel: "10"})
	if err != nil {
		t.Fatalf("PutUser update: %v", err)
	}
	u, _ = s.GetUserByID("s1")
	if u.Name != "Ann B." || u.GradeLevel != "10" {
		t.Errorf("expected updated name and grade, got %+v", u)
	}
	if u.PasswordHash != "h1" {
		t.Errorf("expected password hash to be kept, got %q", u.PasswordHash)
	}

	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Errorf("expected 1 user, got %d", len(users))
	}
}

func TestExamCRUD(t *testing.T) {
	s := newTestStore(t)

	insertTestExam(t, s, "e1", "Physics")
	insertTestExam(t, s, "e2", "History")

	e, err := s.GetExam("e1")
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if e == nil {
		t.Fatal("expected exam e1")
	}
	if len(e.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(e.Questions))
	}
	if e.Questions[0].CorrectAnswer != "gravity" || e.Questions[1].Type != model.QuestionShortAnswer {
		t.Errorf("questions not round-tripped: %+v", e.Questions)
	}
	if e.TotalMarks() != 7 {
		t.Errorf("expected total marks 7, got %d", e.TotalMarks())
	}
	if len(e.Instructions) != 1 {
		t.Errorf("expected 1 instruction, got %v", e.Instructions)
	}

	missing, err := s.GetExam("nope")
	if err != nil {
		t.Fatalf("GetExam missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil exam, got %+v", missing)
	}

	all, err := s.ListExams("", "")
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 exams, got %d", len(all))
	}
	physics, _ := s.ListExams("Physics", "")
	if len(physics) != 1 || physics[0].ID != "e1" {
		t.Errorf("expected only e1 for Physics, got %v", physics)
	}
	none, _ := s.ListExams("", "12")
	if len(none) != 0 {
		t.Errorf("expected no exams for grade 12, got %d", len(none))
	}

	count, _ := s.ExamCount()
	if count != 2 {
		t.Errorf("expected exam count 2, got %d", count)
	}
}

func TestSubmissionUnique(t *testing.T) {
	s := newTestStore(t)
	insertTestStudent(t, s, "s1")
	insertTestExam(t, s, "e1", "Physics")

	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := s.CreateSubmission(testSubmission("sub1", "s1", "e1", at)); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	err := s.CreateSubmission(testSubmission("sub2", "s1", "e1", at.Add(time.Hour)))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	sub, err := s.GetSubmissionFor("s1", "e1")
	if err != nil {
		t.Fatalf("GetSubmissionFor: %v", err)
	}
	if sub == nil || sub.ID != "sub1" {
		t.Fatalf("expected the first submission to remain, got %+v", sub)
	}
	if len(sub.Answers) != 2 || sub.Answers[1].GradingDetails["total"] != 3 {
		t.Errorf("answers not round-tripped: %+v", sub.Answers)
	}
	if len(sub.OverallFeedback.StrengthAreas) != 1 || sub.OverallFeedback.StrengthAreas[0] != "recall" {
		t.Errorf("strengths not round-tripped: %+v", sub.OverallFeedback)
	}
	if !sub.SubmissionTime.Equal(at) {
		t.Errorf("expected submission time %v, got %v", at, sub.SubmissionTime)
	}

	byID, _ := s.GetSubmission("sub1")
	if byID == nil || byID.StudentID != "s1" {
		t.Errorf("GetSubmission: got %+v", byID)
	}
	missing, _ := s.GetSubmission("sub2")
	if missing != nil {
		t.Errorf("expected rejected submission to be absent, got %+v", missing)
	}

	if n, err := s.CountSubmissionsForExam("e1"); err != nil || n != 1 {
		t.Errorf("CountSubmissionsForExam(e1) = %d, %v; want 1", n, err)
	}
	if n, _ := s.CountSubmissionsForExam("e2"); n != 0 {
		t.Errorf("CountSubmissionsForExam(e2) = %d; want 0", n)
	}
}

func TestListSubmissionsBetween(t *testing.T) {
	s := newTestStore(t)
	insertTestStudent(t, s, "s1")
	insertTestStudent(t, s, "s2")
	for _, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		insertTestExam(t, s, id, "Physics")
	}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)

	subs := []model.Submission{
		testSubmission("before", "s1", "e1", from.Add(-time.Second)),
		testSubmission("first", "s1", "e2", from),
		testSubmission("last", "s1", "e3", time.Date(2024, 3, 31, 23, 59, 59, 500, time.UTC)),
		testSubmission("after", "s1", "e4", to.Add(time.Nanosecond)),
		testSubmission("other", "s2", "e2", from.Add(time.Hour)),
	}
	for _, sub := range subs {
		if err := s.CreateSubmission(sub); err != nil {
			t.Fatalf("CreateSubmission %s: %v", sub.ID, err)
		}
	}

	got, err := s.ListSubmissionsBetween("s1", from, to)
	if err != nil {
		t.Fatalf("ListSubmissionsBetween: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 submissions in March, got %d: %v", len(got), got)
	}
	if got[0].ID != "first" || got[1].ID != "last" {
		t.Errorf("expected [first last], got [%s %s]", got[0].ID, got[1].ID)
	}

	// A window given in another zone is compared as the same instants.
	loc := time.FixedZone("UTC+3", 3*3600)
	got, _ = s.ListSubmissionsBetween("s1", from.In(loc), to.In(loc))
	if len(got) != 2 {
		t.Errorf("expected 2 submissions with zoned bounds, got %d", len(got))
	}

	all, _ := s.ListSubmissionsByStudent("s1")
	if len(all) != 4 {
		t.Errorf("expected 4 submissions for s1, got %d", len(all))
	}
}

func TestMonthlyReportUnique(t *testing.T) {
	s := newTestStore(t)
	insertTestStudent(t, s, "s1")

	imp := -4
	r := model.MonthlyReport{
		ID:                 "r1",
		StudentID:          "s1",
		Month:              3,
		Year:               2024,
		ExamResults:        []string{"sub1"},
		SubjectProgress:    []model.SubjectProgress{{Subject: "Physics", ExamCount: 1, AverageScore: 71, Strengths: []string{"recall"}, Weaknesses: []string{}, Analysis: "Steady."}},
		OverallScore:       5,
		OverallPercentage:  71,
		MonthlyAssessment:  "Solid month.",
		ProgressEvaluation: "Improving.",
		RecommendedActions: []string{"Practice"},
		Improvement:        &imp,
		CreatedAt:          time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := s.CreateMonthlyReport(r); err != nil {
		t.Fatalf("CreateMonthlyReport: %v", err)
	}

	dup := r
	dup.ID = "r2"
	if err := s.CreateMonthlyReport(dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := s.GetMonthlyReportFor("s1", 3, 2024)
	if err != nil {
		t.Fatalf("GetMonthlyReportFor: %v", err)
	}
	if got == nil || got.ID != "r1" {
		t.Fatalf("expected r1, got %+v", got)
	}
	if got.Improvement == nil || *got.Improvement != -4 {
		t.Errorf("expected improvement -4, got %v", got.Improvement)
	}
	if len(got.SubjectProgress) != 1 || got.SubjectProgress[0].Analysis != "Steady." {
		t.Errorf("subject progress not round-tripped: %+v", got.SubjectProgress)
	}

	// A report without a baseline keeps a nil improvement.
	r.ID, r.Month, r.Improvement = "r3", 4, nil
	if err := s.CreateMonthlyReport(r); err != nil {
		t.Fatalf("CreateMonthlyReport April: %v", err)
	}
	april, _ := s.GetMonthlyReport("r3")
	if april == nil {
		t.Fatal("expected report r3")
	}
	if april.Improvement != nil {
		t.Errorf("expected nil improvement, got %d", *april.Improvement)
	}

	none, _ := s.GetMonthlyReportFor("s1", 5, 2024)
	if none != nil {
		t.Errorf("expected no May report, got %+v", none)
	}
}

func TestLoginSessions(t *testing.T) {
	s := newTestStore(t)
	insertTestStudent(t, s, "s1")

	sess, err := s.OpenSession("s1", time.Hour)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if len(sess.Token) != 43 {
		t.Errorf("expected 43-char token, got %d", len(sess.Token))
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != time.Hour {
		t.Errorf("expected one hour lifetime, got %v", got)
	}

	u, err := s.SessionUser(sess.Token, time.Now())
	if err != nil {
		t.Fatalf("SessionUser: %v", err)
	}
	if u == nil || u.ID != "s1" || u.Role != model.UserRoleStudent {
		t.Fatalf("expected student s1, got %+v", u)
	}

	if u, _ := s.SessionUser(sess.Token, time.Now().Add(2*time.Hour)); u != nil {
		t.Error("expected no user once the session has expired")
	}
	if u, _ := s.SessionUser("unknown", time.Now()); u != nil {
		t.Error("expected no user for unknown token")
	}

	if err := s.CloseSession(sess.Token); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if u, _ := s.SessionUser(sess.Token, time.Now()); u != nil {
		t.Error("expected no user after the session is closed")
	}
}

func TestPurgeSessions(t *testing.T) {
	s := newTestStore(t)
	insertTestStudent(t, s, "s1")

	short, _ := s.OpenSession("s1", time.Minute)
	long, _ := s.OpenSession("s1", 48*time.Hour)

	n, err := s.PurgeSessions(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeSessions: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged session, got %d", n)
	}
	if u, _ := s.SessionUser(short.Token, time.Now()); u != nil {
		t.Error("expected purged session to be gone")
	}
	if u, _ := s.SessionUser(long.Token, time.Now()); u == nil {
		t.Error("expected long session to survive")
	}
}

func TestExportAllSubmissions(t *testing.T) {
	s := newTestStore(t)
	insertTestStudent(t, s, "s1")
	insertTestExam(t, s, "e1", "Physics")

	at := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := s.CreateSubmission(testSubmission("sub1", "s1", "e1", at)); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}

	results, err := s.ExportAllSubmissions()
	if err != nil {
		t.Fatalf("ExportAllSubmissions: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.StudentName != "Student s1" || r.ExamTitle != "Exam e1" || r.Subject != "Physics" {
		t.Errorf("unexpected result header: %+v", r)
	}
	if r.Percentage != 71 {
		t.Errorf("expected 71%%, got %d", r.Percentage)
	}
	if len(r.Questions) != 2 || r.Questions[0].Text != "Force pulling objects down?" || r.Questions[1].MaxMarks != 5 {
		t.Errorf("unexpected questions: %+v", r.Questions)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/exams.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	if err := s.SetImportedFileHash("/some/exams.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/exams.json")
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/exams.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/exams.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}
