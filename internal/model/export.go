package model

import "time"

// SubmissionExport is the top-level JSON structure for submission export.
type SubmissionExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Results    []StudentResult `json:"results"`
}

// StudentResult holds one submission flattened with its student and exam.
type StudentResult struct {
	SubmissionID   string           `json:"submission_id"`
	StudentID      string           `json:"student_id"`
	StudentName    string           `json:"student_name"`
	ExamID         string           `json:"exam_id"`
	ExamTitle      string           `json:"exam_title"`
	Subject        string           `json:"subject"`
	StartTime      time.Time        `json:"start_time"`
	SubmissionTime time.Time        `json:"submission_time"`
	TotalMarks     int              `json:"total_marks"`
	TotalPossible  int              `json:"total_possible"`
	Percentage     int              `json:"percentage"`
	Questions      []QuestionResult `json:"questions"`
}

// QuestionResult holds per-question data for export.
type QuestionResult struct {
	QuestionID string       `json:"question_id"`
	Type       QuestionType `json:"type"`
	Text       string       `json:"text"`
	Answer     string       `json:"answer"`
	Marks      int          `json:"marks"`
	MaxMarks   int          `json:"max_marks"`
	Feedback   string       `json:"feedback"`
}
