package grading

import "errors"

// Request errors. The HTTP layer maps each of these to its own status.
var (
	ErrMissingFields           = errors.New("missing required fields")
	ErrInvalidStartTime        = errors.New("startTime must be an RFC 3339 timestamp")
	ErrExamNotFound            = errors.New("exam not found")
	ErrStudentNotFound         = errors.New("student not found")
	ErrAlreadySubmitted        = errors.New("exam already submitted by this student")
	ErrReportExists            = errors.New("monthly report already exists")
	ErrNoResults               = errors.New("no exam results found for the specified month")
	ErrUnsupportedQuestionType = errors.New("unsupported question type")
	ErrMissingReference        = errors.New("single-word question has no correct answer")
)

// ReportExistsError carries the identifier of the report that already exists.
type ReportExistsError struct {
	ReportID string
}

func (e *ReportExistsError) Error() string {
	return ErrReportExists.Error() + ": " + e.ReportID
}

// Is makes errors.Is(err, ErrReportExists) match.
func (e *ReportExistsError) Is(target error) bool {
	return target == ErrReportExists
}
