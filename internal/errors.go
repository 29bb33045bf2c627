package internal

import (
	"errors"
	"fmt"

	"github.com/NYCU-SDC/summer/pkg/problem"
)

// ErrAlreadySubmitted is returned when the employee already has a submission
// dated in the current calendar year.
type ErrAlreadySubmitted struct {
	EmployeeID string
	Date       string
	Year       string
}

func (e ErrAlreadySubmitted) Error() string {
	return fmt.Sprintf("employee %s already submitted a survey in %s (on %s)", e.EmployeeID, e.Year, e.Date)
}

func (e ErrAlreadySubmitted) Unwrap() error {
	return ErrSubmissionBlocked
}

// ErrUpstream wraps a non-2xx reply from one of the remote survey APIs.
type ErrUpstream struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e ErrUpstream) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e ErrUpstream) Unwrap() error {
	return ErrUpstreamFailed
}

var (
	// Generic Errors
	ErrInternalServerError = errors.New("internal server error")
	ErrNotFound            = errors.New("not found")
	ErrInvalidRequestBody  = errors.New("invalid request body")
	ErrValidationFailed    = errors.New("validation failed")

	// Storage Errors
	ErrKeyNotFound     = errors.New("key not found")
	ErrStorageFailed   = errors.New("storage operation failed")
	ErrUnknownKVDriver = errors.New("unknown kv backend")

	// Session Errors
	ErrMissingSession      = errors.New("missing survey session")
	ErrInvalidSessionToken = errors.New("invalid session token")

	// Selection Errors
	ErrNoSelectedEmployee = errors.New("no employee selected")
	ErrInvalidSurveyDate  = errors.New("invalid survey date")

	// Progress Errors
	ErrNoActiveProgress = errors.New("no survey in progress")
	ErrCorruptProgress  = errors.New("saved survey progress was unreadable and has been reset, please start again")
	ErrEmployeeRequired = errors.New("employee id and name are required")

	// Catalog Errors
	ErrSectionNotFound  = errors.New("section not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidAnswer    = errors.New("answer must be a string or a list of strings")

	// Submission Errors
	ErrSubmissionBlocked = errors.New("survey already submitted this year")
	ErrNothingToSubmit   = errors.New("no answers to submit")
	ErrUpstreamFailed    = errors.New("survey api request failed")
	ErrNoLastSubmission  = errors.New("no submission recorded in this session")

	// Navigation Errors
	ErrSectionIncomplete   = errors.New("section has unanswered questions")
	ErrInvalidTransition   = errors.New("invalid wizard transition")
	ErrEmptySectionCatalog = errors.New("section catalog is empty")
)

func NewProblemWriter() *problem.HttpWriter {
	return problem.NewWithMapping(ErrorHandler)
}

func ErrorHandler(err error) problem.Problem {
	var upstream ErrUpstream
	var submitted ErrAlreadySubmitted

	switch {
	case errors.Is(err, ErrInternalServerError):
		return problem.NewInternalServerProblem("internal server error")
	case errors.Is(err, ErrNotFound):
		return problem.NewNotFoundProblem("not found")
	case errors.Is(err, ErrInvalidRequestBody):
		return problem.NewBadRequestProblem("invalid request body")
	case errors.Is(err, ErrValidationFailed):
		return problem.NewValidateProblem(err.Error())

	// Storage Errors
	case errors.Is(err, ErrKeyNotFound):
		return problem.NewNotFoundProblem("key not found")
	case errors.Is(err, ErrStorageFailed):
		return problem.NewInternalServerProblem("storage operation failed")

	// Session Errors
	case errors.Is(err, ErrMissingSession):
		return problem.NewUnauthorizedProblem("missing survey session")
	case errors.Is(err, ErrInvalidSessionToken):
		return problem.NewUnauthorizedProblem("invalid session token")

	// Selection Errors
	case errors.Is(err, ErrNoSelectedEmployee):
		return problem.NewValidateProblem("no employee selected")
	case errors.Is(err, ErrInvalidSurveyDate):
		return problem.NewValidateProblem("invalid survey date")

	// Progress Errors
	case errors.Is(err, ErrNoActiveProgress):
		return problem.NewNotFoundProblem("no survey in progress")
	case errors.Is(err, ErrCorruptProgress):
		return problem.NewValidateProblem(ErrCorruptProgress.Error())
	case errors.Is(err, ErrEmployeeRequired):
		return problem.NewValidateProblem("employee id and name are required")

	// Catalog Errors
	case errors.Is(err, ErrSectionNotFound):
		return problem.NewNotFoundProblem("section not found")
	case errors.Is(err, ErrQuestionNotFound):
		return problem.NewNotFoundProblem("question not found")
	case errors.Is(err, ErrInvalidAnswer):
		return problem.NewValidateProblem("answer must be a string or a list of strings")

	// Submission Errors
	case errors.As(err, &submitted):
		return problem.NewForbiddenProblem(submitted.Error())
	case errors.Is(err, ErrSubmissionBlocked):
		return problem.NewForbiddenProblem("survey already submitted this year")
	case errors.Is(err, ErrNothingToSubmit):
		return problem.NewValidateProblem("no answers to submit")
	case errors.As(err, &upstream):
		return problem.NewInternalServerProblem(fmt.Sprintf("survey api request failed with status %d, please retry", upstream.StatusCode))
	case errors.Is(err, ErrUpstreamFailed):
		return problem.NewInternalServerProblem("survey api request failed, please retry")
	case errors.Is(err, ErrNoLastSubmission):
		return problem.NewNotFoundProblem("no submission recorded in this session")

	// Navigation Errors
	case errors.Is(err, ErrSectionIncomplete):
		return problem.NewValidateProblem("section has unanswered questions")
	case errors.Is(err, ErrInvalidTransition):
		return problem.NewValidateProblem("invalid wizard transition")
	case errors.Is(err, ErrEmptySectionCatalog):
		return problem.NewNotFoundProblem("section catalog is empty")
	}
	return problem.Problem{}
}
