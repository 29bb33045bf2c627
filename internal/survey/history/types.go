package history

import (
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"
)

// ConclusionSubmit is the fixed result literal the submission API expects at both
// the per-result and the top level of a payload.
const ConclusionSubmit = "submit"

// DataResult is one answered question of a submission.
type DataResult struct {
	Section  string   `json:"section"`
	Question []string `json:"question"`
	Answer   []string `json:"answer"`
}

type SurveyResult struct {
	Date             string       `json:"date"`
	DataResult       []DataResult `json:"dataResult"`
	ConclutionResult string       `json:"conclutionResult"`
}

// Submission is one historical entry returned by the submission API.
type Submission struct {
	EmployeeID       shared.FlexibleID `json:"employeeID"`
	Name             string            `json:"name"`
	SurveyResult     []SurveyResult    `json:"surveyResult"`
	ConclutionResult string            `json:"conclutionResult"`
	CreatedAt        string            `json:"createdAt,omitempty"`
}

// SubmissionPayload is the body posted when an employee finishes the survey.
type SubmissionPayload struct {
	EmployeeID       string         `json:"employeeID"`
	Name             string         `json:"name"`
	SurveyResult     []SurveyResult `json:"surveyResult"`
	ConclutionResult string         `json:"conclutionResult"`
}
