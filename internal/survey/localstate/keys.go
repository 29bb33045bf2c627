package localstate

// Fixed keys shared by the entry page and the section pages.
const (
	ProgressKey         = "surveyProgress"
	SelectedEmployeeKey = "selectedEmployee"
	SelectedDateKey     = "selectedSurveyDate"
	LastSubmissionKey   = "lastSubmission"

	legacySectionPrefix = "surveyAnswers_"
)

// LegacySectionKey is the per-section answer cache written by older clients.
func LegacySectionKey(sectionID string) string {
	return legacySectionPrefix + sectionID
}
