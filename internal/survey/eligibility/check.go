package eligibility

import (
	"strconv"
	"strings"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal/survey/history"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"
)

// Result reports whether an employee already has a submission dated in the
// current calendar year. Date and Year are set only when it does.
type Result struct {
	HasSubmittedThisYear bool   `json:"hasSubmittedThisYear"`
	Date                 string `json:"date,omitempty"`
	Year                 string `json:"year,omitempty"`
}

// Check scans submissions for one dated in the same calendar year as now, in
// loc. The first match in slice order is reported. Entries whose date cannot be
// read are ignored rather than treated as errors.
func Check(employeeID string, submissions []history.Submission, now time.Time, loc *time.Location) Result {
	if loc == nil {
		loc = shared.ReferenceLocation()
	}

	wanted := normalizeID(employeeID)
	if wanted == "" {
		return Result{}
	}
	currentYear := now.In(loc).Year()

	for _, submission := range submissions {
		if normalizeID(submission.EmployeeID.String()) != wanted {
			continue
		}

		date := EffectiveDate(submission, loc)
		if date == "" {
			continue
		}

		t, err := shared.ParseSurveyDate(date, loc)
		if err != nil {
			continue
		}

		if t.Year() == currentYear {
			return Result{
				HasSubmittedThisYear: true,
				Date:                 strings.TrimSpace(date),
				Year:                 strconv.Itoa(t.Year()),
			}
		}
	}

	return Result{}
}

// EffectiveDate is the date of the last dated result of a submission, falling
// back to its creation timestamp rendered in loc.
func EffectiveDate(submission history.Submission, loc *time.Location) string {
	for i := len(submission.SurveyResult) - 1; i >= 0; i-- {
		if date := strings.TrimSpace(submission.SurveyResult[i].Date); date != "" {
			return date
		}
	}

	createdAt := strings.TrimSpace(submission.CreatedAt)
	if createdAt == "" {
		return ""
	}

	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		// some producers already store the display format
		return createdAt
	}
	return shared.FormatSurveyDate(t, loc)
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
