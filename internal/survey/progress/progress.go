package progress

import (
	"slices"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"
)

// Progress is one employee's in-flight, not yet submitted survey attempt.
type Progress struct {
	EmployeeID        string                         `json:"employeeId"`
	EmployeeName      string                         `json:"employeeName"`
	CurrentSectionID  string                         `json:"currentSectionId"`
	Answers           map[string]shared.AnswerRecord `json:"answers"`
	AnswerOrder       []string                       `json:"answerOrder"`
	CompletedSections []string                       `json:"completedSections"`
	StartTime         time.Time                      `json:"startTime"`
	LastUpdated       time.Time                      `json:"lastUpdated"`
}

func (p Progress) CompletedCount() int {
	return len(p.CompletedSections)
}

func (p Progress) HasCompleted(sectionID string) bool {
	return slices.Contains(p.CompletedSections, sectionID)
}

func (p Progress) AnswerFor(questionID string) (shared.AnswerRecord, bool) {
	record, ok := p.Answers[questionID]
	return record, ok
}

// OrderedQuestionIDs returns every answered question id in the order the answers
// were first recorded. Ids missing from AnswerOrder, as in records saved before
// it existed, follow in sorted order.
func (p Progress) OrderedQuestionIDs() []string {
	ids := make([]string, 0, len(p.Answers))
	seen := make(map[string]bool, len(p.Answers))
	for _, questionID := range p.AnswerOrder {
		if _, ok := p.Answers[questionID]; ok && !seen[questionID] {
			seen[questionID] = true
			ids = append(ids, questionID)
		}
	}

	rest := make([]string, 0, len(p.Answers)-len(ids))
	for questionID := range p.Answers {
		if !seen[questionID] {
			rest = append(rest, questionID)
		}
	}
	slices.Sort(rest)
	return append(ids, rest...)
}

// AnsweredQuestionIDs returns the ids of questions holding a non-empty answer, sorted.
func (p Progress) AnsweredQuestionIDs() []string {
	ids := make([]string, 0, len(p.Answers))
	for questionID, record := range p.Answers {
		if !record.Answer.IsEmpty() {
			ids = append(ids, questionID)
		}
	}
	slices.Sort(ids)
	return ids
}
