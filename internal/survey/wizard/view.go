package wizard

import (
	"NYCU-SDC/survey-wizard-backend/internal/survey/catalog"
	"NYCU-SDC/survey-wizard-backend/internal/survey/progress"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"
)

// View is what a section page needs to render its navigation.
type View struct {
	State              State                    `json:"state"`
	SectionID          string                   `json:"sectionId"`
	SectionTitle       string                   `json:"sectionTitle"`
	Index              int                      `json:"index"`
	Total              int                      `json:"total"`
	PreviousSectionID  string                   `json:"previousSectionId,omitempty"`
	NextSectionID      string                   `json:"nextSectionId,omitempty"`
	IsFirst            bool                     `json:"isFirst"`
	IsLast             bool                     `json:"isLast"`
	CanAdvance         bool                     `json:"canAdvance"`
	MissingQuestionIDs []string                 `json:"missingQuestionIds"`
	Questions          []catalog.Question       `json:"questions"`
	Answers            map[string]shared.Answer `json:"answers"`
	CompletedSections  int                      `json:"completedSections"`
	BlockedDate        string                   `json:"blockedDate,omitempty"`
	BlockedYear        string                   `json:"blockedYear,omitempty"`
}

// MissingAnswers lists the questions with no answer or an empty one. A section
// can be left only when the list is empty.
func MissingAnswers(questions []catalog.Question, p progress.Progress) []string {
	missing := make([]string, 0)
	for _, question := range questions {
		record, ok := p.AnswerFor(question.ID.String())
		if !ok || record.Answer.IsEmpty() {
			missing = append(missing, question.ID.String())
		}
	}
	return missing
}

// BuildView assembles the page state for one section. The machine must already
// be in that section.
func BuildView(m *Machine, sections []catalog.Section, questions []catalog.Question, p progress.Progress) View {
	index := m.Index()
	section := sections[index]
	missing := MissingAnswers(questions, p)

	answers := make(map[string]shared.Answer, len(questions))
	for _, question := range questions {
		if record, ok := p.AnswerFor(question.ID.String()); ok {
			answers[question.ID.String()] = record.Answer
		}
	}

	view := View{
		State:              m.State(),
		SectionID:          section.ID.String(),
		SectionTitle:       section.Title,
		Index:              index,
		Total:              m.Total(),
		IsFirst:            index == 0,
		IsLast:             m.IsLast(),
		CanAdvance:         len(missing) == 0,
		MissingQuestionIDs: missing,
		Questions:          questions,
		Answers:            answers,
		CompletedSections:  p.CompletedCount(),
	}
	if index > 0 {
		view.PreviousSectionID = sections[index-1].ID.String()
	}
	if index < len(sections)-1 {
		view.NextSectionID = sections[index+1].ID.String()
	}
	return view
}
