package submit

import (
	"context"
	"encoding/json"
	"slices"

	"NYCU-SDC/survey-wizard-backend/internal/survey/catalog"
	"NYCU-SDC/survey-wizard-backend/internal/survey/history"
	"NYCU-SDC/survey-wizard-backend/internal/survey/progress"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"
)

type SourceKind string

const (
	SourceProgress SourceKind = "progress"
	SourceLegacy   SourceKind = "legacy"
)

// Source produces the dataResult rows of a submission.
type Source interface {
	Kind() SourceKind
	Rows(ctx context.Context) ([]history.DataResult, error)
}

// ProgressSource reads rows from the active progress record.
type ProgressSource struct {
	progress progress.Progress
}

func NewProgressSource(p progress.Progress) ProgressSource {
	return ProgressSource{progress: p}
}

func (s ProgressSource) Kind() SourceKind {
	return SourceProgress
}

// Rows groups answers by section title in the order the sections were first
// answered.
func (s ProgressSource) Rows(context.Context) ([]history.DataResult, error) {
	var grouper rowGrouper
	for _, questionID := range s.progress.OrderedQuestionIDs() {
		grouper.add(s.progress.Answers[questionID], "")
	}
	return grouper.rows(), nil
}

type SectionLister interface {
	Sections(ctx context.Context) ([]catalog.Section, error)
}

type LegacyReader interface {
	LegacySection(ctx context.Context, sectionID string) (map[string]json.RawMessage, error)
}

// LegacySource reads rows from the per-section caches written by older pages.
// Entries still holding a bare value are skipped since their question and
// section text is gone.
type LegacySource struct {
	sections SectionLister
	cache    LegacyReader
}

func NewLegacySource(sections SectionLister, cache LegacyReader) LegacySource {
	return LegacySource{sections: sections, cache: cache}
}

func (s LegacySource) Kind() SourceKind {
	return SourceLegacy
}

func (s LegacySource) Rows(ctx context.Context) ([]history.DataResult, error) {
	sections, err := s.sections.Sections(ctx)
	if err != nil {
		return nil, err
	}

	var grouper rowGrouper
	for _, section := range sections {
		cached, err := s.cache.LegacySection(ctx, section.ID.String())
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, len(cached))
		for questionID := range cached {
			ids = append(ids, questionID)
		}
		slices.Sort(ids)

		for _, questionID := range ids {
			record, shape := shared.ClassifyStoredAnswer(cached[questionID])
			if shape != shared.ShapeRecord {
				continue
			}
			grouper.add(record, section.Title)
		}
	}
	return grouper.rows(), nil
}

// rowGrouper collects rows per section title, keeping sections in the order
// they were first seen.
type rowGrouper struct {
	order  []string
	groups map[string][]history.DataResult
}

func (g *rowGrouper) add(record shared.AnswerRecord, fallbackTitle string) {
	if record.Answer.IsEmpty() {
		return
	}

	title := record.SectionTitle
	if title == "" {
		title = fallbackTitle
	}

	if g.groups == nil {
		g.groups = make(map[string][]history.DataResult)
	}
	if _, seen := g.groups[title]; !seen {
		g.order = append(g.order, title)
	}

	g.groups[title] = append(g.groups[title], history.DataResult{
		Section:  title,
		Question: []string{record.QuestionText},
		Answer:   record.Answer.Values(),
	})
}

func (g *rowGrouper) rows() []history.DataResult {
	rows := make([]history.DataResult, 0)
	for _, title := range g.order {
		rows = append(rows, g.groups[title]...)
	}
	return rows
}
