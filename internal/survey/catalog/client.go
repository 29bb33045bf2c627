package catalog

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/apiclient"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple-choice"
	QuestionTypeTextarea       QuestionType = "textarea"
	QuestionTypeRating         QuestionType = "rating"
)

type Section struct {
	ID    shared.FlexibleID `json:"id"`
	Title string            `json:"title"`
}

type Question struct {
	ID           shared.FlexibleID `json:"id"`
	SectionID    shared.FlexibleID `json:"sectionId"`
	SectionTitle string            `json:"sectionTitle"`
	Text         string            `json:"text"`
	Type         QuestionType      `json:"type"`
	Options      []string          `json:"options,omitempty"`
	Required     bool              `json:"required"`
	Multiple     bool              `json:"multiple,omitempty"`
}

// IsMultiSelect reports whether answers to the question are lists.
func (q Question) IsMultiSelect() bool {
	return q.Type == QuestionTypeMultipleChoice && q.Multiple
}

// Client reads sections and questions from the remote catalog API. Results are
// not cached; the catalog is small and admins edit it while surveys run.
type Client struct {
	logger *zap.Logger
	tracer trace.Tracer
	api    *apiclient.Client
}

func NewClient(logger *zap.Logger, api *apiclient.Client) *Client {
	return &Client{
		logger: logger,
		tracer: otel.Tracer("catalog/client"),
		api:    api,
	}
}

// Sections returns every section in survey order.
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	traceCtx, span := c.tracer.Start(ctx, "Sections")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	var sections []Section
	err := c.api.Do(traceCtx, "list sections", http.MethodGet, "/sections", nil, &sections)
	if err != nil {
		logger.Error("Failed to list sections", zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	return sections, nil
}

func (c *Client) Questions(ctx context.Context) ([]Question, error) {
	traceCtx, span := c.tracer.Start(ctx, "Questions")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	var questions []Question
	err := c.api.Do(traceCtx, "list questions", http.MethodGet, "/questions", nil, &questions)
	if err != nil {
		logger.Error("Failed to list questions", zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	return questions, nil
}

// Section looks up one section by id.
func (c *Client) Section(ctx context.Context, sectionID string) (Section, error) {
	sections, err := c.Sections(ctx)
	if err != nil {
		return Section{}, err
	}

	for _, section := range sections {
		if section.ID.String() == sectionID {
			return section, nil
		}
	}
	return Section{}, internal.ErrSectionNotFound
}

func (c *Client) SectionExists(ctx context.Context, sectionID string) (bool, error) {
	_, err := c.Section(ctx, sectionID)
	if err != nil {
		if errors.Is(err, internal.ErrSectionNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// QuestionsForSection returns the questions of one section together with the
// section itself.
func (c *Client) QuestionsForSection(ctx context.Context, sectionID string) (Section, []Question, error) {
	traceCtx, span := c.tracer.Start(ctx, "QuestionsForSection")
	defer span.End()

	section, err := c.Section(traceCtx, sectionID)
	if err != nil {
		span.RecordError(err)
		return Section{}, nil, err
	}

	questions, err := c.Questions(traceCtx)
	if err != nil {
		span.RecordError(err)
		return Section{}, nil, err
	}

	return section, FilterBySection(questions, section), nil
}

// FilterBySection keeps questions whose section id or section title matches.
// Older catalog entries only carry the title.
func FilterBySection(questions []Question, section Section) []Question {
	title := strings.TrimSpace(section.Title)

	filtered := make([]Question, 0)
	for _, question := range questions {
		idMatch := question.SectionID != "" && question.SectionID == section.ID
		titleMatch := title != "" && strings.TrimSpace(question.SectionTitle) == title
		if idMatch || titleMatch {
			filtered = append(filtered, question)
		}
	}
	return filtered
}
