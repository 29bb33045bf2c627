package wizard

import (
	"context"
	"errors"

	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/survey/catalog"
	"NYCU-SDC/survey-wizard-backend/internal/survey/progress"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CatalogReader interface {
	Sections(ctx context.Context) ([]catalog.Section, error)
	QuestionsForSection(ctx context.Context, sectionID string) (catalog.Section, []catalog.Question, error)
}

type ProgressStore interface {
	Load(ctx context.Context) (progress.Progress, error)
	CompleteSection(ctx context.Context, sectionID string) (progress.Progress, error)
	SetCurrentSection(ctx context.Context, sectionID string) (progress.Progress, error)
}

type Gate interface {
	Gate(ctx context.Context, employeeID string) error
}

type Service struct {
	logger   *zap.Logger
	tracer   trace.Tracer
	catalog  CatalogReader
	progress ProgressStore
	gate     Gate
}

// NewService creates the navigation service. gate may be nil to skip the
// yearly check on page loads.
func NewService(logger *zap.Logger, catalog CatalogReader, progress ProgressStore, gate Gate) *Service {
	return &Service{
		logger:   logger,
		tracer:   otel.Tracer("wizard/service"),
		catalog:  catalog,
		progress: progress,
		gate:     gate,
	}
}

// View returns the page state of a section and records it as the current one,
// so a reload or a direct link resumes where the page was left. An employee
// who already submitted this year gets a Blocked view whatever the section.
func (s *Service) View(ctx context.Context, sectionID string) (View, error) {
	traceCtx, span := s.tracer.Start(ctx, "View")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	m, sections, p, err := s.resume(traceCtx, sectionID)
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}

	if blocked, ok := s.checkBlocked(traceCtx, m, p); ok {
		return blocked, nil
	}

	if p.CurrentSectionID != sectionID {
		logger.Debug("Resyncing current section", zap.String("stored", p.CurrentSectionID), zap.String("section_id", sectionID))
		p, err = s.progress.SetCurrentSection(traceCtx, sectionID)
		if err != nil {
			span.RecordError(err)
			return View{}, err
		}
	}

	view, err := s.viewFor(traceCtx, m, sections, p)
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}
	return view, nil
}

// Next completes the section and moves to the following one. Leaving the last
// section returns a Submitting view; the page then posts the submission.
func (s *Service) Next(ctx context.Context, sectionID string) (View, error) {
	traceCtx, span := s.tracer.Start(ctx, "Next")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	m, sections, p, err := s.resume(traceCtx, sectionID)
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}

	_, questions, err := s.catalog.QuestionsForSection(traceCtx, sectionID)
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}

	missing := MissingAnswers(questions, p)
	err = m.Next(len(missing) == 0)
	if err != nil {
		logger.Debug("Section not ready to leave", zap.String("section_id", sectionID), zap.Strings("missing", missing))
		return View{}, err
	}

	p, err = s.progress.CompleteSection(traceCtx, sectionID)
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}

	if m.State() == StateSubmitting {
		return View{
			State:              StateSubmitting,
			SectionID:          sectionID,
			Index:              m.Total() - 1,
			Total:              m.Total(),
			IsLast:             true,
			CanAdvance:         true,
			MissingQuestionIDs: []string{},
			CompletedSections:  p.CompletedCount(),
		}, nil
	}

	p, err = s.progress.SetCurrentSection(traceCtx, m.CurrentSectionID())
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}

	view, err := s.viewFor(traceCtx, m, sections, p)
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}
	return view, nil
}

// Previous moves back one section. From the first section the flow returns to
// the entry page and the progress is left untouched.
func (s *Service) Previous(ctx context.Context, sectionID string) (View, error) {
	traceCtx, span := s.tracer.Start(ctx, "Previous")
	defer span.End()

	m, sections, p, err := s.resume(traceCtx, sectionID)
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}

	err = m.Previous()
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}

	if m.State() == StateNotStarted {
		return View{
			State:              StateNotStarted,
			Index:              -1,
			Total:              m.Total(),
			MissingQuestionIDs: []string{},
			CompletedSections:  p.CompletedCount(),
		}, nil
	}

	p, err = s.progress.SetCurrentSection(traceCtx, m.CurrentSectionID())
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}

	view, err := s.viewFor(traceCtx, m, sections, p)
	if err != nil {
		span.RecordError(err)
		return View{}, err
	}
	return view, nil
}

func (s *Service) resume(ctx context.Context, sectionID string) (*Machine, []catalog.Section, progress.Progress, error) {
	sections, err := s.catalog.Sections(ctx)
	if err != nil {
		return nil, nil, progress.Progress{}, err
	}

	ids := make([]string, 0, len(sections))
	for _, section := range sections {
		ids = append(ids, section.ID.String())
	}

	m, err := NewMachine(ids)
	if err != nil {
		return nil, nil, progress.Progress{}, err
	}

	p, err := s.progress.Load(ctx)
	if err != nil {
		return nil, nil, progress.Progress{}, err
	}

	err = m.Resume(sectionID)
	if err != nil {
		return nil, nil, progress.Progress{}, err
	}
	return m, sections, p, nil
}

func (s *Service) checkBlocked(ctx context.Context, m *Machine, p progress.Progress) (View, bool) {
	if s.gate == nil {
		return View{}, false
	}
	logger := logutil.WithContext(ctx, s.logger)

	err := s.gate.Gate(ctx, p.EmployeeID)
	if err == nil {
		return View{}, false
	}

	var submitted internal.ErrAlreadySubmitted
	if !errors.As(err, &submitted) {
		logger.Warn("Yearly submission check unavailable, continuing", zap.Error(err), zap.String("employee_id", p.EmployeeID))
		return View{}, false
	}

	m.Block()
	return View{
		State:              StateBlocked,
		Index:              -1,
		Total:              m.Total(),
		MissingQuestionIDs: []string{},
		CompletedSections:  p.CompletedCount(),
		BlockedDate:        submitted.Date,
		BlockedYear:        submitted.Year,
	}, true
}

func (s *Service) viewFor(ctx context.Context, m *Machine, sections []catalog.Section, p progress.Progress) (View, error) {
	_, questions, err := s.catalog.QuestionsForSection(ctx, m.CurrentSectionID())
	if err != nil {
		return View{}, err
	}
	return BuildView(m, sections, questions, p), nil
}
