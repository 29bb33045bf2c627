package submit

import (
	"context"
	"errors"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/survey/history"
	"NYCU-SDC/survey-wizard-backend/internal/survey/localstate"
	"NYCU-SDC/survey-wizard-backend/internal/survey/progress"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProgressStore interface {
	Load(ctx context.Context) (progress.Progress, error)
	Clear(ctx context.Context) error
}

type LocalState interface {
	LegacyReader
	SelectedEmployee(ctx context.Context) (localstate.SelectedEmployee, error)
	SelectedDate(ctx context.Context) (time.Time, bool, error)
	ClearSelectedDate(ctx context.Context) error
	ClearLegacySections(ctx context.Context, sectionIDs []string) error
	SetLastSubmission(ctx context.Context, summary localstate.LastSubmission) error
	LastSubmission(ctx context.Context) (localstate.LastSubmission, error)
}

type Creator interface {
	Create(ctx context.Context, payload history.SubmissionPayload) error
}

// Gate rejects employees who already submitted this year.
type Gate interface {
	Gate(ctx context.Context, employeeID string) error
}

// Outcome describes an accepted submission.
type Outcome struct {
	Source  SourceKind                `json:"source"`
	Payload history.SubmissionPayload `json:"payload"`
	Summary localstate.LastSubmission `json:"summary"`
}

type Service struct {
	logger   *zap.Logger
	tracer   trace.Tracer
	progress ProgressStore
	local    LocalState
	sections SectionLister
	creator  Creator
	gate     Gate
	loc      *time.Location
	now      func() time.Time
}

func NewService(logger *zap.Logger, progress ProgressStore, local LocalState, sections SectionLister, creator Creator, gate Gate, loc *time.Location) *Service {
	return &Service{
		logger:   logger,
		tracer:   otel.Tracer("submit/service"),
		progress: progress,
		local:    local,
		sections: sections,
		creator:  creator,
		gate:     gate,
		loc:      loc,
		now:      time.Now,
	}
}

// Submit assembles the session's answers and posts them. The progress record
// and legacy caches are cleared only after the remote API accepted the payload;
// on any failure they are left as they were so the employee can retry.
func (s *Service) Submit(ctx context.Context) (Outcome, error) {
	traceCtx, span := s.tracer.Start(ctx, "Submit")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	source, employee, err := s.chooseSource(traceCtx)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}

	if s.gate != nil {
		err = s.gate.Gate(traceCtx, employee.ID)
		if err != nil {
			logger.Info("Submission blocked", zap.String("employee_id", employee.ID), zap.Error(err))
			span.RecordError(err)
			return Outcome{}, err
		}
	}

	rows, err := source.Rows(traceCtx)
	if err != nil {
		logger.Error("Failed to assemble submission", zap.Error(err), zap.String("source", string(source.Kind())))
		span.RecordError(err)
		return Outcome{}, err
	}
	if len(rows) == 0 {
		return Outcome{}, internal.ErrNothingToSubmit
	}

	date, err := s.submissionDate(traceCtx)
	if err != nil {
		span.RecordError(err)
		return Outcome{}, err
	}

	payload := BuildPayload(employee.ID, employee.Name, date, rows)
	err = s.creator.Create(traceCtx, payload)
	if err != nil {
		logger.Warn("Submission rejected, keeping progress for retry", zap.Error(err), zap.String("employee_id", employee.ID))
		span.RecordError(err)
		return Outcome{}, err
	}

	year, err := shared.SurveyDateYear(date)
	if err != nil {
		year = ""
	}
	summary := localstate.LastSubmission{
		EmployeeName: employee.Name,
		Date:         date,
		Year:         year,
	}
	s.cleanup(traceCtx, logger, summary)

	logger.Info("Survey submitted",
		zap.String("employee_id", employee.ID),
		zap.String("source", string(source.Kind())),
		zap.Int("rows", len(rows)),
		zap.String("date", date))

	return Outcome{
		Source:  source.Kind(),
		Payload: payload,
		Summary: summary,
	}, nil
}

// LastSubmission returns the summary of the most recent successful submission.
func (s *Service) LastSubmission(ctx context.Context) (localstate.LastSubmission, error) {
	traceCtx, span := s.tracer.Start(ctx, "LastSubmission")
	defer span.End()

	summary, err := s.local.LastSubmission(traceCtx)
	if err != nil {
		span.RecordError(err)
		return localstate.LastSubmission{}, err
	}
	return summary, nil
}

// chooseSource picks the progress record when one is active and the legacy
// caches otherwise. The two are never merged.
func (s *Service) chooseSource(ctx context.Context) (Source, localstate.SelectedEmployee, error) {
	p, err := s.progress.Load(ctx)
	if err == nil {
		return NewProgressSource(p), localstate.SelectedEmployee{ID: p.EmployeeID, Name: p.EmployeeName}, nil
	}
	if !errors.Is(err, internal.ErrNoActiveProgress) {
		return nil, localstate.SelectedEmployee{}, err
	}

	employee, err := s.local.SelectedEmployee(ctx)
	if err != nil {
		return nil, localstate.SelectedEmployee{}, err
	}
	return NewLegacySource(s.sections, s.local), employee, nil
}

func (s *Service) submissionDate(ctx context.Context) (string, error) {
	selected, ok, err := s.local.SelectedDate(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		selected = s.now()
	}
	return shared.FormatSurveyDate(selected, s.loc), nil
}

// cleanup runs after the remote API accepted the submission, so failures here
// are logged and never turned into a failed submission.
func (s *Service) cleanup(ctx context.Context, logger *zap.Logger, summary localstate.LastSubmission) {
	err := s.progress.Clear(ctx)
	if err != nil {
		logger.Error("Failed to clear progress after submission", zap.Error(err))
	}

	sections, err := s.sections.Sections(ctx)
	if err != nil {
		logger.Warn("Failed to list sections, legacy caches left in place", zap.Error(err))
	} else {
		ids := make([]string, 0, len(sections))
		for _, section := range sections {
			ids = append(ids, section.ID.String())
		}
		err = s.local.ClearLegacySections(ctx, ids)
		if err != nil {
			logger.Error("Failed to clear legacy caches after submission", zap.Error(err))
		}
	}

	err = s.local.ClearSelectedDate(ctx)
	if err != nil {
		logger.Error("Failed to clear selected date after submission", zap.Error(err))
	}

	err = s.local.SetLastSubmission(ctx, summary)
	if err != nil {
		logger.Error("Failed to save last submission summary", zap.Error(err))
	}
}

// BuildPayload wraps rows in the submission API's envelope. The conclusion
// literal appears at both levels.
func BuildPayload(employeeID, name, date string, rows []history.DataResult) history.SubmissionPayload {
	return history.SubmissionPayload{
		EmployeeID: employeeID,
		Name:       name,
		SurveyResult: []history.SurveyResult{{
			Date:             date,
			DataResult:       rows,
			ConclutionResult: history.ConclusionSubmit,
		}},
		ConclutionResult: history.ConclusionSubmit,
	}
}
