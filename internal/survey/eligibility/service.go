package eligibility

import (
	"context"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/survey/history"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type HistoryLister interface {
	List(ctx context.Context, employeeID string) ([]history.Submission, error)
}

type Service struct {
	logger  *zap.Logger
	tracer  trace.Tracer
	history HistoryLister
	loc     *time.Location
	now     func() time.Time
}

func NewService(logger *zap.Logger, history HistoryLister, loc *time.Location) *Service {
	return &Service{
		logger:  logger,
		tracer:  otel.Tracer("eligibility/service"),
		history: history,
		loc:     loc,
		now:     time.Now,
	}
}

// CheckEmployee fetches the employee's history and checks it against the
// current year. A history fetch failure is returned as is; the caller decides
// whether to let the employee continue.
func (s *Service) CheckEmployee(ctx context.Context, employeeID string) (Result, error) {
	traceCtx, span := s.tracer.Start(ctx, "CheckEmployee")
	defer span.End()
	logger := logutil.WithContext(traceCtx, s.logger)

	submissions, err := s.history.List(traceCtx, employeeID)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	result := Check(employeeID, submissions, s.now(), s.loc)
	if result.HasSubmittedThisYear {
		logger.Info("Employee already submitted this year",
			zap.String("employee_id", employeeID),
			zap.String("date", result.Date),
			zap.String("year", result.Year))
	}

	return result, nil
}

// Gate returns internal.ErrAlreadySubmitted when the employee may not take the
// survey again this year.
func (s *Service) Gate(ctx context.Context, employeeID string) error {
	result, err := s.CheckEmployee(ctx, employeeID)
	if err != nil {
		return err
	}
	if result.HasSubmittedThisYear {
		return internal.ErrAlreadySubmitted{
			EmployeeID: employeeID,
			Date:       result.Date,
			Year:       result.Year,
		}
	}
	return nil
}
