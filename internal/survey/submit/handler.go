package submit

import (
	"context"
	"net/http"

	"NYCU-SDC/survey-wizard-backend/internal/survey/localstate"

	handlerutil "github.com/NYCU-SDC/summer/pkg/handler"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Operator interface {
	Submit(ctx context.Context) (Outcome, error)
	LastSubmission(ctx context.Context) (localstate.LastSubmission, error)
}

type Response struct {
	EmployeeID string     `json:"employeeId"`
	Name       string     `json:"name"`
	Date       string     `json:"date"`
	Year       string     `json:"year"`
	Source     SourceKind `json:"source"`
	Answered   int        `json:"answered"`
}

type Handler struct {
	logger        *zap.Logger
	problemWriter *problem.HttpWriter
	operator      Operator
	tracer        trace.Tracer
}

func NewHandler(logger *zap.Logger, problemWriter *problem.HttpWriter, operator Operator) *Handler {
	return &Handler{
		logger:        logger,
		problemWriter: problemWriter,
		operator:      operator,
		tracer:        otel.Tracer("submit/handler"),
	}
}

// SubmitHandler posts the session's answers to the submission API
func (h *Handler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "SubmitHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	outcome, err := h.operator.Submit(traceCtx)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	answered := 0
	for _, result := range outcome.Payload.SurveyResult {
		answered += len(result.DataResult)
	}

	handlerutil.WriteJSONResponse(w, http.StatusCreated, Response{
		EmployeeID: outcome.Payload.EmployeeID,
		Name:       outcome.Payload.Name,
		Date:       outcome.Summary.Date,
		Year:       outcome.Summary.Year,
		Source:     outcome.Source,
		Answered:   answered,
	})
}

func (h *Handler) LastHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "LastHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	summary, err := h.operator.LastSubmission(traceCtx)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, summary)
}
