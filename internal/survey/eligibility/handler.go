package eligibility

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"NYCU-SDC/survey-wizard-backend/internal"

	handlerutil "github.com/NYCU-SDC/summer/pkg/handler"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Checker interface {
	CheckEmployee(ctx context.Context, employeeID string) (Result, error)
}

type Response struct {
	EmployeeID           string `json:"employeeId"`
	HasSubmittedThisYear bool   `json:"hasSubmittedThisYear"`
	Date                 string `json:"date,omitempty"`
	Year                 string `json:"year,omitempty"`
}

type Handler struct {
	logger        *zap.Logger
	problemWriter *problem.HttpWriter
	checker       Checker
	tracer        trace.Tracer
}

func NewHandler(logger *zap.Logger, problemWriter *problem.HttpWriter, checker Checker) *Handler {
	return &Handler{
		logger:        logger,
		problemWriter: problemWriter,
		checker:       checker,
		tracer:        otel.Tracer("eligibility/handler"),
	}
}

// GetHandler reports whether the employee in the path has already submitted this year
func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "GetHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	employeeID := strings.TrimSpace(r.PathValue("employeeId"))
	if employeeID == "" {
		h.problemWriter.WriteError(traceCtx, w, fmt.Errorf("%w: employee id is required", internal.ErrValidationFailed), logger)
		return
	}

	result, err := h.checker.CheckEmployee(traceCtx, employeeID)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, Response{
		EmployeeID:           employeeID,
		HasSubmittedThisYear: result.HasSubmittedThisYear,
		Date:                 result.Date,
		Year:                 result.Year,
	})
}
