package localstate

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"

	handlerutil "github.com/NYCU-SDC/summer/pkg/handler"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SelectionRequest struct {
	EmployeeID   string `json:"employeeId" validate:"required,max=64"`
	EmployeeName string `json:"employeeName" validate:"required,max=256"`
	SurveyDate   string `json:"surveyDate" validate:"omitempty,survey_date"`
}

var legacySectionIDPattern = regexp.MustCompile(`^[\w.-]+$`)

type SelectionResponse struct {
	Employee   *SelectedEmployee `json:"employee"`
	SurveyDate *time.Time        `json:"surveyDate"`
}

// Handler serves the entry page's employee and date selection.
type Handler struct {
	logger        *zap.Logger
	validator     *validator.Validate
	problemWriter *problem.HttpWriter
	store         *Store
	tracer        trace.Tracer
}

func NewHandler(logger *zap.Logger, validator *validator.Validate, problemWriter *problem.HttpWriter, store *Store) *Handler {
	return &Handler{
		logger:        logger,
		validator:     validator,
		problemWriter: problemWriter,
		store:         store,
		tracer:        otel.Tracer("localstate/handler"),
	}
}

func (h *Handler) GetSelectionHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "GetSelectionHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	var response SelectionResponse

	employee, err := h.store.SelectedEmployee(traceCtx)
	switch {
	case err == nil:
		response.Employee = &employee
	case !errors.Is(err, internal.ErrNoSelectedEmployee):
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	date, ok, err := h.store.SelectedDate(traceCtx)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}
	if ok {
		response.SurveyDate = &date
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, response)
}

// PutSelectionHandler replaces the selection. Omitting the survey date clears a
// previously chosen one so submission falls back to the current time.
func (h *Handler) PutSelectionHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "PutSelectionHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	var req SelectionRequest
	err := handlerutil.ParseAndValidateRequestBody(traceCtx, h.validator, r, &req)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	employee := SelectedEmployee{ID: req.EmployeeID, Name: req.EmployeeName}
	err = h.store.SetSelectedEmployee(traceCtx, employee)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	response := SelectionResponse{Employee: &employee}
	if req.SurveyDate == "" {
		err = h.store.ClearSelectedDate(traceCtx)
	} else {
		err = h.store.SetSelectedDate(traceCtx, req.SurveyDate)
		if err == nil {
			date, _ := internal.ParseSelectedDate(req.SurveyDate)
			response.SurveyDate = &date
		}
	}
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, response)
}

func (h *Handler) DeleteSelectionHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "DeleteSelectionHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	err := h.store.ClearSelectedEmployee(traceCtx)
	if err == nil {
		err = h.store.ClearSelectedDate(traceCtx)
	}
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetLegacySectionHandler returns the per-section answer cache kept by older
// section pages, exactly as stored.
func (h *Handler) GetLegacySectionHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "GetLegacySectionHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	sectionID := r.PathValue("sectionId")
	if !legacySectionIDPattern.MatchString(sectionID) {
		h.problemWriter.WriteError(traceCtx, w, internal.ErrSectionNotFound, logger)
		return
	}

	answers, err := h.store.LegacySection(traceCtx, sectionID)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, answers)
}

// PutLegacySectionHandler replaces a section's legacy cache. Values are kept
// verbatim; submission decides which of them are usable.
func (h *Handler) PutLegacySectionHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "PutLegacySectionHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	sectionID := r.PathValue("sectionId")
	if !legacySectionIDPattern.MatchString(sectionID) {
		h.problemWriter.WriteError(traceCtx, w, internal.ErrSectionNotFound, logger)
		return
	}

	var answers map[string]json.RawMessage
	err := json.NewDecoder(r.Body).Decode(&answers)
	if err != nil {
		span.RecordError(err)
		h.problemWriter.WriteError(traceCtx, w, internal.ErrInvalidRequestBody, logger)
		return
	}
	if answers == nil {
		answers = map[string]json.RawMessage{}
	}

	err = h.store.SetLegacySection(traceCtx, sectionID, answers)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, answers)
}
