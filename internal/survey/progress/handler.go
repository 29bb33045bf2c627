package progress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/survey/catalog"
	"NYCU-SDC/survey-wizard-backend/internal/survey/localstate"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"

	handlerutil "github.com/NYCU-SDC/summer/pkg/handler"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type StartRequest struct {
	EmployeeID     string `json:"employeeId" validate:"omitempty,max=64"`
	EmployeeName   string `json:"employeeName" validate:"omitempty,max=256"`
	FirstSectionID string `json:"firstSectionId" validate:"omitempty,catalog_id"`
}

type AnswerRequest struct {
	Answer       json.RawMessage `json:"answer" validate:"required"`
	QuestionText string          `json:"questionText" validate:"required"`
	SectionTitle string          `json:"sectionTitle" validate:"required"`
}

type CurrentSectionRequest struct {
	SectionID string `json:"sectionId" validate:"required,catalog_id"`
}

type Operator interface {
	Load(ctx context.Context) (Progress, error)
	Initialize(ctx context.Context, employeeID, employeeName, firstSectionID string) (Progress, error)
	RecordAnswer(ctx context.Context, questionID string, value shared.Answer, questionText, sectionTitle string) (Progress, error)
	CompleteSection(ctx context.Context, sectionID string) (Progress, error)
	SetCurrentSection(ctx context.Context, sectionID string) (Progress, error)
	Clear(ctx context.Context) error
}

type SelectionReader interface {
	SelectedEmployee(ctx context.Context) (localstate.SelectedEmployee, error)
}

type SectionLister interface {
	Sections(ctx context.Context) ([]catalog.Section, error)
}

type Gate interface {
	Gate(ctx context.Context, employeeID string) error
}

type Handler struct {
	logger        *zap.Logger
	validator     *validator.Validate
	problemWriter *problem.HttpWriter
	operator      Operator
	selection     SelectionReader
	sections      SectionLister
	gate          Gate
	tracer        trace.Tracer
}

func NewHandler(logger *zap.Logger, validator *validator.Validate, problemWriter *problem.HttpWriter, operator Operator, selection SelectionReader, sections SectionLister, gate Gate) *Handler {
	return &Handler{
		logger:        logger,
		validator:     validator,
		problemWriter: problemWriter,
		operator:      operator,
		selection:     selection,
		sections:      sections,
		gate:          gate,
		tracer:        otel.Tracer("progress/handler"),
	}
}

func (h *Handler) GetHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "GetHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	p, err := h.operator.Load(traceCtx)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, p)
}

// StartHandler begins a new survey, discarding any previous progress. Missing
// employee fields fall back to the selected employee and a missing first
// section to the first catalog section.
func (h *Handler) StartHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "StartHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	var req StartRequest
	err := handlerutil.ParseAndValidateRequestBody(traceCtx, h.validator, r, &req)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	if req.EmployeeID == "" || req.EmployeeName == "" {
		employee, err := h.selection.SelectedEmployee(traceCtx)
		if err != nil && !errors.Is(err, internal.ErrNoSelectedEmployee) {
			h.problemWriter.WriteError(traceCtx, w, err, logger)
			return
		}
		if req.EmployeeID == "" {
			req.EmployeeID = employee.ID
		}
		if req.EmployeeName == "" && employee.ID == req.EmployeeID {
			req.EmployeeName = employee.Name
		}
	}

	if req.FirstSectionID == "" {
		sections, err := h.sections.Sections(traceCtx)
		if err != nil {
			h.problemWriter.WriteError(traceCtx, w, err, logger)
			return
		}
		if len(sections) == 0 {
			h.problemWriter.WriteError(traceCtx, w, internal.ErrEmptySectionCatalog, logger)
			return
		}
		req.FirstSectionID = sections[0].ID.String()
	}

	if h.gate != nil && req.EmployeeID != "" {
		err = h.gate.Gate(traceCtx, req.EmployeeID)
		if err != nil {
			h.problemWriter.WriteError(traceCtx, w, err, logger)
			return
		}
	}

	p, err := h.operator.Initialize(traceCtx, req.EmployeeID, req.EmployeeName, req.FirstSectionID)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusCreated, p)
}

func (h *Handler) RecordAnswerHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "RecordAnswerHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	var req AnswerRequest
	err := handlerutil.ParseAndValidateRequestBody(traceCtx, h.validator, r, &req)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	value, err := shared.ParseAnswer(req.Answer)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	p, err := h.operator.RecordAnswer(traceCtx, r.PathValue("questionId"), value, req.QuestionText, req.SectionTitle)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, p)
}

func (h *Handler) CompleteSectionHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "CompleteSectionHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	p, err := h.operator.CompleteSection(traceCtx, r.PathValue("sectionId"))
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, p)
}

func (h *Handler) SetCurrentSectionHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "SetCurrentSectionHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	var req CurrentSectionRequest
	err := handlerutil.ParseAndValidateRequestBody(traceCtx, h.validator, r, &req)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	p, err := h.operator.SetCurrentSection(traceCtx, req.SectionID)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, p)
}

func (h *Handler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "ClearHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	err := h.operator.Clear(traceCtx)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
