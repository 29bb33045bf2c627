package catalog

import (
	"context"
	"net/http"

	handlerutil "github.com/NYCU-SDC/summer/pkg/handler"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Reader interface {
	Sections(ctx context.Context) ([]Section, error)
	QuestionsForSection(ctx context.Context, sectionID string) (Section, []Question, error)
}

type SectionQuestionsResponse struct {
	Section   Section    `json:"section"`
	Questions []Question `json:"questions"`
}

type Handler struct {
	logger        *zap.Logger
	problemWriter *problem.HttpWriter
	reader        Reader
	tracer        trace.Tracer
}

func NewHandler(logger *zap.Logger, problemWriter *problem.HttpWriter, reader Reader) *Handler {
	return &Handler{
		logger:        logger,
		problemWriter: problemWriter,
		reader:        reader,
		tracer:        otel.Tracer("catalog/handler"),
	}
}

func (h *Handler) ListSectionsHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "ListSectionsHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	sections, err := h.reader.Sections(traceCtx)
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}
	if sections == nil {
		sections = []Section{}
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, sections)
}

func (h *Handler) ListQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	traceCtx, span := h.tracer.Start(r.Context(), "ListQuestionsHandler")
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	section, questions, err := h.reader.QuestionsForSection(traceCtx, r.PathValue("sectionId"))
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, SectionQuestionsResponse{
		Section:   section,
		Questions: questions,
	})
}
