package wizard

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

type Navigator interface {
	View(ctx context.Context, sectionID string) (View, error)
	Next(ctx context.Context, sectionID string) (View, error)
	Previous(ctx context.Context, sectionID string) (View, error)
}

type Handler struct {
	logger        *zap.Logger
	problemWriter *problem.HttpWriter
	navigator     Navigator
	tracer        trace.Tracer
}

func NewHandler(logger *zap.Logger, problemWriter *problem.HttpWriter, navigator Navigator) *Handler {
	return &Handler{
		logger:        logger,
		problemWriter: problemWriter,
		navigator:     navigator,
		tracer:        otel.Tracer("wizard/handler"),
	}
}

func (h *Handler) ViewHandler(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "ViewHandler", h.navigator.View)
}

func (h *Handler) NextHandler(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "NextHandler", h.navigator.Next)
}

func (h *Handler) PreviousHandler(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "PreviousHandler", h.navigator.Previous)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, name string, step func(context.Context, string) (View, error)) {
	traceCtx, span := h.tracer.Start(r.Context(), name)
	defer span.End()
	logger := logutil.WithContext(traceCtx, h.logger)

	view, err := step(traceCtx, r.PathValue("sectionId"))
	if err != nil {
		h.problemWriter.WriteError(traceCtx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, view)
}
