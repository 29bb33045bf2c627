package trace

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"NYCU-SDC/survey-wizard-backend/internal"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Middleware struct {
	logger        *zap.Logger
	tracer        trace.Tracer
	problemWriter *problem.HttpWriter
	debug         bool
}

func NewMiddleware(logger *zap.Logger, debug bool) *Middleware {
	return &Middleware{
		logger:        logger,
		tracer:        otel.Tracer("trace/middleware"),
		problemWriter: internal.NewProblemWriter(),
		debug:         debug,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// TraceMiddleware opens the root span of a request, continuing a trace the
// caller propagated in its headers.
func (m *Middleware) TraceMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		traceCtx, span := m.tracer.Start(ctx, r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.Pattern),
			attribute.String("http.target", r.URL.Path),
		)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r.WithContext(traceCtx))

		span.SetAttributes(attribute.Int("http.status_code", recorder.status))
		if recorder.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(recorder.status))
		}

		if m.debug {
			logutil.WithContext(traceCtx, m.logger).Debug("Handled request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.status),
			)
		}
	}
}

// RecoverMiddleware turns a handler panic into a 500 problem response.
func (m *Middleware) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			logger := logutil.WithContext(r.Context(), m.logger)
			fields := []zap.Field{zap.Any("panic", recovered), zap.String("path", r.URL.Path)}
			if m.debug {
				fields = append(fields, zap.ByteString("stack", debug.Stack()))
			}
			logger.Error("Recovered from panic", fields...)

			err := fmt.Errorf("%w: %v", internal.ErrInternalServerError, recovered)
			trace.SpanFromContext(r.Context()).RecordError(err)
			m.problemWriter.WriteError(r.Context(), w, err, logger)
		}()

		next(w, r)
	}
}
