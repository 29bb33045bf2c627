package jwt

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"NYCU-SDC/survey-wizard-backend/internal"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	CookieName = "survey_session"

	// TokenHeader carries a freshly minted token for clients that do not keep cookies.
	TokenHeader = "X-Survey-Session"
)

type tokenIssuer interface {
	New(ctx context.Context, sessionID uuid.UUID) (string, error)
	Parse(ctx context.Context, tokenString string) (uuid.UUID, error)
	Expiration() time.Duration
}

type Middleware struct {
	logger        *zap.Logger
	tracer        trace.Tracer
	problemWriter *problem.HttpWriter
	service       tokenIssuer
	secureCookie  bool
}

func NewMiddleware(logger *zap.Logger, problemWriter *problem.HttpWriter, service *Service, secureCookie bool) *Middleware {
	return &Middleware{
		logger:        logger,
		tracer:        otel.Tracer("jwt/middleware"),
		problemWriter: problemWriter,
		service:       service,
		secureCookie:  secureCookie,
	}
}

// SessionMiddleware resolves the browser session from the Authorization header or
// the session cookie. A missing or invalid token starts a new session, so a
// tampered or expired token simply loses the old local state.
func (m *Middleware) SessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceCtx, span := m.tracer.Start(r.Context(), "SessionMiddleware")
		defer span.End()
		logger := logutil.WithContext(traceCtx, m.logger)

		token := tokenFromRequest(r)
		if token != "" {
			sessionID, err := m.service.Parse(traceCtx, token)
			if err == nil {
				next(w, r.WithContext(internal.WithSessionID(r.Context(), sessionID.String())))
				return
			}
		}

		sessionID := uuid.New()
		token, err := m.service.New(traceCtx, sessionID)
		if err != nil {
			logger.Error("Failed to start survey session", zap.Error(err))
			span.RecordError(err)
			m.problemWriter.WriteError(traceCtx, w, fmt.Errorf("%w: start survey session: %v", internal.ErrInternalServerError, err), logger)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(m.service.Expiration().Seconds()),
			HttpOnly: true,
			Secure:   m.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set(TokenHeader, token)

		logger.Debug("Started survey session", zap.String("session_id", sessionID.String()))
		next(w, r.WithContext(internal.WithSessionID(r.Context(), sessionID.String())))
	}
}

func tokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}

	cookie, err := r.Cookie(CookieName)
	if err == nil {
		return cookie.Value
	}
	return ""
}
