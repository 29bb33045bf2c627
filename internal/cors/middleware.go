package cors

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

type Middleware struct {
	logger *zap.Logger
	cors   *cors.Cors
}

// NewMiddleware allows the listed origins to call the API with credentials so
// the session cookie travels with cross-origin requests. An empty list allows
// every origin without credentials.
func NewMiddleware(logger *zap.Logger, allowOrigins []string) *Middleware {
	origins := make([]string, 0, len(allowOrigins))
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}

	options := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Traceparent", "Tracestate"},
		ExposedHeaders:   []string{"X-Survey-Session"},
		AllowCredentials: len(origins) > 0,
		MaxAge:           600,
	}
	if len(origins) == 0 {
		options.AllowedOrigins = []string{"*"}
		logger.Warn("No CORS origins configured, allowing all origins without credentials")
	}

	return &Middleware{
		logger: logger,
		cors:   cors.New(options),
	}
}

func (m *Middleware) HandlerFunc(next http.HandlerFunc) http.HandlerFunc {
	return m.cors.Handler(next).ServeHTTP
}
