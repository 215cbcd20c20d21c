package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"raincheck/internal/types"
)

// Lambda function URLs time out at 30s; keep one second for cleanup.
const defaultRequestTimeout = 29 * time.Second

const maxRequestIDLength = 128

var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Api-Key",
}

// MountRoutes installs the global middleware chain, the service index,
// /health, /metrics and the /v1 group.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", s.mountV1)

	s.router.Get("/", s.HandleIndex)
	s.router.Get("/health", s.HandleHealth)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "no route for "+r.Method+" "+r.URL.Path, nil))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusMethodNotAllowed, APIErrorResponse{Error: ErrorDetail{
			Code:      string(types.ErrCodeNotFoundRoute),
			Message:   "method " + r.Method + " not allowed on " + r.URL.Path,
			RequestID: types.GetRequestID(r.Context()),
		}})
	})
}

// Order matters: the recoverer wraps everything, request ids exist before
// logging, and metrics observe the final status.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
}

func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Server.CorsAllowedOrigins) > 0 {
		return s.Config.Server.CorsAllowedOrigins
	}
	return []string{"*"}
}

// ContextTimeoutMiddleware bounds every request context. Handlers observe
// the deadline through ctx; upstream calls inherit it.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses a caller-supplied X-Request-Id or mints a
// UUIDv4, stores it in the context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), requestID)))
	})
}

type indexResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Commit    string            `json:"commit,omitempty"`
	Endpoints map[string]string `json:"endpoints"`
}

// HandleIndex describes the service and its main endpoints.
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	resp := indexResponse{
		Service: "raincheck KBO rain-cancellation prediction API",
		Version: "dev",
		Endpoints: map[string]string{
			"health":           "/health",
			"stadiums":         "/v1/stadiums",
			"model_info":       "/v1/model-info",
			"predict":          "/v1/predict",
			"predict_game":     "/v1/predict/game",
			"weather":          "/v1/weather",
			"weather_timeline": "/v1/weather/timeline",
		},
	}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
		resp.Commit = s.Config.Build.Commit
	}
	JSON(w, r, http.StatusOK, resp)
}
