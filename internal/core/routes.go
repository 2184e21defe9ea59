package core

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"stockbrief/internal/types"
)

// defaultRequestTimeout is the soft deadline applied to request contexts when
// the configuration does not set one. Report generation makes two sequential
// upstream calls of up to 30s each.
const defaultRequestTimeout = 90 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in
// request logs: bearer tokens, cookies, webhook signatures and the operator
// key.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Signature",
	adminKeyHeader,
}

// MountRoutes registers the global middleware chain, the domain routes and
// the top-level operational routes.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "route not found", nil))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, r, http.StatusMethodNotAllowed, ErrorResponse{
			Error:     "method not allowed",
			Code:      "method_not_allowed",
			RequestID: types.GetRequestID(r.Context()),
		})
	})

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router, s)
	}

	s.router.Get("/health", s.HandleHealth)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. RequestID       - Generates/propagates the correlation ID, so every
//     response below it, panics included, carries the ID.
//  2. Recoverer       - Catches panics from everything after it.
//  3. ContextTimeout  - Soft deadline for the whole request.
//  4. SecurityHeaders - Present on every response, errors included.
//  5. RequestLogger   - Structured logging with redacted headers.
//  6. CORS            - Answers preflights before any auth check.
//  7. Metrics         - Request latency and count recording.
//  8. Compression     - gzip for report text and proxied statements.
//
// Authentication is not global: handlers opt in per route group with
// RequireIdentity or RequireAdminKey, since the webhook and the statement
// proxy are public.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(CompressionMiddleware)
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Server.RequestTimeout > 0 {
		return s.Config.Server.RequestTimeout
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

// NewCORSMiddleware configures go-chi/cors for the browser client. Bearer
// tokens travel in the Authorization header, so credentials mode is off.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-Id",
		},
		ExposedHeaders: []string{
			"X-Request-Id",
		},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}

// CompressionMiddleware gzips responses for clients that accept it. Small
// bodies are left alone by gzhttp's minimum size threshold.
func CompressionMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// ContextTimeoutMiddleware sets a deadline on the request context. Handlers
// observe the cancelled context; the response is decided by the handler.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses an incoming X-Request-Id or generates a UUID,
// stores it in the context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
