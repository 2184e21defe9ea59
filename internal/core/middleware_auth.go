package core

import (
	"errors"
	"log/slog"
	"net/http"

	"stockbrief/internal/auth"
	"stockbrief/internal/types"
)

// adminKeyHeader carries the operator key on admin routes.
const adminKeyHeader = "X-Admin-Key"

// RequireIdentity wraps handlers that need a signed-in caller.
//
//  1. Extracts the Bearer token from the Authorization header.
//  2. Calls Authenticator.ResolveToken to resolve the token.
//  3. Injects the identity into the request context via types.WithIdentity.
//  4. Returns 401 with auth_token_missing, auth_token_invalid or
//     auth_token_expired when the credential is rejected. An unreachable
//     identity provider surfaces as the 500 it maps to, not as a 401.
//
// The resolver is asked on every request; nothing is cached.
func (s *Server) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			s.Logger.Error("authenticated route reached without an authenticator",
				slog.String("path", r.URL.Path),
			)
			Error(w, r, types.NewAppError(types.ErrCodeInternalUnexpected, "authentication is not configured", nil))
			return
		}

		token := auth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "Missing or invalid Authorization header", nil))
			return
		}

		identity, err := s.Authenticator.ResolveToken(r.Context(), token)
		if err != nil {
			s.handleAuthError(w, r, err)
			return
		}
		if identity == nil || identity.ID == "" {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Invalid authentication token", nil))
			return
		}

		ctx := types.WithIdentity(r.Context(), *identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handleAuthError inspects the error from Authenticator.ResolveToken and
// writes the matching response.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeAuthTokenExpired:
			s.Logger.Warn("authentication failed: token expired",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenExpired, "Authentication token has expired", nil))
			return
		case types.ErrCodeAuthTokenInvalid, types.ErrCodeAuthTokenMissing:
			s.Logger.Warn("authentication failed: token invalid",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("error_code", string(appErr.Code)),
			)
			Error(w, r, types.NewAppError(appErr.Code, "Invalid authentication token", nil))
			return
		}
		if types.IsUpstream(appErr) {
			s.Logger.Error("authentication failed: identity provider unavailable",
				slog.String("path", r.URL.Path),
				slog.String("error_code", string(appErr.Code)),
				slog.String("error", err.Error()),
			)
			Error(w, r, types.NewAppError(appErr.Code, "Unable to verify credentials. Please try again shortly.", err))
			return
		}
	}

	s.Logger.Error("authentication failed: unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	Error(w, r, types.NewAppError(types.ErrCodeAuthTokenInvalid, "Authentication failed", nil))
}

// RequireAdminKey guards operator routes with the X-Admin-Key header. When no
// admin key is configured the routes answer 404 as if they did not exist.
func (s *Server) RequireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKeys == nil || !s.AdminKeys.Enabled() {
			Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "route not found", nil))
			return
		}

		if err := s.AdminKeys.Verify(r.Header.Get(adminKeyHeader)); err != nil {
			s.Logger.Warn("admin key rejected",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				err = types.NewAppError(types.ErrCodeAuthAdminKey, "invalid admin key", err)
			}
			Error(w, r, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}
