package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/notesd/notesd/internal/auth"
	"github.com/notesd/notesd/internal/model"
)

// IdentityResolver resolves the session cookie of a request to a user.
type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request, kind auth.TokenKind) (*model.User, *auth.Claims, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver IdentityResolver
	// Kind selects the cookie to read. Defaults to the access token.
	Kind auth.TokenKind
}

// Authenticate returns a middleware that requires a valid session cookie and
// injects the resolved user into the request context.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	kind := cfg.Kind
	if kind == "" {
		kind = auth.TokenAccess
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, claims, err := cfg.Resolver.Resolve(r.Context(), r, kind)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					cfg.Logger.Warn("authentication failed",
						slog.String("token", string(kind)),
						slog.String("endpoint", r.Method+" "+r.URL.Path),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeAuthError(w)
					return
				}

				cfg.Logger.Error("identity lookup failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
				return
			}

			setLogUser(r.Context(), user.ID)
			ctx := auth.ContextWithUser(r.Context(), user, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated")
}
