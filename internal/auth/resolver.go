package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/notesd/notesd/internal/model"
	"github.com/notesd/notesd/internal/repository"
)

// ErrUnauthenticated is returned for every identity failure. Callers cannot tell
// a missing cookie from a bad token or a deleted account.
var ErrUnauthenticated = errors.New("unauthenticated")

// UserLookup finds users by the email carried in a token subject.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// Resolver turns a request's session cookie into a user.
type Resolver struct {
	tokens  *TokenService
	users   UserLookup
	revoked RevocationChecker
}

// NewResolver creates a Resolver. revoked may be nil when revocation is disabled.
func NewResolver(tokens *TokenService, users UserLookup, revoked RevocationChecker) *Resolver {
	return &Resolver{
		tokens:  tokens,
		users:   users,
		revoked: revoked,
	}
}

// Resolve verifies the cookie for kind and loads the user named by its subject.
// Store failures other than a missing user are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, kind TokenKind) (*model.User, *Claims, error) {
	cookie, err := req.Cookie(CookieName(kind))
	if err != nil || cookie.Value == "" {
		return nil, nil, ErrUnauthenticated
	}

	claims, err := r.tokens.Verify(cookie.Value, kind)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}

	if kind == TokenRefresh && r.revoked != nil {
		// Fail open on cache errors, as rate limiting does.
		if revoked, err := r.revoked.IsTokenRevoked(ctx, claims.ID); err == nil && revoked {
			return nil, nil, ErrUnauthenticated
		}
	}

	user, err := r.users.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrUnauthenticated
		}
		return nil, nil, fmt.Errorf("resolve user: %w", err)
	}

	return user, claims, nil
}
