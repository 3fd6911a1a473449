package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notesd/notesd/internal/model"
	"github.com/notesd/notesd/internal/repository"
)

type fakeUsers map[string]*model.User

func (f fakeUsers) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if email == "broken@example.com" {
		return nil, errors.New("connection reset")
	}
	user, ok := f[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f *fakeRevocations) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.revoked[jti], nil
}

func requestWithCookie(name, value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.AddCookie(&http.Cookie{Name: name, Value: value})
	return req
}

func TestResolver_Resolve(t *testing.T) {
	tokens := newTestTokens()
	alice := &model.User{ID: "u-1", Email: "alice@example.com", CreatedAt: time.Now()}
	users := fakeUsers{alice.Email: alice}
	resolver := NewResolver(tokens, users, nil)
	ctx := context.Background()

	access, _, err := tokens.Issue(TokenAccess, alice.Email)
	require.NoError(t, err)
	refresh, _, err := tokens.Issue(TokenRefresh, alice.Email)
	require.NoError(t, err)

	t.Run("valid access cookie", func(t *testing.T) {
		user, claims, err := resolver.Resolve(ctx, requestWithCookie(AccessCookie, access), TokenAccess)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, user.ID)
		assert.Equal(t, TokenAccess, claims.Kind)
	})

	t.Run("valid refresh cookie", func(t *testing.T) {
		user, _, err := resolver.Resolve(ctx, requestWithCookie(RefreshCookie, refresh), TokenRefresh)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, user.ID)
	})

	t.Run("missing cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/notes", nil)
		_, _, err := resolver.Resolve(ctx, req, TokenAccess)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("refresh token in access cookie", func(t *testing.T) {
		_, _, err := resolver.Resolve(ctx, requestWithCookie(AccessCookie, refresh), TokenAccess)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("access cookie used for refresh", func(t *testing.T) {
		_, _, err := resolver.Resolve(ctx, requestWithCookie(RefreshCookie, access), TokenRefresh)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("unknown user", func(t *testing.T) {
		ghost, _, err := tokens.Issue(TokenAccess, "ghost@example.com")
		require.NoError(t, err)
		_, _, err = resolver.Resolve(ctx, requestWithCookie(AccessCookie, ghost), TokenAccess)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("store failure is not unauthenticated", func(t *testing.T) {
		broken, _, err := tokens.Issue(TokenAccess, "broken@example.com")
		require.NoError(t, err)
		_, _, err = resolver.Resolve(ctx, requestWithCookie(AccessCookie, broken), TokenAccess)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestResolver_Revocation(t *testing.T) {
	tokens := newTestTokens()
	alice := &model.User{ID: "u-1", Email: "alice@example.com"}
	users := fakeUsers{alice.Email: alice}
	ctx := context.Background()

	refresh, claims, err := tokens.Issue(TokenRefresh, alice.Email)
	require.NoError(t, err)

	revocations := &fakeRevocations{revoked: map[string]bool{claims.ID: true}}
	resolver := NewResolver(tokens, users, revocations)

	_, _, err = resolver.Resolve(ctx, requestWithCookie(RefreshCookie, refresh), TokenRefresh)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Cache outage fails open.
	revocations.err = errors.New("redis down")
	user, _, err := resolver.Resolve(ctx, requestWithCookie(RefreshCookie, refresh), TokenRefresh)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)
}

func TestTokenCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetTokenCookie(rec, TokenAccess, "abc", 15*time.Minute, true)
	SetTokenCookie(rec, TokenRefresh, "def", 7*24*time.Hour, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	access := byName[AccessCookie]
	require.NotNil(t, access)
	assert.Equal(t, "abc", access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Equal(t, 900, access.MaxAge)
	assert.Equal(t, "/", access.Path)

	refresh := byName[RefreshCookie]
	require.NotNil(t, refresh)
	assert.Equal(t, 7*24*3600, refresh.MaxAge)

	cleared := httptest.NewRecorder()
	ClearTokenCookies(cleared, false)
	for _, c := range cleared.Result().Cookies() {
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
		assert.False(t, c.Secure)
	}
}
