package auth

import (
	"net/http"
	"time"
)

// Cookie names for session tokens.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// CookieName returns the cookie that carries tokens of kind.
func CookieName(kind TokenKind) string {
	if kind == TokenRefresh {
		return RefreshCookie
	}
	return AccessCookie
}

// SetTokenCookie writes an HttpOnly, SameSite=Lax cookie holding token.
func SetTokenCookie(w http.ResponseWriter, kind TokenKind, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(kind),
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookies expires both session cookies.
func ClearTokenCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
