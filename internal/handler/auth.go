package handler

import (
	"log/slog"
	"net/http"

	"github.com/notesd/notesd/internal/auth"
	"github.com/notesd/notesd/internal/handler/dto"
	"github.com/notesd/notesd/internal/service"
)

// AuthHandler handles account and session endpoints.
type AuthHandler struct {
	svc           *service.AccountService
	tokens        *auth.TokenService
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AccountService, tokens *auth.TokenService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:           svc,
		tokens:        tokens,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}

	user, session, err := h.svc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_registered", "user_id", user.ID)

	h.setSession(w, session)
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.CredentialsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeDecodeError(w, err)
		return
	}

	user, session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("user_logged_in", "user_id", user.ID)

	h.setSession(w, session)
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// Refresh handles POST /auth/refresh. Runs behind the refresh-token authenticator.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	session, err := h.svc.Refresh(r.Context(), user)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.setSession(w, session)
	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// Logout handles POST /auth/logout. It always succeeds and clears both cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims := h.refreshClaims(r); claims != nil {
		h.svc.Logout(r.Context(), claims)
		h.logger.Info("user_logged_out")
	}

	auth.ClearTokenCookies(w, h.secureCookies)
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Logged out"})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.ToUserResponse(auth.MustUserFromContext(r.Context())))
}

// DeleteMe handles DELETE /auth/me. The user's notes are removed with the account.
func (h *AuthHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user := auth.MustUserFromContext(r.Context())

	if err := h.svc.DeleteAccount(r.Context(), user); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.svc.Logout(r.Context(), h.refreshClaims(r))
	h.logger.Info("user_deleted", "user_id", user.ID)

	auth.ClearTokenCookies(w, h.secureCookies)
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Account deleted"})
}

func (h *AuthHandler) setSession(w http.ResponseWriter, session *service.Session) {
	auth.SetTokenCookie(w, auth.TokenAccess, session.AccessToken, session.AccessTTL, h.secureCookies)
	if session.RefreshToken != "" {
		auth.SetTokenCookie(w, auth.TokenRefresh, session.RefreshToken, session.RefreshTTL, h.secureCookies)
	}
}

// refreshClaims returns the verified refresh claims on r, or nil.
func (h *AuthHandler) refreshClaims(r *http.Request) *auth.Claims {
	cookie, err := r.Cookie(auth.RefreshCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := h.tokens.Verify(cookie.Value, auth.TokenRefresh)
	if err != nil {
		return nil
	}
	return claims
}
