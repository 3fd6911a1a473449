package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notesd/notesd/internal/auth"
	"github.com/notesd/notesd/internal/metrics"
	"github.com/notesd/notesd/internal/model"
	"github.com/notesd/notesd/internal/repository"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 256
	maxEmailLength    = 254
)

// TokenRevoker records refresh token ids that must no longer be accepted.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

// Session holds a freshly issued token pair. RefreshToken is empty when only
// the access token was renewed.
type Session struct {
	AccessToken  string
	AccessTTL    time.Duration
	RefreshToken string
	RefreshTTL   time.Duration
}

// AccountService handles registration, login and session lifecycle.
type AccountService struct {
	users   UserStore
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
	revoker TokenRevoker
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService creates a new AccountService. revoker may be nil.
func NewAccountService(users UserStore, hasher *auth.PasswordHasher, tokens *auth.TokenService, revoker TokenRevoker, recorder metrics.Recorder, logger *slog.Logger) *AccountService {
	if hasher == nil {
		hasher = auth.NewPasswordHasher()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		revoker: revoker,
		metrics: recorder,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates an account and logs it in.
func (s *AccountService) Register(ctx context.Context, email, password string) (*model.User, *Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if len(password) < minPasswordLength {
		return nil, nil, invalidInput("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		return nil, nil, invalidInput("password", fmt.Sprintf("must be at most %d characters", maxPasswordLength))
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.issueSession(user, true)
	if err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Login checks credentials and issues a token pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*model.User, *Session, error) {
	email = strings.TrimSpace(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, fmt.Errorf("failed to load user: %w", err)
		}
		// Keep timing close to the found-user path.
		s.hasher.Verify(password, s.dummy())
		s.metrics.IncLogin(false)
		return nil, nil, ErrInvalidCredentials
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored_hash_invalid", "user_id", user.ID, "error", err)
	}
	if !ok {
		s.metrics.IncLogin(false)
		return nil, nil, ErrInvalidCredentials
	}

	session, err := s.issueSession(user, true)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.IncLogin(true)
	return user, session, nil
}

// Refresh issues a new access token for a user resolved from a refresh token.
func (s *AccountService) Refresh(ctx context.Context, user *model.User) (*Session, error) {
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return s.issueSession(user, false)
}

// Logout revokes the refresh token when revocation is configured. It never
// fails: cookies are cleared regardless.
func (s *AccountService) Logout(ctx context.Context, refresh *auth.Claims) {
	if s.revoker == nil || refresh == nil || refresh.ID == "" || refresh.ExpiresAt == nil {
		return
	}
	ttl := refresh.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.revoker.RevokeToken(ctx, refresh.ID, ttl); err != nil {
		s.logger.Warn("token_revoke_failed", "error", err)
	}
}

// DeleteAccount removes the user and all of their notes.
func (s *AccountService) DeleteAccount(ctx context.Context, user *model.User) error {
	if user == nil {
		return ErrUnauthenticated
	}
	if err := s.users.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnauthenticated
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *AccountService) issueSession(user *model.User, withRefresh bool) (*Session, error) {
	access, _, err := s.tokens.Issue(auth.TokenAccess, user.Email)
	if err != nil {
		return nil, err
	}
	session := &Session{
		AccessToken: access,
		AccessTTL:   s.tokens.TTL(auth.TokenAccess),
	}
	if withRefresh {
		refresh, _, err := s.tokens.Issue(auth.TokenRefresh, user.Email)
		if err != nil {
			return nil, err
		}
		session.RefreshToken = refresh
		session.RefreshTTL = s.tokens.TTL(auth.TokenRefresh)
	}
	return session, nil
}

func (s *AccountService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("dummy-password-for-timing")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" || len(email) > maxEmailLength {
		return "", invalidInput("email", "must be a valid email address")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", invalidInput("email", "must be a valid email address")
	}
	return email, nil
}
