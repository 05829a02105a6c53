// Package service holds the business rules. Handlers call services;
// services call repositories:
//
//	Handler (HTTP) → Service (rules) → Repository → store.Store
//
// Services never see HTTP types, and return apperror kinds the handlers
// translate into status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/putmeon/internal/apperror"
	"github.com/sakif/putmeon/internal/auth"
	"github.com/sakif/putmeon/internal/model"
	"github.com/sakif/putmeon/internal/repository"
)

const maxUsernameLength = 64

// AuthService is the credential collaborator: it registers users, checks
// passwords, and issues and verifies sessions.
//
// A session is valid when its token verifies AND its id matches the
// session record stored on the user. Logging in again or logging out
// replaces that record, which revokes every earlier token.
type AuthService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	tokens    *auth.SessionTokens
	logger    *slog.Logger
	now       func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	tokens *auth.SessionTokens,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
		now:       time.Now,
	}
}

// LoginResult is what a successful login hands back to the handler.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates a user with a hashed password.
func (s *AuthService) Register(ctx context.Context, username, password string) (*model.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user, err := s.users.Create(ctx, username, hash)
	if err != nil {
		return nil, fmt.Errorf("service/auth: registering %s: %w", username, err)
	}

	s.logger.Info("user registered", slog.String("username", username))
	return user, nil
}

// Verify reports whether password is correct for username. An unknown user
// is simply a failed verification.
func (s *AuthService) Verify(ctx context.Context, username, password string) (bool, error) {
	creds, err := s.users.Credentials(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("service/auth: loading credentials for %s: %w", username, err)
	}

	if err := s.passwords.Verify(creds.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return false, nil
		}
		return false, fmt.Errorf("service/auth: verifying %s: %w", username, err)
	}
	return true, nil
}

// IssueSession starts a new session for username, replacing any previous
// one, and returns its token.
func (s *AuthService) IssueSession(ctx context.Context, username string) (*LoginResult, error) {
	token, session, err := s.tokens.Issue(username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for %s: %w", username, err)
	}

	if err := s.users.SetSession(ctx, username, session); err != nil {
		return nil, fmt.Errorf("service/auth: storing session for %s: %w", username, err)
	}

	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Login verifies the password and issues a session. Wrong password and
// unknown user produce the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	ok, err := s.Verify(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("login rejected", slog.String("username", username))
		return nil, apperror.Unauthorized("invalid username or password")
	}

	result, err := s.IssueSession(ctx, username)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("username", username))
	return result, nil
}

// Logout clears the stored session so no existing token passes
// CheckSession any more.
func (s *AuthService) Logout(ctx context.Context, username string) error {
	if err := s.users.SetSession(ctx, username, model.Session{}); err != nil {
		return fmt.Errorf("service/auth: logging out %s: %w", username, err)
	}
	s.logger.Info("user logged out", slog.String("username", username))
	return nil
}

// CheckSession reports whether token is a current session of username.
func (s *AuthService) CheckSession(ctx context.Context, username, token string) (bool, error) {
	got, err := s.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			return false, nil
		}
		return false, err
	}
	return got == username, nil
}

// Authenticate resolves token to the username of a current session.
// Any reason for rejection is reported as apperror.ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (string, error) {
	username, sessionID, err := s.tokens.Parse(token)
	if err != nil {
		return "", apperror.Unauthorized("invalid or expired session")
	}

	creds, err := s.users.Credentials(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Unauthorized("invalid or expired session")
		}
		return "", fmt.Errorf("service/auth: loading session for %s: %w", username, err)
	}

	stored := creds.Session
	if stored.IsBlank() || stored.ID != sessionID || stored.Expired(s.now()) {
		return "", apperror.Unauthorized("invalid or expired session")
	}
	return username, nil
}

func validateUsername(username string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return apperror.ValidationFailed("username", "username is required")
	case len(username) > maxUsernameLength:
		return apperror.ValidationFailed("username", fmt.Sprintf("username must be %d characters or fewer", maxUsernameLength))
	case strings.ContainsAny(username, "/?#"):
		return apperror.ValidationFailed("username", "username must not contain '/', '?' or '#'")
	}
	return nil
}
