package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	pkgauth "github.com/BradenHooton/mriscan/pkg/auth"
	pkglogger "github.com/BradenHooton/mriscan/pkg/logger"
)

// SessionUser is the public identity returned by login and me.
type SessionUser struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// LoginResult carries the signed session token and its claims.
type LoginResult struct {
	Token  string
	Claims *models.SessionClaims
	User   *SessionUser
}

// AuthService handles signup, login and per-request session authentication.
type AuthService struct {
	repo          UserRepository
	hasher        *pkgauth.Hasher
	codec         *auth.SessionCodec
	timing        *auth.TimingDelay
	revokeOnReset bool
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(
	repo UserRepository,
	hasher *pkgauth.Hasher,
	codec *auth.SessionCodec,
	timing *auth.TimingDelay,
	revokeOnReset bool,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:          repo,
		hasher:        hasher,
		codec:         codec,
		timing:        timing,
		revokeOnReset: revokeOnReset,
		logger:        logger,
		auditLogger:   auditLogger,
	}
}

// Signup creates a USER (or the requested role) account. The email is
// trimmed but its case is kept.
func (s *AuthService) Signup(ctx context.Context, email, password, role string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, models.ErrBadRequest
	}

	parsedRole, err := models.ParseRole(strings.TrimSpace(role))
	if err != nil {
		s.logger.Info("signup rejected: invalid role", slog.String("role", role))
		return nil, models.ErrInvalidRole
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		if errors.Is(err, pkgauth.ErrEmptyPassword) || errors.Is(err, pkgauth.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
		}
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user, err := s.repo.Create(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         parsedRole,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Info("signup rejected: email already registered")
			s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "signup_failed",
				FailureReason: "duplicate_email",
				Success:       false,
			})
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user signed up", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "signup",
		UserID:    user.ID,
		Success:   true,
	})

	return user, nil
}

// dummy returns a hash to compare against when the email is unknown, so
// both failure paths pay for one bcrypt comparison.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.HashPassword("not-a-real-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password both return ErrInvalidCredentials after the same delay.
func (s *AuthService) Login(ctx context.Context, email, password, ipAddress string) (*LoginResult, error) {
	start := time.Now()

	fail := func(userID, reason string) (*LoginResult, error) {
		s.logger.Info("login failed", slog.String("reason", reason))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			UserID:        userID,
			IPAddress:     ipAddress,
			FailureReason: reason,
			Success:       false,
		})
		s.timing.WaitFrom(start, false)
		return nil, models.ErrInvalidCredentials
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fail("", "missing_credentials")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.hasher.ComparePassword(s.dummy(), password)
			return fail("", "unknown_email")
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !s.hasher.ComparePassword(user.PasswordHash, password) {
		return fail(user.ID, "wrong_password")
	}

	token, claims, err := s.codec.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error("failed to issue session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		IPAddress: ipAddress,
		Success:   true,
	})
	s.timing.WaitFrom(start, true)

	return &LoginResult{
		Token:  token,
		Claims: claims,
		User:   &SessionUser{ID: user.ID, Email: user.Email, Role: user.Role},
	}, nil
}

// Authenticate verifies a session token. With revocation enabled it also
// rejects sessions of deleted users and sessions issued before the user's
// last password change.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.SessionClaims, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, models.ErrUnauthorized
	}

	if !s.revokeOnReset {
		return claims, nil
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("session rejected: user no longer exists", slog.String("user_id", claims.UserID))
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load session user", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// iat has second precision
	if user.PasswordChangedAt != nil && claims.IssuedAt != nil &&
		claims.IssuedAt.Time.Before(user.PasswordChangedAt.Truncate(time.Second)) {
		s.logger.Info("session rejected: issued before password change", slog.String("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}

	return claims, nil
}

// Me returns the identity carried by the session.
func (s *AuthService) Me(claims *models.SessionClaims) (*SessionUser, error) {
	if err := auth.RequireAuthenticated(claims); err != nil {
		return nil, err
	}
	return &SessionUser{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// SessionTTL is the lifetime of issued sessions, used for the cookie max-age.
func (s *AuthService) SessionTTL() time.Duration {
	return s.codec.TTL()
}
