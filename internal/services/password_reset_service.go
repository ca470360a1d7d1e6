package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/mriscan/internal/models"
	pkgauth "github.com/BradenHooton/mriscan/pkg/auth"
	pkglogger "github.com/BradenHooton/mriscan/pkg/logger"
)

// ResetTokenRepository is the subset of the user store used for password resets.
type ResetTokenRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)
}

// PasswordResetConfig holds reset token and delivery settings.
type PasswordResetConfig struct {
	TokenTTL    time.Duration
	SendTimeout time.Duration
}

// PasswordResetService issues single-use reset tokens and redeems them.
type PasswordResetService struct {
	repo        ResetTokenRepository
	hasher      *pkgauth.Hasher
	email       EmailService
	config      PasswordResetConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time

	pending sync.WaitGroup
}

func NewPasswordResetService(
	repo ResetTokenRepository,
	hasher *pkgauth.Hasher,
	email EmailService,
	config PasswordResetConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *PasswordResetService {
	if config.TokenTTL <= 0 {
		config.TokenTTL = time.Hour
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}

	return &PasswordResetService{
		repo:        repo,
		hasher:      hasher,
		email:       email,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// RequestReset starts a reset for email if such a user exists. It never
// reports whether the account exists, and delivery happens in the
// background so the caller's latency does not depend on it.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, ipAddress string) {
	email = strings.TrimSpace(email)
	if email == "" {
		return
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			s.auditLogger.LogPasswordReset(pkglogger.AuditEvent{
				EventType:     "password_reset_requested",
				IPAddress:     ipAddress,
				FailureReason: "unknown_email",
				Success:       false,
			})
			return
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		return
	}

	token, err := pkgauth.GenerateResetToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}

	expiresAt := s.now().Add(s.config.TokenTTL)
	if err := s.repo.SetResetToken(ctx, user.ID, pkgauth.HashResetToken(token), expiresAt); err != nil {
		s.logger.Error("failed to store reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}

	s.auditLogger.LogPasswordReset(pkglogger.AuditEvent{
		EventType: "password_reset_requested",
		UserID:    user.ID,
		IPAddress: ipAddress,
		Success:   true,
	})

	s.pending.Add(1)
	go s.deliver(user.ID, user.Email, token, expiresAt)
}

func (s *PasswordResetService) deliver(userID, email, token string, expiresAt time.Time) {
	defer s.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.SendTimeout)
	defer cancel()

	if err := s.email.SendPasswordResetEmail(ctx, email, token, expiresAt); err != nil {
		s.logger.Error("failed to deliver password reset email",
			slog.String("user_id", userID),
			pkglogger.EmailAttr(email),
			slog.Any("error", err))
	}
}

// Wait blocks until all in-flight reset emails have been attempted.
func (s *PasswordResetService) Wait() {
	s.pending.Wait()
}

// ConfirmReset sets a new password for the holder of an unexpired token and
// clears the token in the same store operation, so a token is redeemable once.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, token, newPassword, ipAddress string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.ErrInvalidOrExpiredToken
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, pkgauth.ErrEmptyPassword) || errors.Is(err, pkgauth.ErrPasswordTooLong) {
			return fmt.Errorf("%w: %v", models.ErrBadRequest, err)
		}
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	userID, err := s.repo.ConsumeResetToken(ctx, pkgauth.HashResetToken(token), hash, s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset rejected: invalid or expired token")
			s.auditLogger.LogPasswordReset(pkglogger.AuditEvent{
				EventType:     "password_reset_confirmed",
				IPAddress:     ipAddress,
				FailureReason: "invalid_or_expired_token",
				Success:       false,
			})
			return models.ErrInvalidOrExpiredToken
		}
		s.logger.Error("failed to consume reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("password reset completed", slog.String("user_id", userID))
	s.auditLogger.LogPasswordReset(pkglogger.AuditEvent{
		EventType: "password_reset_confirmed",
		UserID:    userID,
		IPAddress: ipAddress,
		Success:   true,
	})

	return nil
}
