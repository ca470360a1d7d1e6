package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	pkglogger "github.com/BradenHooton/mriscan/pkg/logger"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	List(ctx context.Context) ([]*models.UserSummary, error)
	Delete(ctx context.Context, id string) error
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

// UserService handles user reads and admin user management.
type UserService struct {
	repo        UserRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewUserService(repo UserRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// GetUser returns a user to themselves or to an admin.
func (s *UserService) GetUser(ctx context.Context, actor *models.SessionClaims, id string) (*UserResponse, error) {
	if err := auth.RequireOwnerOrAdmin(actor, id); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return userModelToResponse(user), nil
}

// ListUsers returns every user with their scan count, newest first. Admin only.
func (s *UserService) ListUsers(ctx context.Context, actor *models.SessionClaims) ([]*models.UserSummary, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	users, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return users, nil
}

// DeleteUser removes a user and, by cascade, their scans. Admin only; an
// admin cannot delete their own account.
func (s *UserService) DeleteUser(ctx context.Context, actor *models.SessionClaims, id string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}

	if actor.UserID == id {
		s.logger.Warn("admin attempted self-deletion", slog.String("user_id", id))
		return models.ErrBadRequest
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete user", slog.String("user_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("user deleted", slog.String("user_id", id), slog.String("actor_id", actor.UserID))
	s.auditLogger.LogAdminAction("user_deleted", actor.UserID, id)

	return nil
}
