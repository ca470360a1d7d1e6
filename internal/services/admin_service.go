package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
)

// AdminUserRepository is the subset of UserRepository methods needed by AdminService.
type AdminUserRepository interface {
	CountByRole(ctx context.Context) (map[models.Role]int64, error)
	CountNewSince(ctx context.Context, since time.Time) (int64, error)
}

// AdminScanRepository is the subset of ScanRepository methods needed by AdminService.
type AdminScanRepository interface {
	CountByStatus(ctx context.Context) (map[models.ScanStatus]int64, error)
}

// DashboardStatsResponse contains aggregate admin metrics.
type DashboardStatsResponse struct {
	TotalUsers      int64            `json:"totalUsers"`
	AdminCount      int64            `json:"adminCount"`
	NewUsersToday   int64            `json:"newUsersToday"`
	TotalScans      int64            `json:"totalScans"`
	ProcessingScans int64            `json:"processingScans"`
	CompletedScans  int64            `json:"completedScans"`
	FailedScans     int64            `json:"failedScans"`
	RoleBreakdown   map[string]int64 `json:"roleBreakdown"`
}

// AdminService aggregates data for the admin dashboard.
type AdminService struct {
	userRepo AdminUserRepository
	scanRepo AdminScanRepository
	logger   *slog.Logger
	now      func() time.Time
}

func NewAdminService(userRepo AdminUserRepository, scanRepo AdminScanRepository, logger *slog.Logger) *AdminService {
	return &AdminService{
		userRepo: userRepo,
		scanRepo: scanRepo,
		logger:   logger,
		now:      time.Now,
	}
}

// GetDashboardStats returns user and scan totals. Admin only.
func (s *AdminService) GetDashboardStats(ctx context.Context, actor *models.SessionClaims) (*DashboardStatsResponse, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	roles, err := s.userRepo.CountByRole(ctx)
	if err != nil {
		s.logger.Error("dashboard: failed to count users by role", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	newToday, err := s.userRepo.CountNewSince(ctx, today)
	if err != nil {
		s.logger.Error("dashboard: failed to count new users today", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	statuses, err := s.scanRepo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("dashboard: failed to count scans by status", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	stats := &DashboardStatsResponse{
		AdminCount:      roles[models.RoleAdmin],
		NewUsersToday:   newToday,
		ProcessingScans: statuses[models.ScanProcessing],
		CompletedScans:  statuses[models.ScanCompleted],
		FailedScans:     statuses[models.ScanFailed],
		RoleBreakdown:   make(map[string]int64, len(roles)),
	}
	for role, n := range roles {
		stats.TotalUsers += n
		stats.RoleBreakdown[string(role)] = n
	}
	for _, n := range statuses {
		stats.TotalScans += n
	}

	return stats, nil
}
