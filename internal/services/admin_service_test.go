package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminService_GetDashboardStats(t *testing.T) {
	now := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)
	users := &MockUserRepository{
		CountByRoleFunc: func(ctx context.Context) (map[models.Role]int64, error) {
			return map[models.Role]int64{models.RoleUser: 5, models.RoleAdmin: 1}, nil
		},
		CountNewSinceFunc: func(ctx context.Context, since time.Time) (int64, error) {
			assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), since)
			return 2, nil
		},
	}
	scans := &MockScanRepository{
		CountByStatusFunc: func(ctx context.Context) (map[models.ScanStatus]int64, error) {
			return map[models.ScanStatus]int64{models.ScanProcessing: 3, models.ScanCompleted: 7}, nil
		},
	}
	svc := NewAdminService(users, scans, discardLogger())
	svc.now = func() time.Time { return now }

	stats, err := svc.GetDashboardStats(context.Background(), adminClaims)
	require.NoError(t, err)

	assert.Equal(t, int64(6), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.AdminCount)
	assert.Equal(t, int64(2), stats.NewUsersToday)
	assert.Equal(t, int64(10), stats.TotalScans)
	assert.Equal(t, int64(3), stats.ProcessingScans)
	assert.Equal(t, int64(0), stats.FailedScans)
	assert.Equal(t, map[string]int64{"USER": 5, "ADMIN": 1}, stats.RoleBreakdown)
}

func TestAdminService_GetDashboardStats_RequiresAdmin(t *testing.T) {
	users := &MockUserRepository{
		CountByRoleFunc: func(ctx context.Context) (map[models.Role]int64, error) {
			t.Fatal("store must not be reached by a non-admin")
			return nil, nil
		},
	}
	svc := NewAdminService(users, &MockScanRepository{}, discardLogger())

	_, err := svc.GetDashboardStats(context.Background(), ownerClaims)
	assert.ErrorIs(t, err, models.ErrForbidden)
}
