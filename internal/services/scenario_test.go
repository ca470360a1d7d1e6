package services

import (
	"context"
	"testing"

	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_SignupLoginScanLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	authSvc, _ := newTestAuthService(store, true)
	scanSvc := newTestScanService(store.ScanStore(), nil)

	user, err := authSvc.Signup(ctx, "a@x.com", "pw1", "")
	require.NoError(t, err)

	login, err := authSvc.Login(ctx, "a@x.com", "pw1", "")
	require.NoError(t, err)
	assert.Equal(t, user.ID, login.Claims.UserID)
	assert.Equal(t, models.RoleUser, login.Claims.Role)

	claims, err := authSvc.Authenticate(ctx, login.Token)
	require.NoError(t, err)

	scan, err := scanSvc.Create(ctx, claims, CreateScanInput{
		Filename: "f.nii", OriginalURL: "/uploads/f.nii", Size: 1024, ModelID: "m1", Status: "PROCESSING",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ScanProcessing, scan.Status)

	_, err = scanSvc.UpdateOwned(ctx, claims, scan.ID, models.ScanUpdate{Status: statusPtr(models.ScanCompleted)})
	require.NoError(t, err)

	got, err := scanSvc.Get(ctx, claims, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanCompleted, got.Status)

	// terminal: no way back to PROCESSING
	_, err = scanSvc.UpdateOwned(ctx, claims, scan.ID, models.ScanUpdate{Status: statusPtr(models.ScanProcessing)})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	// another user cannot see or touch it
	other, err := authSvc.Signup(ctx, "b@x.com", "pw2", "")
	require.NoError(t, err)
	intruder := &models.SessionClaims{UserID: other.ID, Email: other.Email, Role: models.RoleUser}

	_, err = scanSvc.Get(ctx, intruder, scan.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = scanSvc.UpdateOwned(ctx, intruder, scan.ID, models.ScanUpdate{Status: statusPtr(models.ScanFailed)})
	assert.ErrorIs(t, err, models.ErrNotFound)

	owned, err := scanSvc.ListOwned(ctx, intruder)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestScenario_SignupRoleRoundTrips(t *testing.T) {
	ctx := context.Background()

	for _, role := range []models.Role{models.RoleUser, models.RoleAdmin} {
		t.Run(string(role), func(t *testing.T) {
			store := NewMemoryStore()
			authSvc, _ := newTestAuthService(store, true)

			_, err := authSvc.Signup(ctx, "x@y.z", "pw", string(role))
			require.NoError(t, err)

			login, err := authSvc.Login(ctx, "x@y.z", "pw", "")
			require.NoError(t, err)
			assert.Equal(t, role, login.Claims.Role)
		})
	}
}
