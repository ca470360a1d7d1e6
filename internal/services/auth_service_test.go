package services

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	pkgauth "github.com/BradenHooton/mriscan/pkg/auth"
	pkglogger "github.com/BradenHooton/mriscan/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-that-is-at-least-32-characters-long"

func newTestAuthService(repo UserRepository, revoke bool) (*AuthService, *auth.SessionCodec) {
	logger := discardLogger()
	codec := auth.NewSessionCodec(testJWTSecret, 7*24*time.Hour)
	svc := NewAuthService(
		repo,
		pkgauth.NewHasher(bcrypt.MinCost),
		codec,
		auth.NewTimingDelay(auth.TimingConfig{}),
		revoke,
		logger,
		pkglogger.NewAuditLogger(logger),
	)
	return svc, codec
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := pkgauth.NewHasher(bcrypt.MinCost).HashPassword(password)
	require.NoError(t, err)
	return hash
}

// ============================================================================
// Signup
// ============================================================================

func TestAuthService_Signup_Success(t *testing.T) {
	var created *models.User
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = "user123"
			created = user
			return user, nil
		},
	}
	svc, _ := newTestAuthService(repo, true)

	user, err := svc.Signup(context.Background(), "  Alice@X.com ", "pw1", "")

	require.NoError(t, err)
	assert.Equal(t, "user123", user.ID)
	assert.Equal(t, "Alice@X.com", created.Email, "email is trimmed but case preserved")
	assert.Equal(t, models.RoleUser, created.Role)
	assert.NotEqual(t, "pw1", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("pw1")))
}

func TestAuthService_Signup_AdminRole(t *testing.T) {
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			user.ID = "admin1"
			return user, nil
		},
	}
	svc, _ := newTestAuthService(repo, true)

	user, err := svc.Signup(context.Background(), "root@x.com", "pw", "ADMIN")

	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestAuthService_Signup_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		role     string
		wantErr  error
	}{
		{"empty email", "  ", "pw1", "", models.ErrBadRequest},
		{"unknown role", "a@x.com", "pw1", "superuser", models.ErrInvalidRole},
		{"lowercase role", "a@x.com", "pw1", "admin", models.ErrInvalidRole},
		{"empty password", "a@x.com", "", "", models.ErrBadRequest},
		{"password too long", "a@x.com", string(make([]byte, 73)), "", models.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockUserRepository{
				CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
					t.Fatal("store must not be called")
					return nil, nil
				},
			}
			svc, _ := newTestAuthService(repo, true)

			_, err := svc.Signup(context.Background(), tt.email, tt.password, tt.role)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAuthService_Signup_DuplicateEmail(t *testing.T) {
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, models.ErrConflict
		},
	}
	svc, _ := newTestAuthService(repo, true)

	_, err := svc.Signup(context.Background(), "a@x.com", "pw1", "")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthService_Signup_StoreFailure(t *testing.T) {
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			return nil, assert.AnError
		},
	}
	svc, _ := newTestAuthService(repo, true)

	_, err := svc.Signup(context.Background(), "a@x.com", "pw1", "")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

// ============================================================================
// Login
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	hash := mustHash(t, "pw1")
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			assert.Equal(t, "a@x.com", email)
			return &models.User{ID: "u1", Email: email, PasswordHash: hash, Role: models.RoleUser}, nil
		},
	}
	svc, codec := newTestAuthService(repo, false)

	result, err := svc.Login(context.Background(), "a@x.com", "pw1", "203.0.113.1")

	require.NoError(t, err)
	assert.Equal(t, &SessionUser{ID: "u1", Email: "a@x.com", Role: models.RoleUser}, result.User)

	claims, err := codec.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleUser, claims.Role)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	hash := mustHash(t, "right")
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			if email == "a@x.com" {
				return &models.User{ID: "u1", Email: email, PasswordHash: hash, Role: models.RoleUser}, nil
			}
			return nil, models.ErrNotFound
		},
	}
	svc, _ := newTestAuthService(repo, false)

	_, errUnknown := svc.Login(context.Background(), "nobody@x.com", "right", "")
	_, errWrong := svc.Login(context.Background(), "a@x.com", "wrong", "")
	_, errCase := svc.Login(context.Background(), "A@x.com", "right", "")
	_, errEmpty := svc.Login(context.Background(), "", "", "")

	for _, err := range []error{errUnknown, errWrong, errCase, errEmpty} {
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		assert.Equal(t, errUnknown.Error(), err.Error())
	}
}

func TestAuthService_Login_StoreFailure(t *testing.T) {
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return nil, assert.AnError
		},
	}
	svc, _ := newTestAuthService(repo, false)

	_, err := svc.Login(context.Background(), "a@x.com", "pw1", "")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestAuthService_Login_AppliesTimingDelayOnFailure(t *testing.T) {
	logger := discardLogger()
	svc := NewAuthService(
		&MockUserRepository{},
		pkgauth.NewHasher(bcrypt.MinCost),
		auth.NewSessionCodec(testJWTSecret, time.Hour),
		auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 40}),
		false,
		logger,
		pkglogger.NewAuditLogger(logger),
	)

	start := time.Now()
	_, err := svc.Login(context.Background(), "nobody@x.com", "pw", "")

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

// ============================================================================
// Authenticate
// ============================================================================

func TestAuthService_Authenticate_Stateless(t *testing.T) {
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			t.Fatal("store must not be consulted when revocation is disabled")
			return nil, nil
		},
	}
	svc, codec := newTestAuthService(repo, false)

	token, _, err := codec.Issue("u1", "a@x.com", models.RoleUser)
	require.NoError(t, err)

	claims, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	_, err = svc.Authenticate(context.Background(), "garbage")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_Authenticate_Revocation(t *testing.T) {
	issuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	user := &models.User{ID: "u1", Email: "a@x.com", Role: models.RoleUser}
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			if id != user.ID {
				return nil, models.ErrNotFound
			}
			return user, nil
		},
	}
	svc, codec := newTestAuthService(repo, true)
	codec.SetClock(func() time.Time { return issuedAt })

	token, _, err := codec.Issue("u1", "a@x.com", models.RoleUser)
	require.NoError(t, err)

	t.Run("password unchanged since issue", func(t *testing.T) {
		changed := issuedAt.Add(-time.Hour)
		user.PasswordChangedAt = &changed
		_, err := svc.Authenticate(context.Background(), token)
		assert.NoError(t, err)
	})

	t.Run("password changed in the same second", func(t *testing.T) {
		changed := issuedAt.Add(300 * time.Millisecond)
		user.PasswordChangedAt = &changed
		_, err := svc.Authenticate(context.Background(), token)
		assert.NoError(t, err)
	})

	t.Run("password changed after issue", func(t *testing.T) {
		changed := issuedAt.Add(time.Minute)
		user.PasswordChangedAt = &changed
		_, err := svc.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})

	t.Run("user deleted", func(t *testing.T) {
		other, _, err := codec.Issue("gone", "g@x.com", models.RoleUser)
		require.NoError(t, err)
		_, err = svc.Authenticate(context.Background(), other)
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	})
}

func TestAuthService_Authenticate_StoreFailure(t *testing.T) {
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return nil, assert.AnError
		},
	}
	svc, codec := newTestAuthService(repo, true)

	token, _, err := codec.Issue("u1", "a@x.com", models.RoleUser)
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestAuthService_Me(t *testing.T) {
	svc, _ := newTestAuthService(&MockUserRepository{}, false)

	me, err := svc.Me(&models.SessionClaims{UserID: "u1", Email: "a@x.com", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, &SessionUser{ID: "u1", Email: "a@x.com", Role: models.RoleAdmin}, me)

	_, err = svc.Me(nil)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}
