package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/BradenHooton/mriscan/internal/services"
	"github.com/BradenHooton/mriscan/internal/storage"
	pkghttp "github.com/BradenHooton/mriscan/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds USER session claims to the request context
func WithAuthContext(req *http.Request, userID, email string) *http.Request {
	return req.WithContext(auth.WithClaims(req.Context(), &models.SessionClaims{
		UserID: userID,
		Email:  email,
		Role:   models.RoleUser,
	}))
}

// WithAdminContext adds ADMIN session claims to the request context
func WithAdminContext(req *http.Request, userID, email string) *http.Request {
	return req.WithContext(auth.WithClaims(req.Context(), &models.SessionClaims{
		UserID: userID,
		Email:  email,
		Role:   models.RoleAdmin,
	}))
}

// WithURLParam sets a chi route parameter on the request
func WithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks the status and the error message of an error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedMessage string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedMessage, resp.Error, "Error message mismatch")
	assert.NotEmpty(t, resp.Code, "Error code should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	SignupFunc func(ctx context.Context, email, password, role string) (*models.User, error)
	LoginFunc  func(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error)
	MeFunc     func(claims *models.SessionClaims) (*services.SessionUser, error)
	TTL        time.Duration
}

func (m *MockAuthService) Signup(ctx context.Context, email, password, role string) (*models.User, error) {
	if m.SignupFunc == nil {
		return nil, models.ErrConflict
	}
	return m.SignupFunc(ctx, email, password, role)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ipAddress string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password, ipAddress)
}

func (m *MockAuthService) Me(claims *models.SessionClaims) (*services.SessionUser, error) {
	if m.MeFunc == nil {
		if claims == nil {
			return nil, models.ErrUnauthorized
		}
		return &services.SessionUser{ID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
	}
	return m.MeFunc(claims)
}

func (m *MockAuthService) SessionTTL() time.Duration {
	if m.TTL == 0 {
		return 7 * 24 * time.Hour
	}
	return m.TTL
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestResetFunc func(ctx context.Context, email, ipAddress string)
	ConfirmResetFunc func(ctx context.Context, token, newPassword, ipAddress string) error
}

func (m *MockPasswordResetService) RequestReset(ctx context.Context, email, ipAddress string) {
	if m.RequestResetFunc != nil {
		m.RequestResetFunc(ctx, email, ipAddress)
	}
}

func (m *MockPasswordResetService) ConfirmReset(ctx context.Context, token, newPassword, ipAddress string) error {
	if m.ConfirmResetFunc == nil {
		return models.ErrInvalidOrExpiredToken
	}
	return m.ConfirmResetFunc(ctx, token, newPassword, ipAddress)
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetUserFunc    func(ctx context.Context, actor *models.SessionClaims, id string) (*services.UserResponse, error)
	ListUsersFunc  func(ctx context.Context, actor *models.SessionClaims) ([]*models.UserSummary, error)
	DeleteUserFunc func(ctx context.Context, actor *models.SessionClaims, id string) error
}

func (m *MockUserService) GetUser(ctx context.Context, actor *models.SessionClaims, id string) (*services.UserResponse, error) {
	if m.GetUserFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetUserFunc(ctx, actor, id)
}

func (m *MockUserService) ListUsers(ctx context.Context, actor *models.SessionClaims) ([]*models.UserSummary, error) {
	if m.ListUsersFunc == nil {
		return []*models.UserSummary{}, nil
	}
	return m.ListUsersFunc(ctx, actor)
}

func (m *MockUserService) DeleteUser(ctx context.Context, actor *models.SessionClaims, id string) error {
	if m.DeleteUserFunc == nil {
		return models.ErrNotFound
	}
	return m.DeleteUserFunc(ctx, actor, id)
}

// MockScanService implements ScanServiceInterface for testing
type MockScanService struct {
	CreateFunc          func(ctx context.Context, actor *models.SessionClaims, in services.CreateScanInput) (*models.Scan, error)
	ListOwnedFunc       func(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error)
	GetFunc             func(ctx context.Context, actor *models.SessionClaims, id string) (*models.Scan, error)
	UpdateOwnedFunc     func(ctx context.Context, actor *models.SessionClaims, id string, upd models.ScanUpdate) (*models.Scan, error)
	ListAllFunc         func(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error)
	DeleteAnyFunc       func(ctx context.Context, actor *models.SessionClaims, id string) error
	CreateUploadURLFunc func(ctx context.Context, actor *models.SessionClaims, filename, contentType string) (*storage.PresignedUpload, error)
	SeedSamplesFunc     func(ctx context.Context, actor *models.SessionClaims) (int, error)
}

func (m *MockScanService) Create(ctx context.Context, actor *models.SessionClaims, in services.CreateScanInput) (*models.Scan, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateFunc(ctx, actor, in)
}

func (m *MockScanService) ListOwned(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error) {
	if m.ListOwnedFunc == nil {
		return []*models.Scan{}, nil
	}
	return m.ListOwnedFunc(ctx, actor)
}

func (m *MockScanService) Get(ctx context.Context, actor *models.SessionClaims, id string) (*models.Scan, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, actor, id)
}

func (m *MockScanService) UpdateOwned(ctx context.Context, actor *models.SessionClaims, id string, upd models.ScanUpdate) (*models.Scan, error) {
	if m.UpdateOwnedFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateOwnedFunc(ctx, actor, id, upd)
}

func (m *MockScanService) ListAll(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error) {
	if m.ListAllFunc == nil {
		return []*models.Scan{}, nil
	}
	return m.ListAllFunc(ctx, actor)
}

func (m *MockScanService) DeleteAny(ctx context.Context, actor *models.SessionClaims, id string) error {
	if m.DeleteAnyFunc == nil {
		return models.ErrNotFound
	}
	return m.DeleteAnyFunc(ctx, actor, id)
}

func (m *MockScanService) CreateUploadURL(ctx context.Context, actor *models.SessionClaims, filename, contentType string) (*storage.PresignedUpload, error) {
	if m.CreateUploadURLFunc == nil {
		return nil, services.ErrUploadsDisabled
	}
	return m.CreateUploadURLFunc(ctx, actor, filename, contentType)
}

func (m *MockScanService) SeedSamples(ctx context.Context, actor *models.SessionClaims) (int, error) {
	if m.SeedSamplesFunc == nil {
		return 0, models.ErrBadRequest
	}
	return m.SeedSamplesFunc(ctx, actor)
}

// MockModelService implements ModelServiceInterface for testing
type MockModelService struct {
	ListActiveFunc func(ctx context.Context) ([]*models.AnalysisModel, error)
	CreateFunc     func(ctx context.Context, actor *models.SessionClaims, in services.CreateModelInput) (*models.AnalysisModel, error)
	SeedFunc       func(ctx context.Context, actor *models.SessionClaims) (int, error)
}

func (m *MockModelService) ListActive(ctx context.Context) ([]*models.AnalysisModel, error) {
	if m.ListActiveFunc == nil {
		return []*models.AnalysisModel{}, nil
	}
	return m.ListActiveFunc(ctx)
}

func (m *MockModelService) Create(ctx context.Context, actor *models.SessionClaims, in services.CreateModelInput) (*models.AnalysisModel, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrConflict
	}
	return m.CreateFunc(ctx, actor, in)
}

func (m *MockModelService) Seed(ctx context.Context, actor *models.SessionClaims) (int, error) {
	if m.SeedFunc == nil {
		return 0, nil
	}
	return m.SeedFunc(ctx, actor)
}
