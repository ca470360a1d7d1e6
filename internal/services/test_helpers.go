package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/BradenHooton/mriscan/internal/storage"
	"github.com/google/uuid"
)

// MockUserRepository implements UserRepository, ResetTokenRepository and
// AdminUserRepository for testing
type MockUserRepository struct {
	GetByIDFunc           func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc        func(ctx context.Context, email string) (*models.User, error)
	CreateFunc            func(ctx context.Context, user *models.User) (*models.User, error)
	ListFunc              func(ctx context.Context) ([]*models.UserSummary, error)
	DeleteFunc            func(ctx context.Context, id string) error
	SetResetTokenFunc     func(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ConsumeResetTokenFunc func(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error)
	CountByRoleFunc       func(ctx context.Context) (map[models.Role]int64, error)
	CountNewSinceFunc     func(ctx context.Context, since time.Time) (int64, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) List(ctx context.Context) ([]*models.UserSummary, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []*models.UserSummary{}, nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockUserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if m.SetResetTokenFunc != nil {
		return m.SetResetTokenFunc(ctx, userID, tokenHash, expiresAt)
	}
	return nil
}

func (m *MockUserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	if m.ConsumeResetTokenFunc != nil {
		return m.ConsumeResetTokenFunc(ctx, tokenHash, passwordHash, now)
	}
	return "", models.ErrNotFound
}

func (m *MockUserRepository) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	if m.CountByRoleFunc != nil {
		return m.CountByRoleFunc(ctx)
	}
	return map[models.Role]int64{}, nil
}

func (m *MockUserRepository) CountNewSince(ctx context.Context, since time.Time) (int64, error) {
	if m.CountNewSinceFunc != nil {
		return m.CountNewSinceFunc(ctx, since)
	}
	return 0, nil
}

// MockScanRepository implements ScanRepository and AdminScanRepository for testing
type MockScanRepository struct {
	CreateFunc         func(ctx context.Context, scan *models.Scan) (*models.Scan, error)
	ListByOwnerFunc    func(ctx context.Context, ownerID string) ([]*models.Scan, error)
	GetForOwnerFunc    func(ctx context.Context, ownerID, id string) (*models.Scan, error)
	GetByIDFunc        func(ctx context.Context, id string) (*models.Scan, error)
	UpdateForOwnerFunc func(ctx context.Context, ownerID, id string, upd models.ScanUpdate) (*models.Scan, error)
	ListAllFunc        func(ctx context.Context) ([]*models.Scan, error)
	DeleteFunc         func(ctx context.Context, id string) error
	CountByStatusFunc  func(ctx context.Context) (map[models.ScanStatus]int64, error)
}

func (m *MockScanRepository) Create(ctx context.Context, scan *models.Scan) (*models.Scan, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, scan)
	}
	return nil, models.ErrInternalServer
}

func (m *MockScanRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Scan, error) {
	if m.ListByOwnerFunc != nil {
		return m.ListByOwnerFunc(ctx, ownerID)
	}
	return []*models.Scan{}, nil
}

func (m *MockScanRepository) GetForOwner(ctx context.Context, ownerID, id string) (*models.Scan, error) {
	if m.GetForOwnerFunc != nil {
		return m.GetForOwnerFunc(ctx, ownerID, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockScanRepository) GetByID(ctx context.Context, id string) (*models.Scan, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockScanRepository) UpdateForOwner(ctx context.Context, ownerID, id string, upd models.ScanUpdate) (*models.Scan, error) {
	if m.UpdateForOwnerFunc != nil {
		return m.UpdateForOwnerFunc(ctx, ownerID, id, upd)
	}
	return nil, models.ErrNotFound
}

func (m *MockScanRepository) ListAll(ctx context.Context) ([]*models.Scan, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return []*models.Scan{}, nil
}

func (m *MockScanRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockScanRepository) CountByStatus(ctx context.Context) (map[models.ScanStatus]int64, error) {
	if m.CountByStatusFunc != nil {
		return m.CountByStatusFunc(ctx)
	}
	return map[models.ScanStatus]int64{}, nil
}

// MockModelRepository implements ModelRepository for testing
type MockModelRepository struct {
	ListActiveFunc   func(ctx context.Context) ([]*models.AnalysisModel, error)
	CreateFunc       func(ctx context.Context, m *models.AnalysisModel) (*models.AnalysisModel, error)
	UpsertByNameFunc func(ctx context.Context, list []models.AnalysisModel) (int, error)
}

func (m *MockModelRepository) ListActive(ctx context.Context) ([]*models.AnalysisModel, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx)
	}
	return []*models.AnalysisModel{}, nil
}

func (m *MockModelRepository) Create(ctx context.Context, am *models.AnalysisModel) (*models.AnalysisModel, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, am)
	}
	return nil, models.ErrInternalServer
}

func (m *MockModelRepository) UpsertByName(ctx context.Context, list []models.AnalysisModel) (int, error) {
	if m.UpsertByNameFunc != nil {
		return m.UpsertByNameFunc(ctx, list)
	}
	return len(list), nil
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockUploadSigner implements UploadSigner for testing
type MockUploadSigner struct {
	PresignUploadFunc func(ctx context.Context, userID, filename, contentType string) (*storage.PresignedUpload, error)
}

func (m *MockUploadSigner) PresignUpload(ctx context.Context, userID, filename, contentType string) (*storage.PresignedUpload, error) {
	if m.PresignUploadFunc != nil {
		return m.PresignUploadFunc(ctx, userID, filename, contentType)
	}
	return &storage.PresignedUpload{Method: "PUT", Key: "scans/" + userID + "/" + filename}, nil
}

// MemoryStore is an in-memory user and scan store. Its conditional writes
// hold a single mutex so they behave like one store statement.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	scans map[string]*models.Scan
	seq   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*models.User),
		scans: make(map[string]*models.Scan),
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *MemoryStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return nil, models.ErrConflict
		}
	}

	now := time.Now()
	c := copyUser(user)
	c.ID = uuid.New().String()
	if c.Role == "" {
		c.Role = models.RoleUser
	}
	c.CreatedAt, c.UpdatedAt = now, now
	c.PasswordChangedAt = &now
	s.users[c.ID] = c

	return copyUser(c), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*models.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.UserSummary, 0, len(s.users))
	for _, u := range s.users {
		var n int64
		for _, sc := range s.scans {
			if sc.UserID == u.ID {
				n++
			}
		}
		out = append(out, &models.UserSummary{ID: u.ID, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt, ScanCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.users, id)
	for sid, sc := range s.scans {
		if sc.UserID == id {
			delete(s.scans, sid)
		}
	}
	return nil
}

func (s *MemoryStore) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.ErrNotFound
	}
	u.ResetTokenHash = &tokenHash
	u.ResetExpires = &expiresAt
	return nil
}

func (s *MemoryStore) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash && u.ResetExpires.After(now) {
			u.PasswordHash = passwordHash
			u.ResetTokenHash = nil
			u.ResetExpires = nil
			changed := now
			u.PasswordChangedAt = &changed
			return u.ID, nil
		}
	}
	return "", models.ErrNotFound
}

// ScanStore exposes the scan half of the store as a ScanRepository.
func (s *MemoryStore) ScanStore() ScanRepository {
	return memoryScans{s}
}

type memoryScans struct {
	s *MemoryStore
}

func copyScan(sc *models.Scan) *models.Scan {
	c := *sc
	return &c
}

func (m memoryScans) Create(ctx context.Context, scan *models.Scan) (*models.Scan, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.users[scan.UserID]; !ok {
		return nil, models.ErrBadRequest
	}
	m.s.seq++
	c := copyScan(scan)
	c.ID = uuid.New().String()
	// seq keeps ordering stable when creations share a timestamp
	c.CreatedAt = time.Now().Add(time.Duration(m.s.seq) * time.Microsecond)
	c.UpdatedAt = c.CreatedAt
	m.s.scans[c.ID] = c
	return copyScan(c), nil
}

func (m memoryScans) ListByOwner(ctx context.Context, ownerID string) ([]*models.Scan, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*models.Scan, 0)
	for _, sc := range m.s.scans {
		if sc.UserID == ownerID {
			out = append(out, copyScan(sc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memoryScans) GetForOwner(ctx context.Context, ownerID, id string) (*models.Scan, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if sc, ok := m.s.scans[id]; ok && sc.UserID == ownerID {
		return copyScan(sc), nil
	}
	return nil, models.ErrNotFound
}

func (m memoryScans) GetByID(ctx context.Context, id string) (*models.Scan, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if sc, ok := m.s.scans[id]; ok {
		return copyScan(sc), nil
	}
	return nil, models.ErrNotFound
}

func (m memoryScans) UpdateForOwner(ctx context.Context, ownerID, id string, upd models.ScanUpdate) (*models.Scan, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sc, ok := m.s.scans[id]
	if !ok || sc.UserID != ownerID {
		return nil, models.ErrNotFound
	}
	if upd.Status != nil && !sc.Status.CanTransitionTo(*upd.Status) {
		return nil, models.ErrInvalidTransition
	}
	if upd.Status != nil {
		sc.Status = *upd.Status
	}
	if upd.ResultURL != nil {
		sc.ResultURL = upd.ResultURL
	}
	if upd.ProcessingTime != nil {
		sc.ProcessingTime = upd.ProcessingTime
	}
	if upd.Accuracy != nil {
		sc.Accuracy = upd.Accuracy
	}
	sc.UpdatedAt = time.Now()
	return copyScan(sc), nil
}

func (m memoryScans) ListAll(ctx context.Context) ([]*models.Scan, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]*models.Scan, 0, len(m.s.scans))
	for _, sc := range m.s.scans {
		c := copyScan(sc)
		if u, ok := m.s.users[sc.UserID]; ok {
			c.OwnerEmail = u.Email
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m memoryScans) Delete(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.scans[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.s.scans, id)
	return nil
}

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
