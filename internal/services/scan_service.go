package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/BradenHooton/mriscan/internal/storage"
	pkglogger "github.com/BradenHooton/mriscan/pkg/logger"
)

// ScanRepository defines the interface for scan data access
type ScanRepository interface {
	Create(ctx context.Context, scan *models.Scan) (*models.Scan, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Scan, error)
	GetForOwner(ctx context.Context, ownerID, id string) (*models.Scan, error)
	GetByID(ctx context.Context, id string) (*models.Scan, error)
	UpdateForOwner(ctx context.Context, ownerID, id string, upd models.ScanUpdate) (*models.Scan, error)
	ListAll(ctx context.Context) ([]*models.Scan, error)
	Delete(ctx context.Context, id string) error
}

// ModelCatalog lists the models sample scans are attached to.
type ModelCatalog interface {
	ListActive(ctx context.Context) ([]*models.AnalysisModel, error)
}

// UploadSigner presigns direct-to-storage scan uploads.
type UploadSigner interface {
	PresignUpload(ctx context.Context, userID, filename, contentType string) (*storage.PresignedUpload, error)
}

// CreateScanInput holds the caller-supplied fields of a new scan.
type CreateScanInput struct {
	Filename       string
	OriginalURL    string
	Size           int64
	ModelID        string
	Status         string
	ResultURL      *string
	ProcessingTime *int
	Accuracy       *float64
}

// ScanService manages the scan lifecycle. Non-admin access is always
// scoped to the caller's own scans.
type ScanService struct {
	repo        ScanRepository
	catalog     ModelCatalog
	uploads     UploadSigner
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewScanService creates a ScanService. uploads may be nil, which disables
// presigned uploads.
func NewScanService(repo ScanRepository, catalog ModelCatalog, uploads UploadSigner, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *ScanService {
	return &ScanService{
		repo:        repo,
		catalog:     catalog,
		uploads:     uploads,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Create persists a scan owned by the actor. Status defaults to PROCESSING.
func (s *ScanService) Create(ctx context.Context, actor *models.SessionClaims, in CreateScanInput) (*models.Scan, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	status, err := models.ParseScanStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if err != nil {
		return nil, models.ErrInvalidStatus
	}

	scan, err := s.repo.Create(ctx, &models.Scan{
		Filename:       in.Filename,
		OriginalURL:    in.OriginalURL,
		Size:           in.Size,
		UserID:         actor.UserID,
		ModelID:        in.ModelID,
		Status:         status,
		ResultURL:      in.ResultURL,
		ProcessingTime: in.ProcessingTime,
		Accuracy:       in.Accuracy,
	})
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			s.logger.Info("scan rejected: unknown model", slog.String("model_id", in.ModelID))
			return nil, models.ErrBadRequest
		}
		s.logger.Error("failed to create scan", slog.String("user_id", actor.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("scan created", slog.String("scan_id", scan.ID), slog.String("user_id", actor.UserID))
	s.auditLogger.LogScanEvent("scan_created", actor.UserID, scan.ID)

	return scan, nil
}

// ListOwned returns the actor's scans newest first.
func (s *ScanService) ListOwned(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	scans, err := s.repo.ListByOwner(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("failed to list scans", slog.String("user_id", actor.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return scans, nil
}

// Get returns a scan. Non-admins only see their own scans; anything else
// is ErrNotFound.
func (s *ScanService) Get(ctx context.Context, actor *models.SessionClaims, id string) (*models.Scan, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	var (
		scan *models.Scan
		err  error
	)
	if actor.IsAdmin() {
		scan, err = s.repo.GetByID(ctx, id)
	} else {
		scan, err = s.repo.GetForOwner(ctx, actor.UserID, id)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get scan", slog.String("scan_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return scan, nil
}

// UpdateOwned patches a scan owned by the actor. A status change is only
// accepted while the scan is PROCESSING.
func (s *ScanService) UpdateOwned(ctx context.Context, actor *models.SessionClaims, id string, upd models.ScanUpdate) (*models.Scan, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	if upd.IsEmpty() {
		return nil, models.ErrBadRequest
	}
	if upd.Status != nil && len(models.TransitionSources(*upd.Status)) == 0 {
		return nil, models.ErrInvalidStatus
	}

	scan, err := s.repo.UpdateForOwner(ctx, actor.UserID, id, upd)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return nil, models.ErrNotFound
		case errors.Is(err, models.ErrInvalidTransition):
			s.logger.Info("scan update rejected: scan already finished", slog.String("scan_id", id))
			return nil, models.ErrInvalidTransition
		}
		s.logger.Error("failed to update scan", slog.String("scan_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if upd.Status != nil {
		s.auditLogger.LogScanEvent("scan_status_"+strings.ToLower(string(*upd.Status)), actor.UserID, id)
	}

	return scan, nil
}

// ListAll returns all scans with owner email and model name. Admin only.
func (s *ScanService) ListAll(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	scans, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to list all scans", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return scans, nil
}

// DeleteAny removes any scan. Admin only.
func (s *ScanService) DeleteAny(ctx context.Context, actor *models.SessionClaims, id string) error {
	if err := auth.RequireAdmin(actor); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete scan", slog.String("scan_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAdminAction("scan_deleted", actor.UserID, id)
	return nil
}

// sampleScans are the demo scans created by SeedSamples.
var sampleScans = []struct {
	filename       string
	size           int64
	accuracy       float64
	processingTime int
}{
	{"brain_scan_001.nii", 2048576, 0.94, 45},
	{"mri_patient_002.dcm", 1536000, 0.89, 38},
}

// SeedSamples creates completed demo scans owned by the actor, spread over
// the active models. Admin only. ErrBadRequest when no model is active.
func (s *ScanService) SeedSamples(ctx context.Context, actor *models.SessionClaims) (int, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return 0, err
	}

	active, err := s.catalog.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list models for sample scans", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}
	if len(active) == 0 {
		return 0, models.ErrBadRequest
	}

	for i, sample := range sampleScans {
		accuracy := sample.accuracy
		processingTime := sample.processingTime
		_, err := s.repo.Create(ctx, &models.Scan{
			Filename:       sample.filename,
			OriginalURL:    "/placeholder.jpg",
			Size:           sample.size,
			UserID:         actor.UserID,
			ModelID:        active[i%len(active)].ID,
			Status:         models.ScanCompleted,
			Accuracy:       &accuracy,
			ProcessingTime: &processingTime,
		})
		if err != nil {
			s.logger.Error("failed to create sample scan", slog.String("filename", sample.filename), slog.Any("error", err))
			return i, models.ErrInternalServer
		}
	}

	s.auditLogger.LogAdminAction("sample_scans_seeded", actor.UserID, "")
	return len(sampleScans), nil
}

// ErrUploadsDisabled is returned by CreateUploadURL when no bucket is configured.
var ErrUploadsDisabled = errors.New("scan uploads are not configured")

// CreateUploadURL presigns an upload of filename under the actor's prefix.
func (s *ScanService) CreateUploadURL(ctx context.Context, actor *models.SessionClaims, filename, contentType string) (*storage.PresignedUpload, error) {
	if err := auth.RequireAuthenticated(actor); err != nil {
		return nil, err
	}

	if s.uploads == nil {
		return nil, ErrUploadsDisabled
	}

	if strings.TrimSpace(filename) == "" {
		return nil, models.ErrBadRequest
	}

	upload, err := s.uploads.PresignUpload(ctx, actor.UserID, filename, contentType)
	if err != nil {
		s.logger.Error("failed to presign upload", slog.String("user_id", actor.UserID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return upload, nil
}
