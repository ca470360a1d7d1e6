package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	pkglogger "github.com/BradenHooton/mriscan/pkg/logger"
)

// ModelRepository defines the interface for model catalog access
type ModelRepository interface {
	ListActive(ctx context.Context) ([]*models.AnalysisModel, error)
	Create(ctx context.Context, m *models.AnalysisModel) (*models.AnalysisModel, error)
	UpsertByName(ctx context.Context, list []models.AnalysisModel) (int, error)
}

// DefaultModels is the built-in analysis model catalog.
var DefaultModels = []models.AnalysisModel{
	{
		Name:        "Tumor Detection Model",
		Description: "Advanced deep learning model for detecting and segmenting brain tumors in MRI scans.",
		Version:     "2.1.0",
		IsActive:    true,
	},
	{
		Name:        "Stroke Analysis Model",
		Description: "Identifies ischemic and hemorrhagic stroke regions with high accuracy.",
		Version:     "1.8.3",
		IsActive:    true,
	},
	{
		Name:        "Tissue Segmentation Model",
		Description: "Segments white matter, gray matter, and cerebrospinal fluid regions.",
		Version:     "3.0.1",
		IsActive:    true,
	},
	{
		Name:        "Alzheimer's Detection Model",
		Description: "Detects early signs of Alzheimer's disease through structural analysis.",
		Version:     "1.5.2",
		IsActive:    true,
	},
	{
		Name:        "Lesion Detection Model",
		Description: "Identifies and classifies various types of brain lesions and abnormalities.",
		Version:     "2.3.0",
		IsActive:    true,
	},
	{
		Name:        "Volumetric Analysis Model",
		Description: "Provides detailed volumetric measurements of brain structures.",
		Version:     "1.9.1",
		IsActive:    true,
	},
}

// CreateModelInput holds the fields of a new catalog entry.
type CreateModelInput struct {
	Name        string
	Description string
	Version     string
}

type ModelService struct {
	repo        ModelRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewModelService(repo ModelRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *ModelService {
	return &ModelService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// ListActive returns the active models. Public.
func (s *ModelService) ListActive(ctx context.Context) ([]*models.AnalysisModel, error) {
	list, err := s.repo.ListActive(ctx)
	if err != nil {
		s.logger.Error("failed to list models", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return list, nil
}

// Create adds an active model. Admin only; duplicate names are ErrConflict.
func (s *ModelService) Create(ctx context.Context, actor *models.SessionClaims, in CreateModelInput) (*models.AnalysisModel, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	version := strings.TrimSpace(in.Version)
	if name == "" || version == "" {
		return nil, models.ErrBadRequest
	}

	m, err := s.repo.Create(ctx, &models.AnalysisModel{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Version:     version,
		IsActive:    true,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create model", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("model created", slog.String("model_id", m.ID), slog.String("name", m.Name))
	s.auditLogger.LogAdminAction("model_created", actor.UserID, m.ID)

	return m, nil
}

// SeedDefaults upserts DefaultModels by name and returns how many were written.
func (s *ModelService) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.repo.UpsertByName(ctx, DefaultModels)
	if err != nil {
		s.logger.Error("failed to seed models", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	s.logger.Info("models seeded", slog.Int("count", n))
	return n, nil
}

// Seed is SeedDefaults behind the admin gate, for the HTTP endpoint.
func (s *ModelService) Seed(ctx context.Context, actor *models.SessionClaims) (int, error) {
	if err := auth.RequireAdmin(actor); err != nil {
		return 0, err
	}

	n, err := s.SeedDefaults(ctx)
	if err != nil {
		return 0, err
	}

	s.auditLogger.LogAdminAction("models_seeded", actor.UserID, "")
	return n, nil
}
