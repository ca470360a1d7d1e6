package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/BradenHooton/mriscan/internal/services"
	pkghttp "github.com/BradenHooton/mriscan/pkg/http"
)

// ModelServiceInterface defines the model catalog contract
type ModelServiceInterface interface {
	ListActive(ctx context.Context) ([]*models.AnalysisModel, error)
	Create(ctx context.Context, actor *models.SessionClaims, in services.CreateModelInput) (*models.AnalysisModel, error)
	Seed(ctx context.Context, actor *models.SessionClaims) (int, error)
}

// ModelHandler handles model catalog requests
type ModelHandler struct {
	service ModelServiceInterface
}

// NewModelHandler creates a new ModelHandler
func NewModelHandler(service ModelServiceInterface) *ModelHandler {
	return &ModelHandler{service: service}
}

// CreateModelRequest represents the request body for adding a model
type CreateModelRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Version     string `json:"version" validate:"required,max=50"`
}

// SeedModelsResponse reports how many built-in models were written
type SeedModelsResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ListModels returns the active models
// @Router /api/models [get]
func (h *ModelHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListActive(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to fetch models")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, list)
}

// CreateModel adds a model to the catalog
// @Router /api/models [post]
func (h *ModelHandler) CreateModel(w http.ResponseWriter, r *http.Request) {
	var req CreateModelRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	m, err := h.service.Create(r.Context(), auth.GetClaimsFromContext(r), services.CreateModelInput{
		Name:        req.Name,
		Description: req.Description,
		Version:     req.Version,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "Model already exists")
			return
		}
		writeServiceError(w, err, "Model not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, m)
}

// SeedModels upserts the built-in models
// @Router /api/admin/models/seed [post]
func (h *ModelHandler) SeedModels(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Seed(r.Context(), auth.GetClaimsFromContext(r))
	if err != nil {
		writeServiceError(w, err, "Model not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SeedModelsResponse{
		Message: "Models seeded successfully",
		Count:   n,
	})
}
