package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/BradenHooton/mriscan/internal/services"
	"github.com/BradenHooton/mriscan/internal/storage"
	pkghttp "github.com/BradenHooton/mriscan/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ScanServiceInterface defines the interface for scan business logic
type ScanServiceInterface interface {
	Create(ctx context.Context, actor *models.SessionClaims, in services.CreateScanInput) (*models.Scan, error)
	ListOwned(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error)
	Get(ctx context.Context, actor *models.SessionClaims, id string) (*models.Scan, error)
	UpdateOwned(ctx context.Context, actor *models.SessionClaims, id string, upd models.ScanUpdate) (*models.Scan, error)
	ListAll(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error)
	DeleteAny(ctx context.Context, actor *models.SessionClaims, id string) error
	CreateUploadURL(ctx context.Context, actor *models.SessionClaims, filename, contentType string) (*storage.PresignedUpload, error)
	SeedSamples(ctx context.Context, actor *models.SessionClaims) (int, error)
}

// ScanHandler handles scan HTTP requests
type ScanHandler struct {
	service ScanServiceInterface
}

// NewScanHandler creates a new ScanHandler
func NewScanHandler(service ScanServiceInterface) *ScanHandler {
	return &ScanHandler{service: service}
}

// CreateScanRequest represents the request body for registering a scan
type CreateScanRequest struct {
	Filename       string   `json:"filename" validate:"required,max=255"`
	OriginalURL    string   `json:"originalUrl" validate:"required"`
	Size           int64    `json:"size" validate:"gte=0"`
	ModelID        string   `json:"modelId" validate:"required"`
	Status         string   `json:"status,omitempty"`
	ResultURL      *string  `json:"resultUrl,omitempty"`
	ProcessingTime *int     `json:"processingTime,omitempty" validate:"omitempty,gte=0"`
	Accuracy       *float64 `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
}

// UpdateScanRequest represents the request body for patching a scan
type UpdateScanRequest struct {
	Status         *string  `json:"status,omitempty"`
	ResultURL      *string  `json:"resultUrl,omitempty"`
	ProcessingTime *int     `json:"processingTime,omitempty" validate:"omitempty,gte=0"`
	Accuracy       *float64 `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
}

// UploadURLRequest represents the request body for a presigned upload
type UploadURLRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"contentType,omitempty"`
}

// UpdateScanResponse is returned after a successful patch
type UpdateScanResponse struct {
	Message string       `json:"message"`
	Scan    *models.Scan `json:"scan"`
}

// toUpdate converts the request into a store patch. An explicit empty or
// unknown status is rejected.
func (req UpdateScanRequest) toUpdate() (models.ScanUpdate, error) {
	upd := models.ScanUpdate{
		ResultURL:      req.ResultURL,
		ProcessingTime: req.ProcessingTime,
		Accuracy:       req.Accuracy,
	}
	if req.Status != nil {
		raw := strings.ToUpper(strings.TrimSpace(*req.Status))
		if raw == "" {
			return upd, models.ErrInvalidStatus
		}
		status, err := models.ParseScanStatus(raw)
		if err != nil {
			return upd, err
		}
		upd.Status = &status
	}
	return upd, nil
}

// ListScans returns the caller's scans, newest first
// @Router /api/scans [get]
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.service.ListOwned(r.Context(), auth.GetClaimsFromContext(r))
	if err != nil {
		writeServiceError(w, err, "Scan not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, scans)
}

// CreateScan registers a scan owned by the caller
// @Router /api/scans [post]
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	var req CreateScanRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	scan, err := h.service.Create(r.Context(), auth.GetClaimsFromContext(r), services.CreateScanInput{
		Filename:       strings.TrimSpace(req.Filename),
		OriginalURL:    strings.TrimSpace(req.OriginalURL),
		Size:           req.Size,
		ModelID:        strings.TrimSpace(req.ModelID),
		Status:         req.Status,
		ResultURL:      req.ResultURL,
		ProcessingTime: req.ProcessingTime,
		Accuracy:       req.Accuracy,
	})
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Unknown model")
			return
		}
		writeServiceError(w, err, "Scan not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, scan)
}

// GetScan returns one scan. Scans of other users are reported as not found.
// @Router /api/scans/{id} [get]
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := h.service.Get(r.Context(), auth.GetClaimsFromContext(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Scan not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, scan)
}

// UpdateScan patches status and results of the caller's scan
// @Router /api/scans/{id} [patch]
func (h *ScanHandler) UpdateScan(w http.ResponseWriter, r *http.Request) {
	var req UpdateScanRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	upd, err := req.toUpdate()
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid status")
		return
	}

	scan, err := h.service.UpdateOwned(r.Context(), auth.GetClaimsFromContext(r), chi.URLParam(r, "id"), upd)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "No fields to update")
			return
		}
		writeServiceError(w, err, "Scan not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, UpdateScanResponse{
		Message: "Scan updated successfully",
		Scan:    scan,
	})
}

// CreateUploadURL returns a presigned PUT URL for a new scan file
// @Router /api/scans/upload-url [post]
func (h *ScanHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	var req UploadURLRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	upload, err := h.service.CreateUploadURL(r.Context(), auth.GetClaimsFromContext(r), req.Filename, req.ContentType)
	if err != nil {
		if errors.Is(err, services.ErrUploadsDisabled) {
			pkghttp.WriteNotImplemented(w, "Uploads are not configured")
			return
		}
		writeServiceError(w, err, "Scan not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, upload)
}

// ListAllScans returns every scan with owner email and model name
// @Router /api/admin/scans [get]
func (h *ScanHandler) ListAllScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.service.ListAll(r.Context(), auth.GetClaimsFromContext(r))
	if err != nil {
		writeServiceError(w, err, "Scan not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, scans)
}

// DeleteScan removes any scan. The id comes from the path or from a
// {"scanId"} body.
// @Router /api/admin/scans/{id} [delete]
func (h *ScanHandler) DeleteScan(w http.ResponseWriter, r *http.Request) {
	scanID := targetID(w, r, "scanId")
	if scanID == "" {
		pkghttp.WriteBadRequest(w, "Scan ID is required")
		return
	}

	if err := h.service.DeleteAny(r.Context(), auth.GetClaimsFromContext(r), scanID); err != nil {
		writeServiceError(w, err, "Scan not found")
		return
	}

	pkghttp.WriteMessage(w, "Scan deleted successfully")
}

// SeedScansResponse reports how many sample scans were created
type SeedScansResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// SeedScans creates demo scans owned by the calling admin
// @Router /api/admin/scans/seed [post]
func (h *ScanHandler) SeedScans(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.SeedSamples(r.Context(), auth.GetClaimsFromContext(r))
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Need models first")
			return
		}
		writeServiceError(w, err, "Scan not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, SeedScansResponse{
		Message: "Sample scans created",
		Count:   n,
	})
}
