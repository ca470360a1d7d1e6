package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/BradenHooton/mriscan/internal/services"
	pkghttp "github.com/BradenHooton/mriscan/pkg/http"
)

// AdminServiceInterface defines the dashboard service contract.
type AdminServiceInterface interface {
	GetDashboardStats(ctx context.Context, actor *models.SessionClaims) (*services.DashboardStatsResponse, error)
}

// AdminHandler handles admin dashboard HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// GetDashboardStats handles GET /api/admin/stats
func (h *AdminHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context(), auth.GetClaimsFromContext(r))
	if err != nil {
		writeServiceError(w, err, "Not found")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, stats)
}
