package routes

import (
	"net/http"

	"github.com/BradenHooton/mriscan/internal/auth"
	"github.com/BradenHooton/mriscan/internal/handlers"
	pkghttp "github.com/BradenHooton/mriscan/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Auth   *handlers.AuthHandler
	Users  *handlers.UserHandler
	Scans  *handlers.ScanHandler
	Models *handlers.ModelHandler
	Admin  *handlers.AdminHandler
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, authn auth.Authenticator) {
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	router.Route("/api", func(api chi.Router) {
		// Public routes - no session required
		api.Post("/auth/signup", h.Auth.Signup)
		api.Post("/auth/login", h.Auth.Login)
		api.Post("/auth/logout", h.Auth.Logout)
		api.Post("/auth/reset-password", h.Auth.RequestPasswordReset)
		api.Post("/auth/reset-password/confirm", h.Auth.ConfirmPasswordReset)
		api.Get("/models", h.Models.ListModels)

		// Session routes
		api.Group(func(r chi.Router) {
			r.Use(auth.SessionMiddleware(authn))

			r.Get("/auth/me", h.Auth.Me)

			r.Get("/scans", h.Scans.ListScans)
			r.Post("/scans", h.Scans.CreateScan)
			r.Post("/scans/upload-url", h.Scans.CreateUploadURL)
			r.Get("/scans/{id}", h.Scans.GetScan)
			r.Patch("/scans/{id}", h.Scans.UpdateScan)

			r.Get("/users/{id}", h.Users.GetUser)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdminMiddleware)

				r.Post("/models", h.Models.CreateModel)

				r.Get("/admin/stats", h.Admin.GetDashboardStats)
				r.Post("/admin/models/seed", h.Models.SeedModels)

				r.Get("/admin/users", h.Users.ListUsers)
				r.Delete("/admin/users", h.Users.DeleteUser)
				r.Delete("/admin/users/{id}", h.Users.DeleteUser)

				r.Get("/admin/scans", h.Scans.ListAllScans)
				r.Delete("/admin/scans", h.Scans.DeleteScan)
				r.Delete("/admin/scans/{id}", h.Scans.DeleteScan)
				r.Post("/admin/scans/seed", h.Scans.SeedScans)
			})
		})
	})
}
