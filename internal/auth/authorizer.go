package auth

import "github.com/BradenHooton/mriscan/internal/models"

// RequireAuthenticated fails with ErrUnauthorized when no session is present.
func RequireAuthenticated(claims *models.SessionClaims) error {
	if claims == nil || claims.UserID == "" {
		return models.ErrUnauthorized
	}
	return nil
}

// RequireAdmin fails with ErrUnauthorized without a session and
// ErrForbidden for a non-admin session.
func RequireAdmin(claims *models.SessionClaims) error {
	if err := RequireAuthenticated(claims); err != nil {
		return err
	}
	if !claims.IsAdmin() {
		return models.ErrForbidden
	}
	return nil
}

// RequireOwnerOrAdmin allows the resource owner or any admin.
func RequireOwnerOrAdmin(claims *models.SessionClaims, ownerID string) error {
	if err := RequireAuthenticated(claims); err != nil {
		return err
	}
	if claims.IsAdmin() || claims.UserID == ownerID {
		return nil
	}
	return models.ErrForbidden
}
