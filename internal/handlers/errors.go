package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/BradenHooton/mriscan/internal/models"
	pkghttp "github.com/BradenHooton/mriscan/pkg/http"
	"github.com/go-chi/chi/v5"
)

// writeServiceError maps a service sentinel to its HTTP response. Unknown
// errors become a 500 without echoing the cause.
func writeServiceError(w http.ResponseWriter, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Unauthorized")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Forbidden")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, notFoundMessage)
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrInvalidTransition):
		pkghttp.WriteConflict(w, "Scan status cannot change once it is final")
	case errors.Is(err, models.ErrInvalidStatus):
		pkghttp.WriteBadRequest(w, "Invalid status")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// targetID returns the {id} path parameter, falling back to the string
// stored under bodyKey in the JSON body, e.g. {"scanId": "..."}. Other keys
// are ignored.
func targetID(w http.ResponseWriter, r *http.Request, bodyKey string) string {
	if id := strings.TrimSpace(chi.URLParam(r, "id")); id != "" {
		return id
	}

	var req map[string]interface{}
	if err := decodeJSON(w, r, &req); err != nil {
		return ""
	}
	id, _ := req[bodyKey].(string)
	return strings.TrimSpace(id)
}
