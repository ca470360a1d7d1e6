package handlers_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BradenHooton/mriscan/internal/handlers"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/BradenHooton/mriscan/internal/services"
	"github.com/BradenHooton/mriscan/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== Create / List =====

func TestCreateScan_Success(t *testing.T) {
	var got services.CreateScanInput
	svc := &handlers.MockScanService{
		CreateFunc: func(ctx context.Context, actor *models.SessionClaims, in services.CreateScanInput) (*models.Scan, error) {
			require.NotNil(t, actor)
			got = in
			return &models.Scan{ID: "s1", UserID: actor.UserID, Filename: in.Filename, Status: models.ScanProcessing}, nil
		},
	}
	handler := handlers.NewScanHandler(svc)

	req := handlers.NewTestRequest(t, "POST", "/api/scans", handlers.CreateScanRequest{
		Filename: "brain.nii", OriginalURL: "/uploads/brain.nii", Size: 2048, ModelID: "m1",
	})
	req = handlers.WithAuthContext(req, "u1", "a@x.com")
	w := httptest.NewRecorder()
	handler.CreateScan(w, req)

	var scan models.Scan
	handlers.AssertJSONResponse(t, w, 200, &scan)
	assert.Equal(t, "s1", scan.ID)
	assert.Equal(t, "u1", scan.UserID)
	assert.Equal(t, models.ScanProcessing, scan.Status)
	assert.Equal(t, int64(2048), got.Size)
	assert.Equal(t, "m1", got.ModelID)
}

func TestCreateScan_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{"missing filename", `{"originalUrl":"/u","size":1,"modelId":"m1"}`, nil, 400, "validation failed: filename: this field is required"},
		{"negative size", `{"filename":"f","originalUrl":"/u","size":-1,"modelId":"m1"}`, nil, 400, "validation failed: size: must be greater than or equal to 0"},
		{"unknown model", `{"filename":"f","originalUrl":"/u","size":1,"modelId":"nope"}`, models.ErrBadRequest, 400, "Unknown model"},
		{"invalid status", `{"filename":"f","originalUrl":"/u","size":1,"modelId":"m1","status":"DONE"}`, models.ErrInvalidStatus, 400, "Invalid status"},
		{"no session", `{"filename":"f","originalUrl":"/u","size":1,"modelId":"m1"}`, models.ErrUnauthorized, 401, "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockScanService{
				CreateFunc: func(ctx context.Context, actor *models.SessionClaims, in services.CreateScanInput) (*models.Scan, error) {
					if tt.err == nil {
						t.Fatal("service must not be called")
					}
					return nil, tt.err
				},
			}
			handler := handlers.NewScanHandler(svc)

			req := httptest.NewRequest("POST", "/api/scans", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.CreateScan(w, req)

			handlers.AssertErrorResponse(t, w, tt.status, tt.message)
		})
	}
}

func TestListScans(t *testing.T) {
	svc := &handlers.MockScanService{
		ListOwnedFunc: func(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error) {
			return []*models.Scan{{ID: "s2", UserID: actor.UserID}, {ID: "s1", UserID: actor.UserID}}, nil
		},
	}
	handler := handlers.NewScanHandler(svc)

	req := handlers.WithAuthContext(httptest.NewRequest("GET", "/api/scans", nil), "u1", "a@x.com")
	w := httptest.NewRecorder()
	handler.ListScans(w, req)

	var scans []models.Scan
	handlers.AssertJSONResponse(t, w, 200, &scans)
	require.Len(t, scans, 2)
	assert.Equal(t, "s2", scans[0].ID)
}

// ===== Get / Update =====

func TestGetScan_NotFound(t *testing.T) {
	handler := handlers.NewScanHandler(&handlers.MockScanService{})

	req := handlers.WithAuthContext(httptest.NewRequest("GET", "/api/scans/s1", nil), "u2", "b@x.com")
	req = handlers.WithURLParam(req, "id", "s1")
	w := httptest.NewRecorder()
	handler.GetScan(w, req)

	handlers.AssertErrorResponse(t, w, 404, "Scan not found")
}

func TestUpdateScan(t *testing.T) {
	var gotUpdate models.ScanUpdate
	svc := &handlers.MockScanService{
		UpdateOwnedFunc: func(ctx context.Context, actor *models.SessionClaims, id string, upd models.ScanUpdate) (*models.Scan, error) {
			gotUpdate = upd
			switch id {
			case "done":
				return nil, models.ErrInvalidTransition
			case "foreign":
				return nil, models.ErrNotFound
			}
			return &models.Scan{ID: id, Status: *upd.Status}, nil
		},
	}
	handler := handlers.NewScanHandler(svc)

	patch := func(id, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("PATCH", "/api/scans/"+id, strings.NewReader(body))
		req = handlers.WithURLParam(handlers.WithAuthContext(req, "u1", "a@x.com"), "id", id)
		w := httptest.NewRecorder()
		handler.UpdateScan(w, req)
		return w
	}

	w := patch("s1", `{"status":"completed","accuracy":0.94,"processingTime":12}`)
	var resp handlers.UpdateScanResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, "Scan updated successfully", resp.Message)
	require.NotNil(t, gotUpdate.Status)
	assert.Equal(t, models.ScanCompleted, *gotUpdate.Status)
	require.NotNil(t, gotUpdate.Accuracy)
	assert.InDelta(t, 0.94, *gotUpdate.Accuracy, 1e-9)

	handlers.AssertErrorResponse(t, patch("done", `{"status":"PROCESSING"}`), 409, "Scan status cannot change once it is final")
	handlers.AssertErrorResponse(t, patch("foreign", `{"status":"FAILED"}`), 404, "Scan not found")
	handlers.AssertErrorResponse(t, patch("s1", `{"status":"DONE"}`), 400, "Invalid status")
	handlers.AssertErrorResponse(t, patch("s1", `{"status":""}`), 400, "Invalid status")
	handlers.AssertErrorResponse(t, patch("s1", `{"accuracy":-1}`), 400, "validation failed: accuracy: must be greater than or equal to 0")
}

func TestUpdateScan_EmptyPatch(t *testing.T) {
	svc := &handlers.MockScanService{
		UpdateOwnedFunc: func(ctx context.Context, actor *models.SessionClaims, id string, upd models.ScanUpdate) (*models.Scan, error) {
			assert.True(t, upd.IsEmpty())
			return nil, models.ErrBadRequest
		},
	}
	handler := handlers.NewScanHandler(svc)

	req := httptest.NewRequest("PATCH", "/api/scans/s1", strings.NewReader(`{}`))
	req = handlers.WithURLParam(handlers.WithAuthContext(req, "u1", "a@x.com"), "id", "s1")
	w := httptest.NewRecorder()
	handler.UpdateScan(w, req)

	handlers.AssertErrorResponse(t, w, 400, "No fields to update")
}

// ===== Upload URL =====

func TestCreateUploadURL(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		handler := handlers.NewScanHandler(&handlers.MockScanService{})
		req := handlers.NewTestRequest(t, "POST", "/api/scans/upload-url", handlers.UploadURLRequest{Filename: "f.nii"})
		w := httptest.NewRecorder()
		handler.CreateUploadURL(w, handlers.WithAuthContext(req, "u1", "a@x.com"))

		handlers.AssertErrorResponse(t, w, 501, "Uploads are not configured")
	})

	t.Run("presigned", func(t *testing.T) {
		handler := handlers.NewScanHandler(&handlers.MockScanService{
			CreateUploadURLFunc: func(ctx context.Context, actor *models.SessionClaims, filename, contentType string) (*storage.PresignedUpload, error) {
				return &storage.PresignedUpload{UploadURL: "https://bucket/put", Method: "PUT", Key: "scans/u1/f.nii", ObjectURL: "https://bucket/scans/u1/f.nii"}, nil
			},
		})
		req := handlers.NewTestRequest(t, "POST", "/api/scans/upload-url", handlers.UploadURLRequest{Filename: "f.nii", ContentType: "application/octet-stream"})
		w := httptest.NewRecorder()
		handler.CreateUploadURL(w, handlers.WithAuthContext(req, "u1", "a@x.com"))

		var resp map[string]interface{}
		handlers.AssertJSONResponse(t, w, 200, &resp)
		assert.Equal(t, "https://bucket/put", resp["uploadUrl"])
		assert.Equal(t, "https://bucket/scans/u1/f.nii", resp["originalUrl"])
	})
}

// ===== Admin =====

func TestAdminScans(t *testing.T) {
	var deleted []string
	svc := &handlers.MockScanService{
		ListAllFunc: func(ctx context.Context, actor *models.SessionClaims) ([]*models.Scan, error) {
			if !actor.IsAdmin() {
				return nil, models.ErrForbidden
			}
			return []*models.Scan{{ID: "s1", OwnerEmail: "a@x.com", ModelName: "Tumor Detection Model"}}, nil
		},
		DeleteAnyFunc: func(ctx context.Context, actor *models.SessionClaims, id string) error {
			if id == "missing" {
				return models.ErrNotFound
			}
			deleted = append(deleted, id)
			return nil
		},
	}
	handler := handlers.NewScanHandler(svc)

	w := httptest.NewRecorder()
	handler.ListAllScans(w, handlers.WithAuthContext(httptest.NewRequest("GET", "/api/admin/scans", nil), "u1", "a@x.com"))
	handlers.AssertErrorResponse(t, w, 403, "Forbidden")

	w = httptest.NewRecorder()
	handler.ListAllScans(w, handlers.WithAdminContext(httptest.NewRequest("GET", "/api/admin/scans", nil), "admin", "r@x.com"))
	var scans []models.Scan
	handlers.AssertJSONResponse(t, w, 200, &scans)
	require.Len(t, scans, 1)
	assert.Equal(t, "a@x.com", scans[0].OwnerEmail)

	// path form
	req := handlers.WithURLParam(handlers.WithAdminContext(httptest.NewRequest("DELETE", "/api/admin/scans/s1", nil), "admin", "r@x.com"), "id", "s1")
	w = httptest.NewRecorder()
	handler.DeleteScan(w, req)
	assert.Equal(t, 200, w.Code)

	// body form
	req = handlers.WithAdminContext(httptest.NewRequest("DELETE", "/api/admin/scans", strings.NewReader(`{"scanId":"s2"}`)), "admin", "r@x.com")
	w = httptest.NewRecorder()
	handler.DeleteScan(w, req)
	assert.Equal(t, 200, w.Code)

	req = handlers.WithURLParam(handlers.WithAdminContext(httptest.NewRequest("DELETE", "/api/admin/scans/missing", nil), "admin", "r@x.com"), "id", "missing")
	w = httptest.NewRecorder()
	handler.DeleteScan(w, req)
	handlers.AssertErrorResponse(t, w, 404, "Scan not found")

	assert.Equal(t, []string{"s1", "s2"}, deleted)
}

func TestDeleteScan_BodyReadsOnlyScanID(t *testing.T) {
	var deleted []string
	handler := handlers.NewScanHandler(&handlers.MockScanService{
		DeleteAnyFunc: func(ctx context.Context, actor *models.SessionClaims, id string) error {
			deleted = append(deleted, id)
			return nil
		},
	})

	del := func(body string) *httptest.ResponseRecorder {
		req := handlers.WithAdminContext(httptest.NewRequest("DELETE", "/api/admin/scans", strings.NewReader(body)), "admin", "r@x.com")
		w := httptest.NewRecorder()
		handler.DeleteScan(w, req)
		return w
	}

	handlers.AssertErrorResponse(t, del(`{"userId":"U2"}`), 400, "Scan ID is required")
	assert.Equal(t, 200, del(`{"userId":"U1","scanId":"S1"}`).Code)

	assert.Equal(t, []string{"S1"}, deleted)
}

func TestSeedScans(t *testing.T) {
	handler := handlers.NewScanHandler(&handlers.MockScanService{})
	w := httptest.NewRecorder()
	handler.SeedScans(w, handlers.WithAdminContext(httptest.NewRequest("POST", "/api/admin/scans/seed", nil), "admin", "r@x.com"))
	handlers.AssertErrorResponse(t, w, 400, "Need models first")

	handler = handlers.NewScanHandler(&handlers.MockScanService{
		SeedSamplesFunc: func(ctx context.Context, actor *models.SessionClaims) (int, error) {
			if !actor.IsAdmin() {
				return 0, models.ErrForbidden
			}
			return 2, nil
		},
	})

	w = httptest.NewRecorder()
	handler.SeedScans(w, handlers.WithAuthContext(httptest.NewRequest("POST", "/api/admin/scans/seed", nil), "u1", "a@x.com"))
	handlers.AssertErrorResponse(t, w, 403, "Forbidden")

	w = httptest.NewRecorder()
	handler.SeedScans(w, handlers.WithAdminContext(httptest.NewRequest("POST", "/api/admin/scans/seed", nil), "admin", "r@x.com"))
	var resp handlers.SeedScansResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "Sample scans created", resp.Message)
}
