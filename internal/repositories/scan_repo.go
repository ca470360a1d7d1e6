package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/mriscan/internal/database"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const scanColumns = `s.id, s.filename, s.original_url, s.size, s.user_id, s.model_id, s.status,
	s.result_url, s.processing_time, s.accuracy, s.created_at, s.updated_at`

// ScanRepository owns scan rows. Every non-admin query filters by user_id.
type ScanRepository struct {
	pool *pgxpool.Pool
}

func NewScanRepository(db *database.DB) *ScanRepository {
	return &ScanRepository{pool: db.Pool}
}

// scanScanRow reads scanColumns followed by any extra destinations.
func scanScanRow(scanner rowScanner, extra ...interface{}) (*models.Scan, error) {
	var scan models.Scan
	var status string

	dest := []interface{}{
		&scan.ID, &scan.Filename, &scan.OriginalURL, &scan.Size, &scan.UserID, &scan.ModelID, &status,
		&scan.ResultURL, &scan.ProcessingTime, &scan.Accuracy, &scan.CreatedAt, &scan.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := scanner.Scan(dest...); err != nil {
		return nil, database.MapPostgresError(err)
	}

	parsed, err := models.ParseScanStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan %s has invalid status %q: %w", scan.ID, status, err)
	}
	scan.Status = parsed

	return &scan, nil
}

// collectScans drains rows; withOwner selects whether the owner email column is present.
func collectScans(rows pgx.Rows, withOwner bool) ([]*models.Scan, error) {
	defer rows.Close()

	scans := make([]*models.Scan, 0)
	for rows.Next() {
		var modelName, ownerEmail string
		extra := []interface{}{&modelName}
		if withOwner {
			extra = append(extra, &ownerEmail)
		}

		scan, err := scanScanRow(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scan row: %w", err)
		}
		scan.ModelName = modelName
		scan.OwnerEmail = ownerEmail
		scans = append(scans, scan)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return scans, nil
}

func (r *ScanRepository) Create(ctx context.Context, scan *models.Scan) (*models.Scan, error) {
	scan.ID = uuid.New().String()
	if scan.Status == "" {
		scan.Status = models.ScanProcessing
	}

	now := time.Now()
	scan.CreatedAt = now
	scan.UpdatedAt = now

	query := `
		WITH s AS (
			INSERT INTO scans (id, filename, original_url, size, user_id, model_id, status,
			                   result_url, processing_time, accuracy, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING *
		)
		SELECT ` + scanColumns + `, m.name
		FROM s JOIN models m ON m.id = s.model_id
	`

	var modelName string
	created, err := scanScanRow(r.pool.QueryRow(ctx, query,
		scan.ID, scan.Filename, scan.OriginalURL, scan.Size, scan.UserID, scan.ModelID, string(scan.Status),
		scan.ResultURL, scan.ProcessingTime, scan.Accuracy, scan.CreatedAt, scan.UpdatedAt,
	), &modelName)
	if err != nil {
		return nil, err
	}
	created.ModelName = modelName

	return created, nil
}

// ListByOwner returns the owner's scans newest first.
func (r *ScanRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Scan, error) {
	query := `
		SELECT ` + scanColumns + `, m.name
		FROM scans s JOIN models m ON m.id = s.model_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}

	return collectScans(rows, false)
}

// GetForOwner returns the scan only if ownerID owns it; otherwise ErrNotFound.
func (r *ScanRepository) GetForOwner(ctx context.Context, ownerID, id string) (*models.Scan, error) {
	query := `
		SELECT ` + scanColumns + `, m.name, u.email
		FROM scans s
		JOIN models m ON m.id = s.model_id
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1 AND s.user_id = $2
	`

	return r.getOne(ctx, query, id, ownerID)
}

// GetByID returns any scan regardless of owner. Admin paths only.
func (r *ScanRepository) GetByID(ctx context.Context, id string) (*models.Scan, error) {
	query := `
		SELECT ` + scanColumns + `, m.name, u.email
		FROM scans s
		JOIN models m ON m.id = s.model_id
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`

	return r.getOne(ctx, query, id)
}

func (r *ScanRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Scan, error) {
	var modelName, ownerEmail string
	scan, err := scanScanRow(r.pool.QueryRow(ctx, query, args...), &modelName, &ownerEmail)
	if err != nil {
		return nil, err
	}
	scan.ModelName = modelName
	scan.OwnerEmail = ownerEmail
	return scan, nil
}

// UpdateForOwner applies a patch to a scan owned by ownerID in one
// conditional statement. A status change only matches while the scan is in
// one of models.TransitionSources for the requested status. When nothing matches,
// ErrNotFound is returned for a missing or foreign scan and
// ErrInvalidTransition for the owner's terminal scan.
func (r *ScanRepository) UpdateForOwner(ctx context.Context, ownerID, id string, upd models.ScanUpdate) (*models.Scan, error) {
	var status *string
	var sources []string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
		for _, from := range models.TransitionSources(*upd.Status) {
			sources = append(sources, string(from))
		}
	}

	query := `
		UPDATE scans s
		SET status = COALESCE($3, s.status),
		    result_url = COALESCE($4, s.result_url),
		    processing_time = COALESCE($5, s.processing_time),
		    accuracy = COALESCE($6, s.accuracy),
		    updated_at = NOW()
		WHERE s.id = $1 AND s.user_id = $2
		  AND ($3::text IS NULL OR s.status = ANY($7::text[]))
		RETURNING ` + scanColumns

	updated, err := scanScanRow(r.pool.QueryRow(ctx, query,
		id, ownerID, status, upd.ResultURL, upd.ProcessingTime, upd.Accuracy, sources,
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM scans WHERE id = $1 AND user_id = $2)`, id, ownerID,
	).Scan(&exists)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if exists {
		return nil, models.ErrInvalidTransition
	}

	return nil, models.ErrNotFound
}

// ListAll returns every scan with its owner email and model name, newest first.
func (r *ScanRepository) ListAll(ctx context.Context) ([]*models.Scan, error) {
	query := `
		SELECT ` + scanColumns + `, m.name, u.email
		FROM scans s
		JOIN models m ON m.id = s.model_id
		JOIN users u ON u.id = s.user_id
		ORDER BY s.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}

	return collectScans(rows, true)
}

// Delete removes any scan by id.
func (r *ScanRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM scans WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CountByStatus returns the number of scans per status. Statuses with no scans are absent.
func (r *ScanRepository) CountByStatus(ctx context.Context) (map[models.ScanStatus]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM scans GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count scans by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ScanStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[models.ScanStatus(status)] = n
	}

	return counts, rows.Err()
}
