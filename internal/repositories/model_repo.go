package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/mriscan/internal/database"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const modelColumns = `id, name, description, version, is_active, created_at, updated_at`

// ModelRepository stores the analysis model catalog.
type ModelRepository struct {
	db   *database.DB
	pool *pgxpool.Pool
}

func NewModelRepository(db *database.DB) *ModelRepository {
	return &ModelRepository{db: db, pool: db.Pool}
}

func scanModelRow(scanner rowScanner) (*models.AnalysisModel, error) {
	var m models.AnalysisModel
	err := scanner.Scan(&m.ID, &m.Name, &m.Description, &m.Version, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &m, nil
}

// ListActive returns active models, newest first.
func (r *ModelRepository) ListActive(ctx context.Context) ([]*models.AnalysisModel, error) {
	query := `SELECT ` + modelColumns + ` FROM models WHERE is_active ORDER BY created_at DESC, name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	list := make([]*models.AnalysisModel, 0)
	for rows.Next() {
		m, err := scanModelRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		list = append(list, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return list, nil
}

func (r *ModelRepository) GetByID(ctx context.Context, id string) (*models.AnalysisModel, error) {
	query := `SELECT ` + modelColumns + ` FROM models WHERE id = $1`
	return scanModelRow(r.pool.QueryRow(ctx, query, id))
}

func (r *ModelRepository) Create(ctx context.Context, m *models.AnalysisModel) (*models.AnalysisModel, error) {
	m.ID = uuid.New().String()
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO models (id, name, description, version, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + modelColumns

	return scanModelRow(r.pool.QueryRow(ctx, query,
		m.ID, m.Name, m.Description, m.Version, m.IsActive, m.CreatedAt, m.UpdatedAt,
	))
}

// UpsertByName inserts or refreshes each model keyed by name in a single
// transaction and returns how many rows were written.
func (r *ModelRepository) UpsertByName(ctx context.Context, list []models.AnalysisModel) (int, error) {
	query := `
		INSERT INTO models (id, name, description, version, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description,
		    version = EXCLUDED.version,
		    is_active = EXCLUDED.is_active,
		    updated_at = NOW()
	`

	written := 0
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, m := range list {
			if _, err := tx.Exec(ctx, query, uuid.New().String(), m.Name, m.Description, m.Version, m.IsActive); err != nil {
				return fmt.Errorf("failed to upsert model %q: %w", m.Name, database.MapPostgresError(err))
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}
