package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/mriscan/internal/database"
	"github.com/BradenHooton/mriscan/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, role, reset_token_hash, reset_expires, password_changed_at, created_at, updated_at`

// UserRepository is the credential store adapter. It is the only writer of user rows.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var role string

	err := scanner.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &role,
		&user.ResetTokenHash, &user.ResetExpires, &user.PasswordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if user.Role, err = models.ParseRole(role); err != nil {
		return nil, fmt.Errorf("user %s has invalid role %q: %w", user.ID, role, err)
	}

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail looks a user up by exact, case-sensitive email match.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !user.Role.Valid() {
		return nil, models.ErrInvalidRole
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.PasswordChangedAt == nil {
		user.PasswordChangedAt = &now
	}

	query := `
		INSERT INTO users (id, email, password_hash, role, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.ID, user.Email, user.PasswordHash, string(user.Role),
		user.PasswordChangedAt, user.CreatedAt, user.UpdatedAt,
	))
}

// List returns all users newest first, each with the number of scans they own.
func (r *UserRepository) List(ctx context.Context) ([]*models.UserSummary, error) {
	query := `
		SELECT u.id, u.email, u.role, u.created_at, COUNT(s.id)
		FROM users u
		LEFT JOIN scans s ON s.user_id = u.id
		GROUP BY u.id
		ORDER BY u.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.UserSummary, 0)
	for rows.Next() {
		var u models.UserSummary
		var role string
		if err := rows.Scan(&u.ID, &u.Email, &role, &u.CreatedAt, &u.ScanCount); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Role = models.Role(role)
		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

// Delete removes a user; their scans are removed by ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SetResetToken stores a reset token digest and its expiry, replacing any outstanding one.
func (r *UserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users SET reset_token_hash = $1, reset_expires = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.pool.Exec(ctx, query, tokenHash, expiresAt, userID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ConsumeResetToken sets a new password hash for the user holding an
// unexpired reset token and clears the token, in a single statement. Of any
// number of concurrent calls with the same token at most one matches; the
// rest get ErrNotFound.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (string, error) {
	query := `
		UPDATE users
		SET password_hash = $1,
		    reset_token_hash = NULL,
		    reset_expires = NULL,
		    password_changed_at = $3,
		    updated_at = $3
		WHERE reset_token_hash = $2 AND reset_expires > $3
		RETURNING id
	`

	var userID string
	err := r.pool.QueryRow(ctx, query, passwordHash, tokenHash, now).Scan(&userID)
	if err != nil {
		return "", database.MapPostgresError(err)
	}

	return userID, nil
}

// ClearExpiredResetTokens nulls out reset fields whose expiry has passed.
func (r *UserRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users SET reset_token_hash = NULL, reset_expires = NULL
		WHERE reset_expires IS NOT NULL AND reset_expires <= $1
	`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// CountByRole returns the number of users per role. Roles with no users are absent.
func (r *UserRepository) CountByRole(ctx context.Context) (map[models.Role]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("failed to count users by role: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Role]int64)
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("failed to scan role count: %w", err)
		}
		counts[models.Role(role)] = n
	}

	return counts, rows.Err()
}

// CountNewSince returns the number of users created at or after since.
func (r *UserRepository) CountNewSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE created_at >= $1`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count new users: %w", err)
	}
	return n, nil
}
