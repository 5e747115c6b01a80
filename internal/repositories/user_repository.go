package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for accounts.
// It doubles as the user directory the domain services consult.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, username, email, password_hash, first_name, last_name, is_staff, is_superuser, storage_limit, created_at, updated_at`

// prefixedUserColumns qualifies the user column list with a table alias for
// joined queries.
func prefixedUserColumns(alias string) string {
	cols := strings.Split(userColumns, ", ")
	for i, col := range cols {
		cols[i] = alias + "." + col
	}
	return strings.Join(cols, ", ")
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.FirstName, &user.LastName,
		&user.IsStaff, &user.IsSuperuser, &user.StorageLimit, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, apperr.ErrNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// Create persists a new account.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	now := time.Now().UTC()
	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, password_hash, first_name, last_name, is_staff, is_superuser, storage_limit, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
    `, user.ID, user.Username, user.Email, user.Password, user.FirstName, user.LastName,
		user.IsStaff, user.IsSuperuser, user.StorageLimit, now)
	if err != nil {
		return mapPgError(err, "insert user")
	}

	return nil
}

// FindByID fetches an account by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanUser(conn.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE id = $1
    `, id))
}

// FindByEmail fetches an account by its email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanUser(conn.QueryRow(ctx, `
        SELECT `+userColumns+`
        FROM users
        WHERE email = $1
    `, email))
}

// Find is the user-directory read used by the video service.
func (r *PostgresUserRepository) Find(ctx context.Context, userID string) (models.User, error) {
	return r.FindByID(ctx, userID)
}

// Exists reports whether an account with the given id exists.
func (r *PostgresUserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)
    `, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("select user existence: %w", err)
	}

	return exists, nil
}

// Update modifies an existing account.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET username = $2, email = $3, password_hash = $4, first_name = $5, last_name = $6, storage_limit = $7, updated_at = $8
        WHERE id = $1
    `, user.ID, user.Username, user.Email, user.Password, user.FirstName, user.LastName,
		user.StorageLimit, time.Now().UTC())
	if err != nil {
		return mapPgError(err, "update user")
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// Delete removes an account. Dependent rows go with it except videos, whose
// creator column is cleared by the schema.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM users
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}
