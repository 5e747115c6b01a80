package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/models"
)

// PostgresPrivateGroupRepository provides PostgreSQL-backed persistence for
// private contact groups.
type PostgresPrivateGroupRepository struct {
	pool db.Pool
}

// NewPostgresPrivateGroupRepository constructs a private-group repository backed by PostgreSQL.
func NewPostgresPrivateGroupRepository(pool db.Pool) *PostgresPrivateGroupRepository {
	return &PostgresPrivateGroupRepository{pool: pool}
}

// CreateWithMembers inserts a private group and its initial member rows in one
// transaction.
func (r *PostgresPrivateGroupRepository) CreateWithMembers(ctx context.Context, group models.PrivateGroup, members []models.PrivateGroupMembership) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO private_groups (id, name, creator_id)
            VALUES ($1, $2, $3)
        `, group.ID, group.Name, group.Creator); err != nil {
			return err
		}
		for _, member := range members {
			if _, err := tx.Exec(ctx, `
                INSERT INTO private_group_memberships (id, group_id, user_id)
                VALUES ($1, $2, $3)
            `, member.ID, member.GroupID, member.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return mapPgError(err, "create private group")
	}
	return nil
}

// Get fetches a private group by id.
func (r *PostgresPrivateGroupRepository) Get(ctx context.Context, id string) (models.PrivateGroup, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.PrivateGroup{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var group models.PrivateGroup
	if err := conn.QueryRow(ctx, `
        SELECT id, name, creator_id
        FROM private_groups
        WHERE id = $1
    `, id).Scan(&group.ID, &group.Name, &group.Creator); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PrivateGroup{}, apperr.ErrNotFound
		}
		return models.PrivateGroup{}, fmt.Errorf("select private group: %w", err)
	}

	return group, nil
}

// ListByCreator returns the private groups one user created.
func (r *PostgresPrivateGroupRepository) ListByCreator(ctx context.Context, creatorID string) ([]models.PrivateGroup, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, name, creator_id
        FROM private_groups
        WHERE creator_id = $1
        ORDER BY name
    `, creatorID)
	if err != nil {
		return nil, fmt.Errorf("query private groups: %w", err)
	}
	defer rows.Close()

	var result []models.PrivateGroup
	for rows.Next() {
		var group models.PrivateGroup
		if err := rows.Scan(&group.ID, &group.Name, &group.Creator); err != nil {
			return nil, fmt.Errorf("scan private group: %w", err)
		}
		result = append(result, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate private groups: %w", err)
	}

	return result, nil
}

// Members lists a private group's member accounts.
func (r *PostgresPrivateGroupRepository) Members(ctx context.Context, groupID string) ([]models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+prefixedUserColumns("u")+`
        FROM private_group_memberships m
        JOIN users u ON u.id = m.user_id
        WHERE m.group_id = $1
        ORDER BY u.username
    `, groupID)
	if err != nil {
		return nil, fmt.Errorf("query private group members: %w", err)
	}
	defer rows.Close()

	var members []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.FirstName, &user.LastName,
			&user.IsStaff, &user.IsSuperuser, &user.StorageLimit, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan private group member: %w", err)
		}
		members = append(members, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate private group members: %w", err)
	}

	return members, nil
}

// Rename updates a private group's name.
func (r *PostgresPrivateGroupRepository) Rename(ctx context.Context, id, name string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE private_groups
        SET name = $2
        WHERE id = $1
    `, id, name)
	if err != nil {
		return fmt.Errorf("update private group: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// Reconcile applies one member-set diff in a single transaction. Rows outside
// the diff keep their identity.
func (r *PostgresPrivateGroupRepository) Reconcile(ctx context.Context, groupID string, add []models.PrivateGroupMembership, removeUserIDs []string) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, member := range add {
			if _, err := tx.Exec(ctx, `
                INSERT INTO private_group_memberships (id, group_id, user_id)
                VALUES ($1, $2, $3)
            `, member.ID, member.GroupID, member.UserID); err != nil {
				return err
			}
		}
		if len(removeUserIDs) > 0 {
			if _, err := tx.Exec(ctx, `
                DELETE FROM private_group_memberships
                WHERE group_id = $1 AND user_id = ANY($2)
            `, groupID, removeUserIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return mapPgError(err, "reconcile private group members")
	}
	return nil
}

// Delete removes a private group; member rows follow through ON DELETE CASCADE.
func (r *PostgresPrivateGroupRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM private_groups
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete private group: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}
