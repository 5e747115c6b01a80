package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/groups"
	"github.com/vidshare/backend/internal/models"
)

// PostgresGroupRepository provides PostgreSQL-backed persistence for groups,
// memberships, and invitations.
type PostgresGroupRepository struct {
	pool db.Pool
}

// NewPostgresGroupRepository constructs a group repository backed by PostgreSQL.
func NewPostgresGroupRepository(pool db.Pool) *PostgresGroupRepository {
	return &PostgresGroupRepository{pool: pool}
}

// CreateWithOwner inserts a group and its owner membership in one transaction.
func (r *PostgresGroupRepository) CreateWithOwner(ctx context.Context, group models.Group, owner models.Membership) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO groups (id, name)
            VALUES ($1, $2)
        `, group.ID, group.Name); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
            INSERT INTO memberships (id, user_id, group_id, role)
            VALUES ($1, $2, $3, $4)
        `, owner.ID, owner.UserID, owner.GroupID, owner.Role)
		return err
	})
	if err != nil {
		return mapPgError(err, "create group with owner")
	}
	return nil
}

// Get fetches a group by id.
func (r *PostgresGroupRepository) Get(ctx context.Context, id string) (models.Group, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Group{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var group models.Group
	if err := conn.QueryRow(ctx, `
        SELECT id, name
        FROM groups
        WHERE id = $1
    `, id).Scan(&group.ID, &group.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Group{}, apperr.ErrNotFound
		}
		return models.Group{}, fmt.Errorf("select group: %w", err)
	}

	return group, nil
}

// List returns all groups.
func (r *PostgresGroupRepository) List(ctx context.Context) ([]models.Group, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, name
        FROM groups
        ORDER BY name
    `)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var result []models.Group
	for rows.Next() {
		var group models.Group
		if err := rows.Scan(&group.ID, &group.Name); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		result = append(result, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}

	return result, nil
}

// Rename updates a group's name.
func (r *PostgresGroupRepository) Rename(ctx context.Context, id, name string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE groups
        SET name = $2
        WHERE id = $1
    `, id, name)
	if err != nil {
		return fmt.Errorf("update group: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// DeleteCascade removes a group; memberships and invitations follow through
// the schema's ON DELETE CASCADE.
func (r *PostgresGroupRepository) DeleteCascade(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM groups
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// Membership fetches one user's membership in a group, or nil when none exists.
func (r *PostgresGroupRepository) Membership(ctx context.Context, userID, groupID string) (*models.Membership, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var membership models.Membership
	if err := conn.QueryRow(ctx, `
        SELECT id, user_id, group_id, role
        FROM memberships
        WHERE user_id = $1 AND group_id = $2
    `, userID, groupID).Scan(&membership.ID, &membership.UserID, &membership.GroupID, &membership.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select membership: %w", err)
	}

	return &membership, nil
}

// Members lists a group's members with their accounts joined in.
func (r *PostgresGroupRepository) Members(ctx context.Context, groupID string) ([]groups.Member, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT m.role, `+prefixedUserColumns("u")+`
        FROM memberships m
        JOIN users u ON u.id = m.user_id
        WHERE m.group_id = $1
        ORDER BY m.role DESC, u.username
    `, groupID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []groups.Member
	for rows.Next() {
		var member groups.Member
		user := &member.User
		if err := rows.Scan(&member.Role,
			&user.ID, &user.Username, &user.Email, &user.Password, &user.FirstName, &user.LastName,
			&user.IsStaff, &user.IsSuperuser, &user.StorageLimit, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}

	return members, nil
}

// HasInvitation reports whether the user holds a pending invitation for the group.
func (r *PostgresGroupRepository) HasInvitation(ctx context.Context, userID, groupID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM invitations WHERE user_id = $1 AND group_id = $2)
    `, userID, groupID).Scan(&exists); err != nil {
		return false, fmt.Errorf("select invitation existence: %w", err)
	}

	return exists, nil
}

// CreateInvitation persists a pending invitation.
func (r *PostgresGroupRepository) CreateInvitation(ctx context.Context, invitation models.Invitation) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO invitations (id, user_id, group_id)
        VALUES ($1, $2, $3)
    `, invitation.ID, invitation.UserID, invitation.GroupID)
	if err != nil {
		return mapPgError(err, "insert invitation")
	}

	return nil
}

// Join consumes the user's invitation and creates their membership in one
// transaction. A missing invitation aborts with apperr.ErrForbidden; an
// already-existing membership surfaces as apperr.ErrConflict.
func (r *PostgresGroupRepository) Join(ctx context.Context, membership models.Membership) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            DELETE FROM invitations
            WHERE user_id = $1 AND group_id = $2
        `, membership.UserID, membership.GroupID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrForbidden
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO memberships (id, user_id, group_id, role)
            VALUES ($1, $2, $3, $4)
        `, membership.ID, membership.UserID, membership.GroupID, membership.Role)
		return err
	})
	if err != nil {
		if errors.Is(err, apperr.ErrForbidden) {
			return apperr.ErrForbidden
		}
		return mapPgError(err, "join group")
	}
	return nil
}

// DeleteMembership removes one membership row.
func (r *PostgresGroupRepository) DeleteMembership(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM memberships
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}
