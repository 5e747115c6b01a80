package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/friendships"
	"github.com/vidshare/backend/internal/models"
)

// PostgresFriendshipRepository provides PostgreSQL-backed persistence for
// friendships. Unordered-pair uniqueness is enforced by a unique index over
// (least(user1), greatest(user2)), so concurrent duplicate requests in either
// direction collapse into apperr.ErrConflict.
type PostgresFriendshipRepository struct {
	pool db.Pool
}

// NewPostgresFriendshipRepository constructs a friendship repository backed by PostgreSQL.
func NewPostgresFriendshipRepository(pool db.Pool) *PostgresFriendshipRepository {
	return &PostgresFriendshipRepository{pool: pool}
}

// Create persists a new pending friendship.
func (r *PostgresFriendshipRepository) Create(ctx context.Context, friendship models.Friendship) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO friendships (id, user1_id, user2_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, friendship.ID, friendship.User1, friendship.User2, friendship.Status, friendship.CreatedAt, friendship.UpdatedAt)
	if err != nil {
		return mapPgError(err, "insert friendship")
	}

	return nil
}

// Get fetches a friendship by id.
func (r *PostgresFriendshipRepository) Get(ctx context.Context, id string) (models.Friendship, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user1_id, user2_id, status, created_at, updated_at
        FROM friendships
        WHERE id = $1
    `, id)

	var friendship models.Friendship
	if err := row.Scan(&friendship.ID, &friendship.User1, &friendship.User2, &friendship.Status,
		&friendship.CreatedAt, &friendship.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Friendship{}, apperr.ErrNotFound
		}
		return models.Friendship{}, fmt.Errorf("select friendship: %w", err)
	}

	return friendship, nil
}

// Accept transitions a pending friendship to accepted. The status guard in
// the WHERE clause closes the race with a concurrent accept or delete.
func (r *PostgresFriendshipRepository) Accept(ctx context.Context, id string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE friendships
        SET status = $2, updated_at = $3
        WHERE id = $1 AND status = $4
    `, id, models.FriendshipAccepted, at.UTC(), models.FriendshipPending)
	if err != nil {
		return fmt.Errorf("update friendship status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrConflict
	}

	return nil
}

// Delete removes a friendship regardless of status.
func (r *PostgresFriendshipRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM friendships
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// Accepted lists the user's accepted friendships with the other party joined in.
func (r *PostgresFriendshipRepository) Accepted(ctx context.Context, userID string) ([]friendships.FriendEntry, error) {
	return r.listEntries(ctx, `
        SELECT f.id, f.status, `+prefixedUserColumns("u")+`
        FROM friendships f
        JOIN users u ON u.id = CASE WHEN f.user1_id = $1 THEN f.user2_id ELSE f.user1_id END
        WHERE f.status = 'accepted' AND (f.user1_id = $1 OR f.user2_id = $1)
        ORDER BY f.created_at DESC
    `, userID)
}

// Incoming lists pending friendships where the user is the recipient.
func (r *PostgresFriendshipRepository) Incoming(ctx context.Context, userID string) ([]friendships.FriendEntry, error) {
	return r.listEntries(ctx, `
        SELECT f.id, f.status, `+prefixedUserColumns("u")+`
        FROM friendships f
        JOIN users u ON u.id = f.user1_id
        WHERE f.status = 'pending' AND f.user2_id = $1
        ORDER BY f.created_at DESC
    `, userID)
}

// Outgoing lists pending friendships where the user is the sender.
func (r *PostgresFriendshipRepository) Outgoing(ctx context.Context, userID string) ([]friendships.FriendEntry, error) {
	return r.listEntries(ctx, `
        SELECT f.id, f.status, `+prefixedUserColumns("u")+`
        FROM friendships f
        JOIN users u ON u.id = f.user2_id
        WHERE f.status = 'pending' AND f.user1_id = $1
        ORDER BY f.created_at DESC
    `, userID)
}

func (r *PostgresFriendshipRepository) listEntries(ctx context.Context, query, userID string) ([]friendships.FriendEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	var entries []friendships.FriendEntry
	for rows.Next() {
		var entry friendships.FriendEntry
		friend := &entry.Friend
		if err := rows.Scan(&entry.FriendshipID, &entry.Status,
			&friend.ID, &friend.Username, &friend.Email, &friend.Password, &friend.FirstName, &friend.LastName,
			&friend.IsStaff, &friend.IsSuperuser, &friend.StorageLimit, &friend.CreatedAt, &friend.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan friendship entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}

	return entries, nil
}
