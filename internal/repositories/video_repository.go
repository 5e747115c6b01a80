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

// PostgresVideoRepository provides PostgreSQL-backed persistence for video
// metadata and share grants. The creator column is nullable so videos outlive
// their uploader.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `id, creator_id, name, description, blob_key, size_bytes, is_public, uploaded_at`

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	var creator *string
	err := row.Scan(&video.ID, &creator, &video.Name, &video.Description, &video.BlobKey,
		&video.Size, &video.IsPublic, &video.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, apperr.ErrNotFound
		}
		return models.Video{}, fmt.Errorf("scan video: %w", err)
	}
	if creator != nil {
		video.Creator = *creator
	}
	return video, nil
}

// creatorValue maps the empty creator id onto SQL NULL.
func creatorValue(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

// CreateWithShares inserts a video and its share grants in one transaction.
func (r *PostgresVideoRepository) CreateWithShares(ctx context.Context, video models.Video, shares []models.Shared) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO videos (id, creator_id, name, description, blob_key, size_bytes, is_public, uploaded_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        `, video.ID, creatorValue(video.Creator), video.Name, video.Description, video.BlobKey,
			video.Size, video.IsPublic, video.UploadedAt); err != nil {
			return err
		}
		for _, share := range shares {
			if _, err := tx.Exec(ctx, `
                INSERT INTO shared_videos (id, video_id, user_id)
                VALUES ($1, $2, $3)
            `, share.ID, share.VideoID, share.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return mapPgError(err, "create video")
	}
	return nil
}

// Get fetches a video by id.
func (r *PostgresVideoRepository) Get(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanVideo(conn.QueryRow(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE id = $1
    `, id))
}

// Update rewrites a video's metadata and applies the share-grant diff in one
// transaction.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video, addShares []models.Shared, removeUserIDs []string) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            UPDATE videos
            SET name = $2, description = $3, is_public = $4
            WHERE id = $1
        `, video.ID, video.Name, video.Description, video.IsPublic)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrNotFound
		}
		for _, share := range addShares {
			if _, err := tx.Exec(ctx, `
                INSERT INTO shared_videos (id, video_id, user_id)
                VALUES ($1, $2, $3)
            `, share.ID, share.VideoID, share.UserID); err != nil {
				return err
			}
		}
		if len(removeUserIDs) > 0 {
			if _, err := tx.Exec(ctx, `
                DELETE FROM shared_videos
                WHERE video_id = $1 AND user_id = ANY($2)
            `, video.ID, removeUserIDs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.ErrNotFound
		}
		return mapPgError(err, "update video")
	}
	return nil
}

// Delete removes a video row; share grants follow through ON DELETE CASCADE.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM videos
        WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// IsSharedWith reports whether the video carries a grant for the user.
func (r *PostgresVideoRepository) IsSharedWith(ctx context.Context, videoID, userID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	if err := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM shared_videos WHERE video_id = $1 AND user_id = $2)
    `, videoID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("select share existence: %w", err)
	}

	return exists, nil
}

// SharedUserIDs lists the users granted access to the video.
func (r *PostgresVideoRepository) SharedUserIDs(ctx context.Context, videoID string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT user_id
        FROM shared_videos
        WHERE video_id = $1
        ORDER BY user_id
    `, videoID)
	if err != nil {
		return nil, fmt.Errorf("query shares: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		userIDs = append(userIDs, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shares: %w", err)
	}

	return userIDs, nil
}

// ListByCreator returns every video one user uploaded.
func (r *PostgresVideoRepository) ListByCreator(ctx context.Context, creatorID string) ([]models.Video, error) {
	return r.listVideos(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE creator_id = $1
        ORDER BY uploaded_at DESC
    `, creatorID)
}

// ListVisibleTo returns one creator's videos that are public or shared with
// the requester.
func (r *PostgresVideoRepository) ListVisibleTo(ctx context.Context, creatorID, requesterID string) ([]models.Video, error) {
	return r.listVideos(ctx, `
        SELECT `+videoColumns+`
        FROM videos v
        WHERE v.creator_id = $1
          AND (v.is_public
               OR EXISTS (SELECT 1 FROM shared_videos s WHERE s.video_id = v.id AND s.user_id = $2))
        ORDER BY v.uploaded_at DESC
    `, creatorID, requesterID)
}

// ListPublic returns one creator's public videos.
func (r *PostgresVideoRepository) ListPublic(ctx context.Context, creatorID string) ([]models.Video, error) {
	return r.listVideos(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE creator_id = $1 AND is_public
        ORDER BY uploaded_at DESC
    `, creatorID)
}

func (r *PostgresVideoRepository) listVideos(ctx context.Context, query string, args ...any) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var result []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return result, nil
}

// StorageUsed sums the stored bytes of one creator's videos.
func (r *PostgresVideoRepository) StorageUsed(ctx context.Context, creatorID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var used int64
	if err := conn.QueryRow(ctx, `
        SELECT COALESCE(SUM(size_bytes), 0)
        FROM videos
        WHERE creator_id = $1
    `, creatorID).Scan(&used); err != nil {
		return 0, fmt.Errorf("sum stored bytes: %w", err)
	}

	return used, nil
}
