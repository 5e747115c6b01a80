// Package repositories contains the PostgreSQL-backed stores. Constraint
// violations surface as the shared error taxonomy: unique violations map to
// apperr.ErrConflict and foreign-key violations to apperr.ErrNotFound, so
// storage-level races never leak driver errors.
package repositories

import (
	"context"
	"errors"
	"fmt"

	crdbpgx "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/friendships"
	"github.com/vidshare/backend/internal/groups"
	"github.com/vidshare/backend/internal/privategroups"
	"github.com/vidshare/backend/internal/videos"
)

// mapPgError converts constraint violations into taxonomy sentinels and wraps
// everything else with the given action.
func mapPgError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperr.ErrConflict
		case "23503":
			return apperr.ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

// inTx runs fn inside a transaction, retrying on serialization failures.
func inTx(ctx context.Context, pool db.Pool, fn func(tx pgx.Tx) error) error {
	return crdbpgx.ExecuteTx(ctx, pool, pgx.TxOptions{}, fn)
}

var (
	_ auth.UserStore       = (*PostgresUserRepository)(nil)
	_ auth.SessionStore    = (*PostgresSessionStore)(nil)
	_ friendships.Store    = (*PostgresFriendshipRepository)(nil)
	_ groups.Store         = (*PostgresGroupRepository)(nil)
	_ privategroups.Store  = (*PostgresPrivateGroupRepository)(nil)
	_ videos.Store         = (*PostgresVideoRepository)(nil)
	_ videos.UserDirectory = (*PostgresUserRepository)(nil)
)
