package app

import (
	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/config"
	"github.com/vidshare/backend/internal/db"
	"github.com/vidshare/backend/internal/friendships"
	"github.com/vidshare/backend/internal/groups"
	"github.com/vidshare/backend/internal/handlers"
	"github.com/vidshare/backend/internal/privategroups"
	"github.com/vidshare/backend/internal/repositories"
	"github.com/vidshare/backend/internal/videos"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(pool db.Pool, blobs videos.BlobStorage, cfg config.Config) handlers.Dependencies {
	users := repositories.NewPostgresUserRepository(pool)
	sessions := auth.NewManager(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, repositories.NewPostgresSessionStore(pool))

	return handlers.Dependencies{
		Identity:      auth.NewIdentity(users, sessions),
		Friendships:   friendships.NewService(repositories.NewPostgresFriendshipRepository(pool), users),
		Groups:        groups.NewService(repositories.NewPostgresGroupRepository(pool), users),
		PrivateGroups: privategroups.NewService(repositories.NewPostgresPrivateGroupRepository(pool), users),
		Videos:        videos.NewService(repositories.NewPostgresVideoRepository(pool), users, blobs),
	}
}
