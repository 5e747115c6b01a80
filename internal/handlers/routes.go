package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/friendships"
	"github.com/vidshare/backend/internal/groups"
	"github.com/vidshare/backend/internal/middleware"
	"github.com/vidshare/backend/internal/privategroups"
	"github.com/vidshare/backend/internal/videos"
)

// Dependencies aggregates collaborators required by the HTTP handlers.
type Dependencies struct {
	Identity      *auth.Identity
	Friendships   *friendships.Service
	Groups        *groups.Service
	PrivateGroups *privategroups.Service
	Videos        *videos.Service
	Logger        *slog.Logger
}

// NewRouter wires every endpoint into a chi router. All API routes pass
// through the request logger and the principal resolver; authorization itself
// lives in the services.
func NewRouter(deps Dependencies) http.Handler {
	health := HealthHandler{}
	authH := AuthHandler{Identity: deps.Identity}
	users := UserHandler{Identity: deps.Identity, Friendships: deps.Friendships, Videos: deps.Videos, PrivateGroups: deps.PrivateGroups}
	friends := FriendshipHandler{Friendships: deps.Friendships}
	groupsH := GroupHandler{Groups: deps.Groups}
	private := PrivateGroupHandler{PrivateGroups: deps.PrivateGroups}
	videosH := VideoHandler{Videos: deps.Videos}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Get("/healthz", health.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Identity))

		r.Post("/auth/signup", authH.SignUp)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)
		r.Post("/auth/logout", authH.Logout)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", users.Get)
			r.Patch("/", users.Update)
			r.Delete("/", users.Delete)

			r.Get("/friends", users.Friends)
			r.Post("/friends", users.SendFriendRequest)
			r.Get("/friends/incoming", users.IncomingRequests)
			r.Get("/friends/outgoing", users.OutgoingRequests)

			r.Get("/videos", users.ListVideos)
			r.Post("/videos", users.UploadVideo)

			r.Get("/private-groups", users.PrivateGroupList)
			r.Post("/private-groups", users.CreatePrivateGroup)
		})

		r.Route("/friendships/{friendshipID}", func(r chi.Router) {
			r.Get("/", friends.Get)
			r.Patch("/", friends.Accept)
			r.Delete("/", friends.Delete)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groupsH.List)
			r.Post("/", groupsH.Create)
			r.Route("/{groupID}", func(r chi.Router) {
				r.Get("/", groupsH.Get)
				r.Patch("/", groupsH.Rename)
				r.Delete("/", groupsH.Delete)
				r.Post("/invite", groupsH.Invite)
				r.Post("/join", groupsH.Join)
				r.Post("/leave", groupsH.Leave)
			})
		})

		r.Route("/private-groups/{groupID}", func(r chi.Router) {
			r.Get("/", private.Get)
			r.Patch("/", private.Update)
			r.Delete("/", private.Delete)
		})

		r.Route("/videos/{videoID}", func(r chi.Router) {
			r.Get("/", videosH.Get)
			r.Get("/content", videosH.Content)
			r.Patch("/", videosH.Update)
			r.Delete("/", videosH.Delete)
		})
	})

	return r
}
