package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/friendships"
	"github.com/vidshare/backend/internal/middleware"
	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/privategroups"
	"github.com/vidshare/backend/internal/videos"
)

// UserHandler serves account profiles and the per-user nested collections.
type UserHandler struct {
	Identity      *auth.Identity
	Friendships   *friendships.Service
	Videos        *videos.Service
	PrivateGroups *privategroups.Service
}

type userResponse struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName,omitempty"`
	LastName     string `json:"lastName,omitempty"`
	StorageLimit int64  `json:"storageLimit"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		StorageLimit: user.StorageLimit,
	}
}

type profilePatchRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type friendRequestBody struct {
	UserID string `json:"userId"`
}

type friendEntryResponse struct {
	FriendshipID string                  `json:"friendshipId"`
	Status       models.FriendshipStatus `json:"status"`
	Friend       userResponse            `json:"friend"`
}

func newFriendEntries(entries []friendships.FriendEntry) []friendEntryResponse {
	out := make([]friendEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, friendEntryResponse{
			FriendshipID: entry.FriendshipID,
			Status:       entry.Status,
			Friend:       newUserResponse(entry.Friend),
		})
	}
	return out
}

// Get handles GET /api/v1/users/{userID}.
func (h UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	user, err := h.Identity.Profile(ctx, p, chi.URLParam(r, "userID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user))
}

// Update handles PATCH /api/v1/users/{userID}.
func (h UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	var req profilePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	user, err := h.Identity.UpdateProfile(ctx, p, chi.URLParam(r, "userID"), auth.ProfilePatch{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newUserResponse(user))
}

// Delete handles DELETE /api/v1/users/{userID}.
func (h UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	if err := h.Identity.DeleteAccount(ctx, p, chi.URLParam(r, "userID")); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Friends handles GET /api/v1/users/{userID}/friends.
func (h UserHandler) Friends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	entries, err := h.Friendships.FriendsOf(ctx, p, chi.URLParam(r, "userID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newFriendEntries(entries))
}

// SendFriendRequest handles POST /api/v1/users/{userID}/friends.
func (h UserHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	var req friendRequestBody
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	friendship, err := h.Friendships.Request(ctx, p, chi.URLParam(r, "userID"), req.UserID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, newFriendshipResponse(friendship))
}

// IncomingRequests handles GET /api/v1/users/{userID}/friends/incoming.
func (h UserHandler) IncomingRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	entries, err := h.Friendships.Incoming(ctx, p, chi.URLParam(r, "userID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newFriendEntries(entries))
}

// OutgoingRequests handles GET /api/v1/users/{userID}/friends/outgoing.
func (h UserHandler) OutgoingRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	entries, err := h.Friendships.Outgoing(ctx, p, chi.URLParam(r, "userID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newFriendEntries(entries))
}

// ListVideos handles GET /api/v1/users/{userID}/videos.
func (h UserHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	list, err := h.Videos.ListForOwner(ctx, p, chi.URLParam(r, "userID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	out := make([]videoResponse, 0, len(list))
	for _, video := range list {
		out = append(out, newVideoResponse(video, nil))
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// UploadVideo handles POST /api/v1/users/{userID}/videos. The request is
// multipart: a "file" part with the payload and regular form fields for the
// metadata. sharedWith may repeat.
func (h UserHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	upload, err := parseUpload(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer upload.close()

	detail, err := h.Videos.Create(ctx, p, chi.URLParam(r, "userID"), upload.Upload)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, newVideoResponse(detail.Video, detail.SharedWith))
}

// PrivateGroupList handles GET /api/v1/users/{userID}/private-groups.
func (h UserHandler) PrivateGroupList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	list, err := h.PrivateGroups.List(ctx, p, chi.URLParam(r, "userID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	out := make([]privateGroupResponse, 0, len(list))
	for _, group := range list {
		out = append(out, privateGroupResponse{ID: group.ID, Name: group.Name, Creator: group.Creator})
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// CreatePrivateGroup handles POST /api/v1/users/{userID}/private-groups.
func (h UserHandler) CreatePrivateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	var req privateGroupCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	detail, err := h.PrivateGroups.Create(ctx, p, chi.URLParam(r, "userID"), req.Name, req.Members)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, newPrivateGroupDetail(detail))
}

type friendshipResponse struct {
	ID        string                  `json:"id"`
	User1     string                  `json:"user1"`
	User2     string                  `json:"user2"`
	Status    models.FriendshipStatus `json:"status"`
	CreatedAt time.Time               `json:"createdAt"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

func newFriendshipResponse(f models.Friendship) friendshipResponse {
	return friendshipResponse{
		ID:        f.ID,
		User1:     f.User1,
		User2:     f.User2,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}
