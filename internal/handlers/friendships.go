package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/friendships"
	"github.com/vidshare/backend/internal/middleware"
	"github.com/vidshare/backend/internal/models"
)

// FriendshipHandler serves individual friendship rows.
type FriendshipHandler struct {
	Friendships *friendships.Service
}

type friendshipPatchRequest struct {
	Status models.FriendshipStatus `json:"status"`
}

// Get handles GET /api/v1/friendships/{friendshipID}.
func (h FriendshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	friendship, err := h.Friendships.Get(ctx, p, chi.URLParam(r, "friendshipID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newFriendshipResponse(friendship))
}

// Accept handles PATCH /api/v1/friendships/{friendshipID}. The only
// transition a patch can request is pending to accepted; anything else is
// rejected before the service is consulted.
func (h FriendshipHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	var req friendshipPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	if req.Status != models.FriendshipAccepted {
		respondError(ctx, w, apperr.Forbiddenf("a friendship can only transition to accepted"))
		return
	}

	friendship, err := h.Friendships.Accept(ctx, p, chi.URLParam(r, "friendshipID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newFriendshipResponse(friendship))
}

// Delete handles DELETE /api/v1/friendships/{friendshipID}. Deleting while
// pending is a decline or cancel, deleting while accepted is an unfriend.
func (h FriendshipHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	if err := h.Friendships.Delete(ctx, p, chi.URLParam(r, "friendshipID")); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
