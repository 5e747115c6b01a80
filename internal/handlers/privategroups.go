package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidshare/backend/internal/middleware"
	"github.com/vidshare/backend/internal/privategroups"
)

// PrivateGroupHandler serves the creator-only contact groups. Create and List
// live on the user routes; the rest are addressed by group id.
type PrivateGroupHandler struct {
	PrivateGroups *privategroups.Service
}

type privateGroupCreateRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type privateGroupPatchRequest struct {
	Name    *string  `json:"name"`
	Members []string `json:"members"`
}

type privateGroupResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Creator string `json:"creator"`
}

type privateGroupDetailResponse struct {
	privateGroupResponse
	Members []userResponse `json:"members"`
}

func newPrivateGroupDetail(detail privategroups.Detail) privateGroupDetailResponse {
	members := make([]userResponse, 0, len(detail.Members))
	for _, user := range detail.Members {
		members = append(members, newUserResponse(user))
	}
	return privateGroupDetailResponse{
		privateGroupResponse: privateGroupResponse{
			ID:      detail.Group.ID,
			Name:    detail.Group.Name,
			Creator: detail.Group.Creator,
		},
		Members: members,
	}
}

// Get handles GET /api/v1/private-groups/{groupID}.
func (h PrivateGroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	detail, err := h.PrivateGroups.Get(ctx, p, chi.URLParam(r, "groupID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newPrivateGroupDetail(detail))
}

// Update handles PATCH /api/v1/private-groups/{groupID}. A nil members field
// leaves the member set alone; an empty array clears it.
func (h PrivateGroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	var req privateGroupPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	detail, err := h.PrivateGroups.Update(ctx, p, chi.URLParam(r, "groupID"), req.Name, req.Members)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newPrivateGroupDetail(detail))
}

// Delete handles DELETE /api/v1/private-groups/{groupID}.
func (h PrivateGroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	if err := h.PrivateGroups.Delete(ctx, p, chi.URLParam(r, "groupID")); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
