package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidshare/backend/internal/groups"
	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/middleware"
	"github.com/vidshare/backend/internal/models"
)

// GroupHandler serves groups, memberships, and invitations.
type GroupHandler struct {
	Groups *groups.Service
}

type groupRequest struct {
	Name string `json:"name"`
}

type groupResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type groupMemberResponse struct {
	User userResponse          `json:"user"`
	Role models.MembershipRole `json:"role"`
}

type groupDetailResponse struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Members []groupMemberResponse `json:"members"`
}

func newGroupDetail(detail groups.Detail) groupDetailResponse {
	members := make([]groupMemberResponse, 0, len(detail.Members))
	for _, member := range detail.Members {
		members = append(members, groupMemberResponse{User: newUserResponse(member.User), Role: member.Role})
	}
	return groupDetailResponse{ID: detail.Group.ID, Name: detail.Group.Name, Members: members}
}

type inviteRequest struct {
	UserID string `json:"userId"`
}

// List handles GET /api/v1/groups.
func (h GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	list, err := h.Groups.List(ctx, p)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	out := make([]groupResponse, 0, len(list))
	for _, group := range list {
		out = append(out, groupResponse{ID: group.ID, Name: group.Name})
	}
	respondJSON(ctx, w, http.StatusOK, out)
}

// Create handles POST /api/v1/groups. The caller becomes the group's owner.
func (h GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	group, err := h.Groups.Create(ctx, p, req.Name)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, groupResponse{ID: group.ID, Name: group.Name})
}

// Get handles GET /api/v1/groups/{groupID}.
func (h GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	detail, err := h.Groups.Get(ctx, p, chi.URLParam(r, "groupID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newGroupDetail(detail))
}

// Rename handles PATCH /api/v1/groups/{groupID}.
func (h GroupHandler) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	group, err := h.Groups.Rename(ctx, p, chi.URLParam(r, "groupID"), req.Name)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, groupResponse{ID: group.ID, Name: group.Name})
}

// Delete handles DELETE /api/v1/groups/{groupID}.
func (h GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	if err := h.Groups.Delete(ctx, p, chi.URLParam(r, "groupID")); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Invite handles POST /api/v1/groups/{groupID}/invite.
func (h GroupHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}

	invitation, err := h.Groups.Invite(ctx, p, chi.URLParam(r, "groupID"), req.UserID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]string{
		"id":      invitation.ID,
		"userId":  invitation.UserID,
		"groupId": invitation.GroupID,
	})
}

// Join handles POST /api/v1/groups/{groupID}/join. Joining consumes the
// caller's invitation and creates their membership in one transaction.
func (h GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx, span := logging.StartSpan(r.Context(), "group.join")
	defer span.End()
	p := middleware.PrincipalFromContext(ctx)

	membership, err := h.Groups.Join(ctx, p, chi.URLParam(r, "groupID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"id":      membership.ID,
		"userId":  membership.UserID,
		"groupId": membership.GroupID,
		"role":    membership.Role,
	})
}

// Leave handles POST /api/v1/groups/{groupID}/leave. When the owner leaves,
// the group and all memberships go with them.
func (h GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	if err := h.Groups.Leave(ctx, p, chi.URLParam(r, "groupID")); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
