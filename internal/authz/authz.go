// Package authz holds the authorization predicates for every resource type.
// Each predicate is a pure function over the principal and the rows already
// loaded by the caller; none of them touch storage or transport.
package authz

import "github.com/vidshare/backend/internal/models"

// CanViewFriendship allows staff and either participant.
func CanViewFriendship(p models.Principal, f models.Friendship) bool {
	if !p.Authenticated() {
		return false
	}
	return p.IsStaff || f.Contains(p.ID)
}

// CanAcceptFriendship gates the pending->accepted transition. Staff may accept
// on the recipient's behalf, but the sender can never accept their own request,
// staff or not.
func CanAcceptFriendship(p models.Principal, f models.Friendship) bool {
	if !p.Authenticated() || f.Status != models.FriendshipPending {
		return false
	}
	if p.ID == f.User1 {
		return false
	}
	return p.ID == f.User2 || p.IsStaff
}

// CanDeleteFriendship allows staff and either participant, at any status.
func CanDeleteFriendship(p models.Principal, f models.Friendship) bool {
	if !p.Authenticated() {
		return false
	}
	return p.IsStaff || f.Contains(p.ID)
}

// CanViewGroup allows staff and members. The membership argument is the
// principal's row for the group, nil when they are not a member.
func CanViewGroup(p models.Principal, membership *models.Membership) bool {
	if !p.Authenticated() {
		return false
	}
	return p.IsStaff || membership != nil
}

// CanMutateGroup allows staff and the group's owner to update or delete it.
func CanMutateGroup(p models.Principal, membership *models.Membership) bool {
	if !p.Authenticated() {
		return false
	}
	if p.IsStaff {
		return true
	}
	return membership != nil && membership.Role == models.RoleOwner
}

// CanInvite allows only the group's owner to extend invitations.
func CanInvite(p models.Principal, membership *models.Membership) bool {
	if !p.Authenticated() {
		return false
	}
	return membership != nil && membership.Role == models.RoleOwner
}

// CanViewVideo allows anyone for public videos; private videos require the
// creator, an explicit share, or staff.
func CanViewVideo(p models.Principal, v models.Video, shared bool) bool {
	if v.IsPublic {
		return true
	}
	if !p.Authenticated() {
		return false
	}
	return p.IsStaff || p.ID == v.Creator || shared
}

// CanMutateVideo allows the creator and staff to change video metadata or
// delete the video. The payload itself is immutable regardless of this result.
func CanMutateVideo(p models.Principal, v models.Video) bool {
	if !p.Authenticated() {
		return false
	}
	return p.IsStaff || (v.Creator != "" && p.ID == v.Creator)
}

// CanViewPrivateGroup allows the creator and staff.
func CanViewPrivateGroup(p models.Principal, g models.PrivateGroup) bool {
	if !p.Authenticated() {
		return false
	}
	return p.IsStaff || p.ID == g.Creator
}

// CanMutatePrivateGroup allows the creator and staff.
func CanMutatePrivateGroup(p models.Principal, g models.PrivateGroup) bool {
	return CanViewPrivateGroup(p, g)
}

// IsRequestedUser reports whether the principal is the user addressed by a
// nested URL. Creation "on behalf of" another user is forbidden even for
// staff; read-side callers OR this with p.IsStaff themselves.
func IsRequestedUser(p models.Principal, userID string) bool {
	return p.Authenticated() && p.ID == userID
}
