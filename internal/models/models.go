package models

import "time"

// Principal is the actor behind a request. The zero value is the anonymous
// principal.
type Principal struct {
	ID          string
	IsStaff     bool
	IsSuperuser bool
}

// Authenticated reports whether the principal identifies a logged-in user.
func (p Principal) Authenticated() bool {
	return p.ID != ""
}

// Anonymous is the principal used for unauthenticated requests.
var Anonymous = Principal{}

// User represents an account within the VidShare platform.
type User struct {
	ID           string
	Username     string
	Email        string
	Password     string
	FirstName    string
	LastName     string
	IsStaff      bool
	IsSuperuser  bool
	StorageLimit int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultStorageLimit is the per-user upload quota applied at registration.
const DefaultStorageLimit int64 = 10 << 30 // 10 GiB

// Principal derives the request principal for this user.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, IsStaff: u.IsStaff, IsSuperuser: u.IsSuperuser}
}

// FriendshipStatus enumerates the lifecycle states of a friendship.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship links two users. User1 sent the request, User2 received it. Two
// users are friends once the status is accepted; declining or unfriending
// deletes the row, no historical state is kept.
type Friendship struct {
	ID        string
	User1     string
	User2     string
	Status    FriendshipStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether the user participates in this friendship.
func (f Friendship) Contains(userID string) bool {
	return userID != "" && (userID == f.User1 || userID == f.User2)
}

// FriendOf returns the other party of the friendship, or "" when the given
// user is not part of it.
func (f Friendship) FriendOf(userID string) string {
	switch userID {
	case f.User1:
		return f.User2
	case f.User2:
		return f.User1
	}
	return ""
}

// MembershipRole enumerates the roles a user can hold within a group.
type MembershipRole int

const (
	RoleMember MembershipRole = 1
	RoleOwner  MembershipRole = 2
)

// Group is a shared group users join by invitation.
type Group struct {
	ID   string
	Name string
}

// Membership maps one user to one group with a role. The group's creator
// holds the owner role; there is exactly one owner per group.
type Membership struct {
	ID      string
	UserID  string
	GroupID string
	Role    MembershipRole
}

// Invitation is a consumable offer for one user to join one group. It is
// deleted when the invited user joins, never updated in place.
type Invitation struct {
	ID      string
	UserID  string
	GroupID string
}

// PrivateGroup is a creator-only contact list used to share videos with a
// fixed set of users. The creator is implicit and never appears as a member.
type PrivateGroup struct {
	ID      string
	Name    string
	Creator string
}

// PrivateGroupMembership maps one user into one private group.
type PrivateGroupMembership struct {
	ID      string
	GroupID string
	UserID  string
}

// Video holds the metadata of an uploaded video. The payload lives in the
// blob store under BlobKey and is immutable after upload. Creator is empty
// when the uploading account has since been deleted.
type Video struct {
	ID          string
	Creator     string
	Name        string
	Description string
	BlobKey     string
	Size        int64
	IsPublic    bool
	UploadedAt  time.Time
}

// Shared grants one user visibility of one private video. Rows are inert
// while the video is public.
type Shared struct {
	ID      string
	VideoID string
	UserID  string
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
