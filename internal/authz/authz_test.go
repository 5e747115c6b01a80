package authz

import (
	"testing"

	"github.com/vidshare/backend/internal/models"
)

var (
	alice = models.Principal{ID: "alice"}
	bob   = models.Principal{ID: "bob"}
	carol = models.Principal{ID: "carol"}
	admin = models.Principal{ID: "admin", IsStaff: true}
)

func TestCanViewFriendship(t *testing.T) {
	f := models.Friendship{ID: "f1", User1: "alice", User2: "bob", Status: models.FriendshipAccepted}

	cases := []struct {
		name string
		p    models.Principal
		want bool
	}{
		{"sender", alice, true},
		{"recipient", bob, true},
		{"staff", admin, true},
		{"thirdParty", carol, false},
		{"anonymous", models.Anonymous, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanViewFriendship(tc.p, f); got != tc.want {
				t.Fatalf("CanViewFriendship(%s) = %v, want %v", tc.p.ID, got, tc.want)
			}
		})
	}
}

func TestCanAcceptFriendship(t *testing.T) {
	pending := models.Friendship{ID: "f1", User1: "alice", User2: "bob", Status: models.FriendshipPending}
	accepted := pending
	accepted.Status = models.FriendshipAccepted

	staffSender := models.Principal{ID: "alice", IsStaff: true}

	cases := []struct {
		name string
		p    models.Principal
		f    models.Friendship
		want bool
	}{
		{"recipientPending", bob, pending, true},
		{"staffPending", admin, pending, true},
		{"senderPending", alice, pending, false},
		{"staffSenderPending", staffSender, pending, false},
		{"thirdPartyPending", carol, pending, false},
		{"recipientAccepted", bob, accepted, false},
		{"staffAccepted", admin, accepted, false},
		{"anonymous", models.Anonymous, pending, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanAcceptFriendship(tc.p, tc.f); got != tc.want {
				t.Fatalf("CanAcceptFriendship(%s) = %v, want %v", tc.p.ID, got, tc.want)
			}
		})
	}
}

func TestCanDeleteFriendship(t *testing.T) {
	f := models.Friendship{ID: "f1", User1: "alice", User2: "bob", Status: models.FriendshipPending}

	for _, p := range []models.Principal{alice, bob, admin} {
		if !CanDeleteFriendship(p, f) {
			t.Fatalf("expected %s to be allowed to delete", p.ID)
		}
	}
	if CanDeleteFriendship(carol, f) {
		t.Fatal("third party must not delete a friendship")
	}
	if CanDeleteFriendship(models.Anonymous, f) {
		t.Fatal("anonymous must not delete a friendship")
	}
}

func TestGroupPredicates(t *testing.T) {
	member := &models.Membership{UserID: "bob", GroupID: "g1", Role: models.RoleMember}
	owner := &models.Membership{UserID: "alice", GroupID: "g1", Role: models.RoleOwner}

	if !CanViewGroup(bob, member) || !CanViewGroup(admin, nil) {
		t.Fatal("members and staff must be able to view a group")
	}
	if CanViewGroup(carol, nil) || CanViewGroup(models.Anonymous, nil) {
		t.Fatal("non-members must not view a group")
	}

	if !CanMutateGroup(alice, owner) || !CanMutateGroup(admin, nil) {
		t.Fatal("owner and staff must be able to mutate a group")
	}
	if CanMutateGroup(bob, member) {
		t.Fatal("a plain member must not mutate a group")
	}

	if !CanInvite(alice, owner) {
		t.Fatal("owner must be able to invite")
	}
	if CanInvite(bob, member) || CanInvite(admin, nil) {
		t.Fatal("invitations are owner-only, with no staff bypass")
	}
}

func TestCanViewVideo(t *testing.T) {
	public := models.Video{ID: "v1", Creator: "alice", IsPublic: true}
	private := models.Video{ID: "v2", Creator: "alice", IsPublic: false}

	cases := []struct {
		name   string
		p      models.Principal
		v      models.Video
		shared bool
		want   bool
	}{
		{"publicAnonymous", models.Anonymous, public, false, true},
		{"publicStranger", carol, public, false, true},
		{"privateCreator", alice, private, false, true},
		{"privateShared", bob, private, true, true},
		{"privateStaff", admin, private, false, true},
		{"privateStranger", carol, private, false, false},
		{"privateAnonymous", models.Anonymous, private, false, false},
		// Shared rows are inert while the video is public, but the video is
		// visible anyway.
		{"publicSharedAnonymous", models.Anonymous, public, true, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanViewVideo(tc.p, tc.v, tc.shared); got != tc.want {
				t.Fatalf("CanViewVideo = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanMutateVideo(t *testing.T) {
	v := models.Video{ID: "v1", Creator: "alice"}
	orphan := models.Video{ID: "v2", Creator: ""}

	if !CanMutateVideo(alice, v) || !CanMutateVideo(admin, v) {
		t.Fatal("creator and staff must be able to mutate a video")
	}
	if CanMutateVideo(bob, v) || CanMutateVideo(models.Anonymous, v) {
		t.Fatal("others must not mutate a video")
	}
	if CanMutateVideo(models.Principal{ID: ""}, orphan) {
		t.Fatal("orphaned videos must not match the anonymous principal")
	}
	if !CanMutateVideo(admin, orphan) {
		t.Fatal("staff must still manage orphaned videos")
	}
}

func TestPrivateGroupPredicates(t *testing.T) {
	g := models.PrivateGroup{ID: "pg1", Creator: "alice"}

	if !CanViewPrivateGroup(alice, g) || !CanViewPrivateGroup(admin, g) {
		t.Fatal("creator and staff must view private groups")
	}
	if CanViewPrivateGroup(bob, g) || CanViewPrivateGroup(models.Anonymous, g) {
		t.Fatal("private groups are invisible to everyone else")
	}
	if !CanMutatePrivateGroup(admin, g) || CanMutatePrivateGroup(bob, g) {
		t.Fatal("mutation follows the same rule as viewing")
	}
}

func TestIsRequestedUser(t *testing.T) {
	if !IsRequestedUser(alice, "alice") {
		t.Fatal("principal must match their own nested URL")
	}
	if IsRequestedUser(admin, "alice") {
		t.Fatal("staff must not impersonate on create paths")
	}
	if IsRequestedUser(models.Anonymous, "") {
		t.Fatal("anonymous never matches")
	}
}
