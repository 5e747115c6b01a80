// Package friendships implements the friendship lifecycle: a pending request
// sent from one user to another, acceptance by the recipient, and deletion by
// either side. Declines and unfriends are deletions; no historical state is
// kept.
package friendships

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/authz"
	"github.com/vidshare/backend/internal/models"
)

// Store captures the persistence operations required by the service. Create
// must enforce the unordered-pair uniqueness at the storage layer and surface
// races as apperr.ErrConflict. Accept must only touch rows still pending.
type Store interface {
	Create(ctx context.Context, friendship models.Friendship) error
	Get(ctx context.Context, id string) (models.Friendship, error)
	Accept(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	Accepted(ctx context.Context, userID string) ([]FriendEntry, error)
	Incoming(ctx context.Context, userID string) ([]FriendEntry, error)
	Outgoing(ctx context.Context, userID string) ([]FriendEntry, error)
}

// UserDirectory resolves user ids referenced by friend requests.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// FriendEntry is the read-side projection of one friendship from the
// perspective of a particular user: the row plus the other party.
type FriendEntry struct {
	FriendshipID string
	Status       models.FriendshipStatus
	Friend       models.User
}

// Service validates and applies friendship state transitions.
type Service struct {
	store   Store
	users   UserDirectory
	nowFunc func() time.Time
}

// NewService constructs a friendship service.
func NewService(store Store, users UserDirectory) *Service {
	return &Service{store: store, users: users, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// WithNowFunc overrides the time source. Test hook.
func (s *Service) WithNowFunc(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

// Request creates a pending friendship from the principal to another user.
// The nested URL owner must be the principal themselves; staff cannot send
// requests on behalf of others.
func (s *Service) Request(ctx context.Context, p models.Principal, ownerID, to string) (models.Friendship, error) {
	if !p.Authenticated() {
		return models.Friendship{}, apperr.ErrUnauthenticated
	}
	if !authz.IsRequestedUser(p, ownerID) {
		return models.Friendship{}, apperr.Forbiddenf("you can only add friends to your own account")
	}
	if to == "" {
		return models.Friendship{}, apperr.Validationf("recipient is required")
	}
	if to == p.ID {
		return models.Friendship{}, apperr.Validationf("you cannot add yourself as a friend")
	}

	exists, err := s.users.Exists(ctx, to)
	if err != nil {
		return models.Friendship{}, fmt.Errorf("look up recipient: %w", err)
	}
	if !exists {
		return models.Friendship{}, fmt.Errorf("recipient %s: %w", to, apperr.ErrNotFound)
	}

	now := s.nowFunc()
	friendship := models.Friendship{
		ID:        uuid.NewString(),
		User1:     p.ID,
		User2:     to,
		Status:    models.FriendshipPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, friendship); err != nil {
		return models.Friendship{}, err
	}
	return friendship, nil
}

// Get returns a friendship visible to the principal.
func (s *Service) Get(ctx context.Context, p models.Principal, id string) (models.Friendship, error) {
	friendship, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Friendship{}, err
	}
	if !p.Authenticated() {
		return models.Friendship{}, apperr.ErrUnauthenticated
	}
	if !authz.CanViewFriendship(p, friendship) {
		return models.Friendship{}, apperr.ErrForbidden
	}
	return friendship, nil
}

// Accept transitions a pending friendship to accepted. Only the recipient may
// accept (staff may act on the recipient's behalf, the sender never may), and
// user1/user2 are immutable so no other mutation exists.
func (s *Service) Accept(ctx context.Context, p models.Principal, id string) (models.Friendship, error) {
	friendship, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Friendship{}, err
	}
	if !p.Authenticated() {
		return models.Friendship{}, apperr.ErrUnauthenticated
	}
	if !authz.CanAcceptFriendship(p, friendship) {
		return models.Friendship{}, apperr.Forbiddenf("only the recipient may accept a pending request")
	}

	now := s.nowFunc()
	if err := s.store.Accept(ctx, id, now); err != nil {
		return models.Friendship{}, err
	}

	friendship.Status = models.FriendshipAccepted
	friendship.UpdatedAt = now
	return friendship, nil
}

// Delete removes a friendship: cancel or decline while pending, unfriend once
// accepted. Unconditional for either participant or staff.
func (s *Service) Delete(ctx context.Context, p models.Principal, id string) error {
	friendship, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if !authz.CanDeleteFriendship(p, friendship) {
		return apperr.ErrForbidden
	}
	return s.store.Delete(ctx, id)
}

// FriendsOf lists the accepted friendships of a user.
func (s *Service) FriendsOf(ctx context.Context, p models.Principal, userID string) ([]FriendEntry, error) {
	if err := s.authorizeListing(p, userID); err != nil {
		return nil, err
	}
	return s.store.Accepted(ctx, userID)
}

// Incoming lists pending requests where the user is the recipient.
func (s *Service) Incoming(ctx context.Context, p models.Principal, userID string) ([]FriendEntry, error) {
	if err := s.authorizeListing(p, userID); err != nil {
		return nil, err
	}
	return s.store.Incoming(ctx, userID)
}

// Outgoing lists pending requests where the user is the sender.
func (s *Service) Outgoing(ctx context.Context, p models.Principal, userID string) ([]FriendEntry, error) {
	if err := s.authorizeListing(p, userID); err != nil {
		return nil, err
	}
	return s.store.Outgoing(ctx, userID)
}

func (s *Service) authorizeListing(p models.Principal, userID string) error {
	if !p.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if p.ID != userID && !p.IsStaff {
		return apperr.Forbiddenf("you may only list your own friendships")
	}
	return nil
}
