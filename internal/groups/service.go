// Package groups implements shared groups with invitation-gated membership.
// Creating a group makes the creator its owner; joining consumes an
// invitation; an owner leaving destroys the group.
package groups

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/authz"
	"github.com/vidshare/backend/internal/models"
)

// Store captures the persistence operations required by the service.
// CreateWithOwner and Join are transactional: the group must never persist
// without its owner membership, and a consumed invitation must never outlive
// the membership it produced. Join surfaces a missing invitation as
// apperr.ErrForbidden and an existing membership as apperr.ErrConflict.
type Store interface {
	CreateWithOwner(ctx context.Context, group models.Group, owner models.Membership) error
	Get(ctx context.Context, id string) (models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	Rename(ctx context.Context, id, name string) error
	DeleteCascade(ctx context.Context, id string) error
	Membership(ctx context.Context, userID, groupID string) (*models.Membership, error)
	Members(ctx context.Context, groupID string) ([]Member, error)
	HasInvitation(ctx context.Context, userID, groupID string) (bool, error)
	CreateInvitation(ctx context.Context, invitation models.Invitation) error
	Join(ctx context.Context, membership models.Membership) error
	DeleteMembership(ctx context.Context, id string) error
}

// UserDirectory resolves user ids referenced by invitations.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Member is the read-side projection of one membership row.
type Member struct {
	User models.User
	Role models.MembershipRole
}

// Detail is a group together with its member list.
type Detail struct {
	Group   models.Group
	Members []Member
}

// Service validates and applies group, membership, and invitation transitions.
type Service struct {
	store Store
	users UserDirectory
}

// NewService constructs a group service.
func NewService(store Store, users UserDirectory) *Service {
	return &Service{store: store, users: users}
}

// Create creates a group and, in the same transaction, the creator's owner
// membership. Creation always acts as the principal; there is no on-behalf-of.
func (s *Service) Create(ctx context.Context, p models.Principal, name string) (models.Group, error) {
	if !p.Authenticated() {
		return models.Group{}, apperr.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, apperr.Validationf("group name is required")
	}

	group := models.Group{ID: uuid.NewString(), Name: name}
	owner := models.Membership{
		ID:      uuid.NewString(),
		UserID:  p.ID,
		GroupID: group.ID,
		Role:    models.RoleOwner,
	}

	if err := s.store.CreateWithOwner(ctx, group, owner); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// Get returns a group and its members. Visible to members and staff only.
func (s *Service) Get(ctx context.Context, p models.Principal, id string) (Detail, error) {
	group, err := s.store.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !p.Authenticated() {
		return Detail{}, apperr.ErrUnauthenticated
	}

	membership, err := s.store.Membership(ctx, p.ID, id)
	if err != nil {
		return Detail{}, fmt.Errorf("look up membership: %w", err)
	}
	if !authz.CanViewGroup(p, membership) {
		return Detail{}, apperr.ErrForbidden
	}

	members, err := s.store.Members(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("list members: %w", err)
	}
	return Detail{Group: group, Members: members}, nil
}

// List returns all groups. Names only; member details stay behind Get.
func (s *Service) List(ctx context.Context, p models.Principal) ([]models.Group, error) {
	if !p.Authenticated() {
		return nil, apperr.ErrUnauthenticated
	}
	return s.store.List(ctx)
}

// Rename updates a group's name. Owner or staff only.
func (s *Service) Rename(ctx context.Context, p models.Principal, id, name string) (models.Group, error) {
	group, err := s.store.Get(ctx, id)
	if err != nil {
		return models.Group{}, err
	}
	if !p.Authenticated() {
		return models.Group{}, apperr.ErrUnauthenticated
	}

	membership, err := s.store.Membership(ctx, p.ID, id)
	if err != nil {
		return models.Group{}, fmt.Errorf("look up membership: %w", err)
	}
	if !authz.CanMutateGroup(p, membership) {
		return models.Group{}, apperr.ErrForbidden
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return models.Group{}, apperr.Validationf("group name is required")
	}
	if err := s.store.Rename(ctx, id, name); err != nil {
		return models.Group{}, err
	}
	group.Name = name
	return group, nil
}

// Delete removes a group and all its memberships. Owner or staff only.
func (s *Service) Delete(ctx context.Context, p models.Principal, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	if !p.Authenticated() {
		return apperr.ErrUnauthenticated
	}

	membership, err := s.store.Membership(ctx, p.ID, id)
	if err != nil {
		return fmt.Errorf("look up membership: %w", err)
	}
	if !authz.CanMutateGroup(p, membership) {
		return apperr.ErrForbidden
	}
	return s.store.DeleteCascade(ctx, id)
}

// Invite extends an invitation to a user. Only the owner may invite, and the
// target must exist, not be the inviter, not already be a member, and not
// already hold an invitation.
func (s *Service) Invite(ctx context.Context, p models.Principal, groupID, userID string) (models.Invitation, error) {
	if _, err := s.store.Get(ctx, groupID); err != nil {
		return models.Invitation{}, err
	}
	if !p.Authenticated() {
		return models.Invitation{}, apperr.ErrUnauthenticated
	}

	membership, err := s.store.Membership(ctx, p.ID, groupID)
	if err != nil {
		return models.Invitation{}, fmt.Errorf("look up membership: %w", err)
	}
	if !authz.CanInvite(p, membership) {
		return models.Invitation{}, apperr.Forbiddenf("only the group owner may invite")
	}

	if userID == "" {
		return models.Invitation{}, apperr.Validationf("user is required")
	}
	if userID == p.ID {
		return models.Invitation{}, apperr.Validationf("you cannot invite yourself")
	}

	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return models.Invitation{}, fmt.Errorf("look up user: %w", err)
	}
	if !exists {
		return models.Invitation{}, apperr.Validationf("user does not exist")
	}

	targetMembership, err := s.store.Membership(ctx, userID, groupID)
	if err != nil {
		return models.Invitation{}, fmt.Errorf("look up target membership: %w", err)
	}
	if targetMembership != nil {
		return models.Invitation{}, apperr.Validationf("user is already a member of this group")
	}

	invited, err := s.store.HasInvitation(ctx, userID, groupID)
	if err != nil {
		return models.Invitation{}, fmt.Errorf("look up invitation: %w", err)
	}
	if invited {
		return models.Invitation{}, apperr.Validationf("user is already invited to this group")
	}

	invitation := models.Invitation{ID: uuid.NewString(), UserID: userID, GroupID: groupID}
	if err := s.store.CreateInvitation(ctx, invitation); err != nil {
		return models.Invitation{}, err
	}
	return invitation, nil
}

// Join turns the principal's invitation into a member-role membership,
// consuming the invitation in the same transaction.
func (s *Service) Join(ctx context.Context, p models.Principal, groupID string) (models.Membership, error) {
	if _, err := s.store.Get(ctx, groupID); err != nil {
		return models.Membership{}, err
	}
	if !p.Authenticated() {
		return models.Membership{}, apperr.ErrUnauthenticated
	}

	membership := models.Membership{
		ID:      uuid.NewString(),
		UserID:  p.ID,
		GroupID: groupID,
		Role:    models.RoleMember,
	}
	if err := s.store.Join(ctx, membership); err != nil {
		return models.Membership{}, err
	}
	return membership, nil
}

// Leave removes the principal's membership. When the owner leaves the whole
// group is destroyed, memberships included; an owner cannot demote and leave.
func (s *Service) Leave(ctx context.Context, p models.Principal, groupID string) error {
	if _, err := s.store.Get(ctx, groupID); err != nil {
		return err
	}
	if !p.Authenticated() {
		return apperr.ErrUnauthenticated
	}

	membership, err := s.store.Membership(ctx, p.ID, groupID)
	if err != nil {
		return fmt.Errorf("look up membership: %w", err)
	}
	if membership == nil {
		return fmt.Errorf("membership: %w", apperr.ErrNotFound)
	}

	if membership.Role == models.RoleOwner {
		return s.store.DeleteCascade(ctx, groupID)
	}
	return s.store.DeleteMembership(ctx, membership.ID)
}
