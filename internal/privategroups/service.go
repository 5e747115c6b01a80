// Package privategroups implements creator-only contact lists. Member updates
// reconcile the stored set against the requested one, adding and removing the
// difference instead of rebuilding the whole set.
package privategroups

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
// CreateWithMembers and Reconcile are transactional; (group, user) uniqueness
// is enforced at the storage layer.
type Store interface {
	CreateWithMembers(ctx context.Context, group models.PrivateGroup, members []models.PrivateGroupMembership) error
	Get(ctx context.Context, id string) (models.PrivateGroup, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.PrivateGroup, error)
	Members(ctx context.Context, groupID string) ([]models.User, error)
	Rename(ctx context.Context, id, name string) error
	Reconcile(ctx context.Context, groupID string, add []models.PrivateGroupMembership, removeUserIDs []string) error
	Delete(ctx context.Context, id string) error
}

// UserDirectory resolves user ids referenced by member lists.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Detail is a private group together with its members.
type Detail struct {
	Group   models.PrivateGroup
	Members []models.User
}

// Service validates and applies private-group transitions.
type Service struct {
	store Store
	users UserDirectory
}

// NewService constructs a private-group service.
func NewService(store Store, users UserDirectory) *Service {
	return &Service{store: store, users: users}
}

// Create creates a private group owned by the principal with an initial
// member set. The nested URL owner must be the principal; staff cannot create
// on another user's behalf because the creator is always the caller.
func (s *Service) Create(ctx context.Context, p models.Principal, ownerID, name string, members []string) (Detail, error) {
	if !p.Authenticated() {
		return Detail{}, apperr.ErrUnauthenticated
	}
	if !authz.IsRequestedUser(p, ownerID) {
		return Detail{}, apperr.Forbiddenf("private groups can only be created for your own account")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Detail{}, apperr.Validationf("group name is required")
	}
	if len(members) == 0 {
		return Detail{}, apperr.Validationf("members must not be empty")
	}
	if err := s.validateMembers(ctx, p, members); err != nil {
		return Detail{}, err
	}

	group := models.PrivateGroup{ID: uuid.NewString(), Name: name, Creator: p.ID}
	rows := make([]models.PrivateGroupMembership, 0, len(members))
	for _, userID := range members {
		rows = append(rows, models.PrivateGroupMembership{
			ID:      uuid.NewString(),
			GroupID: group.ID,
			UserID:  userID,
		})
	}

	if err := s.store.CreateWithMembers(ctx, group, rows); err != nil {
		return Detail{}, err
	}
	return s.detail(ctx, group)
}

// Get returns a private group with its members. Creator or staff only.
func (s *Service) Get(ctx context.Context, p models.Principal, id string) (Detail, error) {
	group, err := s.store.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !p.Authenticated() {
		return Detail{}, apperr.ErrUnauthenticated
	}
	if !authz.CanViewPrivateGroup(p, group) {
		return Detail{}, apperr.ErrForbidden
	}
	return s.detail(ctx, group)
}

// List returns the private groups created by a user. The requested user or
// staff only; members are not included in listings.
func (s *Service) List(ctx context.Context, p models.Principal, ownerID string) ([]models.PrivateGroup, error) {
	if !p.Authenticated() {
		return nil, apperr.ErrUnauthenticated
	}
	if p.ID != ownerID && !p.IsStaff {
		return nil, apperr.ErrForbidden
	}
	return s.store.ListByCreator(ctx, ownerID)
}

// Update renames the group and/or reconciles its member set. A nil member
// slice leaves the set untouched; validation runs before any write.
func (s *Service) Update(ctx context.Context, p models.Principal, id string, name *string, members []string) (Detail, error) {
	group, err := s.store.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !p.Authenticated() {
		return Detail{}, apperr.ErrUnauthenticated
	}
	if !authz.CanMutatePrivateGroup(p, group) {
		return Detail{}, apperr.ErrForbidden
	}

	if members != nil {
		// The creator check runs against the group's creator, not the
		// principal: staff edits must not smuggle the creator in either.
		if err := s.validateMemberSet(group.Creator, members); err != nil {
			return Detail{}, err
		}
		for _, userID := range members {
			exists, err := s.users.Exists(ctx, userID)
			if err != nil {
				return Detail{}, fmt.Errorf("look up member: %w", err)
			}
			if !exists {
				return Detail{}, apperr.Validationf("user %s does not exist", userID)
			}
		}

		current, err := s.store.Members(ctx, id)
		if err != nil {
			return Detail{}, fmt.Errorf("list members: %w", err)
		}
		add, remove := diffMembers(current, members)

		rows := make([]models.PrivateGroupMembership, 0, len(add))
		for _, userID := range add {
			rows = append(rows, models.PrivateGroupMembership{
				ID:      uuid.NewString(),
				GroupID: id,
				UserID:  userID,
			})
		}
		if len(rows) > 0 || len(remove) > 0 {
			if err := s.store.Reconcile(ctx, id, rows, remove); err != nil {
				return Detail{}, err
			}
		}
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return Detail{}, apperr.Validationf("group name is required")
		}
		if err := s.store.Rename(ctx, id, trimmed); err != nil {
			return Detail{}, err
		}
		group.Name = trimmed
	}

	return s.detail(ctx, group)
}

// Delete removes a private group and its memberships. Creator or staff only.
func (s *Service) Delete(ctx context.Context, p models.Principal, id string) error {
	group, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if !authz.CanMutatePrivateGroup(p, group) {
		return apperr.ErrForbidden
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) detail(ctx context.Context, group models.PrivateGroup) (Detail, error) {
	members, err := s.store.Members(ctx, group.ID)
	if err != nil {
		return Detail{}, fmt.Errorf("list members: %w", err)
	}
	return Detail{Group: group, Members: members}, nil
}

func (s *Service) validateMembers(ctx context.Context, p models.Principal, members []string) error {
	if err := s.validateMemberSet(p.ID, members); err != nil {
		return err
	}
	for _, userID := range members {
		exists, err := s.users.Exists(ctx, userID)
		if err != nil {
			return fmt.Errorf("look up member: %w", err)
		}
		if !exists {
			return apperr.Validationf("user %s does not exist", userID)
		}
	}
	return nil
}

func (s *Service) validateMemberSet(creatorID string, members []string) error {
	seen := make(map[string]struct{}, len(members))
	for _, userID := range members {
		if userID == "" {
			return apperr.Validationf("member ids must not be empty")
		}
		if userID == creatorID {
			return apperr.Validationf("you cannot be a member of your own private group")
		}
		if _, dup := seen[userID]; dup {
			return apperr.Validationf("members cannot contain duplicate users")
		}
		seen[userID] = struct{}{}
	}
	return nil
}

// diffMembers computes the additions and removals needed to turn the current
// member set into the target one, leaving unaffected rows untouched.
func diffMembers(current []models.User, target []string) (add, remove []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, u := range current {
		currentSet[u.ID] = struct{}{}
	}
	targetSet := make(map[string]struct{}, len(target))
	for _, userID := range target {
		targetSet[userID] = struct{}{}
		if _, ok := currentSet[userID]; !ok {
			add = append(add, userID)
		}
	}
	for _, u := range current {
		if _, ok := targetSet[u.ID]; !ok {
			remove = append(remove, u.ID)
		}
	}
	return add, remove
}
