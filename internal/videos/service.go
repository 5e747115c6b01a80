// Package videos implements video upload, metadata management, per-user
// sharing, and the visibility rules that govern who sees what. Payload bytes
// live in the blob store; rows here carry metadata only.
package videos

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/authz"
	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/mediatype"
	"github.com/vidshare/backend/internal/models"
)

// Store captures the persistence operations required by the service.
// CreateWithShares and Update are transactional; (video, user) uniqueness on
// shares is enforced at the storage layer.
type Store interface {
	CreateWithShares(ctx context.Context, video models.Video, shares []models.Shared) error
	Get(ctx context.Context, id string) (models.Video, error)
	Update(ctx context.Context, video models.Video, addShares []models.Shared, removeUserIDs []string) error
	Delete(ctx context.Context, id string) error
	IsSharedWith(ctx context.Context, videoID, userID string) (bool, error)
	SharedUserIDs(ctx context.Context, videoID string) ([]string, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.Video, error)
	ListVisibleTo(ctx context.Context, creatorID, requesterID string) ([]models.Video, error)
	ListPublic(ctx context.Context, creatorID string) ([]models.Video, error)
	StorageUsed(ctx context.Context, creatorID string) (int64, error)
}

// UserDirectory resolves users referenced by uploads and share lists.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Find(ctx context.Context, userID string) (models.User, error)
}

// BlobStorage is the object-store collaborator holding video payloads.
type BlobStorage interface {
	Save(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Upload describes a new video payload and its metadata.
type Upload struct {
	Name        string
	Description string
	IsPublic    bool
	SharedWith  []string
	Payload     io.Reader
	Size        int64
}

// Patch describes a metadata update. Nil fields stay untouched; a nil
// SharedWith leaves the grant set alone. PayloadProvided marks an attempt to
// replace the file, which is always rejected.
type Patch struct {
	Name            *string
	Description     *string
	IsPublic        *bool
	SharedWith      []string
	PayloadProvided bool
}

// Detail is a video plus its share grants. SharedWith is only populated for
// principals allowed to mutate the video.
type Detail struct {
	Video      models.Video
	SharedWith []string
}

// Service validates and applies video transitions.
type Service struct {
	store   Store
	users   UserDirectory
	blobs   BlobStorage
	nowFunc func() time.Time
}

// NewService constructs a video service.
func NewService(store Store, users UserDirectory, blobs BlobStorage) *Service {
	return &Service{store: store, users: users, blobs: blobs, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// WithNowFunc overrides the time source. Test hook.
func (s *Service) WithNowFunc(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

// Create inspects, stores, and records a new video. The payload is sniffed
// and size-checked before any write, the creator's quota is enforced, and the
// row plus its share grants commit together. A public upload discards the
// shared list entirely.
func (s *Service) Create(ctx context.Context, p models.Principal, ownerID string, up Upload) (Detail, error) {
	if !p.Authenticated() {
		return Detail{}, apperr.ErrUnauthenticated
	}
	if !authz.IsRequestedUser(p, ownerID) {
		return Detail{}, apperr.Forbiddenf("videos can only be uploaded to your own account")
	}

	up.Name = strings.TrimSpace(up.Name)
	if up.Name == "" {
		return Detail{}, apperr.Validationf("video name is required")
	}
	if up.Payload == nil {
		return Detail{}, apperr.Validationf("video file is required")
	}
	if err := s.validateShareSet(ctx, p.ID, up.SharedWith); err != nil {
		return Detail{}, err
	}

	head := make([]byte, mediatype.SniffLen)
	n, err := io.ReadFull(up.Payload, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Detail{}, fmt.Errorf("read payload head: %w", err)
	}
	head = head[:n]
	if err := mediatype.Validate(head, up.Size); err != nil {
		return Detail{}, err
	}

	if err := s.checkQuota(ctx, p.ID, up.Size); err != nil {
		return Detail{}, err
	}

	now := s.nowFunc()
	video := models.Video{
		ID:          uuid.NewString(),
		Creator:     p.ID,
		Name:        up.Name,
		Description: up.Description,
		BlobKey:     fmt.Sprintf("videos/%s.mp4", uuid.NewString()),
		Size:        up.Size,
		IsPublic:    up.IsPublic,
		UploadedAt:  now,
	}

	payload := io.MultiReader(bytes.NewReader(head), io.LimitReader(up.Payload, up.Size-int64(len(head))))
	if err := s.blobs.Save(ctx, video.BlobKey, payload); err != nil {
		return Detail{}, fmt.Errorf("store payload: %w", err)
	}

	// Shares are a private-video concept: a public upload produces zero rows
	// no matter what list was submitted.
	var shares []models.Shared
	var sharedWith []string
	if !video.IsPublic {
		for _, userID := range up.SharedWith {
			shares = append(shares, models.Shared{ID: uuid.NewString(), VideoID: video.ID, UserID: userID})
			sharedWith = append(sharedWith, userID)
		}
	}

	if err := s.store.CreateWithShares(ctx, video, shares); err != nil {
		if cleanupErr := s.blobs.Delete(ctx, video.BlobKey); cleanupErr != nil {
			logging.FromContext(ctx).Warn("orphaned payload after failed create", "key", video.BlobKey, "error", cleanupErr)
		}
		return Detail{}, err
	}

	return Detail{Video: video, SharedWith: sharedWith}, nil
}

// Get returns a video's metadata if the principal may view it. The grant list
// is included only for the creator and staff.
func (s *Service) Get(ctx context.Context, p models.Principal, id string) (Detail, error) {
	video, err := s.store.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	shared := false
	if p.Authenticated() && !video.IsPublic {
		shared, err = s.store.IsSharedWith(ctx, id, p.ID)
		if err != nil {
			return Detail{}, fmt.Errorf("look up share: %w", err)
		}
	}
	if !authz.CanViewVideo(p, video, shared) {
		if !p.Authenticated() {
			return Detail{}, apperr.ErrUnauthenticated
		}
		return Detail{}, apperr.ErrForbidden
	}

	detail := Detail{Video: video}
	if authz.CanMutateVideo(p, video) {
		detail.SharedWith, err = s.store.SharedUserIDs(ctx, id)
		if err != nil {
			return Detail{}, fmt.Errorf("list shares: %w", err)
		}
	}
	return detail, nil
}

// Open streams the payload of a video the principal may view.
func (s *Service) Open(ctx context.Context, p models.Principal, id string) (io.ReadCloser, models.Video, error) {
	detail, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, models.Video{}, err
	}
	rc, err := s.blobs.Open(ctx, detail.Video.BlobKey)
	if err != nil {
		return nil, models.Video{}, fmt.Errorf("open payload: %w", err)
	}
	return rc, detail.Video, nil
}

// Update applies a metadata patch and reconciles the share grants. The file
// itself is immutable: any payload change is rejected regardless of rights.
// While the video ends up public, share reconciliation is skipped entirely.
func (s *Service) Update(ctx context.Context, p models.Principal, id string, patch Patch) (Detail, error) {
	video, err := s.store.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !p.Authenticated() {
		return Detail{}, apperr.ErrUnauthenticated
	}
	if !authz.CanMutateVideo(p, video) {
		return Detail{}, apperr.ErrForbidden
	}
	if patch.PayloadProvided {
		return Detail{}, apperr.Validationf("the video file cannot be changed after upload")
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Detail{}, apperr.Validationf("video name is required")
		}
		video.Name = name
	}
	if patch.Description != nil {
		video.Description = *patch.Description
	}
	if patch.IsPublic != nil {
		video.IsPublic = *patch.IsPublic
	}

	var addShares []models.Shared
	var removeUserIDs []string
	if patch.SharedWith != nil && !video.IsPublic {
		creator := video.Creator
		if creator == "" {
			creator = p.ID
		}
		if err := s.validateShareSet(ctx, creator, patch.SharedWith); err != nil {
			return Detail{}, err
		}

		current, err := s.store.SharedUserIDs(ctx, id)
		if err != nil {
			return Detail{}, fmt.Errorf("list shares: %w", err)
		}
		add, remove := diffShareSets(current, patch.SharedWith)
		for _, userID := range add {
			addShares = append(addShares, models.Shared{ID: uuid.NewString(), VideoID: id, UserID: userID})
		}
		removeUserIDs = remove
	}

	if err := s.store.Update(ctx, video, addShares, removeUserIDs); err != nil {
		return Detail{}, err
	}

	detail := Detail{Video: video}
	detail.SharedWith, err = s.store.SharedUserIDs(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("list shares: %w", err)
	}
	return detail, nil
}

// Delete removes the row and then the payload. Creator or staff only.
func (s *Service) Delete(ctx context.Context, p models.Principal, id string) error {
	video, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if !authz.CanMutateVideo(p, video) {
		return apperr.ErrForbidden
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, video.BlobKey); err != nil {
		logging.FromContext(ctx).Warn("orphaned payload after delete", "key", video.BlobKey, "error", err)
	}
	return nil
}

// ListForOwner returns the videos of one creator that the principal may see:
// everything for staff and the creator themselves, public-or-shared for other
// authenticated users, public only for anonymous callers.
func (s *Service) ListForOwner(ctx context.Context, p models.Principal, ownerID string) ([]models.Video, error) {
	exists, err := s.users.Exists(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("look up owner: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("user %s: %w", ownerID, apperr.ErrNotFound)
	}

	switch {
	case p.IsStaff, p.ID == ownerID && p.Authenticated():
		return s.store.ListByCreator(ctx, ownerID)
	case p.Authenticated():
		return s.store.ListVisibleTo(ctx, ownerID, p.ID)
	default:
		return s.store.ListPublic(ctx, ownerID)
	}
}

func (s *Service) checkQuota(ctx context.Context, creatorID string, size int64) error {
	user, err := s.users.Find(ctx, creatorID)
	if err != nil {
		return fmt.Errorf("look up creator: %w", err)
	}
	used, err := s.store.StorageUsed(ctx, creatorID)
	if err != nil {
		return fmt.Errorf("compute storage used: %w", err)
	}
	if used+size > user.StorageLimit {
		return apperr.Validationf("insufficient storage: %d of %d bytes used", used, user.StorageLimit)
	}
	return nil
}

func (s *Service) validateShareSet(ctx context.Context, creatorID string, sharedWith []string) error {
	seen := make(map[string]struct{}, len(sharedWith))
	for _, userID := range sharedWith {
		if userID == "" {
			return apperr.Validationf("shared user ids must not be empty")
		}
		if userID == creatorID {
			return apperr.Validationf("you cannot share a video with yourself")
		}
		if _, dup := seen[userID]; dup {
			return apperr.Validationf("shared users cannot contain duplicates")
		}
		seen[userID] = struct{}{}

		exists, err := s.users.Exists(ctx, userID)
		if err != nil {
			return fmt.Errorf("look up shared user: %w", err)
		}
		if !exists {
			return apperr.Validationf("user %s does not exist", userID)
		}
	}
	return nil
}

// diffShareSets computes the grant additions and removals needed to turn the
// current set into the target one.
func diffShareSets(current, target []string) (add, remove []string) {
	currentSet := make(map[string]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	targetSet := make(map[string]struct{}, len(target))
	for _, id := range target {
		targetSet[id] = struct{}{}
		if _, ok := currentSet[id]; !ok {
			add = append(add, id)
		}
	}
	for _, id := range current {
		if _, ok := targetSet[id]; !ok {
			remove = append(remove, id)
		}
	}
	return add, remove
}
