package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/auth"
	"github.com/vidshare/backend/internal/friendships"
	"github.com/vidshare/backend/internal/groups"
	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/privategroups"
	"github.com/vidshare/backend/internal/videos"
)

// The fakes below mirror the storage-layer guarantees the services rely on:
// uniqueness constraints surface as apperr.ErrConflict, missing rows as
// apperr.ErrNotFound, and the transactional operations are atomic because
// everything runs under one mutex.

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]models.User)}
}

func (s *fakeUsers) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return apperr.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUsers) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, apperr.ErrNotFound
	}
	return user, nil
}

func (s *fakeUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, apperr.ErrNotFound
}

func (s *fakeUsers) Update(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return apperr.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUsers) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *fakeUsers) Exists(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userID]
	return ok, nil
}

func (s *fakeUsers) Find(ctx context.Context, userID string) (models.User, error) {
	return s.FindByID(ctx, userID)
}

type fakeFriendships struct {
	mu    sync.Mutex
	rows  map[string]models.Friendship
	users *fakeUsers
}

func newFakeFriendships(users *fakeUsers) *fakeFriendships {
	return &fakeFriendships{rows: make(map[string]models.Friendship), users: users}
}

func (s *fakeFriendships) Create(_ context.Context, f models.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		same := existing.User1 == f.User1 && existing.User2 == f.User2
		flipped := existing.User1 == f.User2 && existing.User2 == f.User1
		if same || flipped {
			return apperr.ErrConflict
		}
	}
	s.rows[f.ID] = f
	return nil
}

func (s *fakeFriendships) Get(_ context.Context, id string) (models.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.rows[id]
	if !ok {
		return models.Friendship{}, apperr.ErrNotFound
	}
	return f, nil
}

func (s *fakeFriendships) Accept(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.rows[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if f.Status != models.FriendshipPending {
		return apperr.ErrConflict
	}
	f.Status = models.FriendshipAccepted
	f.UpdatedAt = at
	s.rows[id] = f
	return nil
}

func (s *fakeFriendships) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *fakeFriendships) Accepted(_ context.Context, userID string) ([]friendships.FriendEntry, error) {
	return s.entries(userID, models.FriendshipAccepted, "", ""), nil
}

func (s *fakeFriendships) Incoming(_ context.Context, userID string) ([]friendships.FriendEntry, error) {
	return s.entries(userID, models.FriendshipPending, "recipient", ""), nil
}

func (s *fakeFriendships) Outgoing(_ context.Context, userID string) ([]friendships.FriendEntry, error) {
	return s.entries(userID, models.FriendshipPending, "", "sender"), nil
}

func (s *fakeFriendships) entries(userID string, status models.FriendshipStatus, recipient, sender string) []friendships.FriendEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []friendships.FriendEntry
	for _, f := range s.rows {
		if f.Status != status || !f.Contains(userID) {
			continue
		}
		if recipient != "" && f.User2 != userID {
			continue
		}
		if sender != "" && f.User1 != userID {
			continue
		}
		friend, _ := s.users.FindByID(context.Background(), f.FriendOf(userID))
		out = append(out, friendships.FriendEntry{FriendshipID: f.ID, Status: f.Status, Friend: friend})
	}
	return out
}

type fakeGroups struct {
	mu          sync.Mutex
	groups      map[string]models.Group
	memberships map[string]models.Membership
	invitations map[string]models.Invitation
	users       *fakeUsers
}

func newFakeGroups(users *fakeUsers) *fakeGroups {
	return &fakeGroups{
		groups:      make(map[string]models.Group),
		memberships: make(map[string]models.Membership),
		invitations: make(map[string]models.Invitation),
		users:       users,
	}
}

func (s *fakeGroups) CreateWithOwner(_ context.Context, group models.Group, owner models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.ID] = group
	s.memberships[owner.ID] = owner
	return nil
}

func (s *fakeGroups) Get(_ context.Context, id string) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return models.Group{}, apperr.ErrNotFound
	}
	return g, nil
}

func (s *fakeGroups) List(_ context.Context) ([]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Group
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out, nil
}

func (s *fakeGroups) Rename(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return apperr.ErrNotFound
	}
	g.Name = name
	s.groups[id] = g
	return nil
}

func (s *fakeGroups) DeleteCascade(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.groups, id)
	for mid, m := range s.memberships {
		if m.GroupID == id {
			delete(s.memberships, mid)
		}
	}
	for iid, inv := range s.invitations {
		if inv.GroupID == id {
			delete(s.invitations, iid)
		}
	}
	return nil
}

func (s *fakeGroups) Membership(_ context.Context, userID, groupID string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.memberships {
		if m.UserID == userID && m.GroupID == groupID {
			copied := m
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeGroups) Members(_ context.Context, groupID string) ([]groups.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []groups.Member
	for _, m := range s.memberships {
		if m.GroupID == groupID {
			user, _ := s.users.FindByID(context.Background(), m.UserID)
			out = append(out, groups.Member{User: user, Role: m.Role})
		}
	}
	return out, nil
}

func (s *fakeGroups) HasInvitation(_ context.Context, userID, groupID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.UserID == userID && inv.GroupID == groupID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeGroups) CreateInvitation(_ context.Context, invitation models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invitations {
		if inv.UserID == invitation.UserID && inv.GroupID == invitation.GroupID {
			return apperr.ErrConflict
		}
	}
	s.invitations[invitation.ID] = invitation
	return nil
}

func (s *fakeGroups) Join(_ context.Context, membership models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var consumed string
	for id, inv := range s.invitations {
		if inv.UserID == membership.UserID && inv.GroupID == membership.GroupID {
			consumed = id
			break
		}
	}
	if consumed == "" {
		return apperr.ErrForbidden
	}
	for _, m := range s.memberships {
		if m.UserID == membership.UserID && m.GroupID == membership.GroupID {
			return apperr.ErrConflict
		}
	}
	delete(s.invitations, consumed)
	s.memberships[membership.ID] = membership
	return nil
}

func (s *fakeGroups) DeleteMembership(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memberships[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.memberships, id)
	return nil
}

type fakePrivateGroups struct {
	mu      sync.Mutex
	groups  map[string]models.PrivateGroup
	members map[string]models.PrivateGroupMembership
	users   *fakeUsers
}

func newFakePrivateGroups(users *fakeUsers) *fakePrivateGroups {
	return &fakePrivateGroups{
		groups:  make(map[string]models.PrivateGroup),
		members: make(map[string]models.PrivateGroupMembership),
		users:   users,
	}
}

func (s *fakePrivateGroups) CreateWithMembers(_ context.Context, group models.PrivateGroup, members []models.PrivateGroupMembership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.ID] = group
	for _, m := range members {
		s.members[m.ID] = m
	}
	return nil
}

func (s *fakePrivateGroups) Get(_ context.Context, id string) (models.PrivateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return models.PrivateGroup{}, apperr.ErrNotFound
	}
	return g, nil
}

func (s *fakePrivateGroups) ListByCreator(_ context.Context, creatorID string) ([]models.PrivateGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PrivateGroup
	for _, g := range s.groups {
		if g.Creator == creatorID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *fakePrivateGroups) Members(_ context.Context, groupID string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, m := range s.members {
		if m.GroupID == groupID {
			user, _ := s.users.FindByID(context.Background(), m.UserID)
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *fakePrivateGroups) Rename(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return apperr.ErrNotFound
	}
	g.Name = name
	s.groups[id] = g
	return nil
}

func (s *fakePrivateGroups) Reconcile(_ context.Context, groupID string, add []models.PrivateGroupMembership, removeUserIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range add {
		s.members[m.ID] = m
	}
	for _, userID := range removeUserIDs {
		for id, m := range s.members {
			if m.GroupID == groupID && m.UserID == userID {
				delete(s.members, id)
			}
		}
	}
	return nil
}

func (s *fakePrivateGroups) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.groups, id)
	for mid, m := range s.members {
		if m.GroupID == id {
			delete(s.members, mid)
		}
	}
	return nil
}

type fakeVideos struct {
	mu     sync.Mutex
	videos map[string]models.Video
	shares map[string]models.Shared
}

func newFakeVideos() *fakeVideos {
	return &fakeVideos{videos: make(map[string]models.Video), shares: make(map[string]models.Shared)}
}

func (s *fakeVideos) CreateWithShares(_ context.Context, video models.Video, shares []models.Shared) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[video.ID] = video
	for _, share := range shares {
		s.shares[share.ID] = share
	}
	return nil
}

func (s *fakeVideos) Get(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return models.Video{}, apperr.ErrNotFound
	}
	return v, nil
}

func (s *fakeVideos) Update(_ context.Context, video models.Video, addShares []models.Shared, removeUserIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[video.ID]; !ok {
		return apperr.ErrNotFound
	}
	s.videos[video.ID] = video
	for _, share := range addShares {
		s.shares[share.ID] = share
	}
	for _, userID := range removeUserIDs {
		for id, share := range s.shares {
			if share.VideoID == video.ID && share.UserID == userID {
				delete(s.shares, id)
			}
		}
	}
	return nil
}

func (s *fakeVideos) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.videos, id)
	for sid, share := range s.shares {
		if share.VideoID == id {
			delete(s.shares, sid)
		}
	}
	return nil
}

func (s *fakeVideos) IsSharedWith(_ context.Context, videoID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, share := range s.shares {
		if share.VideoID == videoID && share.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeVideos) SharedUserIDs(_ context.Context, videoID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, share := range s.shares {
		if share.VideoID == videoID {
			out = append(out, share.UserID)
		}
	}
	return out, nil
}

func (s *fakeVideos) ListByCreator(_ context.Context, creatorID string) ([]models.Video, error) {
	return s.list(func(v models.Video) bool { return v.Creator == creatorID }), nil
}

func (s *fakeVideos) ListVisibleTo(ctx context.Context, creatorID, requesterID string) ([]models.Video, error) {
	return s.list(func(v models.Video) bool {
		if v.Creator != creatorID {
			return false
		}
		if v.IsPublic {
			return true
		}
		shared, _ := s.isSharedLocked(v.ID, requesterID)
		return shared
	}), nil
}

func (s *fakeVideos) ListPublic(_ context.Context, creatorID string) ([]models.Video, error) {
	return s.list(func(v models.Video) bool { return v.Creator == creatorID && v.IsPublic }), nil
}

func (s *fakeVideos) StorageUsed(_ context.Context, creatorID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var used int64
	for _, v := range s.videos {
		if v.Creator == creatorID {
			used += v.Size
		}
	}
	return used, nil
}

func (s *fakeVideos) list(keep func(models.Video) bool) []models.Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, v := range s.videos {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (s *fakeVideos) isSharedLocked(videoID, userID string) (bool, error) {
	for _, share := range s.shares {
		if share.VideoID == videoID && share.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Save(_ context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *fakeBlobs) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// testEnv is a full router over in-memory storage. Requests go through the
// real middleware stack, so tests authenticate with bearer tokens exactly
// like real clients.
type testEnv struct {
	router   http.Handler
	users    *fakeUsers
	videos   *fakeVideos
	blobs    *fakeBlobs
	identity *auth.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUsers()
	sessions := auth.NewManager(15*time.Minute, 24*time.Hour, auth.NewInMemorySessionStore())
	identity := auth.NewIdentity(users, sessions)
	videoStore := newFakeVideos()
	blobs := newFakeBlobs()

	router := NewRouter(Dependencies{
		Identity:      identity,
		Friendships:   friendships.NewService(newFakeFriendships(users), users),
		Groups:        groups.NewService(newFakeGroups(users), users),
		PrivateGroups: privategroups.NewService(newFakePrivateGroups(users), users),
		Videos:        videos.NewService(videoStore, users, blobs),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &testEnv{router: router, users: users, videos: videoStore, blobs: blobs, identity: identity}
}

// account signs up a user through the API and returns its id and access token.
func (env *testEnv) account(t *testing.T, username string) (string, string) {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"correct horse"}`, username, username)
	rec := env.do(t, http.MethodPost, "/api/v1/auth/signup", "", bytes.NewBufferString(body), "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup %s: status = %d, body %s", username, rec.Code, rec.Body)
	}

	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}
	decodeBody(t, rec, &resp)
	return resp.User.ID, resp.Tokens.AccessToken
}

// staffAccount promotes a freshly signed-up user to staff directly in the
// store. The principal is derived from the stored user on every request, so
// the existing token picks up the flag immediately.
func (env *testEnv) staffAccount(t *testing.T, username string) (string, string) {
	t.Helper()

	id, token := env.account(t, username)
	env.users.mu.Lock()
	user := env.users.users[id]
	user.IsStaff = true
	env.users.users[id] = user
	env.users.mu.Unlock()
	return id, token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doJSON(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	return env.do(t, method, path, token, reader, "application/json")
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body, err)
	}
}

// multipartUpload builds a video upload request body.
func multipartUpload(t *testing.T, fields map[string]string, sharedWith []string, payload []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	for _, userID := range sharedWith {
		if err := w.WriteField("sharedWith", userID); err != nil {
			t.Fatalf("write sharedWith: %v", err)
		}
	}
	if payload != nil {
		part, err := w.CreateFormFile("file", "clip.mp4")
		if err != nil {
			t.Fatalf("create file part: %v", err)
		}
		if _, err := part.Write(payload); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

// mp4Bytes builds a payload that sniffs as MP4: an ftyp box with the mp42
// brand, padded out to size.
func mp4Bytes(size int) []byte {
	header := []byte{0, 0, 0, 24, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0, 0, 0, 0, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}
	if size < len(header) {
		size = len(header)
	}
	payload := make([]byte, size)
	copy(payload, header)
	return payload
}
