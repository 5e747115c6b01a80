package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"
)

func (env *testEnv) uploadVideo(t *testing.T, token, ownerID string, fields map[string]string, sharedWith []string, payload []byte) string {
	t.Helper()

	body, contentType := multipartUpload(t, fields, sharedWith, payload)
	rec := env.do(t, http.MethodPost, "/api/v1/users/"+ownerID+"/videos", token, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &resp)
	return resp.ID
}

func TestVideoUploadAndContent(t *testing.T) {
	env := newTestEnv(t)
	aliceID, aliceToken := env.account(t, "alice")
	bobID, bobToken := env.account(t, "bob")
	_, carolToken := env.account(t, "carol")

	payload := mp4Bytes(2048)
	videoID := env.uploadVideo(t, aliceToken, aliceID,
		map[string]string{"name": "holiday", "description": "beach"},
		[]string{bobID}, payload)

	rec := env.doJSON(t, http.MethodGet, "/api/v1/videos/"+videoID, aliceToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var detail struct {
		Name       string   `json:"name"`
		Creator    string   `json:"creator"`
		Size       int64    `json:"size"`
		IsPublic   bool     `json:"isPublic"`
		SharedWith []string `json:"sharedWith"`
	}
	decodeBody(t, rec, &detail)
	if detail.Name != "holiday" || detail.Creator != aliceID || detail.Size != 2048 || detail.IsPublic {
		t.Fatalf("detail = %+v", detail)
	}
	if len(detail.SharedWith) != 1 || detail.SharedWith[0] != bobID {
		t.Fatalf("sharedWith = %v", detail.SharedWith)
	}

	// The grant list is the creator's; a shared viewer gets the metadata
	// without it.
	rec = env.doJSON(t, http.MethodGet, "/api/v1/videos/"+videoID, bobToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("shared get status = %d", rec.Code)
	}
	decodeBody(t, rec, &detail)
	if len(detail.SharedWith) != 0 {
		t.Fatalf("shared viewer saw grants %v", detail.SharedWith)
	}

	// Content streams byte for byte to anyone the video is shared with.
	rec = env.doJSON(t, http.MethodGet, "/api/v1/videos/"+videoID+"/content", bobToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("content status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Fatalf("content type = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatalf("content length = %d, want %d", rec.Body.Len(), len(payload))
	}

	// Everyone else is shut out, metadata and payload both.
	for name, token := range map[string]string{"stranger": carolToken, "anonymous": ""} {
		t.Run(name, func(t *testing.T) {
			want := http.StatusForbidden
			if token == "" {
				want = http.StatusUnauthorized
			}
			rec := env.doJSON(t, http.MethodGet, "/api/v1/videos/"+videoID, token, "")
			if rec.Code != want {
				t.Fatalf("metadata status = %d, want %d", rec.Code, want)
			}
			rec = env.doJSON(t, http.MethodGet, "/api/v1/videos/"+videoID+"/content", token, "")
			if rec.Code != want {
				t.Fatalf("content status = %d, want %d", rec.Code, want)
			}
		})
	}
}

func TestPublicVideoVisibleToAll(t *testing.T) {
	env := newTestEnv(t)
	aliceID, aliceToken := env.account(t, "alice")

	payload := mp4Bytes(1024)
	videoID := env.uploadVideo(t, aliceToken, aliceID,
		map[string]string{"name": "trailer", "isPublic": "true"}, nil, payload)

	// No token at all: public means public.
	rec := env.doJSON(t, http.MethodGet, "/api/v1/videos/"+videoID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous metadata status = %d", rec.Code)
	}
	rec = env.doJSON(t, http.MethodGet, "/api/v1/videos/"+videoID+"/content", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous content status = %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatalf("anonymous content length = %d, want %d", rec.Body.Len(), len(payload))
	}
}

func TestVideoUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	aliceID, aliceToken := env.account(t, "alice")
	_, staffToken := env.staffAccount(t, "root")

	tests := map[string]struct {
		token   string
		fields  map[string]string
		payload []byte
		want    int
	}{
		"missing name":    {aliceToken, map[string]string{}, mp4Bytes(512), http.StatusBadRequest},
		"missing file":    {aliceToken, map[string]string{"name": "clip"}, nil, http.StatusBadRequest},
		"not an mp4":      {aliceToken, map[string]string{"name": "clip"}, []byte("plain text, not a video"), http.StatusBadRequest},
		"bogus isPublic":  {aliceToken, map[string]string{"name": "clip", "isPublic": "maybe"}, mp4Bytes(512), http.StatusBadRequest},
		"staff on behalf": {staffToken, map[string]string{"name": "clip"}, mp4Bytes(512), http.StatusForbidden},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tc.fields, nil, tc.payload)
			rec := env.do(t, http.MethodPost, "/api/v1/users/"+aliceID+"/videos", tc.token, body, contentType)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestVideoUpdate(t *testing.T) {
	env := newTestEnv(t)
	aliceID, aliceToken := env.account(t, "alice")
	bobID, bobToken := env.account(t, "bob")
	carolID, _ := env.account(t, "carol")

	videoID := env.uploadVideo(t, aliceToken, aliceID,
		map[string]string{"name": "holiday"}, []string{bobID}, mp4Bytes(1024))

	// Swap the grant from bob to carol.
	rec := env.doJSON(t, http.MethodPatch, "/api/v1/videos/"+videoID, aliceToken,
		fmt.Sprintf(`{"name":"holiday 2023","sharedWith":[%q]}`, carolID))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body)
	}
	var detail struct {
		Name       string   `json:"name"`
		SharedWith []string `json:"sharedWith"`
	}
	decodeBody(t, rec, &detail)
	if detail.Name != "holiday 2023" || len(detail.SharedWith) != 1 || detail.SharedWith[0] != carolID {
		t.Fatalf("patched detail = %+v", detail)
	}

	// Bob lost access along with his grant.
	rec = env.doJSON(t, http.MethodGet, "/api/v1/videos/"+videoID, bobToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("revoked viewer status = %d, want 403", rec.Code)
	}

	// Viewers cannot edit.
	rec = env.doJSON(t, http.MethodPatch, "/api/v1/videos/"+videoID, bobToken, `{"name":"mine now"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("viewer patch status = %d, want 403", rec.Code)
	}

	// The payload is immutable: a multipart patch carrying a file part is
	// rejected even for the creator.
	body, contentType := multipartUpload(t, map[string]string{"name": "recut"}, nil, mp4Bytes(512))
	rec = env.do(t, http.MethodPatch, "/api/v1/videos/"+videoID, aliceToken, body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("payload patch status = %d, want 400, body %s", rec.Code, rec.Body)
	}

	// A multipart patch without a file part is an ordinary metadata update.
	body, contentType = multipartUpload(t, map[string]string{"description": "recut description"}, nil, nil)
	rec = env.do(t, http.MethodPatch, "/api/v1/videos/"+videoID, aliceToken, body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("multipart metadata patch status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestVideoDelete(t *testing.T) {
	env := newTestEnv(t)
	aliceID, aliceToken := env.account(t, "alice")
	_, bobToken := env.account(t, "bob")

	videoID := env.uploadVideo(t, aliceToken, aliceID,
		map[string]string{"name": "holiday", "isPublic": "true"}, nil, mp4Bytes(1024))

	rec := env.doJSON(t, http.MethodDelete, "/api/v1/videos/"+videoID, bobToken, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-creator delete status = %d, want 403", rec.Code)
	}

	rec = env.doJSON(t, http.MethodDelete, "/api/v1/videos/"+videoID, aliceToken, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if len(env.blobs.objects) != 0 {
		t.Fatalf("blob store still holds %d objects", len(env.blobs.objects))
	}
	rec = env.doJSON(t, http.MethodGet, "/api/v1/videos/"+videoID, aliceToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted video status = %d, want 404", rec.Code)
	}
}

func TestVideoListings(t *testing.T) {
	env := newTestEnv(t)
	aliceID, aliceToken := env.account(t, "alice")
	bobID, bobToken := env.account(t, "bob")
	_, carolToken := env.account(t, "carol")

	env.uploadVideo(t, aliceToken, aliceID, map[string]string{"name": "public", "isPublic": "true"}, nil, mp4Bytes(512))
	env.uploadVideo(t, aliceToken, aliceID, map[string]string{"name": "for bob"}, []string{bobID}, mp4Bytes(512))
	env.uploadVideo(t, aliceToken, aliceID, map[string]string{"name": "private"}, nil, mp4Bytes(512))

	tests := map[string]struct {
		token string
		want  int
	}{
		"creator":   {aliceToken, 3},
		"shared":    {bobToken, 2},
		"stranger":  {carolToken, 1},
		"anonymous": {"", 1},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			rec := env.doJSON(t, http.MethodGet, "/api/v1/users/"+aliceID+"/videos", tc.token, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("list status = %d, body %s", rec.Code, rec.Body)
			}
			var list []struct {
				Name string `json:"name"`
			}
			decodeBody(t, rec, &list)
			if len(list) != tc.want {
				t.Fatalf("listed %d videos, want %d: %+v", len(list), tc.want, list)
			}
		})
	}
}
