package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vidshare/backend/internal/apperr"
	"github.com/vidshare/backend/internal/logging"
	"github.com/vidshare/backend/internal/middleware"
	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/videos"
)

// uploadMemoryLimit caps how much of a multipart body is buffered in memory;
// larger payloads spill to temporary files.
const uploadMemoryLimit = 32 << 20

// VideoHandler serves video metadata, payloads, and share grants.
type VideoHandler struct {
	Videos *videos.Service
}

type videoResponse struct {
	ID          string    `json:"id"`
	Creator     string    `json:"creator"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Size        int64     `json:"size"`
	IsPublic    bool      `json:"isPublic"`
	UploadedAt  time.Time `json:"uploadedAt"`
	SharedWith  []string  `json:"sharedWith,omitempty"`
}

func newVideoResponse(video models.Video, sharedWith []string) videoResponse {
	return videoResponse{
		ID:          video.ID,
		Creator:     video.Creator,
		Name:        video.Name,
		Description: video.Description,
		Size:        video.Size,
		IsPublic:    video.IsPublic,
		UploadedAt:  video.UploadedAt,
		SharedWith:  sharedWith,
	}
}

type videoPatchRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	IsPublic    *bool    `json:"isPublic"`
	SharedWith  []string `json:"sharedWith"`
}

// uploadRequest carries a parsed multipart upload plus the file handle that
// must be released once the payload has been consumed.
type uploadRequest struct {
	Upload videos.Upload
	file   multipart.File
}

func (u uploadRequest) close() {
	if u.file != nil {
		u.file.Close()
	}
}

// parseUpload reads a multipart upload request. The payload travels in a
// "file" part; the metadata fields are plain form values and sharedWith may
// repeat. A missing file part is left for the service to reject.
func parseUpload(r *http.Request) (uploadRequest, error) {
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		return uploadRequest{}, apperr.Validationf("invalid multipart request")
	}

	upload := videos.Upload{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}
	if raw := r.FormValue("isPublic"); raw != "" {
		public, err := strconv.ParseBool(raw)
		if err != nil {
			return uploadRequest{}, apperr.Validationf("isPublic must be a boolean")
		}
		upload.IsPublic = public
	}
	if r.MultipartForm != nil {
		upload.SharedWith = r.MultipartForm.Value["sharedWith"]
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return uploadRequest{Upload: upload}, nil
	case err != nil:
		return uploadRequest{}, apperr.Validationf("invalid file part")
	}

	upload.Payload = file
	upload.Size = header.Size
	return uploadRequest{Upload: upload, file: file}, nil
}

// Get handles GET /api/v1/videos/{videoID}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	detail, err := h.Videos.Get(ctx, p, chi.URLParam(r, "videoID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newVideoResponse(detail.Video, detail.SharedWith))
}

// Content handles GET /api/v1/videos/{videoID}/content, streaming the payload
// from the blob store to the client.
func (h VideoHandler) Content(w http.ResponseWriter, r *http.Request) {
	ctx, span := logging.StartSpan(r.Context(), "video.content")
	defer span.End()
	p := middleware.PrincipalFromContext(ctx)

	body, video, err := h.Videos.Open(ctx, p, chi.URLParam(r, "videoID"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Length", strconv.FormatInt(video.Size, 10))
	if _, err := io.Copy(w, body); err != nil {
		// Headers are gone; all we can do is log the broken stream.
		logging.FromContext(ctx).Warn("video stream interrupted", "video_id", video.ID, "error", err)
	}
}

// Update handles PATCH /api/v1/videos/{videoID}. Metadata patches arrive as
// JSON; a multipart body is parsed the same way as an upload so that an
// attempt to replace the payload is reported as such rather than ignored.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	patch, err := parsePatch(r)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	detail, err := h.Videos.Update(ctx, p, chi.URLParam(r, "videoID"), patch)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, newVideoResponse(detail.Video, detail.SharedWith))
}

func parsePatch(r *http.Request) (videos.Patch, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		upload, err := parseUpload(r)
		if err != nil {
			return videos.Patch{}, err
		}
		defer upload.close()

		patch := videos.Patch{PayloadProvided: upload.Upload.Payload != nil}
		if values := r.MultipartForm.Value; values != nil {
			if v, ok := values["name"]; ok && len(v) > 0 {
				patch.Name = &v[0]
			}
			if v, ok := values["description"]; ok && len(v) > 0 {
				patch.Description = &v[0]
			}
			if v, ok := values["isPublic"]; ok && len(v) > 0 {
				public, err := strconv.ParseBool(v[0])
				if err != nil {
					return videos.Patch{}, apperr.Validationf("isPublic must be a boolean")
				}
				patch.IsPublic = &public
			}
			if v, ok := values["sharedWith"]; ok {
				patch.SharedWith = v
			}
		}
		return patch, nil
	}

	var req videoPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		return videos.Patch{}, err
	}
	return videos.Patch{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		SharedWith:  req.SharedWith,
	}, nil
}

// Delete handles DELETE /api/v1/videos/{videoID}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)

	if err := h.Videos.Delete(ctx, p, chi.URLParam(r, "videoID")); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
