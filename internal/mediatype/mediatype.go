// Package mediatype is the content-inspection collaborator for uploads. It
// sniffs the leading bytes of a payload and enforces the size cap and the
// allowed-type allowlist before any Video row is created.
package mediatype

import (
	"net/http"

	"github.com/vidshare/backend/internal/apperr"
)

const (
	// MaxUploadBytes caps a single video payload at 1 GiB.
	MaxUploadBytes int64 = 1 << 30
	// SniffLen is how many leading bytes Detect considers. The container
	// signature sits within the first dozen bytes, so 1 KiB is plenty.
	SniffLen = 1024
)

var allowedTypes = map[string]struct{}{
	"video/mp4": {},
}

// Detect returns the media type of the payload based on its leading bytes.
func Detect(head []byte) string {
	if len(head) > SniffLen {
		head = head[:SniffLen]
	}
	return http.DetectContentType(head)
}

// Validate checks an upload against the size cap and the type allowlist.
// Violations surface as validation errors, never silent truncation.
func Validate(head []byte, size int64) error {
	if size <= 0 {
		return apperr.Validationf("video payload is empty")
	}
	if size > MaxUploadBytes {
		return apperr.Validationf("video size must be less than %d bytes", MaxUploadBytes)
	}
	if mt := Detect(head); !Allowed(mt) {
		return apperr.Validationf("video must be of type video/mp4, got %s", mt)
	}
	return nil
}

// Allowed reports whether the media type is on the upload allowlist.
func Allowed(mediaType string) bool {
	_, ok := allowedTypes[mediaType]
	return ok
}
