// Package asset talks to the external image host that stores uploaded
// wall pictures and serves them back over CDN URLs.
package asset

import (
	"context"
	"errors"
	"io"
)

// Allowed MIME types for wall pictures.
const (
	MIMEImageJPEG = "image/jpeg"
	MIMEImagePNG  = "image/png"
	MIMEImageWebP = "image/webp"
	MIMEImageGIF  = "image/gif"
)

// Validation and upload errors.
var (
	// ErrUploadFailed means the host rejected the upload or the network
	// failed. It is deliberately distinct from quota errors so callers can
	// surface the right message.
	ErrUploadFailed = errors.New("asset upload failed")

	// ErrUnsupportedType means the content type is not an accepted image.
	ErrUnsupportedType = errors.New("unsupported content type")

	// ErrFileTooLarge means the file exceeds the configured maximum.
	ErrFileTooLarge = errors.New("file size exceeds maximum allowed")
)

// AllowedMIMETypes maps accepted MIME types to their file extensions.
var AllowedMIMETypes = map[string]string{
	MIMEImageJPEG: ".jpg",
	MIMEImagePNG:  ".png",
	MIMEImageWebP: ".webp",
	MIMEImageGIF:  ".gif",
}

// ValidateContentType checks if the content type is an accepted image.
func ValidateContentType(contentType string) error {
	if _, ok := AllowedMIMETypes[contentType]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// UploadResult describes a durably hosted asset. The URL and ID are owned
// by the host and immutable once set.
type UploadResult struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
}

// Host is an image host accepting binary uploads. Implementations must
// wrap transport and rejection failures in ErrUploadFailed.
type Host interface {
	// Upload sends one image and returns its durable location. There is no
	// cancellation primitive once the bytes are in flight; an upload whose
	// placement is later abandoned simply leaks the asset.
	Upload(ctx context.Context, file io.Reader, filename, contentType string) (*UploadResult, error)
}
