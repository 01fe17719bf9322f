package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// DefaultCloudinaryAPIURL is the public upload API base.
const DefaultCloudinaryAPIURL = "https://api.cloudinary.com/v1_1"

// CloudinaryConfig holds configuration for the Cloudinary host.
// The preset must be an unsigned upload preset created in the dashboard.
type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	APIURL       string // Default: DefaultCloudinaryAPIURL
}

// CloudinaryHost uploads images through Cloudinary's unsigned upload
// endpoint: a multipart POST of the file plus the preset identifier.
type CloudinaryHost struct {
	cloudName    string
	uploadPreset string
	apiURL       string
	httpClient   *http.Client
}

// NewCloudinaryHost creates a CloudinaryHost from config.
func NewCloudinaryHost(cfg CloudinaryConfig) (*CloudinaryHost, error) {
	if cfg.CloudName == "" {
		return nil, errors.New("cloud name is required")
	}
	if cfg.UploadPreset == "" {
		return nil, errors.New("upload preset is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultCloudinaryAPIURL
	}
	return &CloudinaryHost{
		cloudName:    cfg.CloudName,
		uploadPreset: cfg.UploadPreset,
		apiURL:       cfg.APIURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// cloudinaryResponse is the subset of the upload response we keep.
type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
}

// Upload sends the file as a multipart form POST and returns the hosted
// asset's durable location.
func (h *CloudinaryHost) Upload(ctx context.Context, file io.Reader, filename, contentType string) (*UploadResult, error) {
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build form: %v", ErrUploadFailed, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("%w: failed to read file: %v", ErrUploadFailed, err)
	}
	if err := writer.WriteField("upload_preset", h.uploadPreset); err != nil {
		return nil, fmt.Errorf("%w: failed to build form: %v", ErrUploadFailed, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: failed to finalize form: %v", ErrUploadFailed, err)
	}

	url := fmt.Sprintf("%s/%s/image/upload", h.apiURL, h.cloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: host returned status %d", ErrUploadFailed, resp.StatusCode)
	}

	var parsed cloudinaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrUploadFailed, err)
	}
	if parsed.SecureURL == "" {
		return nil, fmt.Errorf("%w: response missing secure_url", ErrUploadFailed)
	}

	return &UploadResult{
		SecureURL: parsed.SecureURL,
		PublicID:  parsed.PublicID,
		Width:     parsed.Width,
		Height:    parsed.Height,
		Format:    parsed.Format,
		Bytes:     parsed.Bytes,
	}, nil
}
