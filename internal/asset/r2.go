package asset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/onnwee/thewall/internal/image"
)

// R2Config holds configuration for the R2 (Cloudflare object storage)
// host, used by deployments that keep assets on their own bucket instead
// of Cloudinary.
type R2Config struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PublicBaseURL   string // CDN/custom-domain base the bucket is served from
	MaxSizeMB       int    // Default: 15MB
}

// R2Host stores images in an R2 bucket via the S3 API and probes their
// natural dimensions locally.
type R2Host struct {
	s3Client      *s3.Client
	bucketName    string
	publicBaseURL string
	maxSizeBytes  int64
}

// NewR2Host creates a new R2 host with the given configuration.
func NewR2Host(cfg R2Config) (*R2Host, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("access key ID is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("secret access key is required")
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("public base URL is required")
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 15
	}

	// R2-compatible S3 client: auto region, path-style addressing
	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &R2Host{
		s3Client:      s3Client,
		bucketName:    cfg.BucketName,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxSizeBytes:  int64(cfg.MaxSizeMB) * 1024 * 1024,
	}, nil
}

// ObjectKey creates a unique object key for an upload.
// Pattern: wall/{uuid}{ext}
func ObjectKey(contentType string) (string, error) {
	ext, ok := AllowedMIMETypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	return fmt.Sprintf("wall/%s%s", uuid.New().String(), ext), nil
}

// Upload sanitizes the image, writes it to the bucket, and returns its
// public location with locally probed dimensions.
func (h *R2Host) Upload(ctx context.Context, file io.Reader, filename, contentType string) (*UploadResult, error) {
	if err := ValidateContentType(contentType); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read file: %v", ErrUploadFailed, err)
	}
	if int64(len(data)) > h.maxSizeBytes {
		return nil, ErrFileTooLarge
	}

	// Strip EXIF before the bytes leave the server.
	sanitized, err := image.Sanitize(data, image.DefaultSanitizeConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image: %v", ErrUploadFailed, err)
	}

	info, err := image.ProbeBytes(sanitized)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image: %v", ErrUploadFailed, err)
	}

	key, err := ObjectKey(contentType)
	if err != nil {
		return nil, err
	}

	_, err = h.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sanitized),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(sanitized))),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return &UploadResult{
		SecureURL: h.publicBaseURL + "/" + key,
		PublicID:  key,
		Width:     info.Width,
		Height:    info.Height,
		Format:    info.Format,
		Bytes:     int64(len(sanitized)),
	}, nil
}
