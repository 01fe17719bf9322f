// Package image provides probing and sanitization for uploaded wall
// pictures.
package image

import (
	"fmt"
	"io"

	"github.com/h2non/bimg"
)

// Info holds the natural dimensions and format of an uploaded image, used
// to derive the picture's rendering-hint size.
type Info struct {
	Width  int
	Height int
	Format string
}

// Probe reads an image and returns its natural dimensions and format.
func Probe(r io.Reader) (*Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return ProbeBytes(data)
}

// ProbeBytes is Probe over a byte slice already in memory.
func ProbeBytes(data []byte) (*Info, error) {
	metadata, err := bimg.NewImage(data).Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata: %w", err)
	}
	return &Info{
		Width:  metadata.Size.Width,
		Height: metadata.Size.Height,
		Format: metadata.Type,
	}, nil
}

// SanitizeConfig holds re-encoding options for Sanitize.
type SanitizeConfig struct {
	// Quality for JPEG encoding (1-100, default: 85)
	Quality int
	// StripMetadata removes all EXIF/metadata (default: true)
	StripMetadata bool
}

// DefaultSanitizeConfig returns sensible defaults.
func DefaultSanitizeConfig() SanitizeConfig {
	return SanitizeConfig{Quality: 85, StripMetadata: true}
}

// Sanitize re-encodes an image, stripping EXIF metadata (GPS, camera
// details, timestamps) before the bytes leave the server. The original
// format is preserved.
func Sanitize(data []byte, config SanitizeConfig) ([]byte, error) {
	img := bimg.NewImage(data)
	metadata, err := img.Metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to read image metadata: %w", err)
	}

	if config.Quality <= 0 {
		config.Quality = 85
	}
	options := bimg.Options{
		Quality:       config.Quality,
		StripMetadata: config.StripMetadata,
		Type:          imageType(metadata.Type),
	}

	out, err := img.Process(options)
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}
	return out, nil
}

// imageType maps bimg's string type to a bimg.ImageType constant.
func imageType(typeStr string) bimg.ImageType {
	switch typeStr {
	case "jpeg":
		return bimg.JPEG
	case "png":
		return bimg.PNG
	case "webp":
		return bimg.WEBP
	case "gif":
		return bimg.GIF
	default:
		return bimg.JPEG
	}
}
