package image

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// encodeTestJPEG builds a real JPEG buffer of the given dimensions.
func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// TestProbeBytes tests dimension and format detection on a real image.
func TestProbeBytes(t *testing.T) {
	data := encodeTestJPEG(t, 320, 240)

	info, err := ProbeBytes(data)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.Width != 320 || info.Height != 240 {
		t.Errorf("dimensions %dx%d, want 320x240", info.Width, info.Height)
	}
	if info.Format != "jpeg" {
		t.Errorf("format %q, want jpeg", info.Format)
	}
}

// TestProbeBytesInvalid tests that garbage input errors cleanly.
func TestProbeBytesInvalid(t *testing.T) {
	if _, err := ProbeBytes([]byte("not an image")); err == nil {
		t.Error("expected error for invalid image data")
	}
}

// TestSanitizePreservesDimensions tests that sanitizing keeps the image
// renderable at its natural size.
func TestSanitizePreservesDimensions(t *testing.T) {
	data := encodeTestJPEG(t, 100, 80)

	out, err := Sanitize(data, DefaultSanitizeConfig())
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}

	info, err := ProbeBytes(out)
	if err != nil {
		t.Fatalf("probe sanitized: %v", err)
	}
	if info.Width != 100 || info.Height != 80 {
		t.Errorf("sanitize changed dimensions: %dx%d", info.Width, info.Height)
	}
}
