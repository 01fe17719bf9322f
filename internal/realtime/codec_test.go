package realtime

import (
	"testing"
	"time"

	"github.com/onnwee/thewall/internal/wall"
)

// TestParseEncoding tests encoding negotiation, including the JSON default.
func TestParseEncoding(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Encoding
		expectErr bool
	}{
		{name: "empty defaults to json", input: "", want: EncodingJSON},
		{name: "json", input: "json", want: EncodingJSON},
		{name: "cbor", input: "cbor", want: EncodingCBOR},
		{name: "unknown", input: "msgpack", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEncoding(tt.input)
			if tt.expectErr {
				if err != ErrUnsupportedEncoding {
					t.Errorf("expected ErrUnsupportedEncoding, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseEncoding(%q) = (%q, %v), want %q", tt.input, got, err, tt.want)
			}
		})
	}
}

// TestSnapshotFrameCBOR verifies the compact encoding carries the full
// picture state intact, and that an empty wall encodes as an empty list
// rather than null.
func TestSnapshotFrameCBOR(t *testing.T) {
	pictures := []wall.Picture{
		{
			ID:         "pic-1",
			AssetURL:   "https://assets.example/wall/a.jpg",
			AssetID:    "wall/a",
			Position:   wall.Position{X: 0.25, Y: -0.1},
			Size:       wall.Size{Width: 320, Height: 240},
			UploadedAt: time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
		},
	}

	data, err := EncodeSnapshot(pictures, EncodingCBOR)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	frame, err := DecodeSnapshot(data, EncodingCBOR)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(frame.Pictures) != 1 {
		t.Fatalf("expected 1 picture, got %d", len(frame.Pictures))
	}
	got := frame.Pictures[0]
	if got.ID != "pic-1" || got.Position != pictures[0].Position || got.Size != pictures[0].Size {
		t.Errorf("picture did not round-trip: %+v", got)
	}

	// Empty snapshot must decode as a present, empty collection.
	data, err = EncodeSnapshot(nil, EncodingJSON)
	if err != nil {
		t.Fatalf("encode empty: %v", err)
	}
	frame, err = DecodeSnapshot(data, EncodingJSON)
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if frame.Pictures == nil || len(frame.Pictures) != 0 {
		t.Errorf("empty snapshot should be [], got %v", frame.Pictures)
	}
}
