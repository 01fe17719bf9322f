package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/onnwee/thewall/internal/wall"
)

// Encoding selects the wire format for snapshot frames.
type Encoding string

// Supported snapshot encodings.
const (
	EncodingJSON Encoding = "json"
	EncodingCBOR Encoding = "cbor"
)

// ErrUnsupportedEncoding is returned for an unknown encoding name.
var ErrUnsupportedEncoding = errors.New("unsupported snapshot encoding")

// ParseEncoding maps a client-supplied encoding name to an Encoding.
// An empty name defaults to JSON.
func ParseEncoding(name string) (Encoding, error) {
	switch name {
	case "", string(EncodingJSON):
		return EncodingJSON, nil
	case string(EncodingCBOR):
		return EncodingCBOR, nil
	default:
		return "", ErrUnsupportedEncoding
	}
}

// SnapshotFrame is the wire shape of one snapshot delivery. Pictures is
// always the complete collection.
type SnapshotFrame struct {
	Type     string         `json:"type" cbor:"type"`
	Pictures []wall.Picture `json:"pictures" cbor:"pictures"`
}

// frameType marks snapshot frames; the channel carries nothing else today.
const frameType = "snapshot"

// EncodeSnapshot serializes the full picture collection into one frame.
func EncodeSnapshot(pictures []wall.Picture, enc Encoding) ([]byte, error) {
	frame := SnapshotFrame{Type: frameType, Pictures: pictures}
	if frame.Pictures == nil {
		frame.Pictures = []wall.Picture{}
	}

	switch enc {
	case EncodingJSON:
		data, err := json.Marshal(frame)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		return data, nil
	case EncodingCBOR:
		data, err := cbor.Marshal(frame)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		return data, nil
	default:
		return nil, ErrUnsupportedEncoding
	}
}

// DecodeSnapshot parses a snapshot frame produced by EncodeSnapshot.
func DecodeSnapshot(data []byte, enc Encoding) (*SnapshotFrame, error) {
	var frame SnapshotFrame
	switch enc {
	case EncodingJSON:
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("invalid snapshot frame: %w", err)
		}
	case EncodingCBOR:
		if err := cbor.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("invalid snapshot frame: %w", err)
		}
	default:
		return nil, ErrUnsupportedEncoding
	}

	if frame.Type != frameType {
		return nil, fmt.Errorf("unexpected frame type %q", frame.Type)
	}
	return &frame, nil
}
