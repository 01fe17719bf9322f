// Package wall provides the picture model, the normalized coordinate system,
// and repositories for the shared wall.
package wall

import (
	"errors"
	"time"
)

// Common errors for picture operations.
var (
	// ErrPictureNotFound is returned when a picture does not exist.
	ErrPictureNotFound = errors.New("picture not found")
)

// Position is a normalized wall coordinate. {0,0} is the wall's geometric
// center; X and Y are fractions of the wall rectangle's width and height.
// A stored Position renders at the same relative spot on every viewer's
// wall regardless of viewport size. Values outside the wall's domain are
// permitted and simply render off-wall.
type Position struct {
	X float64 `json:"x" cbor:"x"`
	Y float64 `json:"y" cbor:"y"`
}

// Size is a rendering hint derived from the asset's natural aspect ratio.
// It is not authoritative; clients may recompute it on load.
type Size struct {
	Width  int `json:"width" cbor:"width"`
	Height int `json:"height" cbor:"height"`
}

// Picture is an image placed on the wall.
//
// A Picture with a non-empty ID has been durably accepted by the store.
// ID-less pictures exist only transiently inside the placement session that
// created them and are never broadcast to other clients.
type Picture struct {
	ID       string   `json:"id" cbor:"id"`
	AssetURL string   `json:"asset_url" cbor:"asset_url"`
	AssetID  string   `json:"asset_id" cbor:"asset_id"`
	Position Position `json:"position" cbor:"position"`
	Size     Size     `json:"size" cbor:"size"`

	// UploadedAt is set once at creation and never changes.
	UploadedAt time.Time `json:"uploaded_at" cbor:"uploaded_at"`
}
