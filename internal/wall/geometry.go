package wall

import "errors"

// ErrNotReady is returned when a conversion is requested before the wall
// rectangle has been laid out (zero width or height). Callers must defer
// the gesture and retry once geometry is known.
var ErrNotReady = errors.New("wall geometry not ready")

// Rect is the wall's bounding rectangle in pixels, as reported by the
// viewer's layout. It is independent of the browser window; pan and zoom
// transforms applied for local viewing do not change it.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the rectangle's geometric center in pixels.
func (r Rect) Center() (x, y float64) {
	return r.Left + r.Width/2, r.Top + r.Height/2
}

// Point is a pixel coordinate from a pointer or touch event.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ToNormalized converts a pointer position into a normalized wall Position
// relative to the rectangle's geometric center:
//
//	x = (px - centerX) / width
//	y = (py - centerY) / height
//
// It is stateless and safe to call from concurrent callers. Returns
// ErrNotReady if the rectangle has zero width or height.
func ToNormalized(p Point, r Rect) (Position, error) {
	if r.Width == 0 || r.Height == 0 {
		return Position{}, ErrNotReady
	}
	cx, cy := r.Center()
	return Position{
		X: (p.X - cx) / r.Width,
		Y: (p.Y - cy) / r.Height,
	}, nil
}

// ToPixel is the exact inverse of ToNormalized:
//
//	px = centerX + x * width
//	py = centerY + y * height
func ToPixel(pos Position, r Rect) Point {
	cx, cy := r.Center()
	return Point{
		X: cx + pos.X*r.Width,
		Y: cy + pos.Y*r.Height,
	}
}
