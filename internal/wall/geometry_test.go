package wall

import (
	"math"
	"testing"
)

const tolerance = 1e-9

// TestToNormalized tests pointer-to-wall coordinate conversion.
func TestToNormalized(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		rect  Rect
		want  Position
	}{
		{
			name:  "center of rect maps to origin",
			point: Point{X: 500, Y: 300},
			rect:  Rect{Left: 0, Top: 0, Width: 1000, Height: 600},
			want:  Position{X: 0, Y: 0},
		},
		{
			name:  "top-left corner",
			point: Point{X: 0, Y: 0},
			rect:  Rect{Left: 0, Top: 0, Width: 1000, Height: 600},
			want:  Position{X: -0.5, Y: -0.5},
		},
		{
			name:  "bottom-right corner",
			point: Point{X: 1000, Y: 600},
			rect:  Rect{Left: 0, Top: 0, Width: 1000, Height: 600},
			want:  Position{X: 0.5, Y: 0.5},
		},
		{
			name:  "offset rect",
			point: Point{X: 150, Y: 250},
			rect:  Rect{Left: 100, Top: 200, Width: 200, Height: 100},
			want:  Position{X: -0.25, Y: 0},
		},
		{
			name:  "point outside rect is permitted",
			point: Point{X: 2000, Y: 0},
			rect:  Rect{Left: 0, Top: 0, Width: 1000, Height: 600},
			want:  Position{X: 1.5, Y: -0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToNormalized(tt.point, tt.rect)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got.X-tt.want.X) > tolerance || math.Abs(got.Y-tt.want.Y) > tolerance {
				t.Errorf("ToNormalized(%v, %v) = %v, want %v", tt.point, tt.rect, got, tt.want)
			}
		})
	}
}

// TestToNormalizedNotReady tests that zero-size rectangles are refused
// instead of dividing by zero.
func TestToNormalizedNotReady(t *testing.T) {
	tests := []struct {
		name string
		rect Rect
	}{
		{name: "zero width", rect: Rect{Width: 0, Height: 600}},
		{name: "zero height", rect: Rect{Width: 1000, Height: 0}},
		{name: "zero both", rect: Rect{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToNormalized(Point{X: 10, Y: 10}, tt.rect)
			if err != ErrNotReady {
				t.Errorf("expected ErrNotReady, got %v", err)
			}
		})
	}
}

// TestRoundTrip verifies ToPixel(ToNormalized(p)) == p within floating-point
// tolerance for points inside the rectangle.
func TestRoundTrip(t *testing.T) {
	rects := []Rect{
		{Left: 0, Top: 0, Width: 1000, Height: 600},
		{Left: 37.5, Top: 12.25, Width: 641, Height: 479},
		{Left: -200, Top: -100, Width: 3840, Height: 2160},
	}

	for _, r := range rects {
		for _, frac := range []struct{ fx, fy float64 }{
			{0, 0}, {0.1, 0.9}, {0.25, 0.75}, {0.5, 0.5}, {0.999, 0.001},
		} {
			p := Point{X: r.Left + frac.fx*r.Width, Y: r.Top + frac.fy*r.Height}
			pos, err := ToNormalized(p, r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			back := ToPixel(pos, r)
			if math.Abs(back.X-p.X) > 1e-6 || math.Abs(back.Y-p.Y) > 1e-6 {
				t.Errorf("round trip through rect %+v: got %v, want %v", r, back, p)
			}
		}
	}
}

// TestViewportIndependence verifies a normalized position maps to the same
// center-relative fraction of any rectangle regardless of its absolute size.
func TestViewportIndependence(t *testing.T) {
	pos := Position{X: 0.25, Y: -0.1}

	rects := []Rect{
		{Width: 800, Height: 600},
		{Left: 50, Top: 80, Width: 1920, Height: 1080},
		{Width: 320, Height: 240},
	}

	for _, r := range rects {
		p := ToPixel(pos, r)
		cx, cy := r.Center()

		gotFracX := (p.X - cx) / r.Width
		gotFracY := (p.Y - cy) / r.Height
		if math.Abs(gotFracX-pos.X) > tolerance || math.Abs(gotFracY-pos.Y) > tolerance {
			t.Errorf("rect %+v: fraction (%f, %f), want (%f, %f)", r, gotFracX, gotFracY, pos.X, pos.Y)
		}
	}
}
