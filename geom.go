package tiletex

import "image"

// Rect is an axis-aligned rectangle with float32 edges.
//
// A Rect is empty when Left >= Right or Top >= Bottom. Source rectangles are
// expressed in texture pixels, destination rectangles in canvas pixels.
type Rect struct {
	Left, Top, Right, Bottom float32
}

// RectXYWH returns the rectangle with origin (x, y) and size w×h.
func RectXYWH(x, y, w, h float32) Rect {
	return Rect{Left: x, Top: y, Right: x + w, Bottom: y + h}
}

// RectFromImage converts an integer image rectangle to a Rect.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{
		Left:   float32(r.Min.X),
		Top:    float32(r.Min.Y),
		Right:  float32(r.Max.X),
		Bottom: float32(r.Max.Y),
	}
}

// Width returns Right - Left.
func (r Rect) Width() float32 { return r.Right - r.Left }

// Height returns Bottom - Top.
func (r Rect) Height() float32 { return r.Bottom - r.Top }

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Left >= r.Right || r.Top >= r.Bottom }

// Offset returns r translated by (dx, dy).
func (r Rect) Offset(dx, dy float32) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// Intersect returns the intersection of r and o. The boolean is false when
// the two rectangles share no area; touching edges do not intersect.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	out := Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
	if out.Empty() {
		return Rect{}, false
	}
	return out, true
}

// Image rounds the rectangle to the nearest integer image rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(round(r.Left), round(r.Top), round(r.Right), round(r.Bottom))
}

func round(v float32) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}

// linearMap maps rectangles from a source space into a target space.
//
//	                                  (x,y)  target
//	(x0,y0)  source                     +---------------+
//	   +----------+                     |               |
//	   | src      |                     | output        |
//	   | +--+     |    linear map       | +----+        |
//	   | +--+     |    ---------->      | |    |        |
//	   |          | by (scaleX, scaleY) | +----+        |
//	   +----------+                     |               |
//	     texture                        +---------------+
//	                                         canvas
type linearMap struct {
	x0, y0         float32
	x, y           float32
	scaleX, scaleY float32
}

// newLinearMap returns the map taking source onto target.
func newLinearMap(source, target Rect) linearMap {
	return linearMap{
		x0:     source.Left,
		y0:     source.Top,
		x:      target.Left,
		y:      target.Top,
		scaleX: target.Width() / source.Width(),
		scaleY: target.Height() / source.Height(),
	}
}

func (m linearMap) apply(src Rect) Rect {
	return Rect{
		Left:   m.x + (src.Left-m.x0)*m.scaleX,
		Top:    m.y + (src.Top-m.y0)*m.scaleY,
		Right:  m.x + (src.Right-m.x0)*m.scaleX,
		Bottom: m.y + (src.Bottom-m.y0)*m.scaleY,
	}
}
