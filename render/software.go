// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"
	"image/color"

	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/tiletex"
	"github.com/gogpu/tiletex/internal/pixpool"
)

// SoftwareStats counts the work a SoftwareCanvas performed.
type SoftwareStats struct {
	Uploads int // tile surfaces written
	Draws   int // DrawTile calls that produced pixels
	Mixed   int // DrawMixed calls that produced pixels
	Fills   int // FillRect calls
	Skipped int // draws of tiles that were never uploaded
}

// SoftwareOption configures a SoftwareCanvas.
type SoftwareOption func(*SoftwareCanvas)

// WithFilter sets the interpolator used for scaled tile draws.
// The default is xdraw.ApproxBiLinear.
func WithFilter(f xdraw.Interpolator) SoftwareOption {
	return func(c *SoftwareCanvas) {
		if f != nil {
			c.filter = f
		}
	}
}

// SoftwareCanvas is a CPU implementation of tiletex.Canvas.
//
// Tile surfaces are *image.RGBA kept on the tile, so pooled tiles reuse
// their memory the same way GPU tiles reuse their textures. Draws composite
// onto a PixmapTarget with the Over operator.
//
// SoftwareCanvas is NOT safe for concurrent use; it belongs to the render
// goroutine like any tiletex.Canvas.
type SoftwareCanvas struct {
	target *PixmapTarget
	filter xdraw.Interpolator
	stats  SoftwareStats
}

// NewSoftwareCanvas creates a canvas drawing into target.
func NewSoftwareCanvas(target *PixmapTarget, opts ...SoftwareOption) *SoftwareCanvas {
	c := &SoftwareCanvas{
		target: target,
		filter: xdraw.ApproxBiLinear,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Target returns the render target.
func (c *SoftwareCanvas) Target() *PixmapTarget { return c.target }

// Stats returns the work counters.
func (c *SoftwareCanvas) Stats() SoftwareStats { return c.stats }

// ResetStats zeroes the work counters.
func (c *SoftwareCanvas) ResetStats() { c.stats = SoftwareStats{} }

// UploadTile copies pixels into the tile's surface, allocating it on first
// use or when the tile geometry changed.
func (c *SoftwareCanvas) UploadTile(t *tiletex.Tile, pixels *image.RGBA) error {
	surface, ok := t.Texture().(*image.RGBA)
	if !ok || surface.Rect != pixels.Rect {
		if ok {
			pixpool.Put(surface)
		}
		surface = pixpool.Get(pixels.Rect.Dx(), pixels.Rect.Dy())
		t.SetTexture(surface)
	}
	copy(surface.Pix, pixels.Pix)
	c.stats.Uploads++
	return nil
}

// DrawTile draws the src region of the tile surface onto dst.
func (c *SoftwareCanvas) DrawTile(t *tiletex.Tile, src, dst tiletex.Rect) {
	surface := c.surface(t)
	if surface == nil {
		return
	}
	c.scale(c.target.img, dst.Image(), surface, src.Image())
	c.stats.Draws++
}

// DrawMixed draws the tile like DrawTile with each pixel mixed toward col
// by ratio.
func (c *SoftwareCanvas) DrawMixed(t *tiletex.Tile, col gputypes.Color, ratio float32, src, dst tiletex.Rect) {
	surface := c.surface(t)
	if surface == nil {
		return
	}
	dr := dst.Image()
	if dr.Empty() {
		return
	}

	tmp := pixpool.Get(dr.Dx(), dr.Dy())
	defer pixpool.Put(tmp)

	c.scale(tmp, tmp.Rect, surface, src.Image())
	mix(tmp, premultiplied(col), ratio)
	xdraw.Draw(c.target.img, dr, tmp, image.Point{}, xdraw.Over)
	c.stats.Mixed++
}

// FillRect fills r with a solid color.
func (c *SoftwareCanvas) FillRect(r tiletex.Rect, col gputypes.Color) {
	xdraw.Draw(c.target.img, r.Image(), image.NewUniform(premultiplied(col)), image.Point{}, xdraw.Over)
	c.stats.Fills++
}

// ReleaseTile hands the tile surface back to the buffer pool.
func (c *SoftwareCanvas) ReleaseTile(t *tiletex.Tile) {
	if surface, ok := t.Texture().(*image.RGBA); ok {
		pixpool.Put(surface)
	}
	t.SetTexture(nil)
}

func (c *SoftwareCanvas) surface(t *tiletex.Tile) *image.RGBA {
	surface, ok := t.Texture().(*image.RGBA)
	if !ok || !t.Loaded() {
		c.stats.Skipped++
		return nil
	}
	return surface
}

// scale copies sr of src onto dr of dst, taking the unscaled fast path when
// both rectangles have the same size.
func (c *SoftwareCanvas) scale(dst *image.RGBA, dr image.Rectangle, src *image.RGBA, sr image.Rectangle) {
	if dr.Size() == sr.Size() {
		xdraw.Draw(dst, dr, src, sr.Min, xdraw.Over)
		return
	}
	c.filter.Scale(dst, dr, src, sr, xdraw.Over, nil)
}

// mix blends every pixel of img toward col: p = p*(1-ratio) + col*ratio.
// Transparent pixels stay transparent so the mix does not bleed outside the
// drawn tile.
func mix(img *image.RGBA, col color.RGBA, ratio float32) {
	if ratio <= 0 {
		return
	}
	if ratio > 1 {
		ratio = 1
	}
	inv := 1 - ratio
	c := [4]float32{float32(col.R), float32(col.G), float32(col.B), float32(col.A)}
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i+3] == 0 {
			continue
		}
		for k := range 4 {
			pix[i+k] = uint8(float32(pix[i+k])*inv + c[k]*ratio + 0.5)
		}
	}
}

var _ tiletex.Canvas = (*SoftwareCanvas)(nil)
var _ tiletex.TileReleaser = (*SoftwareCanvas)(nil)
